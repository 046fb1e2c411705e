package sandbox

import (
	"strconv"
	"strings"
)

// wrapperTemplate is the Node.js wrapper program generated into every
// workspace (spec.md §4.7). It shims the five diagnostic output functions,
// loads the user's program, invokes its default export with the request's
// items, and frames the outcome as a single JSON line on stdout (success)
// or stderr (failure) using the saved original writer so the framing call
// itself is never captured.
const wrapperTemplate = `'use strict';
const fs = require('fs');

const origLog = console.log.bind(console);
const origError = console.error.bind(console);

const consoleEntries = [];

function stringifyArg(arg) {
  if (arg === undefined) return 'undefined';
  if (arg === null) return 'null';
  if (typeof arg === 'string') return arg;
  try {
    return JSON.stringify(arg);
  } catch (e) {
    return '[Circular]';
  }
}

function capture(type) {
  return function (...args) {
    consoleEntries.push({
      type: type,
      message: args.map(stringifyArg).join(' '),
      timestamp: new Date().toISOString(),
    });
  };
}

console.log = capture('log');
console.info = capture('info');
console.warn = capture('warn');
console.error = capture('error');
console.debug = capture('debug');

function fail(message, stack) {
  origError(JSON.stringify({ success: false, error: message, stack: stack, console: consoleEntries }));
  process.exit(1);
}

async function main() {
  let mod;
  try {
    mod = require(PROGRAM_PATH);
  } catch (e) {
    return fail(e && e.message ? e.message : String(e), e && e.stack);
  }

  const entry = mod && mod.__esModule ? mod.default : mod;
  if (typeof entry !== 'function') {
    return fail('module does not export a callable entrypoint');
  }

  let items;
  try {
    items = JSON.parse(fs.readFileSync(INPUT_PATH, 'utf8'));
  } catch (e) {
    return fail('invalid input: ' + e.message);
  }

  try {
    const data = await entry(items);
    origLog(JSON.stringify({ success: true, data: data, console: consoleEntries }));
  } catch (e) {
    return fail(e && e.message ? e.message : String(e), e && e.stack);
  }
}

main();
`

// renderWrapper substitutes the program and input file paths into the
// wrapper template as JSON string literals (quoted Node require/readFile
// arguments), avoiding a templating library for two literal substitutions.
func renderWrapper(programPath, inputPath string) string {
	src := wrapperTemplate
	src = strings.ReplaceAll(src, "PROGRAM_PATH", strconv.Quote(programPath))
	src = strings.ReplaceAll(src, "INPUT_PATH", strconv.Quote(inputPath))
	return src
}
