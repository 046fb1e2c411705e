// Package depscan extracts third-party package dependencies from guest
// source text by regex scanning (spec.md §4.3). It has no awareness of
// comments or string literal context, which is a documented limitation
// (spec.md §9): commented-out imports still register as dependencies.
package depscan

import (
	"regexp"
	"strings"

	"codeforge/internal/model"
)

// builtins is the fixed list of guest-language built-in modules that never
// count as third-party dependencies (spec.md §4.3).
var builtins = map[string]bool{
	"assert": true, "buffer": true, "child_process": true, "cluster": true,
	"console": true, "constants": true, "crypto": true, "dgram": true,
	"dns": true, "domain": true, "events": true, "fs": true, "http": true,
	"https": true, "module": true, "net": true, "os": true, "path": true,
	"punycode": true, "querystring": true, "readline": true, "repl": true,
	"stream": true, "string_decoder": true, "sys": true, "timers": true,
	"tls": true, "tty": true, "url": true, "util": true, "v8": true,
	"vm": true, "zlib": true, "process": true,
}

var (
	requireStyle = regexp.MustCompile(`require\(\s*['"]([^'"]+)['"]\s*\)`)
	importFrom   = regexp.MustCompile(`import\s+(?:[\w*{}\s,]+\s+from\s+)?['"]([^'"]+)['"]`)
)

// Scan extracts the set of third-party dependencies referenced by source,
// deduplicated, each pinned to the "latest" constraint (spec.md §4.3).
func Scan(source string) model.DependencySet {
	deps := model.DependencySet{}

	for _, m := range requireStyle.FindAllStringSubmatch(source, -1) {
		addSpecifier(deps, m[1])
	}
	for _, m := range importFrom.FindAllStringSubmatch(source, -1) {
		addSpecifier(deps, m[1])
	}

	return deps
}

// addSpecifier canonicalizes a raw module specifier and records it unless
// it names a built-in or a relative/absolute path.
func addSpecifier(deps model.DependencySet, specifier string) {
	name := canonicalName(specifier)
	if name == "" {
		return
	}
	if builtins[name] {
		return
	}
	if strings.HasPrefix(specifier, ".") || strings.HasPrefix(specifier, "/") {
		return
	}
	deps[name] = "latest"
}

// canonicalName reduces a module specifier to its package name, stripping
// any trailing "@version" and any subpath after the package root. Scoped
// packages (@scope/pkg) keep the scope segment.
func canonicalName(specifier string) string {
	if specifier == "" {
		return ""
	}

	if strings.HasPrefix(specifier, "@") {
		parts := strings.SplitN(specifier, "/", 3)
		if len(parts) < 2 {
			return ""
		}
		scope := parts[0]
		pkg := stripVersion(parts[1])
		if pkg == "" {
			return ""
		}
		return scope + "/" + pkg
	}

	root := specifier
	if i := strings.Index(specifier, "/"); i >= 0 {
		root = specifier[:i]
	}
	return stripVersion(root)
}

// stripVersion removes a trailing "@version" suffix, e.g. "lodash@4" -> "lodash".
func stripVersion(s string) string {
	if i := strings.Index(s, "@"); i >= 0 {
		return s[:i]
	}
	return s
}
