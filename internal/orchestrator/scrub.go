package orchestrator

import "strings"

// scrubStack applies the error-stack scrubbing rules from spec.md §4.8. The
// contract is the rules themselves, not a ported regular expression:
//
//	(i)   lines mentioning the in-workspace program path have the
//	      workspace prefix stripped;
//	(ii)  lines referencing the dependency tree have the server prefix
//	      up to "/node_modules/" stripped;
//	(iii) wrapper-internal frames collapse to a single "at [code]" line;
//	(iv)  all other frames are dropped.
//
// The first line (the error message, not a stack frame) always passes
// through unchanged.
func scrubStack(stack, workspaceDir string) string {
	lines := strings.Split(stack, "\n")
	if len(lines) == 0 {
		return stack
	}

	out := []string{lines[0]}
	wrapperCollapsed := false

	for _, line := range lines[1:] {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}

		switch {
		case strings.Contains(line, "__wrapper.js"):
			if !wrapperCollapsed {
				out = append(out, "    at [code]")
				wrapperCollapsed = true
			}

		case strings.Contains(line, workspaceDir):
			out = append(out, strings.ReplaceAll(line, workspaceDir+"/", ""))

		case strings.Contains(line, "/node_modules/"):
			out = append(out, stripServerPrefix(line))

		default:
			// dropped per rule (iv)
		}
	}

	return strings.Join(out, "\n")
}

// stripServerPrefix removes the absolute directory prefix up to (not
// including) "node_modules" from a stack frame line, leaving the rest of
// the frame ("    at Object.<anonymous> (") intact.
func stripServerPrefix(line string) string {
	idx := strings.Index(line, "/node_modules/")
	if idx < 0 {
		return line
	}

	pathStart := 0
	if paren := strings.LastIndex(line[:idx], "("); paren >= 0 {
		pathStart = paren + 1
	} else if space := strings.LastIndex(line[:idx], " "); space >= 0 {
		pathStart = space + 1
	}

	return line[:pathStart] + line[idx+1:]
}
