// Package shellquote builds injection-safe POSIX shell fragments.
//
// Every external-controlled value (tab names, working directories, user
// init commands) must pass through one of these functions before being
// interpolated into a command string handed to a shell. Fragments are
// transient: recompute them per use, never cache them.
package shellquote

import "strings"

// Single wraps s in single quotes, replacing every embedded single quote
// with the close-quote, escaped-quote, reopen-quote sequence ('\''). The
// result is safe to splice into a shell command line with no further
// interpretation.
func Single(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}

// Double escapes backslash, double quote, dollar sign and backtick
// (backslash first) so s can appear inside a double-quoted shell string
// as literal text.
func Double(s string) string {
	r := strings.NewReplacer(
		`\`, `\\`,
		`"`, `\"`,
		`$`, `\$`,
		"`", "\\`",
	)
	return `"` + r.Replace(s) + `"`
}
