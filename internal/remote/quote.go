package remote

import (
	"regexp"
	"strings"
)

// safeArg matches strings that need no quoting in a POSIX shell
var safeArg = regexp.MustCompile(`^[A-Za-z0-9@%+=:,./_-]+$`)

// Quote escapes a single argument for a POSIX shell. User-supplied values
// (paths, prompts) must pass through here before being embedded in a
// command handed to Channel.Run; this is the only quoting pass.
func Quote(s string) string {
	if s == "" {
		return "''"
	}
	if safeArg.MatchString(s) {
		return s
	}
	// Close the quote, emit a literal single quote, reopen
	return "'" + strings.ReplaceAll(s, "'", `'"'"'`) + "'"
}

// QuoteAll quotes every argument and joins them with spaces
func QuoteAll(args ...string) string {
	quoted := make([]string, len(args))
	for i, a := range args {
		quoted[i] = Quote(a)
	}
	return strings.Join(quoted, " ")
}
