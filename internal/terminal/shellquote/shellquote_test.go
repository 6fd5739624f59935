package shellquote

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// evalSingleQuoted interprets a fragment the way a POSIX shell would inside
// single-quote context: quotes toggle literal mode, backslash only escapes
// when outside quotes.
func evalSingleQuoted(t *testing.T, fragment string) string {
	t.Helper()
	var out strings.Builder
	inQuote := false
	i := 0
	for i < len(fragment) {
		c := fragment[i]
		switch {
		case c == '\'':
			inQuote = !inQuote
			i++
		case !inQuote && c == '\\':
			require.Less(t, i+1, len(fragment), "dangling backslash")
			out.WriteByte(fragment[i+1])
			i += 2
		default:
			out.WriteByte(c)
			i++
		}
	}
	require.False(t, inQuote, "unterminated quote in %q", fragment)
	return out.String()
}

// evalDoubleQuoted interprets a fragment in double-quote context: the outer
// quotes delimit, and backslash escapes the next character.
func evalDoubleQuoted(t *testing.T, fragment string) string {
	t.Helper()
	require.True(t, strings.HasPrefix(fragment, `"`) && strings.HasSuffix(fragment, `"`))
	body := fragment[1 : len(fragment)-1]
	var out strings.Builder
	i := 0
	for i < len(body) {
		if body[i] == '\\' {
			require.Less(t, i+1, len(body), "dangling backslash")
			out.WriteByte(body[i+1])
			i += 2
			continue
		}
		out.WriteByte(body[i])
		i++
	}
	return out.String()
}

func TestSingle_RoundTrip(t *testing.T) {
	cases := []string{
		"",
		"plain",
		"with space",
		"it's got a quote",
		"'leading and trailing'",
		"''",
		`back\slash`,
		"$HOME and `whoami`",
		"semi;colon && rm -rf /",
		"tab\tand\nnewline",
		"unicode: héllo wörld",
		`mix'ed "quo$tes" and ` + "`ticks`",
	}
	for _, raw := range cases {
		quoted := Single(raw)
		assert.Equal(t, raw, evalSingleQuoted(t, quoted), "raw=%q quoted=%q", raw, quoted)
	}
}

func TestSingle_NeverBreaksOut(t *testing.T) {
	// The quoted fragment must contain no unquoted metacharacters: after
	// stripping the quoting structure, everything is literal.
	quoted := Single("'; touch /tmp/pwned; '")
	assert.Equal(t, "'; touch /tmp/pwned; '", evalSingleQuoted(t, quoted))
}

func TestDouble_RoundTrip(t *testing.T) {
	cases := []string{
		"",
		"plain",
		`say "hi"`,
		`C:\path\with\backslashes`,
		"$VAR is not expanded",
		"`cmd` is not run",
		`all four: \ " $ ` + "`",
	}
	for _, raw := range cases {
		quoted := Double(raw)
		assert.Equal(t, raw, evalDoubleQuoted(t, quoted), "raw=%q quoted=%q", raw, quoted)
	}
}

func TestDouble_EscapesEveryMetachar(t *testing.T) {
	quoted := Double(`$`)
	assert.Equal(t, `"\$"`, quoted)
	quoted = Double("`")
	assert.Equal(t, "\"\\`\"", quoted)
	quoted = Double(`\`)
	assert.Equal(t, `"\\"`, quoted)
	quoted = Double(`"`)
	assert.Equal(t, `"\""`, quoted)
}
