package router

import (
	"strings"

	"github.com/google/uuid"
)

// newReqID returns a short request id for log correlation.
func newReqID() string {
	id := uuid.New()
	return strings.ReplaceAll(id.String(), "-", "")[:12]
}

// tokenizeCommandLine splits command text into tokens while supporting quotes.
// Examples:
//
//	/job_post "Write recap" --category "promo codes"
func tokenizeCommandLine(s string) []string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	var (
		out    []string
		buf    strings.Builder
		inQ    bool
		qChar  rune
		esc    bool
		quoted bool
	)
	flush := func() {
		if buf.Len() > 0 || quoted {
			out = append(out, buf.String())
			buf.Reset()
			quoted = false
		}
	}
	for _, ch := range s {
		if esc {
			buf.WriteRune(ch)
			esc = false
			continue
		}
		if ch == '\\' {
			esc = true
			continue
		}
		if inQ {
			if ch == qChar {
				inQ = false
				continue
			}
			buf.WriteRune(ch)
			continue
		}
		switch ch {
		case '"', '\'', '“', '”':
			inQ, quoted = true, true
			qChar = closingQuote(ch)
		case ' ', '\t', '\n', '\r':
			flush()
		default:
			buf.WriteRune(ch)
		}
	}
	flush()
	return out
}

// closingQuote pairs typographic quotes, which phone keyboards insert.
func closingQuote(open rune) rune {
	if open == '“' {
		return '”'
	}
	return open
}

// parseFlags splits raw args into positionals and flags.
//
// Supported:
//
//	--k=v, --k v, --flag (bool)
//	-k=v, -k v, -abc (bool flags a,b,c)
//
// Negative numbers stay positional.
func parseFlags(args []string) (pos []string, flags map[string]string, bools map[string]bool) {
	flags = map[string]string{}
	bools = map[string]bool{}
	isFlag := func(a string) bool { return strings.HasPrefix(a, "-") && len(a) > 1 && !isNumber(a) }

	for i := 0; i < len(args); i++ {
		a := args[i]
		if !isFlag(a) {
			pos = append(pos, a)
			continue
		}
		long := strings.HasPrefix(a, "--")
		key := strings.TrimLeft(a, "-")
		if key == "" {
			pos = append(pos, a)
			continue
		}
		if eq := strings.IndexByte(key, '='); eq >= 0 {
			flags[key[:eq]] = key[eq+1:]
			continue
		}
		if long || len(key) == 1 {
			if i+1 < len(args) && !isFlag(args[i+1]) {
				flags[key] = args[i+1]
				i++
				continue
			}
			bools[key] = true
			continue
		}
		// -abc => bool a,b,c
		for j := 0; j < len(key); j++ {
			bools[string(key[j])] = true
		}
	}
	return pos, flags, bools
}

func isNumber(s string) bool {
	s = strings.TrimPrefix(s, "-")
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
