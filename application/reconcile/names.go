package reconcile

import (
	"strings"
)

const softHyphen = "­"

// NormalizeDisplayedName turns a rendered, possibly wrapped shape label
// back into a backend-comparable name. Line breaks and soft hyphenation
// are stripped; legitimate mid-word hyphens are preserved by diffing the
// break against the last-known backend name's hyphen positions.
func NormalizeDisplayedName(displayed, lastBackendName string) string {
	s := strings.ReplaceAll(displayed, "\r", "")

	// A soft hyphen directly before a break is always wrapping-induced;
	// swallow both and rejoin the word.
	s = strings.ReplaceAll(s, softHyphen+"\n", "")

	// A hyphen directly before a line break is either wrapping-induced
	// soft hyphenation or a real hyphen that happened to land on a break.
	// Keep it only when the backend name contains the hyphenated join.
	var b strings.Builder
	for i := 0; i < len(s); {
		if s[i] == '-' && i+1 < len(s) && s[i+1] == '\n' {
			left := trailingWord(b.String())
			right := leadingWord(s[i+2:])
			if left != "" && right != "" && strings.Contains(lastBackendName, left+"-"+right) {
				b.WriteByte('-')
			}
			i += 2 // swallow the break either way
			continue
		}
		if s[i] == '\n' {
			b.WriteByte(' ')
			i++
			continue
		}
		b.WriteByte(s[i])
		i++
	}

	out := strings.ReplaceAll(b.String(), softHyphen, "")
	return strings.Join(strings.Fields(out), " ")
}

// WrapLabel breaks a name into display lines for a shape of the given
// width. Greedy word wrap over an approximate character budget; single
// words longer than the budget stay unbroken.
func WrapLabel(name string, width float64) string {
	const approxCharWidth = 8.0
	budget := int(width / approxCharWidth)
	if budget < 8 {
		budget = 8
	}

	words := strings.Fields(name)
	if len(words) == 0 {
		return ""
	}

	var lines []string
	line := words[0]
	for _, w := range words[1:] {
		if len(line)+1+len(w) <= budget {
			line += " " + w
			continue
		}
		lines = append(lines, line)
		line = w
	}
	lines = append(lines, line)
	return strings.Join(lines, "\n")
}

func trailingWord(s string) string {
	end := len(s)
	start := end
	for start > 0 && isWordByte(s[start-1]) {
		start--
	}
	return s[start:end]
}

func leadingWord(s string) string {
	end := 0
	for end < len(s) && isWordByte(s[end]) {
		end++
	}
	return s[:end]
}

func isWordByte(c byte) bool {
	return c != ' ' && c != '\n' && c != '-'
}
