package symbols

import (
	"fmt"
	"strconv"
	"strings"
)

// Pattern is a byte signature in which some positions match any byte.
type Pattern struct {
	bytes []byte
	mask  []bool // true where the byte must match
}

// ParsePattern parses space-separated hex bytes, with "?" or "??" as a
// wildcard: "55 8B EC ?? ?? 56".
func ParsePattern(s string) (Pattern, error) {
	fields := strings.Fields(s)
	if len(fields) == 0 {
		return Pattern{}, fmt.Errorf("empty signature")
	}

	p := Pattern{
		bytes: make([]byte, len(fields)),
		mask:  make([]bool, len(fields)),
	}
	for i, f := range fields {
		if f == "?" || f == "??" {
			continue
		}
		b, err := strconv.ParseUint(f, 16, 8)
		if err != nil {
			return Pattern{}, fmt.Errorf("signature byte %d %q: %w", i, f, err)
		}
		p.bytes[i] = byte(b)
		p.mask[i] = true
	}
	return p, nil
}

// MustParsePattern is ParsePattern for package-level tables.
func MustParsePattern(s string) Pattern {
	p, err := ParsePattern(s)
	if err != nil {
		panic(err)
	}
	return p
}

// Len returns the pattern length in bytes.
func (p Pattern) Len() int { return len(p.bytes) }

// Match returns the offset of the first match in image, or -1.
func (p Pattern) Match(image []byte) int {
	n := len(p.bytes)
	if n == 0 {
		return -1
	}
outer:
	for i := 0; i+n <= len(image); i++ {
		for j := 0; j < n; j++ {
			if p.mask[j] && image[i+j] != p.bytes[j] {
				continue outer
			}
		}
		return i
	}
	return -1
}

func (p Pattern) String() string {
	var sb strings.Builder
	for i := range p.bytes {
		if i > 0 {
			sb.WriteByte(' ')
		}
		if !p.mask[i] {
			sb.WriteString("??")
			continue
		}
		fmt.Fprintf(&sb, "%02X", p.bytes[i])
	}
	return sb.String()
}
