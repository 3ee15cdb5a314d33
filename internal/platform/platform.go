// Package platform names the operating-system families the host ships
// extension binaries for.
package platform

import (
	"fmt"
	"strings"
)

// Family is an operating-system family with its own binary naming and
// symbol linkage conventions.
type Family uint8

const (
	Windows Family = iota
	Linux
	Apple
)

// Families lists every supported family in declaration order.
var Families = []Family{Windows, Linux, Apple}

func (f Family) String() string {
	switch f {
	case Windows:
		return "windows"
	case Linux:
		return "linux"
	case Apple:
		return "apple"
	default:
		return fmt.Sprintf("family(%d)", uint8(f))
	}
}

// ParseFamily accepts the family names returned by String as well as the
// GOOS spellings "darwin" and "macos".
func ParseFamily(s string) (Family, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "windows", "win32":
		return Windows, nil
	case "linux":
		return Linux, nil
	case "apple", "darwin", "macos":
		return Apple, nil
	default:
		return 0, fmt.Errorf("unknown platform family %q", s)
	}
}
