// Package binname computes the file names companion extension binaries are
// shipped under on each platform family.
package binname

import "github.com/yousuf/hookbridge/internal/platform"

// Options controls the Linux naming rule. Windows and Apple names only honor
// ExtraPrefix.
type Options struct {
	LibPrefix    bool   // prepend "lib"
	ServerSuffix bool   // use "_srv.so" instead of ".so"
	ExtraPrefix  string // prepended verbatim, e.g. "gmsv_" or a directory
}

// DefaultOptions returns the naming used for server-side companion modules.
func DefaultOptions() Options {
	return Options{LibPrefix: true, ServerSuffix: true}
}

// FileName returns the file name for name on the family this binary was
// built for.
func FileName(name string, opts Options) string {
	return For(platform.Current, name, opts)
}

// For returns the file name for name on the given family.
func For(family platform.Family, name string, opts Options) string {
	switch family {
	case platform.Windows:
		return opts.ExtraPrefix + name + ".dll"
	case platform.Apple:
		return opts.ExtraPrefix + name + ".dylib"
	default:
		prefix := ""
		if opts.LibPrefix {
			prefix = "lib"
		}
		suffix := ".so"
		if opts.ServerSuffix {
			suffix = "_srv.so"
		}
		return opts.ExtraPrefix + prefix + name + suffix
	}
}
