//go:build !linux && !windows

package loader

// TODO: walk Mach-O load commands through dyld on Apple.
func mappedRegions(uintptr, string) ([]Region, error) { return nil, ErrNoImage }
