//go:build !linux && !darwin && !freebsd && !windows

package loader

func dlopen(string) (uintptr, error)         { return 0, ErrUnsupportedPlatform }
func dlsym(uintptr, string) (uintptr, error) { return 0, ErrUnsupportedPlatform }
func dlclose(uintptr) error                  { return nil }
