//go:build linux

package loader

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"unsafe"
)

// mappedRegions reads the executable mappings of path from /proc/self/maps.
func mappedRegions(_ uintptr, path string) ([]Region, error) {
	f, err := os.Open("/proc/self/maps")
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNoImage, err)
	}
	defer f.Close()

	match := mappingMatcher(path)

	var regions []Region
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		// start-end perms offset dev inode pathname
		fields := strings.Fields(scanner.Text())
		if len(fields) < 6 || len(fields[1]) < 3 {
			continue
		}
		if fields[1][0] != 'r' || fields[1][2] != 'x' || !match(fields[5]) {
			continue
		}
		start, end, ok := parseRange(fields[0])
		if !ok || end <= start {
			continue
		}
		regions = append(regions, Region{
			Base: start,
			Data: unsafe.Slice((*byte)(unsafe.Pointer(start)), end-start),
		})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNoImage, err)
	}
	if len(regions) == 0 {
		return nil, fmt.Errorf("%w: %s is not mapped executable", ErrNoImage, path)
	}
	return regions, nil
}

// mappingMatcher compares absolute paths after resolving links, and bare
// names such as "libc.so.6" by base name.
func mappingMatcher(path string) func(string) bool {
	if !filepath.IsAbs(path) {
		base := filepath.Base(path)
		return func(mapped string) bool { return filepath.Base(mapped) == base }
	}
	if resolved, err := filepath.EvalSymlinks(path); err == nil {
		path = resolved
	}
	return func(mapped string) bool { return mapped == path }
}

func parseRange(s string) (start, end uintptr, ok bool) {
	lo, hi, found := strings.Cut(s, "-")
	if !found {
		return 0, 0, false
	}
	a, err := strconv.ParseUint(lo, 16, 64)
	if err != nil {
		return 0, 0, false
	}
	b, err := strconv.ParseUint(hi, 16, 64)
	if err != nil {
		return 0, 0, false
	}
	return uintptr(a), uintptr(b), true
}
