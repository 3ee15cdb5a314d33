//go:build windows

package platform

// Current is the family this binary was built for.
const Current = Windows
