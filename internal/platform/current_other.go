//go:build !windows && !darwin

package platform

// Current is the family this binary was built for. Every non-Windows,
// non-Apple target follows the Linux conventions.
const Current = Linux
