//go:build linux

package loader

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/yousuf/hookbridge/internal/symbols"
)

func TestOpenSystemLibrary(t *testing.T) {
	m, err := OpenPath("libc.so.6")
	if err != nil {
		t.Skipf("libc not loadable: %v", err)
	}
	defer m.Close()

	addr, err := m.Lookup("getpid")
	require.NoError(t, err)
	require.NotZero(t, addr)

	_, err = m.Lookup("definitely_not_exported_here")
	require.Error(t, err)
}

func TestScanSystemLibrary(t *testing.T) {
	m, err := OpenPath("libc.so.6")
	if err != nil {
		t.Skipf("libc not loadable: %v", err)
	}
	defer m.Close()

	regions, err := m.Regions()
	require.NoError(t, err)
	require.NotEmpty(t, regions)

	addr, err := m.Lookup("getpid")
	require.NoError(t, err)

	var code []byte
	for _, r := range regions {
		if addr >= r.Base && addr+16 <= r.Base+uintptr(len(r.Data)) {
			code = r.Data[addr-r.Base : addr-r.Base+16]
		}
	}
	require.NotNil(t, code, "getpid is not inside an executable mapping")

	hex := make([]string, len(code))
	for i, b := range code {
		hex[i] = fmt.Sprintf("%02X", b)
	}
	found, err := Scan(symbols.MustParsePattern(strings.Join(hex, " ")), regions)
	require.NoError(t, err)
	require.LessOrEqual(t, found, addr)

	// Bind scans the real mapping, so signature targets never report a missing image.
	_, err = m.Bind(symbols.NewRegistry(symbols.CapServer))
	require.Error(t, err)
	require.False(t, errors.Is(err, ErrNoImage))
}
