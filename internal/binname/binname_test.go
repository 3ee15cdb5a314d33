package binname

import (
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/yousuf/hookbridge/internal/platform"
)

func TestForLinux(t *testing.T) {
	tests := []struct {
		opts Options
		want string
	}{
		{Options{LibPrefix: true, ServerSuffix: false}, "libfoo.so"},
		{Options{LibPrefix: true, ServerSuffix: true}, "libfoo_srv.so"},
		{Options{LibPrefix: false, ServerSuffix: false}, "foo.so"},
		{Options{LibPrefix: false, ServerSuffix: true}, "foo_srv.so"},
		{Options{LibPrefix: true, ServerSuffix: true, ExtraPrefix: "bin/"}, "bin/libfoo_srv.so"},
		{Options{ExtraPrefix: "gmsv_"}, "gmsv_foo.so"},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			require.Equal(t, tt.want, For(platform.Linux, "foo", tt.opts))
		})
	}
}

func TestForIgnoresFlagsOutsideLinux(t *testing.T) {
	for _, lib := range []bool{false, true} {
		for _, srv := range []bool{false, true} {
			opts := Options{LibPrefix: lib, ServerSuffix: srv}
			require.Equal(t, "foo.dll", For(platform.Windows, "foo", opts))
			require.Equal(t, "foo.dylib", For(platform.Apple, "foo", opts))

			opts.ExtraPrefix = "x_"
			require.Equal(t, "x_foo.dll", For(platform.Windows, "foo", opts))
			require.Equal(t, "x_foo.dylib", For(platform.Apple, "foo", opts))
		}
	}
}

func TestFileNameUsesCurrentFamily(t *testing.T) {
	opts := DefaultOptions()
	require.Equal(t, For(platform.Current, "bar", opts), FileName("bar", opts))
}

func TestDefaultOptions(t *testing.T) {
	require.Equal(t, "libfoo_srv.so", For(platform.Linux, "foo", DefaultOptions()))
}
