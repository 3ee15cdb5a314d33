//go:build windows

package loader

import (
	"fmt"
	"unsafe"

	"golang.org/x/sys/windows"
)

// mappedRegions returns the whole mapped image of the module.
func mappedRegions(handle uintptr, _ string) ([]Region, error) {
	var info windows.ModuleInfo
	err := windows.GetModuleInformation(windows.CurrentProcess(), windows.Handle(handle), &info, uint32(unsafe.Sizeof(info)))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNoImage, err)
	}
	return []Region{{
		Base: info.BaseOfDll,
		Data: unsafe.Slice((*byte)(unsafe.Pointer(info.BaseOfDll)), info.SizeOfImage),
	}}, nil
}
