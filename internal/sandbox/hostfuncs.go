package sandbox

import (
	"context"

	extism "github.com/extism/go-sdk"
)

// Host function names imported by extensions from the extism:host/user namespace
const (
	HostFuncHookRun     = "hook_run"
	HostFuncErrorNoHalt = "error_no_halt"
	HostFuncBinaryName  = "binary_name"
	HostFuncFileRead    = "file_read"
	HostFuncFileWrite   = "file_write"
	HostFuncFileList    = "file_list"
	HostFuncFileDelete  = "file_delete"
)

// hostFunctions builds the functions an extension may import from host
func hostFunctions(host *Host) []extism.HostFunction {
	funcs := []extism.HostFunction{
		createJSONHostFunc(HostFuncHookRun, host.HandleHookRun),
		createJSONHostFunc(HostFuncBinaryName, host.HandleBinaryName),
		createErrorNoHaltHostFunc(host),
	}

	if fs := host.FileSystem(); fs != nil {
		funcs = append(funcs,
			createJSONHostFunc(HostFuncFileRead, fs.HandleReadFile),
			createJSONHostFunc(HostFuncFileWrite, fs.HandleWriteFile),
			createJSONHostFunc(HostFuncFileList, fs.HandleListFiles),
			createJSONHostFunc(HostFuncFileDelete, fs.HandleDeleteFile),
		)
	}

	return funcs
}

// createJSONHostFunc wraps a JSON request/response handler as a host function.
// The extension passes an offset to the request and receives an offset to
// the response, or 0 when plugin memory could not be read or written.
func createJSONHostFunc(name string, handle func([]byte) []byte) extism.HostFunction {
	return extism.NewHostFunctionWithStack(
		name,
		func(ctx context.Context, plugin *extism.CurrentPlugin, stack []uint64) {
			input, err := plugin.ReadBytes(stack[0])
			if err != nil {
				plugin.Logf(extism.LogLevelError, "%s: failed to read input: %v", name, err)
				stack[0] = 0
				return
			}

			offset, err := plugin.WriteBytes(handle(input))
			if err != nil {
				plugin.Logf(extism.LogLevelError, "%s: failed to write response: %v", name, err)
				stack[0] = 0
				return
			}

			stack[0] = offset
		},
		[]extism.ValueType{extism.ValueTypeI64}, // input: offset to request JSON
		[]extism.ValueType{extism.ValueTypeI64}, // output: offset to response JSON
	)
}

// createErrorNoHaltHostFunc creates the host function extensions use to
// report a non-fatal error
func createErrorNoHaltHostFunc(host *Host) extism.HostFunction {
	return extism.NewHostFunctionWithStack(
		HostFuncErrorNoHalt,
		func(ctx context.Context, plugin *extism.CurrentPlugin, stack []uint64) {
			message, err := plugin.ReadString(stack[0])
			if err != nil {
				plugin.Logf(extism.LogLevelError, "%s: failed to read input: %v", HostFuncErrorNoHalt, err)
				return
			}
			host.HandleErrorNoHalt([]byte(message))
		},
		[]extism.ValueType{extism.ValueTypeI64}, // input: offset to message
		[]extism.ValueType{},
	)
}
