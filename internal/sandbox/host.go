package sandbox

import (
	"encoding/json"
	"errors"

	"github.com/yousuf/hookbridge/internal/binname"
	"github.com/yousuf/hookbridge/internal/hook"
	"github.com/yousuf/hookbridge/internal/platform"
	"github.com/yousuf/hookbridge/internal/sourcemap"
)

// HookRunRequest is a dispatch requested by an extension
type HookRunRequest struct {
	Hook string `json:"hook"`
	Args []any  `json:"args,omitempty"`
	Rets int    `json:"rets,omitempty"`
}

// HookRunResponse is the outcome of a dispatch
type HookRunResponse struct {
	Success bool   `json:"success"`
	Ready   bool   `json:"ready"`
	Results []any  `json:"results,omitempty"`
	Error   string `json:"error,omitempty"`
}

// BinaryNameRequest asks for the file name of a companion binary
type BinaryNameRequest struct {
	Name         string `json:"name"`
	Family       string `json:"family,omitempty"` // defaults to the host's
	LibPrefix    *bool  `json:"lib_prefix,omitempty"`
	ServerSuffix *bool  `json:"server_suffix,omitempty"`
	ExtraPrefix  string `json:"extra_prefix,omitempty"`
}

// BinaryNameResponse carries the computed file name
type BinaryNameResponse struct {
	Success  bool   `json:"success"`
	FileName string `json:"file_name,omitempty"`
	Error    string `json:"error,omitempty"`
}

// Host is what extensions reach through host functions: the runtime they
// dispatch hooks into and the error channel they report to.
//
// Host functions run on the goroutine that called into the extension, so
// the caller's exclusive hold on the runtime covers them.
type Host struct {
	state    hook.State
	reporter hook.Reporter
	mapper   *sourcemap.Mapper
	fs       *FileSystem
}

// NewHost creates a host over state. mapper and fs may be nil.
func NewHost(state hook.State, reporter hook.Reporter, mapper *sourcemap.Mapper, fs *FileSystem) *Host {
	return &Host{state: state, reporter: reporter, mapper: mapper, fs: fs}
}

// HandleHookRun processes a hook_run request from an extension
func (h *Host) HandleHookRun(requestJSON []byte) []byte {
	var req HookRunRequest
	if err := json.Unmarshal(requestJSON, &req); err != nil || req.Hook == "" {
		return mustMarshal(HookRunResponse{Success: false, Error: "invalid request"})
	}
	if req.Rets < 0 {
		return mustMarshal(HookRunResponse{Success: false, Error: "rets must not be negative"})
	}

	results, err := hook.Run(h.state, req.Hook, req.Args, req.Rets, hook.CallOptions{
		PrintError: true,
		Reporter:   h,
	})
	if errors.Is(err, hook.ErrNotReady) {
		return mustMarshal(HookRunResponse{Success: false, Ready: false, Error: err.Error()})
	}
	var callErr *hook.CallError
	if errors.As(err, &callErr) {
		return mustMarshal(HookRunResponse{Success: false, Ready: true, Error: h.mapper.Map(callErr.Trace)})
	}

	data, err := json.Marshal(HookRunResponse{Success: true, Ready: true, Results: results})
	if err != nil {
		return mustMarshal(HookRunResponse{
			Success: false,
			Ready:   true,
			Error:   "results not representable as JSON: " + err.Error(),
		})
	}
	return data
}

// HandleErrorNoHalt forwards an extension's report to the error channel
func (h *Host) HandleErrorNoHalt(message []byte) {
	h.ErrorNoHalt("%s", message)
}

// HandleBinaryName processes a binary_name request from an extension
func (h *Host) HandleBinaryName(requestJSON []byte) []byte {
	var req BinaryNameRequest
	if err := json.Unmarshal(requestJSON, &req); err != nil || req.Name == "" {
		return mustMarshal(BinaryNameResponse{Success: false, Error: "invalid request"})
	}

	family := platform.Current
	if req.Family != "" {
		f, err := platform.ParseFamily(req.Family)
		if err != nil {
			return mustMarshal(BinaryNameResponse{Success: false, Error: err.Error()})
		}
		family = f
	}

	opts := binname.DefaultOptions()
	if req.LibPrefix != nil {
		opts.LibPrefix = *req.LibPrefix
	}
	if req.ServerSuffix != nil {
		opts.ServerSuffix = *req.ServerSuffix
	}
	opts.ExtraPrefix = req.ExtraPrefix

	return mustMarshal(BinaryNameResponse{Success: true, FileName: binname.For(family, req.Name, opts)})
}

// ErrorNoHalt reports through the host's reporter, mapping any trace
// frames back to their original sources.
func (h *Host) ErrorNoHalt(format string, args ...any) {
	if h.reporter == nil {
		return
	}
	h.reporter.ErrorNoHalt("%s", h.mapper.Map(sprintf(format, args...)))
}

// FileSystem returns the mounts extensions can reach, or nil.
func (h *Host) FileSystem() *FileSystem { return h.fs }
