package hook

import (
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/yousuf/hookbridge/internal/logging"
)

const (
	// DispatchTable is the global holding the dispatcher.
	DispatchTable = "hook"
	// DispatchEntry is the dispatcher's entry point inside DispatchTable.
	DispatchEntry = "Run"

	// handlerOffset is the distance from the last additional argument to
	// the error handler, given the layout PushHookRun establishes:
	//
	//	[handler][hook.Run][name][arg1 .. argN]
	//	   ^-(N+3)  ^-(N+2)  ^-(N+1)      ^-1
	handlerOffset = 3
)

// ErrNotReady reports that the dispatch table is missing or malformed,
// which is normal before the host has initialized its scripts.
var ErrNotReady = errors.New("dispatch table not ready")

// CallError is an invocation failure inside the runtime.
type CallError struct {
	Hook  string
	Trace string // diagnostic built by Traceback
}

func (e *CallError) Error() string {
	return fmt.Sprintf("hook %q failed: %s", e.Hook, e.Trace)
}

// CallOptions controls failure handling in CallHookRun.
type CallOptions struct {
	// PrintError reports the diagnostic through Reporter.
	PrintError bool
	// PopError discards the diagnostic. When false it is left on the top
	// of the stack for the caller.
	PopError bool
	// Reporter receives diagnostics. Nil reports to the process logger.
	Reporter Reporter
}

// DefaultCallOptions prints and discards diagnostics.
func DefaultCallOptions(r Reporter) CallOptions {
	return CallOptions{PrintError: true, PopError: true, Reporter: r}
}

// PushHookRun prepares a call to hook.Run(name, ...).
//
// On success it pushes the Traceback handler, hook.Run and name (net +3)
// and returns true; the caller then pushes its arguments and calls
// CallHookRun. When the hook table or hook.Run is missing it leaves the
// stack untouched and returns false.
func PushHookRun(s State, name string) bool {
	g := acquire(s, "setup")

	s.PushHandler(Traceback)

	s.GetGlobal(DispatchTable)
	if s.TypeAt(-1) != TypeTable {
		s.Pop(2)
		g.settle(0)
		return false
	}

	s.GetField(-1, DispatchEntry)
	if s.TypeAt(-1) != TypeFunction {
		s.Pop(3)
		g.settle(0)
		return false
	}

	s.Remove(-2)
	s.PushString(name)

	return g.settle(3)
}

// CallHookRun calls the hook.Run prepared by PushHookRun with args
// additional arguments on top, requesting rets results.
//
// Relative to the depth before PushHookRun, the stack ends at:
//
//	success:                 +rets (the results)
//	failure, PopError:       +0
//	failure, !PopError:      +1 (the diagnostic)
func CallHookRun(s State, args, rets int, opts CallOptions) bool {
	if args < 0 || rets < 0 || s.GetTop() < args+handlerOffset ||
		s.TypeAt(-args-handlerOffset) != TypeFunction {
		logging.Logger().Error("hook call without a prepared stack",
			zap.Int("args", args),
			zap.Int("rets", rets),
			zap.Int("top", s.GetTop()))
		return false
	}

	g := acquireAt(s, "call", s.GetTop()-args-handlerOffset)

	if err := s.PCall(1+args, rets, -args-handlerOffset); err != nil {
		if opts.PrintError {
			reporterOrLog(opts.Reporter).ErrorNoHalt("\n%s\n\n", diagnosticAt(s, -1))
		}
		if opts.PopError {
			s.Pop(2)
			g.settle(0)
		} else {
			s.Remove(-2)
			g.settle(1)
		}
		return false
	}

	s.Remove(-rets - 1)
	return g.settle(rets)
}

// Run dispatches hook name with args and returns rets results. The stack
// depth after Run always equals the depth before it.
func Run(s State, name string, args []any, rets int, opts CallOptions) ([]any, error) {
	base := s.GetTop()
	defer func() {
		if s.GetTop() != base {
			s.SetTop(base)
		}
	}()

	if !PushHookRun(s, name) {
		return nil, ErrNotReady
	}
	for _, a := range args {
		s.PushValue(a)
	}

	opts.PopError = false
	if !CallHookRun(s, len(args), rets, opts) {
		err := &CallError{Hook: name}
		if s.GetTop() == base+1 {
			err.Trace = diagnosticAt(s, -1)
		}
		return nil, err
	}

	results := make([]any, rets)
	for i := range results {
		results[i] = s.Value(i - rets)
	}
	return results, nil
}

func reporterOrLog(r Reporter) Reporter {
	if r != nil {
		return r
	}
	return logging.NewReporter(logging.Logger(), nil)
}
