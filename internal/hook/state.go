// Package hook invokes the host's event dispatcher (hook.Run) inside an
// embedded Lua runtime and turns failures into annotated stack traces.
//
// The runtime is reached through State, a C-style value stack. Every
// operation here documents its net effect on stack depth and restores that
// depth on all exit paths.
package hook

import "fmt"

// Type is the type of a value on the runtime stack.
type Type uint8

const (
	TypeNone Type = iota // index not valid
	TypeNil
	TypeBoolean
	TypeNumber
	TypeString
	TypeTable
	TypeFunction
	TypeOther
)

func (t Type) String() string {
	switch t {
	case TypeNone:
		return "no value"
	case TypeNil:
		return "nil"
	case TypeBoolean:
		return "boolean"
	case TypeNumber:
		return "number"
	case TypeString:
		return "string"
	case TypeTable:
		return "table"
	case TypeFunction:
		return "function"
	default:
		return "userdata"
	}
}

// Frame is the debug information of one active call level.
type Frame struct {
	Name        string // empty when the runtime cannot name the function
	Source      string
	CurrentLine int

	// Handle is the runtime's own activation record for the level.
	Handle any
}

// Handler is a native function callable from the runtime. It returns the
// number of results it left on the stack.
type Handler func(s State) int

// State is the stack API of an embedded runtime. Negative indices count
// from the top (-1 is the top); positive indices count from the base of the
// running function.
//
// A State is not safe for concurrent use.
type State interface {
	GetTop() int
	SetTop(idx int)
	Pop(n int)
	Remove(idx int)

	TypeAt(idx int) Type
	StringAt(idx int) string
	Value(idx int) any

	PushString(s string)
	PushValue(v any)
	PushHandler(h Handler)

	// GetGlobal pushes the global name.
	GetGlobal(name string)
	// GetField pushes t[key] where t is the value at idx.
	GetField(idx int, key string)

	// PCall calls the function below the top nargs values in protected
	// mode, using the function at handlerIdx as error handler. On success
	// the function and arguments are replaced by nrets results. On failure
	// they are replaced by the handler's result and the error is returned.
	PCall(nargs, nrets, handlerIdx int) error

	// GetStack returns the activation record of the given call level, 0
	// being the running function. It reports false past the outermost level.
	GetStack(level int) (*Frame, bool)
	// GetInfo fills the name, source and current line of f.
	GetInfo(f *Frame) error
}

// Reporter is the host's non-halting error channel.
type Reporter interface {
	ErrorNoHalt(format string, args ...any)
}

// diagnosticAt renders the value at idx for reporting.
func diagnosticAt(s State, idx int) string {
	switch s.TypeAt(idx) {
	case TypeString, TypeNumber:
		return s.StringAt(idx)
	case TypeNone:
		return ""
	default:
		return fmt.Sprint(s.Value(idx))
	}
}
