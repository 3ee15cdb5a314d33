package hook

import (
	"strconv"
	"strings"
)

// Traceback is a protected-call error handler. It seeds the diagnostic with
// the error value when it is a string, appends one line per active call
// level starting at the caller of the handler, and pushes the result.
//
// Each line is indented one space deeper than the previous one:
//
//	attempt to call a nil value
//	  1. Run - hook.lua:42
//	   2. unknown - init.lua:7
//
// A level whose debug information cannot be read ends the trace.
func Traceback(s State) (n int) {
	var sb strings.Builder
	if s.TypeAt(1) == TypeString {
		sb.WriteString(s.StringAt(1))
	}

	defer func() {
		// The trace gathered so far is still worth returning.
		if r := recover(); r != nil {
			s.PushString(sb.String())
			n = 1
		}
	}()

	indent := "\n  "
	for level := 1; ; level++ {
		frame, ok := s.GetStack(level)
		if !ok {
			break
		}
		if err := s.GetInfo(frame); err != nil {
			break
		}
		writeFrame(&sb, indent, level, frame)
		indent += " "
	}

	s.PushString(sb.String())
	return 1
}

func writeFrame(sb *strings.Builder, indent string, level int, f *Frame) {
	name := f.Name
	if name == "" {
		name = "unknown"
	}
	sb.WriteString(indent)
	sb.WriteString(strconv.Itoa(level))
	sb.WriteString(". ")
	sb.WriteString(name)
	sb.WriteString(" - ")
	sb.WriteString(f.Source)
	sb.WriteByte(':')
	sb.WriteString(strconv.Itoa(f.CurrentLine))
}
