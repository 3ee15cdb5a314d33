package hook

import (
	"errors"
	"fmt"
)

// fakeValue is a value on the synthetic runtime's stack.
type fakeValue struct {
	typ    Type
	str    string
	num    float64
	fields map[string]fakeValue
	fn     func(args []fakeValue) ([]fakeValue, error)
	native Handler
}

func str(s string) fakeValue  { return fakeValue{typ: TypeString, str: s} }
func num(n float64) fakeValue { return fakeValue{typ: TypeNumber, num: n} }
func nilValue() fakeValue     { return fakeValue{typ: TypeNil} }
func table(fields map[string]fakeValue) fakeValue {
	return fakeValue{typ: TypeTable, fields: fields}
}
func function(fn func(args []fakeValue) ([]fakeValue, error)) fakeValue {
	return fakeValue{typ: TypeFunction, fn: fn}
}

// fakeState is a synthetic runtime: a value stack, a global table and a
// fixed set of call frames reported while an error handler runs.
type fakeState struct {
	stack   []fakeValue
	base    int
	globals map[string]fakeValue

	frames     []Frame
	infoFailAt int // level whose GetInfo fails, 0 for none
	inHandler  bool
}

func newFakeState() *fakeState {
	return &fakeState{globals: make(map[string]fakeValue)}
}

func (s *fakeState) abs(idx int) int {
	if idx > 0 {
		return s.base + idx - 1
	}
	return len(s.stack) + idx
}

func (s *fakeState) at(idx int) (fakeValue, bool) {
	i := s.abs(idx)
	if i < s.base || i >= len(s.stack) {
		return fakeValue{}, false
	}
	return s.stack[i], true
}

func (s *fakeState) GetTop() int { return len(s.stack) - s.base }

func (s *fakeState) SetTop(idx int) {
	n := s.base + idx
	if idx < 0 {
		n = len(s.stack) + idx + 1
	}
	for len(s.stack) < n {
		s.stack = append(s.stack, nilValue())
	}
	s.stack = s.stack[:n]
}

func (s *fakeState) Pop(n int) { s.stack = s.stack[:len(s.stack)-n] }

func (s *fakeState) Remove(idx int) {
	i := s.abs(idx)
	s.stack = append(s.stack[:i], s.stack[i+1:]...)
}

func (s *fakeState) TypeAt(idx int) Type {
	v, ok := s.at(idx)
	if !ok {
		return TypeNone
	}
	return v.typ
}

func (s *fakeState) StringAt(idx int) string {
	v, _ := s.at(idx)
	if v.typ == TypeNumber {
		return fmt.Sprint(v.num)
	}
	return v.str
}

func (s *fakeState) Value(idx int) any {
	v, _ := s.at(idx)
	switch v.typ {
	case TypeString:
		return v.str
	case TypeNumber:
		return v.num
	default:
		return nil
	}
}

func (s *fakeState) PushString(v string) { s.stack = append(s.stack, str(v)) }

func (s *fakeState) PushValue(v any) {
	switch x := v.(type) {
	case string:
		s.PushString(x)
	case float64:
		s.stack = append(s.stack, num(x))
	case int:
		s.stack = append(s.stack, num(float64(x)))
	default:
		s.stack = append(s.stack, nilValue())
	}
}

func (s *fakeState) PushHandler(h Handler) {
	s.stack = append(s.stack, fakeValue{typ: TypeFunction, native: h})
}

func (s *fakeState) GetGlobal(name string) {
	v, ok := s.globals[name]
	if !ok {
		v = nilValue()
	}
	s.stack = append(s.stack, v)
}

func (s *fakeState) GetField(idx int, key string) {
	t, _ := s.at(idx)
	v, ok := t.fields[key]
	if !ok {
		v = nilValue()
	}
	s.stack = append(s.stack, v)
}

func (s *fakeState) PCall(nargs, nrets, handlerIdx int) error {
	handler, _ := s.at(handlerIdx)
	fnPos := len(s.stack) - nargs - 1
	callee := s.stack[fnPos]
	args := append([]fakeValue(nil), s.stack[fnPos+1:]...)
	s.stack = s.stack[:fnPos]

	rets, err := callee.fn(args)
	if err != nil {
		s.stack = append(s.stack, str(err.Error()))
		saved := s.base
		s.base = len(s.stack) - 1
		s.inHandler = true
		n := handler.native(s)
		s.inHandler = false
		result := s.stack[len(s.stack)-n]
		s.base = saved
		s.stack = append(s.stack[:fnPos], result)
		return err
	}

	for i := 0; i < nrets; i++ {
		if i < len(rets) {
			s.stack = append(s.stack, rets[i])
		} else {
			s.stack = append(s.stack, nilValue())
		}
	}
	return nil
}

func (s *fakeState) GetStack(level int) (*Frame, bool) {
	if !s.inHandler || level < 0 || level > len(s.frames) {
		return nil, false
	}
	if level == 0 {
		return &Frame{Handle: 0}, true
	}
	return &Frame{Handle: level}, true
}

func (s *fakeState) GetInfo(f *Frame) error {
	level := f.Handle.(int)
	if level == s.infoFailAt {
		return errors.New("no debug info")
	}
	src := s.frames[level-1]
	f.Name, f.Source, f.CurrentLine = src.Name, src.Source, src.CurrentLine
	return nil
}

// recordingReporter collects ErrorNoHalt output.
type recordingReporter struct {
	reports []string
}

func (r *recordingReporter) ErrorNoHalt(format string, args ...any) {
	r.reports = append(r.reports, fmt.Sprintf(format, args...))
}
