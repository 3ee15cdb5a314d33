package hook

import (
	"go.uber.org/zap"

	"github.com/yousuf/hookbridge/internal/logging"
)

// depthGuard pins the stack depth at the start of a phase so the phase can
// prove it left exactly the depth it documents.
type depthGuard struct {
	s     State
	base  int
	phase string
}

func acquire(s State, phase string) depthGuard {
	return depthGuard{s: s, base: s.GetTop(), phase: phase}
}

func acquireAt(s State, phase string, base int) depthGuard {
	return depthGuard{s: s, base: base, phase: phase}
}

// settle checks that the stack now sits delta values above the base. On
// drift the stack is cut back to the base and settle reports false.
func (g depthGuard) settle(delta int) bool {
	got := g.s.GetTop() - g.base
	if got == delta {
		return true
	}

	logging.Logger().Error("runtime stack drift",
		zap.String("phase", g.phase),
		zap.Int("base", g.base),
		zap.Int("want", delta),
		zap.Int("got", got))

	if g.s.GetTop() > g.base {
		g.s.SetTop(g.base)
	}
	return false
}
