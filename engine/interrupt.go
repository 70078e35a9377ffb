package engine

import (
	"errors"
	"fmt"
)

// Reasons an Interrupt was raised. Callers should treat these as opaque
// beyond logging; the decision that matters — suspend, do not treat as
// failure — is the same for all of them.
const (
	ReasonExecutionTriggered = "execution triggered"
	ReasonInProgress         = "in progress — skipping"
	ReasonStepCommitted      = "step committed"
)

// Interrupt unwinds a handler when a step suspends it: either because a
// new task was just begun and a continuation enqueued, an in-progress task
// was encountered a second time, or a step just committed and handed off
// to its parent. Go has no exception channel distinct from error returns,
// so structural non-catchability is a discipline, not a guarantee: handler
// code must propagate whatever error execute returns instead of
// discarding it. See doc.go.
type Interrupt struct {
	Reason string
	Path   string
}

func (i *Interrupt) Error() string {
	return fmt.Sprintf("engine: interrupted at %q: %s", i.Path, i.Reason)
}

// IsInterrupt reports whether err is (or wraps) an *Interrupt.
func IsInterrupt(err error) bool {
	var i *Interrupt
	return errors.As(err, &i)
}
