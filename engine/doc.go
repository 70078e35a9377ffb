// Package engine implements the step protocol: the single mechanism by
// which a handler's calls to execute are cached, targeted, and — when they
// are neither — turned into a new task and a suspending Interrupt.
//
// # Structural non-catchability
//
// The specification this package realizes was written against a runtime
// with exceptions, where a step's suspension can be made structurally
// impossible to swallow. Go has no such channel: an Interrupt is an
// ordinary error value returned from Execute, and it propagates only as
// far as handler code chooses to propagate it. This package cannot stop a
// handler from writing:
//
//	if _, err := engine.Execute(ec, "step1", cb); err != nil {
//		// swallowed — do not do this
//	}
//
// Idiomatic Go handlers already return their last error unconditionally,
// so in practice this is not the trap it might sound like — but it is a
// discipline the type system does not enforce, and it is the one place
// where this port is honestly weaker than the model it is drawn from.
// IsInterrupt exists so that handlers which do need to inspect an error
// before propagating it (for example, deciding whether to wrap it) can
// distinguish a suspension from a genuine step failure and re-raise the
// former unchanged.
package engine
