// Package conduit is a durable, resumable execution library for
// event-driven functions. A function registers a filter over inbound
// events and a handler; the handler's calls to engine.Execute/Step are
// cached and replayed so that a crash, a redelivery, or a process restart
// resumes exactly where the execution left off, never re-running a step
// that already committed.
//
// A Worker is the facade applications use: register functions with
// CreateFunction, publish events with Publish, and obtain the dispatch
// loop that actually runs them with Mount. The lower-level packages —
// engine, mount, store, dispatcher, registry — are usable directly by
// anything that needs finer control than the facade offers.
package conduit
