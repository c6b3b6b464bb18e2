// Package worker runs dependency analysis on a background goroutine and
// exchanges structured messages with a foreground consumer.
//
// # Messages
//
// The foreground sends one [Request] per graph load. It carries the node
// rows and the forward adjacency ("targetObjects") and nothing else, so the
// worker never reaches back into foreground state. The worker answers with
// exactly one [Reply] per accepted request: either the complete dependency,
// cause-recompile and gets-recompiled maps, or a [Failure] naming the stage
// that failed. Partial results are never delivered.
//
// # Scheduling
//
// There is one background goroutine and a single-slot request channel.
// Submitting while a job is in flight applies a latest-wins policy:
//
//   - a request still waiting in the slot is answered with code SUPERSEDED
//     and never runs
//   - the running job's context is cancelled; the analysis stops at its
//     next cancellation point and is answered with code SUPERSEDED
//   - the new request takes the slot
//
// A job that completes before it observes the cancellation still delivers
// its full result.
//
// # Failures
//
// Errors and panics inside the analysis are converted into failure replies
// at the worker boundary; the goroutine keeps serving requests. A caller
// that never hears back (for example because it stopped listening) must
// apply its own timeout, which [Worker.Do] does through its context.
//
// # Ownership
//
// Reply maps are built fresh for every request and are not retained by the
// worker. Consumers own them after delivery and must treat them as
// read-only when sharing them further.
package worker
