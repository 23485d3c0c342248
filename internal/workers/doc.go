// Package workers runs CPU-bound or rate-limited tasks on a fixed set of goroutines fed by a
// bounded queue, with an optional single-use reply per task.
//
// # Delivery semantics
//
// A task submitted with [Pool.Submit] receives exactly one reply or the caller observes an
// error ([ErrUnavailable], [ErrNoResult], or the context error). A task submitted with
// [Pool.SubmitFireAndForget] never replies. Replies to callers that already gave up are dropped.
//
// # What this package must NOT do
//
//   - Spawn goroutines per task; concurrency is fixed at construction.
//   - Know about passwords, mail, or any other task payload.
package workers
