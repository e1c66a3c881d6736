// Package stream provides a small push-based publish/subscribe substrate.
//
// A Stream delivers values to an Observer through synchronous callbacks. Stages
// are pure transforms from one Stream to another (Map, Filter, Merge, ...), so
// pipelines compose without hidden shared state.
//
// # Subjects
//
// Subject broadcasts to every current subscriber. Latest additionally keeps the
// most recent value in a single-slot cache and replays it to new subscribers
// before any newer value, which lets joins against a Latest never wait for a
// first value.
//
// # Ordering
//
// Subjects deliver through a Trampoline: a publish on an idle subject runs on
// the caller's goroutine, while publishes that race with an in-flight delivery
// (from another goroutine, or reentrantly from inside a callback) are queued
// and delivered in FIFO order by the goroutine already draining. Observers of a
// single subject therefore never see concurrent or reordered callbacks.
//
// ObserveOn moves an arbitrary stream onto a Trampoline, which is how several
// independent sources are merged into one total order.
//
// # Termination
//
// Error and Complete are delivered at most once, and nothing is delivered after
// either. Unsubscribe is idempotent and stops delivery immediately.
package stream
