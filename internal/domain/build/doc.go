// Package build runs the revision pipeline: merge a delta into the
// session's blueprint, scaffold first-seen collections, render the bundle,
// publish it, and stream ordered progress events to subscribers.
//
// Each session owns a FIFO queue with a single worker, so at most one build
// per session is ever in flight and overlapping revisions apply in arrival
// order. Distinct sessions build fully in parallel. A failed build records
// its reason on the session and leaves the last good blueprint and
// artifacts untouched.
package build
