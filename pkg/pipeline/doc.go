// Package pipeline provides a declarative, multi-step workflow over a single
// input value.
//
// A Pipeline is built incrementally with a fluent builder: parse and format
// steps delegate to named format adapters, validate steps delegate to a
// schema validator, transform steps wrap a user function, and branch,
// parallel and compose steps nest independently-scoped sub-pipelines.
//
// Execution runs the declared steps strictly in append order (parallel
// branches run concurrently but their merged result preserves builder
// order), records a per-step execution trace, and fails fast: the first
// step error aborts the remainder and is returned wrapped with the failing
// step's index, kind and the trace accumulated so far.
package pipeline
