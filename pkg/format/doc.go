// Package format defines the capability contracts that bind the orchestration
// core to its collaborators: named format adapters that parse and serialise
// data, and schema validators that accept or reject a value.
//
// The core never implements any codec or validation logic itself. It looks
// adapters up by name in a Registry at step-dispatch time and delegates all
// actual work to them.
package format
