// Package resource provides a bounded pool of reusable instances of an
// expensive shared resource.
//
// The pool constructs instances lazily through a caller-supplied factory, up
// to a fixed cap, and hands released instances to blocked acquirers in FIFO
// order. Teardown resets the pool to empty; it stays usable afterwards.
package resource
