// Package event provides a small named-event emitter.
//
// Components that expose progress or lifecycle notifications (batch
// processors, schedulers) hold their own Emitter instance; listeners
// subscribe by event name and are invoked synchronously, in subscription
// order, from the goroutine that emits.
package event
