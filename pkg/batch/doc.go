// Package batch applies one operation (parse, format or convert) to many
// independent work items concurrently.
//
// Items run under a sliding-window scheduler backed by a goroutine pool: at
// most the configured number of items is ever in flight, and as soon as one
// finishes the next queued item starts. A single item's failure never aborts
// its siblings; with ContinueOnError disabled a failure only blocks new
// starts, and items already in flight finish. The summary's result list
// always preserves item-insertion order regardless of completion order.
package batch
