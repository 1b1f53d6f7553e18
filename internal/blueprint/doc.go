// Package blueprint reconciles local anchors with the remote document store.
//
// Repository keeps per-id read-through caches for blueprints (containers) and anchor
// records. Reads populate the caches; every successful write invalidates the affected
// ids locally and, when an invalidator is configured, on every other process.
package blueprint
