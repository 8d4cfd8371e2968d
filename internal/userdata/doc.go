// Package userdata maintains the local view of the attendee's bookmarks and
// submitted surveys.
//
// Provides a Pebble-backed durable store (survives restarts, works offline),
// an in-memory fallback for runtimes without a data directory, and a
// Reconciler that periodically adopts the remote store as source of truth
// when the two views drift apart.
package userdata
