// Package types defines the Store and Table interfaces, the content graph
// entity types, and the standard error types for the sone replica engine.
//
// An identity's published state is one Graph: a Profile, an arena of Albums
// and Images keyed by id, and the sets of Posts and PostReplies. Entity
// methods enforce the local invariants of the graph and return the sentinel
// errors declared in errors.go; they never log or retry.
package types
