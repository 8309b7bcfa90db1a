// Package sone carries the client identification stamped into every content
// document this node publishes.
package sone

// ClientName is written to the client block of published documents.
const ClientName = "sone-go"

// Version is the client version. Overridden at build time via
// -ldflags "-X github.com/mesh-intelligence/sone/pkg/sone.Version=...".
var Version = "0.1.0"

// ProtocolVersion is the content document format version.
const ProtocolVersion = 0
