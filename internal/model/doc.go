// Package model defines shared wire types for the tutoring platform's
// realtime push channel and its REST fallback.
//
// Conventions:
//   - Timestamps: RFC3339 strings on the wire, time.Time in memory
//   - Topics: the inbound "type" field, used to route messages to handlers
//   - Money: decimal strings, never computed on the client
package model
