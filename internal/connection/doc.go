// Package connection implements the realtime channel's connection manager.
//
// The Manager:
//   - Owns one logical WebSocket connection and its lifecycle state machine
//   - Fetches a fresh credential token on every connection attempt
//   - Replays topic subscriptions after every successful open
//   - Handles reconnection with bounded exponential backoff
//   - Routes incoming frames to the message router
package connection
