// Package poller implements the degraded-mode fallback.
//
// While the realtime channel is down the poller:
//   - Fetches balance and dashboard metrics over REST on a fixed interval
//   - Feeds the results to the same sink the push handlers use
//   - Goes quiet as soon as the channel reports connected again
package poller
