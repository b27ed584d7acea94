// Package api provides the REST client for the platform backend.
//
// It covers the read endpoints the realtime channel also pushes, so the
// poller can keep dashboards current while the socket is down:
//   - GET /api/v1/users/{id}/balance
//   - GET /api/v1/users/{id}/dashboard/metrics
//   - GET /api/v1/invitations/{id}
//
// Requests carry a Bearer token fetched fresh from the configured
// TokenProvider on every attempt.
package api
