// Package api hosts the HTTP server, middleware, and REST handlers. Notable
// routes:
//   - GET /healthz, /livez and /readyz for probes.
//   - GET /metrics for Prometheus scraping.
//   - GET /v1/categories and /v1/categories/{category} for snapshot reads.
//   - POST /v1/categories/{category}/refresh for on-demand refreshes.
//   - POST /v1/push/topics/{category}/subscribe and /unsubscribe for device
//     topic membership.
package api
