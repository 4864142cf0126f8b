// Package server hosts the Fiber HTTP service and the upstream plumbing shared
// by the proxy handlers: the tuned outbound http.Client, hop-by-hop header
// filtering, and the immutable origin/gateway targets parsed at startup.
// NewApp wires exactly two handlers, the metadata capture route and the
// catch-all fallback, so keep exports narrow and accept explicit dependencies.
package server
