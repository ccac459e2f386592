// Package metrics defines the Prometheus collectors for exports, probes and
// the HTTP bridge. Collectors live on a private registry served by Handler
// and dumped by WriteTextfile for node-exporter's textfile collector.
package metrics
