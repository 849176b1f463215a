// Package api exposes the analysis core to transport layers. The service
// wraps the scanner, matcher, progress registry, and store behind a small
// set of operations returning transport-friendly DTOs, so the HTTP server
// and the CLI share one contract.
package api
