// Package http provides the HTTP client shared by the application.
//
// The client carries the configured User-Agent and proxy. Its transport is
// also handed to the transfer engine so track downloads and artwork
// requests go through the same connection pool.
package http
