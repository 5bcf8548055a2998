// Package web holds the HTML templates and static assets of the board.
package web

import "embed"

// EmbeddedFS carries templates/ and static/ into release builds.
//
//go:embed templates static
var EmbeddedFS embed.FS
