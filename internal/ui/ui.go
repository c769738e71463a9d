// Package ui embeds the built frontend.
package ui

import "embed"

// DistFS holds the frontend under dist/.
//
//go:embed dist
var DistFS embed.FS
