// Package ui embeds the built single-page frontend.
package ui

import "embed"

//go:embed dist
var DistFS embed.FS
