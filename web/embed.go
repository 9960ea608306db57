// Package web holds the embedded document templates.
package web

import "embed"

//go:embed templates/*.html
var Templates embed.FS
