// Package appfs embeds the files the binaries need at runtime.
package appfs

import "embed"

//go:embed migrations passwords all:templates
var FS embed.FS
