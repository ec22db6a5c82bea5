package web

import (
	"embed"
)

// staticFiles holds the embedded UI page.
//
//go:embed static/*
var staticFiles embed.FS
