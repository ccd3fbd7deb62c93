// Package templates embeds the HTML layouts and pages
package templates

import (
	"embed"
	"io/fs"
)

// FS holds layouts/*.html, pages/*.html and static/*
//
//go:embed layouts/*.html pages/*.html static/*
var FS embed.FS

// Static returns the files served under /static/
func Static() fs.FS {
	sub, err := fs.Sub(FS, "static")
	if err != nil {
		panic(err) // static/ is embedded above
	}
	return sub
}
