// Package templates renders the HTML pages of the web UI. Components are
// written in .templ files; the _templ.go files are generated from them.
package templates

//go:generate go run github.com/a-h/templ/cmd/templ@v0.3.960 generate
