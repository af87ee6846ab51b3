// Package web provides the embedded page templates and static assets.
package web

import (
	"embed"
	"io/fs"
	"net/http"

	"github.com/labstack/echo/v4"
)

//go:embed templates/*.html
var templateFiles embed.FS

//go:embed static/*
var staticFiles embed.FS

// TemplateFS returns the embedded templates with the templates folder as root.
func TemplateFS() (fs.FS, error) {
	return fs.Sub(templateFiles, "templates")
}

// StaticFS returns the embedded assets with the static folder as root.
func StaticFS() (fs.FS, error) {
	return fs.Sub(staticFiles, "static")
}

// RegisterStaticRoutes serves the embedded assets under /static/.
func RegisterStaticRoutes(e *echo.Echo) error {
	staticFS, err := StaticFS()
	if err != nil {
		return err
	}

	fileServer := http.StripPrefix("/static/", http.FileServer(http.FS(staticFS)))
	e.GET("/static/*", func(c echo.Context) error {
		c.Response().Header().Set("Cache-Control", "public, max-age=300")
		fileServer.ServeHTTP(c.Response(), c.Request())
		return nil
	})
	return nil
}
