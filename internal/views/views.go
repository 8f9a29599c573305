// Package views holds the server-rendered pages.
package views

import (
	"embed"
	"fmt"
	"io/fs"
	"net/http"
	"strings"
	"time"

	"github.com/gofiber/template/html/v2"
)

// Layout wraps every page.
const Layout = "layouts/base"

//go:embed templates
var templates embed.FS

// New returns the template engine for fiber.Config.Views. reload re-parses templates on every
// render, which is only useful in development.
func New(reload bool) *html.Engine {
	sub, err := fs.Sub(templates, "templates")
	if err != nil {
		panic(err)
	}
	engine := html.NewFileSystem(http.FS(sub), ".html")
	engine.Reload(reload)
	engine.AddFunc("firstName", func(name string) string {
		return strings.Split(name, " ")[0]
	})
	engine.AddFunc("monthYear", func(t time.Time) string {
		return t.Format("January 2006")
	})
	engine.AddFunc("weeks", func(days int) string {
		return fmt.Sprintf("%.1f", float64(days)/7)
	})
	engine.AddFunc("stars", func(rating float64) []bool {
		out := make([]bool, 5)
		for i := range out {
			out[i] = rating >= float64(i+1)
		}
		return out
	})
	return engine
}
