// Package pages serves the landing page, the borrow and lend pages and
// their static assets.
package pages

import (
	"bytes"
	"context"
	"embed"
	"fmt"
	"html/template"
	"io/fs"
	"net/http"

	"github.com/ardanlabs/loans/foundation/web"
)

//go:embed templates/*.html
var templates embed.FS

//go:embed assets
var assets embed.FS

// Card is a navigation card on the landing page.
type Card struct {
	Title       string
	Description string
	Href        string
}

// Cards are the navigation targets shown on the landing page.
var Cards = []Card{
	{Title: "Borrow", Description: "Borrow against your collateral at a fixed rate for a fixed term.", Href: "/borrow"},
	{Title: "Lend", Description: "Lend to protected borrowers and earn a fixed yield.", Href: "/lend"},
}

// page is the data every template renders with.
type page struct {
	Title     string
	Heading   string
	Cards     []Card
	ProjectID string
}

// Pages renders the site.
type Pages struct {
	projectID string
	tmpl      map[string]*template.Template
	assets    http.Handler
}

// New parses the templates and prepares the asset server.
func New(projectID string) (*Pages, error) {
	p := Pages{
		projectID: projectID,
		tmpl:      make(map[string]*template.Template),
	}

	for _, name := range []string{"index", "borrow", "lend"} {
		t, err := template.ParseFS(templates, "templates/layout.html", "templates/"+name+".html")
		if err != nil {
			return nil, fmt.Errorf("parsing %s template: %w", name, err)
		}
		p.tmpl[name] = t
	}

	sub, err := fs.Sub(assets, "assets")
	if err != nil {
		return nil, fmt.Errorf("loading assets: %w", err)
	}
	p.assets = http.StripPrefix("/assets/", http.FileServer(http.FS(sub)))

	return &p, nil
}

// Routes binds the page routes.
func Routes(app *web.App, p *Pages) {
	app.Handle(http.MethodGet, "", "/", p.Index)
	app.Handle(http.MethodGet, "", "/borrow", p.Borrow)
	app.Handle(http.MethodGet, "", "/lend", p.Lend)
	app.Handle(http.MethodGet, "", "/assets/*", p.Assets)
}

// Index renders the landing page.
func (p *Pages) Index(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	return p.render(ctx, w, "index", page{
		Title:   "Home",
		Heading: "Protected Term Loans Made Easy!",
		Cards:   Cards,
	})
}

// Borrow renders the borrow page.
func (p *Pages) Borrow(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	return p.render(ctx, w, "borrow", page{Title: "Borrow", Heading: "Borrow"})
}

// Lend renders the lend page.
func (p *Pages) Lend(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	return p.render(ctx, w, "lend", page{Title: "Lend", Heading: "Lend"})
}

// Assets serves the embedded static files.
func (p *Pages) Assets(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	web.SetStatusCode(ctx, http.StatusOK)
	p.assets.ServeHTTP(w, r)
	return nil
}

func (p *Pages) render(ctx context.Context, w http.ResponseWriter, name string, data page) error {
	data.ProjectID = p.projectID

	var b bytes.Buffer
	if err := p.tmpl[name].ExecuteTemplate(&b, "layout", data); err != nil {
		return fmt.Errorf("rendering %s: %w", name, err)
	}

	return web.RespondHTML(ctx, w, b.Bytes(), http.StatusOK)
}
