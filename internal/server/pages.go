package server

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"net/http"

	"github.com/teemow/recircuit/internal/auth"
)

//go:embed templates/*.html
var templateFS embed.FS

// Page names, which are also the template file names.
const (
	pageSignIn    = "signin"
	pageDashboard = "dashboard"
	pageChat      = "chat"
	pageDocuments = "documents"
	pageSchedule  = "schedule"
)

type navItem struct {
	Title     string
	URL       string
	AdminOnly bool
}

var sidebarItems = []navItem{
	{Title: "Dashboard", URL: "/dashboard"},
	{Title: "Chat", URL: "/dashboard/chat"},
	{Title: "Schedule", URL: "/dashboard/schedule", AdminOnly: true},
	{Title: "Documents", URL: "/dashboard/documents"},
}

// sidebarFor returns the sidebar items visible to s.
func sidebarFor(s *auth.Session) []navItem {
	items := make([]navItem, 0, len(sidebarItems))
	for _, item := range sidebarItems {
		if item.AdminOnly && (s == nil || !s.IsAdmin()) {
			continue
		}
		items = append(items, item)
	}
	return items
}

type pageData struct {
	Page    string
	Title   string
	Session *auth.Session
	Nav     []navItem
	Active  string

	// Sign-in form.
	Email       string
	Error       string
	CallbackURL string

	// Schedule page notices from the OAuth callback redirect.
	Success string

	VectorStoreID string
}

type pageRenderer struct {
	pages map[string]*template.Template
}

func newPageRenderer() (*pageRenderer, error) {
	r := &pageRenderer{pages: make(map[string]*template.Template)}
	for _, name := range []string{pageSignIn, pageDashboard, pageChat, pageDocuments, pageSchedule} {
		tmpl, err := template.ParseFS(templateFS, "templates/layout.html", "templates/"+name+".html")
		if err != nil {
			return nil, fmt.Errorf("failed to parse %s template: %w", name, err)
		}
		r.pages[name] = tmpl
	}
	return r, nil
}

func (p *pageRenderer) render(w http.ResponseWriter, status int, data pageData) error {
	tmpl, ok := p.pages[data.Page]
	if !ok {
		return fmt.Errorf("unknown page %q", data.Page)
	}

	var buf bytes.Buffer
	if err := tmpl.ExecuteTemplate(&buf, "layout", data); err != nil {
		return fmt.Errorf("failed to render %s: %w", data.Page, err)
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	_, err := buf.WriteTo(w)
	return err
}

var pageTitles = map[string]string{
	pageSignIn:    "Sign in",
	pageDashboard: "Dashboard",
	pageChat:      "Chat",
	pageDocuments: "Documents",
	pageSchedule:  "Schedule",
}

// handlePage renders a dashboard page for the signed-in user.
func (s *Server) handlePage(page string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		session, _ := auth.SessionFromContext(r.Context())
		data := pageData{
			Page:          page,
			Title:         pageTitles[page],
			Session:       session,
			Nav:           sidebarFor(session),
			Active:        r.URL.Path,
			VectorStoreID: s.cfg.VectorStoreID,
		}
		if page == pageSchedule {
			data.Success = r.URL.Query().Get("success")
			data.Error = r.URL.Query().Get("error")
		}
		s.renderPage(w, r, http.StatusOK, data)
	}
}

func (s *Server) renderPage(w http.ResponseWriter, r *http.Request, status int, data pageData) {
	if err := s.pages.render(w, status, data); err != nil {
		s.logger.ErrorContext(r.Context(), "failed to render page", "page", data.Page, "error", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
	}
}

// handleRoot sends signed-in users to the dashboard and everyone else to
// the sign-in page.
func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	if _, ok := auth.SessionFromContext(r.Context()); ok {
		http.Redirect(w, r, auth.DashboardPath, http.StatusFound)
		return
	}
	http.Redirect(w, r, auth.SignInPath, http.StatusFound)
}
