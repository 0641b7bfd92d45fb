package main

import (
	"embed"
	"html/template"
	"log"
	"net/http"

	"github.com/kiddobash/kiddobash.com/go/session"
)

//go:embed templates/*
var templateFS embed.FS

// pageTemplates maps a page name to its parsed template set (layout + page).
var pageTemplates = mustParsePages(
	"home",
	"create_event",
	"edit_event",
	"event",
	"rsvp",
	"my_events",
	"error",
)

func mustParsePages(names ...string) map[string]*template.Template {
	pages := make(map[string]*template.Template, len(names))
	for _, name := range names {
		pages[name] = template.Must(template.ParseFS(templateFS,
			"templates/layout.html", "templates/"+name+".html"))
	}
	return pages
}

func render(w http.ResponseWriter, status int, page string, data interface{}) {
	t, ok := pageTemplates[page]
	if !ok {
		log.Printf("render: unknown page %q", page)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := t.ExecuteTemplate(w, "layout", data); err != nil {
		log.Printf("render %s: %v", page, err)
	}
}

type errorPage struct {
	Title   string
	Viewer  session.Viewer
	Heading string
	Detail  string
}

func renderNotFound(w http.ResponseWriter, viewer session.Viewer) {
	setNoStore(w)
	render(w, http.StatusNotFound, "error", errorPage{
		Title:   "Not Found",
		Viewer:  viewer,
		Heading: "Party not found",
		Detail:  "That event doesn't exist, or its link has changed.",
	})
}

func renderServerError(w http.ResponseWriter, viewer session.Viewer, err error) {
	log.Printf("server error: %v", err)
	setNoStore(w)
	render(w, http.StatusInternalServerError, "error", errorPage{
		Title:   "Something went wrong",
		Viewer:  viewer,
		Heading: "Something went wrong",
		Detail:  "Please try again in a moment.",
	})
}
