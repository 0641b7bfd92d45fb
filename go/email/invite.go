package email

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"net/url"
	"strings"
	texttemplate "text/template"

	"github.com/kiddobash/kiddobash.com/go/config"
)

//go:embed templates/*
var templateFS embed.FS

// InviteData is everything an invite email mentions. RsvpURL runs through
// click tracking; PixelURL is the open-tracking image.
type InviteData struct {
	EventName string
	HostName  string
	Date      string
	Time      string
	Location  string
	Theme     string
	RsvpURL   string
	PixelURL  string
}

// TrackingPixelURL returns the open-tracking image URL for one invite.
func TrackingPixelURL(cfg *config.Config, eventID, inviteID string) string {
	q := url.Values{}
	q.Set("eventId", eventID)
	q.Set("inviteId", inviteID)
	return cfg.BaseURL + "/api/track-pixel?" + q.Encode()
}

// TrackingClickURL returns the click-tracking URL for one invite, which
// records the click and forwards to the RSVP page.
func TrackingClickURL(cfg *config.Config, eventID, inviteID string) string {
	q := url.Values{}
	q.Set("eventId", eventID)
	q.Set("inviteId", inviteID)
	return cfg.BaseURL + "/api/track-click?" + q.Encode()
}

// RenderInvite renders the invite email's subject, HTML body, and plain-text
// body.
func RenderInvite(data InviteData) (subject, htmlBody, textBody string, err error) {
	subject, err = renderText("invite_subject.txt", data)
	if err != nil {
		return "", "", "", fmt.Errorf("render subject: %w", err)
	}
	htmlBody, err = renderHTML("invite.html", data)
	if err != nil {
		return "", "", "", fmt.Errorf("render html: %w", err)
	}
	textBody, err = renderText("invite.txt", data)
	if err != nil {
		return "", "", "", fmt.Errorf("render text: %w", err)
	}
	return strings.TrimSpace(subject), htmlBody, textBody, nil
}

func renderHTML(name string, data InviteData) (string, error) {
	t, err := template.ParseFS(templateFS, "templates/"+name)
	if err != nil {
		return "", err
	}
	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

func renderText(name string, data InviteData) (string, error) {
	t, err := texttemplate.ParseFS(templateFS, "templates/"+name)
	if err != nil {
		return "", err
	}
	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}
