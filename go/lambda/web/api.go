package main

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"net/mail"
	"net/url"
	"strconv"
	"strings"

	"github.com/kiddobash/kiddobash.com/go/dynamo"
	"github.com/kiddobash/kiddobash.com/go/email"
	"github.com/kiddobash/kiddobash.com/go/session"
)

// trackingPixel is a 1x1 transparent PNG, served to every pixel request no
// matter what happened to the tracking write.
var trackingPixel, _ = base64.StdEncoding.DecodeString(
	"iVBORw0KGgoAAAANSUhEUgAAAAEAAAABCAYAAAAfFcSJAAAADUlEQVR42mP8/5+hHgAHggJ/PchI7wAAAABJRU5ErkJggg==")

type sendInvitesRequest struct {
	EventID string   `json:"eventId"`
	Emails  []string `json:"emails"`
}

type inviteError struct {
	Email string `json:"email"`
	Error string `json:"error"`
}

type sendInvitesResponse struct {
	Success    bool          `json:"success"`
	SentCount  int           `json:"sentCount"`
	ErrorCount int           `json:"errorCount"`
	Errors     []inviteError `json:"errors,omitempty"`
}

func (a *app) handleSendInvites(w http.ResponseWriter, r *http.Request) {
	setNoStore(w)

	viewer := session.FromRequest(a.cfg, r)
	if !viewer.LoggedIn {
		writeError(w, http.StatusUnauthorized, "sign in to send invites")
		return
	}
	if !sameOriginRequest(r, a.cfg.BaseURL) {
		writeError(w, http.StatusForbidden, "cross-origin request rejected")
		return
	}

	var req sendInvitesRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.EventID == "" || len(req.Emails) == 0 {
		writeError(w, http.StatusBadRequest, "eventId and emails are required")
		return
	}

	ev, err := dynamo.GetEvent(r.Context(), req.EventID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load event")
		return
	}
	if ev == nil {
		writeError(w, http.StatusNotFound, "event not found")
		return
	}
	if ev.HostID != dynamo.UserPK(viewer.UserID) {
		writeError(w, http.StatusForbidden, "only the host can send invites")
		return
	}

	// One bad address must not sink the rest of the batch.
	var resp sendInvitesResponse
	for _, raw := range req.Emails {
		addr := strings.ToLower(strings.TrimSpace(raw))
		if err := a.sendInvite(r, ev, viewer, addr); err != nil {
			log.Printf("send invite to %s: %v", addr, err)
			resp.ErrorCount++
			resp.Errors = append(resp.Errors, inviteError{Email: addr, Error: err.Error()})
			continue
		}
		resp.SentCount++
	}
	resp.Success = true
	writeJSON(w, http.StatusOK, resp)
}

var errInvalidEmail = errors.New("not a valid email address")

func validEmail(addr string) bool {
	_, err := mail.ParseAddress(addr)
	return err == nil
}

func (a *app) sendInvite(r *http.Request, ev *dynamo.Event, viewer session.Viewer, addr string) error {
	if !validEmail(addr) {
		return errInvalidEmail
	}

	inviteID := dynamo.NewInviteID()
	data := email.InviteData{
		EventName: ev.Name,
		HostName:  viewer.Name,
		Date:      ev.Date,
		Time:      ev.Time,
		Location:  ev.Location,
		Theme:     ev.Theme,
		RsvpURL:   email.TrackingClickURL(a.cfg, ev.EventID, inviteID),
		PixelURL:  email.TrackingPixelURL(a.cfg, ev.EventID, inviteID),
	}
	subject, htmlBody, textBody, err := email.RenderInvite(data)
	if err != nil {
		return err
	}

	// The invite row is only recorded once the email actually went out, so
	// a failed address leaves no phantom Sent entry behind.
	if err := a.mailer.Send(r.Context(), addr, subject, htmlBody, textBody); err != nil {
		return err
	}
	return dynamo.PutInvite(r.Context(), ev.EventID, inviteID, addr)
}

func (a *app) handleTrackPixel(w http.ResponseWriter, r *http.Request) {
	eventID := r.URL.Query().Get("eventId")
	inviteID := r.URL.Query().Get("inviteId")

	if eventID != "" && inviteID != "" {
		if err := dynamo.MarkInviteOpened(r.Context(), eventID, inviteID); err != nil {
			log.Printf("track open eventId=%s inviteId=%s: %v", eventID, inviteID, err)
		}
	}

	// The pixel always comes back 200; mail clients render this inline.
	h := w.Header()
	h.Set("Content-Type", "image/png")
	h.Set("Content-Length", strconv.Itoa(len(trackingPixel)))
	h.Set("Cache-Control", "no-cache, no-store, must-revalidate")
	h.Set("Pragma", "no-cache")
	h.Set("Expires", "0")
	w.WriteHeader(http.StatusOK)
	w.Write(trackingPixel)
}

func (a *app) handleTrackClick(w http.ResponseWriter, r *http.Request) {
	eventID := r.URL.Query().Get("eventId")
	inviteID := r.URL.Query().Get("inviteId")

	redirectTo := "/"
	if eventID != "" {
		redirectTo = "/rsvp/" + url.PathEscape(eventID)
		if inviteID != "" {
			redirectTo += "?invite=" + url.QueryEscape(inviteID)
		}
	}

	if eventID != "" && inviteID != "" {
		if err := dynamo.MarkInviteClicked(r.Context(), eventID, inviteID); err != nil {
			log.Printf("track click eventId=%s inviteId=%s: %v", eventID, inviteID, err)
		}
	}

	http.Redirect(w, r, redirectTo, http.StatusFound)
}
