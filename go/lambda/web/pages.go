package main

import (
	"errors"
	"log"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/kiddobash/kiddobash.com/go/dynamo"
	"github.com/kiddobash/kiddobash.com/go/session"
)

// requireAuth returns the viewer, or redirects to login (carrying the path
// to come back to) and reports false.
func (a *app) requireAuth(w http.ResponseWriter, r *http.Request) (session.Viewer, bool) {
	viewer := session.FromRequest(a.cfg, r)
	if viewer.LoggedIn {
		return viewer, true
	}
	q := url.Values{}
	q.Set("redirect", r.URL.Path)
	http.Redirect(w, r, "/auth/login?"+q.Encode(), http.StatusFound)
	return session.Anonymous, false
}

type homePage struct {
	Title       string
	Viewer      session.Viewer
	AuthFailed  bool
	AnalyticsID string
}

func (a *app) handleHome(w http.ResponseWriter, r *http.Request) {
	viewer := session.FromRequest(a.cfg, r)
	if viewer.LoggedIn {
		setNoStore(w)
	} else {
		setPublicCache(w)
	}
	render(w, http.StatusOK, "home", homePage{
		Title:       "Kiddobash",
		Viewer:      viewer,
		AuthFailed:  r.URL.Query().Get("error") == "auth_failed",
		AnalyticsID: a.cfg.AnalyticsID,
	})
}

type createEventPage struct {
	Title  string
	Viewer session.Viewer
	Form   createEventForm
	Errors []string
}

type createEventForm struct {
	Name     string
	Date     string
	Time     string
	Location string
	Theme    string
	IsPublic bool
}

func parseEventForm(r *http.Request) createEventForm {
	return createEventForm{
		Name:     strings.TrimSpace(r.PostFormValue("name")),
		Date:     strings.TrimSpace(r.PostFormValue("date")),
		Time:     strings.TrimSpace(r.PostFormValue("time")),
		Location: strings.TrimSpace(r.PostFormValue("location")),
		Theme:    strings.TrimSpace(r.PostFormValue("theme")),
		IsPublic: r.PostFormValue("is_public") == "on",
	}
}

func (f createEventForm) validate() []string {
	var errs []string
	if f.Name == "" {
		errs = append(errs, "Event name is required.")
	}
	if f.Date == "" {
		errs = append(errs, "Date is required.")
	}
	if f.Time == "" {
		errs = append(errs, "Time is required.")
	}
	if f.Location == "" {
		errs = append(errs, "Location is required.")
	}
	return errs
}

func (a *app) handleCreateEventForm(w http.ResponseWriter, r *http.Request) {
	viewer, ok := a.requireAuth(w, r)
	if !ok {
		return
	}
	setNoStore(w)
	render(w, http.StatusOK, "create_event", createEventPage{
		Title:  "Plan a Party",
		Viewer: viewer,
		Form:   createEventForm{IsPublic: false},
	})
}

func (a *app) handleCreateEventSubmit(w http.ResponseWriter, r *http.Request) {
	viewer, ok := a.requireAuth(w, r)
	if !ok {
		return
	}
	if !sameOriginRequest(r, a.cfg.BaseURL) {
		http.Error(w, "Forbidden", http.StatusForbidden)
		return
	}
	if err := r.ParseForm(); err != nil {
		http.Error(w, "Bad Request", http.StatusBadRequest)
		return
	}

	form := parseEventForm(r)
	if errs := form.validate(); len(errs) > 0 {
		setNoStore(w)
		render(w, http.StatusBadRequest, "create_event", createEventPage{
			Title:  "Plan a Party",
			Viewer: viewer,
			Form:   form,
			Errors: errs,
		})
		return
	}

	// Make sure a profile row exists before the event references the host.
	if err := dynamo.UpsertProfile(r.Context(), dynamo.UserProfile{
		UserID: viewer.UserID,
		Email:  viewer.Email,
		Name:   viewer.Name,
	}); err != nil {
		log.Printf("upsert profile for %s: %v", viewer.UserID, err)
	}

	ev, err := dynamo.CreateEvent(r.Context(), viewer.UserID, dynamo.Event{
		Name:     form.Name,
		Date:     form.Date,
		Time:     form.Time,
		Location: form.Location,
		Theme:    form.Theme,
		IsPublic: form.IsPublic,
	})
	if err != nil {
		renderServerError(w, viewer, err)
		return
	}
	http.Redirect(w, r, "/event/"+ev.EventID, http.StatusSeeOther)
}

type editEventPage struct {
	Title   string
	Viewer  session.Viewer
	EventID string
	Form    createEventForm
	Errors  []string
}

// loadOwnEvent fetches the event and enforces that the caller hosts it.
// Writes the response itself on any failure.
func (a *app) loadOwnEvent(w http.ResponseWriter, r *http.Request, viewer session.Viewer) *dynamo.Event {
	ev, err := dynamo.GetEvent(r.Context(), r.PathValue("eventId"))
	if err != nil {
		renderServerError(w, viewer, err)
		return nil
	}
	if ev == nil {
		renderNotFound(w, viewer)
		return nil
	}
	if ev.HostID != dynamo.UserPK(viewer.UserID) {
		http.Error(w, "Forbidden", http.StatusForbidden)
		return nil
	}
	return ev
}

func (a *app) handleEditEventForm(w http.ResponseWriter, r *http.Request) {
	viewer, ok := a.requireAuth(w, r)
	if !ok {
		return
	}
	ev := a.loadOwnEvent(w, r, viewer)
	if ev == nil {
		return
	}

	setNoStore(w)
	render(w, http.StatusOK, "edit_event", editEventPage{
		Title:   "Edit " + ev.Name,
		Viewer:  viewer,
		EventID: ev.EventID,
		Form: createEventForm{
			Name:     ev.Name,
			Date:     ev.Date,
			Time:     ev.Time,
			Location: ev.Location,
			Theme:    ev.Theme,
			IsPublic: ev.IsPublic,
		},
	})
}

func (a *app) handleEditEventSubmit(w http.ResponseWriter, r *http.Request) {
	viewer, ok := a.requireAuth(w, r)
	if !ok {
		return
	}
	if !sameOriginRequest(r, a.cfg.BaseURL) {
		http.Error(w, "Forbidden", http.StatusForbidden)
		return
	}
	if err := r.ParseForm(); err != nil {
		http.Error(w, "Bad Request", http.StatusBadRequest)
		return
	}

	ev := a.loadOwnEvent(w, r, viewer)
	if ev == nil {
		return
	}

	form := parseEventForm(r)
	if errs := form.validate(); len(errs) > 0 {
		setNoStore(w)
		render(w, http.StatusBadRequest, "edit_event", editEventPage{
			Title:   "Edit " + ev.Name,
			Viewer:  viewer,
			EventID: ev.EventID,
			Form:    form,
			Errors:  errs,
		})
		return
	}

	err := dynamo.UpdateEvent(r.Context(), viewer.UserID, ev.EventID, map[string]interface{}{
		"eventName": form.Name,
		"date":      form.Date,
		"time":      form.Time,
		"location":  form.Location,
		"theme":     form.Theme,
		"isPublic":  form.IsPublic,
	})
	if errors.Is(err, dynamo.ErrEventNotFound) {
		renderNotFound(w, viewer)
		return
	}
	if err != nil {
		renderServerError(w, viewer, err)
		return
	}
	http.Redirect(w, r, "/event/"+ev.EventID, http.StatusSeeOther)
}

type eventPage struct {
	Title      string
	Viewer     session.Viewer
	Event      *dynamo.Event
	IsHost     bool
	Going      []dynamo.Rsvp
	NotGoing   []dynamo.Rsvp
	Maybe      []dynamo.Rsvp
	Invites    []dynamo.InviteMetadata
	ViewerRsvp *dynamo.Rsvp
	ShareURL   string
}

// canViewEvent decides whether a viewer may see a private event: the host,
// anyone who already RSVP'd, or anyone whose verified email was invited.
func canViewEvent(r *http.Request, ev *dynamo.Event, viewer session.Viewer) (bool, error) {
	if ev.IsPublic {
		return true, nil
	}
	if !viewer.LoggedIn {
		return false, nil
	}
	if ev.HostID == dynamo.UserPK(viewer.UserID) {
		return true, nil
	}
	rsvp, err := dynamo.GetRsvp(r.Context(), ev.EventID, viewer.UserID)
	if err != nil {
		return false, err
	}
	if rsvp != nil {
		return true, nil
	}
	if viewer.Email == "" {
		return false, nil
	}
	return dynamo.HasInviteForEmail(r.Context(), ev.EventID, viewer.Email)
}

func (a *app) handleEventDetail(w http.ResponseWriter, r *http.Request) {
	viewer := session.FromRequest(a.cfg, r)
	eventID := r.PathValue("eventId")

	ev, err := dynamo.GetEvent(r.Context(), eventID)
	if err != nil {
		renderServerError(w, viewer, err)
		return
	}
	if ev == nil {
		renderNotFound(w, viewer)
		return
	}

	allowed, err := canViewEvent(r, ev, viewer)
	if err != nil {
		renderServerError(w, viewer, err)
		return
	}
	if !allowed {
		if !viewer.LoggedIn {
			q := url.Values{}
			q.Set("redirect", r.URL.Path)
			http.Redirect(w, r, "/auth/login?"+q.Encode(), http.StatusFound)
			return
		}
		http.Redirect(w, r, "/", http.StatusFound)
		return
	}

	guests, err := dynamo.ListGuests(r.Context(), eventID)
	if err != nil {
		renderServerError(w, viewer, err)
		return
	}

	page := eventPage{
		Title:    ev.Name,
		Viewer:   viewer,
		Event:    ev,
		IsHost:   viewer.LoggedIn && ev.HostID == dynamo.UserPK(viewer.UserID),
		ShareURL: a.cfg.BaseURL + "/rsvp/" + ev.EventID,
	}
	for _, g := range guests {
		switch g.Attending {
		case dynamo.RsvpGoing:
			page.Going = append(page.Going, g)
		case dynamo.RsvpNotGoing:
			page.NotGoing = append(page.NotGoing, g)
		default:
			page.Maybe = append(page.Maybe, g)
		}
		if viewer.LoggedIn && g.UserID() == viewer.UserID {
			rsvp := g
			page.ViewerRsvp = &rsvp
		}
	}

	if page.IsHost {
		invites, err := dynamo.ListInvites(r.Context(), eventID)
		if err != nil {
			renderServerError(w, viewer, err)
			return
		}
		page.Invites = invites
	}

	if ev.IsPublic && !viewer.LoggedIn {
		setPublicCache(w)
	} else {
		setNoStore(w)
	}
	render(w, http.StatusOK, "event", page)
}

type rsvpPage struct {
	Title  string
	Viewer session.Viewer
	Event  *dynamo.Event
	Form   rsvpForm
	Errors []string
	Guests []dynamo.Rsvp
}

type rsvpForm struct {
	GuestName  string
	Attending  string
	GuestCount int
	Message    string
}

func (a *app) handleRsvpForm(w http.ResponseWriter, r *http.Request) {
	eventID := r.PathValue("eventId")
	viewer, ok := a.requireAuth(w, r)
	if !ok {
		return
	}

	ev, err := dynamo.GetEvent(r.Context(), eventID)
	if err != nil {
		renderServerError(w, viewer, err)
		return
	}
	if ev == nil {
		renderNotFound(w, viewer)
		return
	}

	allowed, err := canViewEvent(r, ev, viewer)
	if err != nil {
		renderServerError(w, viewer, err)
		return
	}
	if !allowed {
		http.Redirect(w, r, "/", http.StatusFound)
		return
	}

	form := rsvpForm{GuestName: viewer.Name, Attending: dynamo.RsvpGoing, GuestCount: 1}
	existing, err := dynamo.GetRsvp(r.Context(), eventID, viewer.UserID)
	if err != nil {
		renderServerError(w, viewer, err)
		return
	}
	if existing != nil {
		form = rsvpForm{
			GuestName:  existing.GuestName,
			Attending:  existing.Attending,
			GuestCount: existing.GuestCount,
			Message:    existing.Message,
		}
	}

	// Public parties show who else is coming; private ones keep the list
	// on the event page for those already admitted.
	var guests []dynamo.Rsvp
	if ev.IsPublic {
		if guests, err = dynamo.ListGuests(r.Context(), eventID); err != nil {
			renderServerError(w, viewer, err)
			return
		}
	}

	setNoStore(w)
	render(w, http.StatusOK, "rsvp", rsvpPage{
		Title:  "RSVP to " + ev.Name,
		Viewer: viewer,
		Event:  ev,
		Form:   form,
		Guests: guests,
	})
}

func (a *app) handleRsvpSubmit(w http.ResponseWriter, r *http.Request) {
	eventID := r.PathValue("eventId")
	viewer, ok := a.requireAuth(w, r)
	if !ok {
		return
	}
	if !sameOriginRequest(r, a.cfg.BaseURL) {
		http.Error(w, "Forbidden", http.StatusForbidden)
		return
	}
	if err := r.ParseForm(); err != nil {
		http.Error(w, "Bad Request", http.StatusBadRequest)
		return
	}

	ev, err := dynamo.GetEvent(r.Context(), eventID)
	if err != nil {
		renderServerError(w, viewer, err)
		return
	}
	if ev == nil {
		renderNotFound(w, viewer)
		return
	}
	allowed, err := canViewEvent(r, ev, viewer)
	if err != nil {
		renderServerError(w, viewer, err)
		return
	}
	if !allowed {
		http.Redirect(w, r, "/", http.StatusFound)
		return
	}

	form := rsvpForm{
		GuestName: strings.TrimSpace(r.PostFormValue("guest_name")),
		Attending: r.PostFormValue("attending"),
		Message:   strings.TrimSpace(r.PostFormValue("message")),
	}
	form.GuestCount, _ = strconv.Atoi(r.PostFormValue("guest_count"))

	var errs []string
	if form.GuestName == "" {
		errs = append(errs, "Please tell us who's coming.")
	}
	switch form.Attending {
	case dynamo.RsvpGoing, dynamo.RsvpMaybe, dynamo.RsvpNotGoing:
	default:
		errs = append(errs, "Please pick Going, Maybe, or Not Going.")
	}
	if form.GuestCount < 1 {
		form.GuestCount = 1
	}
	if len(errs) > 0 {
		setNoStore(w)
		render(w, http.StatusBadRequest, "rsvp", rsvpPage{
			Title:  "RSVP to " + ev.Name,
			Viewer: viewer,
			Event:  ev,
			Form:   form,
			Errors: errs,
		})
		return
	}

	err = dynamo.SubmitRsvp(r.Context(), eventID, viewer.UserID, dynamo.Rsvp{
		GuestName:  form.GuestName,
		Attending:  form.Attending,
		GuestCount: form.GuestCount,
		Message:    form.Message,
	})
	if errors.Is(err, dynamo.ErrEventNotFound) {
		renderNotFound(w, viewer)
		return
	}
	if err != nil {
		renderServerError(w, viewer, err)
		return
	}
	http.Redirect(w, r, "/event/"+eventID, http.StatusSeeOther)
}

type myEventsPage struct {
	Title  string
	Viewer session.Viewer
	Hosted []dynamo.HostedEvent
	Rsvps  []dynamo.UserRsvp
}

func (a *app) handleMyEvents(w http.ResponseWriter, r *http.Request) {
	viewer, ok := a.requireAuth(w, r)
	if !ok {
		return
	}

	hosted, err := dynamo.ListHostedEvents(r.Context(), viewer.UserID)
	if err != nil {
		renderServerError(w, viewer, err)
		return
	}
	rsvps, err := dynamo.ListUserRsvps(r.Context(), viewer.UserID)
	if err != nil {
		renderServerError(w, viewer, err)
		return
	}

	setNoStore(w)
	render(w, http.StatusOK, "my_events", myEventsPage{
		Title:  "My Parties",
		Viewer: viewer,
		Hosted: hosted,
		Rsvps:  rsvps,
	})
}
