package web

import (
	"encoding/json"
	"net/http"

	log "github.com/go-pkgz/lgr"
	"github.com/go-pkgz/rest"
	"github.com/google/uuid"

	"github.com/umputun/themer/app/theme"
)

// templateData holds data passed to templates.
type templateData struct {
	PageID   string
	Theme    string
	Label    string
	Glyph    string
	Explicit bool
	BaseURL  string
}

// handleIndex renders a page. Each call is a page load with exactly one controller.
func (h *Handler) handleIndex(w http.ResponseWriter, r *http.Request) {
	sess := &pageSession{
		id:     uuid.NewString(),
		client: h.clientID(w, r),
		page:   theme.NewPage(true),
		signal: signalFromHint(r),
		subs:   map[int]chan pageState{},
	}
	sess.storage = clientStorage{kv: h.store, client: sess.client, timeout: h.storeTimeout, metrics: h.metrics}

	var st pageState
	err := h.loop.Do(r.Context(), func() {
		sess.page.OnChange(func(name, value string) {
			if name == theme.Attribute {
				h.metrics.themeApplied(value)
			}
		})
		sess.ctrl = theme.New(theme.Deps{Storage: sess.storage, Document: sess.page, Preference: sess.signal})
		st = sess.state()
	})
	if err != nil {
		log.Printf("[WARN] page load canceled: %v", err)
		http.Error(w, "service unavailable", http.StatusServiceUnavailable)
		return
	}
	h.pages.add(sess)
	h.metrics.setPages(h.pages.len())
	log.Printf("[DEBUG] page %s loaded for client %s, theme %s", sess.id, sess.client, st.Theme)

	w.Header().Set("Accept-CH", preferenceHint)
	w.Header().Set("Critical-CH", preferenceHint)
	w.Header().Add("Vary", preferenceHint)
	data := templateData{
		PageID:   sess.id,
		Theme:    st.Theme,
		Label:    st.Label,
		Glyph:    st.Glyph,
		Explicit: st.Explicit,
		BaseURL:  h.baseURL,
	}
	if err := h.tmpl.ExecuteTemplate(w, "base.html", data); err != nil {
		log.Printf("[ERROR] failed to execute template: %v", err)
	}
}

// handleState returns the page theme state.
func (h *Handler) handleState(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}
	var st pageState
	if err := h.loop.Do(r.Context(), func() { st = sess.state() }); err != nil {
		rest.SendErrorJSON(w, r, log.Default(), http.StatusServiceUnavailable, err, "event loop unavailable")
		return
	}
	rest.RenderJSON(w, st)
}

// handleToggle delivers a click, or a keydown when key is set, to the page toggle control.
func (h *Handler) handleToggle(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}
	key, isKey := r.Form["key"]
	ev := pageEvent{Type: eventClick}
	if isKey && len(key) > 0 {
		ev = pageEvent{Type: eventKey, Key: key[0]}
	}
	h.respondEvent(w, r, sess, ev)
}

// handleSystem delivers a system color scheme change to the page.
func (h *Handler) handleSystem(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}
	var dark bool
	switch r.FormValue("scheme") {
	case "dark":
		dark = true
	case "light":
	default:
		rest.SendErrorJSON(w, r, log.Default(), http.StatusBadRequest, nil, "scheme must be dark or light")
		return
	}
	h.respondEvent(w, r, sess, pageEvent{Type: eventScheme, Dark: dark})
}

// handleResetChoice forgets the persisted choice of the page's client.
// The active theme stays, later system changes apply again.
func (h *Handler) handleResetChoice(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}
	if err := sess.storage.forget(theme.StorageKey); err != nil {
		rest.SendErrorJSON(w, r, log.Default(), http.StatusInternalServerError, err, "failed to reset theme choice")
		return
	}
	log.Printf("[INFO] theme choice reset for client %s", sess.client)
	h.respondEvent(w, r, sess, pageEvent{Type: eventRefresh})
}

// handleChoices lists the persisted choices of the requesting client. Unknown clients have none.
func (h *Handler) handleChoices(w http.ResponseWriter, r *http.Request) {
	client, ok := knownClient(r)
	if !ok {
		rest.RenderJSON(w, []storedChoice{})
		return
	}
	cs := clientStorage{kv: h.store, client: client, timeout: h.storeTimeout, metrics: h.metrics}
	res, err := cs.choices(r.Context())
	if err != nil {
		rest.SendErrorJSON(w, r, log.Default(), http.StatusInternalServerError, err, "failed to list theme choices")
		return
	}
	rest.RenderJSON(w, res)
}

func (h *Handler) respondEvent(w http.ResponseWriter, r *http.Request, sess *pageSession, ev pageEvent) {
	st, err := h.dispatch(r.Context(), sess, ev)
	if err != nil {
		rest.SendErrorJSON(w, r, log.Default(), http.StatusServiceUnavailable, err, "event loop unavailable")
		return
	}
	if trigger, jerr := json.Marshal(map[string]any{"themeChanged": st}); jerr == nil {
		w.Header().Set("HX-Trigger", string(trigger))
	}
	rest.RenderJSON(w, st)
}

// session looks up the page session from the "page" parameter, writing 404 when unknown.
func (h *Handler) session(w http.ResponseWriter, r *http.Request) (*pageSession, bool) {
	if err := r.ParseForm(); err != nil {
		rest.SendErrorJSON(w, r, log.Default(), http.StatusBadRequest, err, "bad request")
		return nil, false
	}
	id := r.Form.Get("page")
	if id == "" {
		rest.SendErrorJSON(w, r, log.Default(), http.StatusBadRequest, nil, "page is required")
		return nil, false
	}
	sess, ok := h.pages.get(id)
	if !ok {
		rest.SendErrorJSON(w, r, log.Default(), http.StatusNotFound, nil, "page not found")
		return nil, false
	}
	return sess, true
}
