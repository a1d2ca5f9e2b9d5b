// Package web provides HTTP handlers hosting theme controllers for browser pages.
// Every page load gets its own in-memory document, system preference signal and controller;
// browser events reach the controller through POST endpoints or a websocket.
package web

import (
	"context"
	"embed"
	"fmt"
	"html/template"
	"io/fs"
	"net/http"
	"time"

	"github.com/go-pkgz/routegroup"
	"github.com/google/uuid"

	"github.com/umputun/themer/app/store"
	"github.com/umputun/themer/app/theme"
)

//go:generate moq -out mocks/kvstore.go -pkg mocks -skip-ensure -fmt goimports . KVStore

// clientCookieName identifies the browsing client. Persisted choices are scoped by it.
const clientCookieName = "themer-client"

// preferenceHint is the client hint header carrying the system color scheme.
const preferenceHint = "Sec-CH-Prefers-Color-Scheme"

//go:embed static
var staticFS embed.FS

//go:embed templates
var templatesFS embed.FS

// StaticFS returns the embedded static filesystem for external use.
func StaticFS() (fs.FS, error) {
	sub, err := fs.Sub(staticFS, "static")
	if err != nil {
		return nil, fmt.Errorf("failed to get static sub-filesystem: %w", err)
	}
	return sub, nil
}

// KVStore defines the interface for key-value storage operations.
type KVStore interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
	List(ctx context.Context, prefix string) ([]store.Choice, error)
}

// Config holds web handler configuration.
type Config struct {
	BaseURL      string
	StoreTimeout time.Duration // per storage operation
	SessionTTL   time.Duration // idle time before a page session is dropped
	Metrics      *Metrics      // optional
}

// Handler handles web UI requests.
type Handler struct {
	store        KVStore
	loop         *theme.Loop
	pages        *registry
	tmpl         *template.Template
	baseURL      string
	storeTimeout time.Duration
	sessionTTL   time.Duration
	metrics      *Metrics
}

// New creates a new web handler. All controller work is executed on loop, which the caller runs.
func New(st KVStore, loop *theme.Loop, cfg Config) (*Handler, error) {
	tmpl, err := template.ParseFS(templatesFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("failed to parse templates: %w", err)
	}

	h := &Handler{
		store:        st,
		loop:         loop,
		pages:        newRegistry(),
		tmpl:         tmpl,
		baseURL:      cfg.BaseURL,
		storeTimeout: cfg.StoreTimeout,
		sessionTTL:   cfg.SessionTTL,
		metrics:      cfg.Metrics,
	}
	if h.storeTimeout <= 0 {
		h.storeTimeout = 5 * time.Second
	}
	if h.sessionTTL <= 0 {
		h.sessionTTL = 30 * time.Minute
	}
	if h.metrics == nil {
		h.metrics = NewMetrics(nil)
	}
	return h, nil
}

// Register registers web UI routes on the given router.
func (h *Handler) Register(r *routegroup.Bundle) {
	r.HandleFunc("GET /{$}", h.handleIndex)
	r.HandleFunc("GET /web/theme/state", h.handleState)
	r.HandleFunc("POST /web/theme/toggle", h.handleToggle)
	r.HandleFunc("POST /web/theme/system", h.handleSystem)
	r.HandleFunc("DELETE /web/theme/choice", h.handleResetChoice)
	r.HandleFunc("GET /web/theme/choices", h.handleChoices)
	r.HandleFunc("GET /web/theme/ws", h.handleWS)
}

// Pages returns the number of live page sessions.
func (h *Handler) Pages() int {
	return h.pages.len()
}

// clientID returns the client id from cookie, issuing a new one if missing or malformed.
func (h *Handler) clientID(w http.ResponseWriter, r *http.Request) string {
	if id, ok := knownClient(r); ok {
		return id
	}
	id := uuid.NewString()
	http.SetCookie(w, &http.Cookie{
		Name:     clientCookieName,
		Value:    id,
		Path:     h.cookiePath(),
		MaxAge:   365 * 24 * 60 * 60, // 1 year
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	return id
}

// knownClient returns the client id from cookie without issuing a new one.
func knownClient(r *http.Request) (string, bool) {
	cookie, err := r.Cookie(clientCookieName)
	if err != nil {
		return "", false
	}
	if _, err := uuid.Parse(cookie.Value); err != nil {
		return "", false
	}
	return cookie.Value, true
}

// signalFromHint builds the page preference signal from the client hint.
// Without the hint the query is unsupported until the browser reports its scheme.
func signalFromHint(r *http.Request) *theme.Signal {
	switch r.Header.Get(preferenceHint) {
	case "dark":
		return theme.NewSignal(true, true)
	case "light":
		return theme.NewSignal(false, true)
	default:
		return theme.NewSignal(false, false)
	}
}

// cookiePath returns the path for cookies (base URL with trailing slash or "/").
func (h *Handler) cookiePath() string {
	if h.baseURL == "" {
		return "/"
	}
	return h.baseURL + "/"
}
