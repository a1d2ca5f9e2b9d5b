package web

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	log "github.com/go-pkgz/lgr"

	"github.com/umputun/themer/app/theme"
)

// pageState is the theme state of a page as seen by the browser.
type pageState struct {
	Page     string `json:"page"`
	Theme    string `json:"theme"`
	Label    string `json:"label"`
	Glyph    string `json:"glyph"`
	Explicit bool   `json:"explicit"`
	Handled  bool   `json:"handled,omitempty"` // keydown default action was suppressed
}

// pageSession is a single page load. Everything but lastSeen is touched only inside the loop.
type pageSession struct {
	id      string
	client  string
	page    *theme.Page
	signal  *theme.Signal
	ctrl    *theme.Controller
	storage clientStorage

	subs   map[int]chan pageState
	nextID int
	closed bool

	sockets  atomic.Int32 // open websockets, a connected page never expires
	lastSeen time.Time    // guarded by registry lock
}

func (s *pageSession) state() pageState {
	th := s.ctrl.Current()
	st := pageState{Page: s.id, Theme: th.String(), Explicit: s.ctrl.Explicit()}
	if b := s.page.Button(); b != nil {
		st.Label, st.Glyph = b.Label, b.Glyph
	}
	return st
}

// subscribe registers a state listener, ok is false for a closed session. Must be called inside the loop.
func (s *pageSession) subscribe() (id int, ch chan pageState, ok bool) {
	if s.closed {
		return 0, nil, false
	}
	id = s.nextID
	s.nextID++
	ch = make(chan pageState, 8)
	s.subs[id] = ch
	return id, ch, true
}

// unsubscribe removes the listener and closes its channel. Must be called inside the loop.
func (s *pageSession) unsubscribe(id int) {
	if ch, ok := s.subs[id]; ok {
		delete(s.subs, id)
		close(ch)
	}
}

// broadcast sends the current state to every listener, dropping it for slow ones.
func (s *pageSession) broadcast() {
	if len(s.subs) == 0 {
		return
	}
	st := s.state()
	for id, ch := range s.subs {
		select {
		case ch <- st:
		default:
			log.Printf("[DEBUG] page %s listener %d is slow, state dropped", s.id, id)
		}
	}
}

// close stops the controller and all listeners. Must be called inside the loop.
func (s *pageSession) close() {
	s.closed = true
	s.ctrl.Close()
	for id := range s.subs {
		s.unsubscribe(id)
	}
}

// registry keeps live page sessions by id.
type registry struct {
	mu    sync.Mutex
	pages map[string]*pageSession
}

func newRegistry() *registry {
	return &registry{pages: map[string]*pageSession{}}
}

func (r *registry) add(s *pageSession) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s.lastSeen = time.Now()
	r.pages[s.id] = s
}

// get returns the session and marks it as recently used.
func (r *registry) get(id string) (*pageSession, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.pages[id]
	if ok {
		s.lastSeen = time.Now()
	}
	return s, ok
}

// touch marks the session as recently used.
func (r *registry) touch(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.pages[id]; ok {
		s.lastSeen = time.Now()
	}
}

func (r *registry) len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.pages)
}

// expire removes and returns sessions idle since before deadline and without open websockets.
func (r *registry) expire(deadline time.Time) []*pageSession {
	r.mu.Lock()
	defer r.mu.Unlock()
	var res []*pageSession
	for id, s := range r.pages {
		if s.sockets.Load() == 0 && s.lastSeen.Before(deadline) {
			res = append(res, s)
			delete(r.pages, id)
		}
	}
	return res
}

// StartCleanup drops idle page sessions every interval until ctx is canceled.
func (h *Handler) StartCleanup(ctx context.Context, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				h.cleanup(ctx)
			}
		}
	}()
}

func (h *Handler) cleanup(ctx context.Context) {
	expired := h.pages.expire(time.Now().Add(-h.sessionTTL))
	for _, s := range expired {
		if err := h.loop.Post(ctx, s.close); err != nil {
			log.Printf("[WARN] failed to close page %s: %v", s.id, err)
		}
	}
	if len(expired) > 0 {
		log.Printf("[DEBUG] dropped %d idle page(s)", len(expired))
	}
	h.metrics.setPages(h.pages.len())
}
