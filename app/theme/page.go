package theme

import (
	"strings"
	"sync"
)

// Page is an in-memory document: root attributes plus an optional toggle control.
// It is not safe for concurrent use; callers serialize access through a Loop.
type Page struct {
	attrs    map[string]string
	button   *Button
	onChange []func(name, value string)
}

// NewPage makes a page. withControl adds a toggle control matched by ControlSelector.
func NewPage(withControl bool) *Page {
	p := &Page{attrs: map[string]string{}}
	if withControl {
		p.button = &Button{}
	}
	return p
}

// Root returns the page root element.
func (p *Page) Root() Root { return pageRoot{p} }

// Query returns the toggle control for ControlSelector. Other selectors match nothing.
func (p *Page) Query(selector string) (Control, bool) {
	if p.button == nil {
		return nil, false
	}
	if strings.TrimSpace(selector) != ControlSelector {
		return nil, false
	}
	return p.button, true
}

// Button returns the toggle control, nil if the page has none.
func (p *Page) Button() *Button { return p.button }

// OnChange registers fn called after every root attribute update.
func (p *Page) OnChange(fn func(name, value string)) {
	p.onChange = append(p.onChange, fn)
}

type pageRoot struct{ p *Page }

func (r pageRoot) Attr(name string) (string, bool) {
	v, ok := r.p.attrs[name]
	return v, ok
}

func (r pageRoot) SetAttr(name, value string) {
	r.p.attrs[name] = value
	for _, fn := range r.p.onChange {
		fn(name, value)
	}
}

// Button is an in-memory toggle control.
type Button struct {
	Label string
	Glyph string

	clicks []func()
	keys   []func(ev *KeyEvent)
}

// SetLabel sets the accessible label.
func (b *Button) SetLabel(label string) { b.Label = label }

// SetGlyph sets the button content.
func (b *Button) SetGlyph(glyph string) { b.Glyph = glyph }

// OnClick registers a click handler.
func (b *Button) OnClick(fn func()) { b.clicks = append(b.clicks, fn) }

// OnKeyDown registers a keydown handler.
func (b *Button) OnKeyDown(fn func(ev *KeyEvent)) { b.keys = append(b.keys, fn) }

// Click dispatches a click to registered handlers.
func (b *Button) Click() {
	for _, fn := range b.clicks {
		fn()
	}
}

// KeyDown dispatches a keydown and reports whether a handler prevented the default action.
func (b *Button) KeyDown(key string) bool {
	ev := &KeyEvent{Key: key}
	for _, fn := range b.keys {
		fn(ev)
	}
	return ev.DefaultPrevented()
}

// Signal is a system preference source with change notifications.
// An unknown Signal reports the query as unsupported until the first Set.
type Signal struct {
	mu       sync.Mutex
	dark     bool
	known    bool
	watchers map[int]func(dark bool)
	nextID   int
	noWatch  bool
}

// NewSignal makes a Signal. known tells if dark is an actual reading.
func NewSignal(dark, known bool) *Signal {
	return &Signal{dark: dark, known: known, watchers: map[int]func(bool){}}
}

// NewStaticSignal makes a Signal that answers queries but doesn't support subscriptions.
func NewStaticSignal(dark, known bool) *Signal {
	s := NewSignal(dark, known)
	s.noWatch = true
	return s
}

// PrefersDark implements Preference.
func (s *Signal) PrefersDark() (dark, supported bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dark, s.known
}

// WatchDark implements PreferenceWatcher.
func (s *Signal) WatchDark(fn func(dark bool)) (stop func(), ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.noWatch {
		return nil, false
	}
	id := s.nextID
	s.nextID++
	s.watchers[id] = fn
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.watchers, id)
	}, true
}

// Set updates the preference and notifies watchers if it changed.
// It reports whether a change notification was sent.
func (s *Signal) Set(dark bool) bool {
	s.mu.Lock()
	if s.known && s.dark == dark {
		s.mu.Unlock()
		return false
	}
	s.dark, s.known = dark, true
	fns := make([]func(bool), 0, len(s.watchers))
	for _, fn := range s.watchers {
		fns = append(fns, fn)
	}
	s.mu.Unlock()

	for _, fn := range fns {
		fn(dark)
	}
	return true
}

// Watchers returns the number of active subscriptions.
func (s *Signal) Watchers() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.watchers)
}
