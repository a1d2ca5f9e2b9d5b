// Package theme implements the light/dark theme controller. The controller owns the active theme,
// its persistence, its visual application on the document root and its event wiring. The host
// environment (storage, document and system preference) is injected through the interfaces below.
package theme

import "errors"

const (
	// StorageKey is the persistence key holding the user's explicit choice.
	StorageKey = "msm-theme"
	// Attribute is the document root attribute styling rules key off.
	Attribute = "data-theme"
	// ControlSelector matches the toggle control on a page.
	ControlSelector = ".theme-toggle"
)

// ErrNotFound is returned by Storage when no value is persisted for the key.
var ErrNotFound = errors.New("theme not found")

// Storage is the key-value persistence surface.
type Storage interface {
	Load(key string) (string, error)
	Save(key, value string) error
}

// Root is the document root element.
type Root interface {
	Attr(name string) (string, bool)
	SetAttr(name, value string)
}

// Control is the toggle control. The controller writes label and glyph into it and receives its events.
type Control interface {
	SetLabel(label string)
	SetGlyph(glyph string)
	OnClick(fn func())
	OnKeyDown(fn func(ev *KeyEvent))
}

// Document gives access to the root element and to controls by selector.
type Document interface {
	Root() Root
	Query(selector string) (Control, bool)
}

// Preference reports the system preferred color scheme.
// supported is false when the host can't answer the query.
type Preference interface {
	PrefersDark() (dark, supported bool)
}

// PreferenceWatcher is an optional Preference capability delivering preference changes.
// ok is false when the host doesn't support subscriptions.
type PreferenceWatcher interface {
	WatchDark(fn func(dark bool)) (stop func(), ok bool)
}

// KeyEvent is a keyboard event delivered to a control.
type KeyEvent struct {
	Key       string
	prevented bool
}

// PreventDefault suppresses the host default action for the key.
func (e *KeyEvent) PreventDefault() { e.prevented = true }

// DefaultPrevented reports whether PreventDefault was called.
func (e *KeyEvent) DefaultPrevented() bool { return e.prevented }
