package theme

import (
	"errors"

	log "github.com/go-pkgz/lgr"

	"github.com/umputun/themer/app/enum"
)

// Deps holds the host environment injected into a Controller.
// Storage and Preference may be nil, meaning unavailable and unsupported respectively.
type Deps struct {
	Storage    Storage
	Document   Document
	Preference Preference
}

// Controller manages the active theme of a single document.
type Controller struct {
	storage   Storage
	doc       Document
	pref      Preference
	stopWatch func()
}

// New creates a controller and initializes it: resolves the initial theme, applies it,
// wires the toggle control and starts watching the system preference.
// One controller is expected per document; a second one on the same document binds the control again.
func New(deps Deps) *Controller {
	c := &Controller{storage: deps.Storage, doc: deps.Document, pref: deps.Preference}
	c.Apply(c.Resolve().String())
	c.wireControl()
	c.watchPreference()
	return c
}

// Resolve returns the initial theme: the persisted choice if any, otherwise the system preference,
// otherwise light. A persisted value is returned coerced.
func (c *Controller) Resolve() enum.Theme {
	if saved, ok := c.saved(); ok {
		return enum.CoerceTheme(saved)
	}
	return c.systemTheme()
}

// Apply validates value, sets it on the document root, persists it and updates the toggle control.
// Unrecognized values are coerced to light. Storage failures are logged and otherwise ignored.
func (c *Controller) Apply(value string) enum.Theme {
	th := enum.CoerceTheme(value)

	if c.doc != nil {
		c.doc.Root().SetAttr(Attribute, th.String())
	}

	if err := c.save(th); err != nil {
		log.Printf("[WARN] could not save theme %q: %v", th, err)
	}

	c.updateControl(th)
	return th
}

// Current returns the theme set on the document root, light if absent.
func (c *Controller) Current() enum.Theme {
	if c.doc == nil {
		return enum.ThemeLight
	}
	v, ok := c.doc.Root().Attr(Attribute)
	if !ok {
		return enum.ThemeLight
	}
	return enum.CoerceTheme(v)
}

// Toggle switches between light and dark.
func (c *Controller) Toggle() {
	c.Apply(c.Current().Toggle().String())
}

// Explicit reports whether the user has a persisted choice.
func (c *Controller) Explicit() bool {
	_, ok := c.saved()
	return ok
}

// Close stops watching the system preference.
func (c *Controller) Close() {
	if c.stopWatch != nil {
		c.stopWatch()
		c.stopWatch = nil
	}
}

// wireControl binds click and Enter/Space activation of the first toggle control. No-op without one.
func (c *Controller) wireControl() {
	ctrl, ok := c.findControl()
	if !ok {
		return
	}
	ctrl.OnClick(c.Toggle)
	ctrl.OnKeyDown(func(ev *KeyEvent) {
		if ev.Key != "Enter" && ev.Key != " " {
			return
		}
		ev.PreventDefault() // keep space from scrolling the page
		c.Toggle()
	})
}

// watchPreference subscribes to system preference changes if the host supports it.
// An explicit persisted choice suppresses the change.
func (c *Controller) watchPreference() {
	w, ok := c.pref.(PreferenceWatcher)
	if !ok {
		return
	}
	stop, ok := w.WatchDark(func(dark bool) {
		if _, saved := c.saved(); saved {
			return
		}
		c.Apply(enum.ThemeFromDark(dark).String())
	})
	if ok {
		c.stopWatch = stop
	}
}

// updateControl writes the label and glyph for th into the toggle control, if the page has one.
func (c *Controller) updateControl(th enum.Theme) {
	ctrl, ok := c.findControl()
	if !ok {
		return
	}
	ctrl.SetLabel(th.ToggleLabel())
	ctrl.SetGlyph(th.Glyph())
}

func (c *Controller) findControl() (Control, bool) {
	if c.doc == nil {
		return nil, false
	}
	ctrl, ok := c.doc.Query(ControlSelector)
	if !ok || ctrl == nil {
		return nil, false
	}
	return ctrl, true
}

func (c *Controller) systemTheme() enum.Theme {
	if c.pref == nil {
		return enum.ThemeLight
	}
	dark, supported := c.pref.PrefersDark()
	if !supported {
		return enum.ThemeLight
	}
	return enum.ThemeFromDark(dark)
}

// saved returns the persisted value. Read failures are logged and treated as absence.
func (c *Controller) saved() (string, bool) {
	if c.storage == nil {
		return "", false
	}
	v, err := c.storage.Load(StorageKey)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			log.Printf("[WARN] storage not available: %v", err)
		}
		return "", false
	}
	if v == "" {
		return "", false
	}
	return v, true
}

func (c *Controller) save(th enum.Theme) error {
	if c.storage == nil {
		return errors.New("no storage")
	}
	return c.storage.Save(StorageKey, th.String()) //nolint:wrapcheck // logged by caller
}
