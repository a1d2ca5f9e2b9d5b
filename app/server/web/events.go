package web

import (
	"context"
	"fmt"
)

// event types delivered by the browser
const (
	eventClick   = "click"
	eventKey     = "key"
	eventScheme  = "scheme"
	eventRefresh = "refresh"
)

// pageEvent is a browser event for a page, as posted or sent over the websocket.
type pageEvent struct {
	Type string `json:"type"`
	Key  string `json:"key,omitempty"`
	Dark bool   `json:"dark,omitempty"`
}

// dispatch runs the event inside the loop, pushes the new state to listeners and returns it.
func (h *Handler) dispatch(ctx context.Context, sess *pageSession, ev pageEvent) (pageState, error) {
	var st pageState
	var handled bool
	err := h.loop.Do(ctx, func() {
		switch ev.Type {
		case eventClick:
			if b := sess.page.Button(); b != nil {
				b.Click()
			}
		case eventKey:
			if b := sess.page.Button(); b != nil {
				handled = b.KeyDown(ev.Key)
			}
		case eventScheme:
			sess.signal.Set(ev.Dark)
		}
		sess.broadcast()
		st = sess.state()
	})
	if err != nil {
		return pageState{}, fmt.Errorf("dispatch %s: %w", ev.Type, err)
	}
	h.pages.touch(sess.id)
	h.metrics.event(ev.Type)
	st.Handled = handled
	return st, nil
}
