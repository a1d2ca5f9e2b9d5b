package web

import (
	"context"
	"errors"
	"net/http"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	log "github.com/go-pkgz/lgr"
)

// handleWS keeps a websocket to the page: browser events come in, state updates go out.
func (h *Handler) handleWS(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}

	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		log.Printf("[WARN] websocket accept for page %s: %v", sess.id, err)
		return
	}
	defer conn.CloseNow() //nolint:errcheck // best effort

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	var subID int
	var updates chan pageState
	var initial pageState
	var live bool
	if err := h.loop.Do(ctx, func() {
		if subID, updates, live = sess.subscribe(); live {
			initial = sess.state()
		}
	}); err != nil {
		_ = conn.Close(websocket.StatusTryAgainLater, "event loop unavailable")
		return
	}
	if !live {
		_ = conn.Close(websocket.StatusGoingAway, "page expired")
		return
	}
	sess.sockets.Add(1)
	defer func() {
		sess.sockets.Add(-1)
		h.pages.touch(sess.id) // idle time counts from disconnect
		// the request context is gone here, unsubscribe must still reach the loop
		if err := h.loop.Post(context.Background(), func() { sess.unsubscribe(subID) }); err != nil {
			log.Printf("[WARN] unsubscribe page %s: %v", sess.id, err)
		}
	}()

	if err := wsjson.Write(ctx, conn, initial); err != nil {
		return
	}

	go func() {
		defer cancel()
		for {
			select {
			case <-ctx.Done():
				return
			case st, ok := <-updates:
				if !ok {
					_ = conn.Close(websocket.StatusGoingAway, "page expired")
					return
				}
				if err := wsjson.Write(ctx, conn, st); err != nil {
					return
				}
			}
		}
	}()

	for {
		var ev pageEvent
		if err := wsjson.Read(ctx, conn, &ev); err != nil {
			if !errors.Is(err, context.Canceled) && websocket.CloseStatus(err) == -1 {
				log.Printf("[DEBUG] websocket read for page %s: %v", sess.id, err)
			}
			return
		}
		switch ev.Type {
		case eventClick, eventKey, eventScheme:
		default:
			log.Printf("[DEBUG] unknown websocket event %q for page %s", ev.Type, sess.id)
			continue
		}
		if _, err := h.dispatch(ctx, sess, ev); err != nil {
			log.Printf("[WARN] websocket event for page %s: %v", sess.id, err)
			return
		}
	}
}
