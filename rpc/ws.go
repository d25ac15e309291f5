package rpc

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"nhooyr.io/websocket"

	"vaultauction/core/events"
	"vaultauction/core/types"
)

var errSubscriberDropped = errors.New("rpc: event subscriber dropped")

const (
	wsWriteTimeout     = 10 * time.Second
	wsSubscriberBuffer = 64
)

// Hub fans committed events out to websocket subscribers. A subscriber that
// falls a full buffer behind is disconnected.
type Hub struct {
	mu   sync.Mutex
	subs map[*subscription]struct{}
}

type subscription struct {
	auction string
	ch      chan *types.Event
}

var _ events.Emitter = (*Hub)(nil)

func NewHub() *Hub {
	return &Hub{subs: make(map[*subscription]struct{})}
}

// Emit implements events.Emitter.
func (h *Hub) Emit(evt events.Event) {
	payload, ok := evt.(events.Payload)
	if h == nil || !ok || payload.Event() == nil {
		return
	}
	body := payload.Event()
	h.mu.Lock()
	defer h.mu.Unlock()
	for sub := range h.subs {
		if sub.auction != "" && body.Attributes["auction"] != sub.auction {
			continue
		}
		select {
		case sub.ch <- body:
		default:
			delete(h.subs, sub)
			close(sub.ch)
		}
	}
}

func (h *Hub) subscribe(auction string) *subscription {
	sub := &subscription{auction: strings.ToLower(auction), ch: make(chan *types.Event, wsSubscriberBuffer)}
	h.mu.Lock()
	h.subs[sub] = struct{}{}
	h.mu.Unlock()
	return sub
}

func (h *Hub) unsubscribe(sub *subscription) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.subs[sub]; ok {
		delete(h.subs, sub)
		close(sub.ch)
	}
}

// Subscribers reports the live subscription count.
func (h *Hub) Subscribers() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

func (s *Server) handleEventsWS(w http.ResponseWriter, r *http.Request) {
	if s.hub == nil {
		http.Error(w, "event stream disabled", http.StatusServiceUnavailable)
		return
	}
	if s.auth != nil {
		if _, err := s.auth.authenticate(r); err != nil {
			http.Error(w, err.Error(), http.StatusUnauthorized)
			return
		}
	}
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{OriginPatterns: []string{"*"}})
	if err != nil {
		return
	}
	defer conn.Close(websocket.StatusNormalClosure, "stream closed")

	sub := s.hub.subscribe(strings.TrimSpace(r.URL.Query().Get("auction")))
	defer s.hub.unsubscribe(sub)

	ctx := conn.CloseRead(r.Context())
	if err := streamEvents(ctx, conn, sub.ch); errors.Is(err, errSubscriberDropped) {
		_ = conn.Close(websocket.StatusPolicyViolation, "subscriber fell behind")
	}
}

func streamEvents(ctx context.Context, conn *websocket.Conn, ch <-chan *types.Event) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case evt, ok := <-ch:
			if !ok {
				return errSubscriberDropped
			}
			data, err := json.Marshal(evt)
			if err != nil {
				return err
			}
			writeCtx, cancel := context.WithTimeout(ctx, wsWriteTimeout)
			err = conn.Write(writeCtx, websocket.MessageText, data)
			cancel()
			if err != nil {
				return err
			}
		}
	}
}
