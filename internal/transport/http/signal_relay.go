package http

import (
	"context"
	"log"
	"net/http"
	"sync"

	"fge-test-platform/internal/app"
	"fge-test-platform/internal/domain"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// StoreFactory returns the shared-store view of one relay connection.
type StoreFactory func(origin string) app.SignalStore

// SignalRelay exposes a shared signal store over websockets so contexts in
// separate processes coordinate through one store.
type SignalRelay struct {
	stores   StoreFactory
	upgrader websocket.Upgrader
}

func NewSignalRelay(stores StoreFactory) *SignalRelay {
	return &SignalRelay{
		stores: stores,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

// ServeWS upgrades the request and serves get/set/delete/subscribe frames until the peer leaves.
func (h *SignalRelay) ServeWS(w http.ResponseWriter, r *http.Request) {
	origin := r.URL.Query().Get("origin")
	if origin == "" {
		origin = "relay-" + uuid.NewString()
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("ws upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	ctx, cancelConn := context.WithCancel(context.Background())
	defer cancelConn()
	store := h.stores(origin)

	send := make(chan domain.RelayMessage, 16)
	closeSignals := make(chan struct{})
	writerDone := make(chan struct{})
	var forwarders sync.WaitGroup
	subs := make(map[int64]func())

	go func() {
		defer close(writerDone)
		for msg := range send {
			if err := conn.WriteJSON(msg); err != nil {
				log.Printf("ws write error: %v", err)
				// keep draining so producers never block on a dead peer
				for range send {
				}
				return
			}
		}
	}()

	for {
		var req domain.RelayMessage
		if err := conn.ReadJSON(&req); err != nil {
			break
		}
		resp := domain.RelayMessage{ID: req.ID, Type: domain.RelayResult}
		switch req.Type {
		case domain.RelayGet:
			value, ok, err := store.Get(ctx, req.Key)
			resp.Value, resp.Found, resp.Error = value, ok, errString(err)
		case domain.RelaySet:
			resp.Error = errString(store.Set(ctx, req.Key, req.Value))
		case domain.RelayDelete:
			resp.Error = errString(store.Delete(ctx, req.Key))
		case domain.RelaySubscribe:
			changes, cancel, err := store.Subscribe(ctx, req.Keys...)
			if err != nil {
				resp.Error = err.Error()
				break
			}
			if old, ok := subs[req.ID]; ok {
				old()
			}
			subs[req.ID] = cancel
			forwarders.Add(1)
			go func(id int64) {
				defer forwarders.Done()
				for change := range changes {
					change := change
					select {
					case send <- domain.RelayMessage{ID: id, Type: domain.RelayChange, Change: &change}:
					case <-closeSignals:
						return
					}
				}
			}(req.ID)
		case domain.RelayUnsubscribe:
			if cancel, ok := subs[req.ID]; ok {
				cancel()
				delete(subs, req.ID)
			}
		default:
			resp.Error = "unsupported message type"
		}
		send <- resp
	}

	close(closeSignals)
	for _, cancel := range subs {
		cancel()
	}
	forwarders.Wait()
	close(send)
	<-writerDone
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
