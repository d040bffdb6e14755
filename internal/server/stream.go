package server

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/matthewbaird/acdc/internal/analysis"
)

const writeTimeout = 5 * time.Second

// streamStatus upgrades to a websocket and pushes every status snapshot as
// one JSON frame, starting with the latest one. The optional analysis
// query parameter must name the current analysis.
func (s *Server) streamStatus(w http.ResponseWriter, r *http.Request) {
	if id := r.URL.Query().Get("analysis"); id != "" && id != s.store.ID() {
		writeError(w, http.StatusNotFound, "UNKNOWN_ANALYSIS", "unknown analysis: "+id)
		return
	}
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		log.Printf("server: websocket accept: %v", err)
		return
	}
	defer conn.CloseNow()

	updates, cancel := s.bus.Subscribe()
	defer cancel()

	// Status is push only; reading just handles control frames.
	ctx := conn.CloseRead(r.Context())

	if last := s.bus.Last(); last != nil {
		if err := s.send(ctx, conn, last); err != nil {
			return
		}
	}
	for {
		select {
		case <-ctx.Done():
			return
		case <-s.done:
			conn.Close(websocket.StatusGoingAway, "server shutting down")
			return
		case st, ok := <-updates:
			if !ok {
				return
			}
			if err := s.send(ctx, conn, st); err != nil {
				return
			}
		}
	}
}

func (s *Server) send(ctx context.Context, conn *websocket.Conn, st analysis.Status) error {
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	if err := wsjson.Write(ctx, conn, st); err != nil {
		if websocket.CloseStatus(err) == -1 {
			log.Printf("server: status write: %v", err)
		}
		return err
	}
	return nil
}
