package monitor

import (
	"context"
	"fmt"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/matthewbaird/acdc/internal/analysis"
)

// maxStatusFrame bounds one status snapshot.
const maxStatusFrame = 1 << 20

// WebsocketDialer subscribes over a websocket carrying one JSON status
// array per text frame.
type WebsocketDialer struct {
	// URL maps an analysis ID to the channel's ws:// or wss:// URL.
	URL func(analysisID string) string
	// Options are passed to websocket.Dial.
	Options *websocket.DialOptions
}

func (d *WebsocketDialer) Dial(ctx context.Context, analysisID string) (Stream, error) {
	u := d.URL(analysisID)
	conn, _, err := websocket.Dial(ctx, u, d.Options)
	if err != nil {
		return nil, fmt.Errorf("dialing %s: %w", u, err)
	}
	conn.SetReadLimit(maxStatusFrame)
	return &wsStream{conn: conn}, nil
}

type wsStream struct {
	conn *websocket.Conn
}

func (s *wsStream) Recv(ctx context.Context) (analysis.Status, error) {
	var st analysis.Status
	if err := wsjson.Read(ctx, s.conn, &st); err != nil {
		return nil, err
	}
	return st, nil
}

func (s *wsStream) Close() error {
	return s.conn.Close(websocket.StatusNormalClosure, "")
}
