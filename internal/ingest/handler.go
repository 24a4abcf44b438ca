package ingest

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"tabcap/internal/logging"
)

const (
	kindTab        = "tab"
	kindMicrophone = "microphone"
)

// hello is the first message on every ingest connection. Tab feeds carry
// the minted handle they are answering; microphone feeds just announce
// themselves.
type hello struct {
	Kind     string `json:"kind"`
	StreamID string `json:"streamId"`
	Label    string `json:"label"`
}

// Handler returns the websocket endpoint the browser helper pushes audio
// frames to. Binary messages after the hello are raw PCM frames. Origin
// checking is the caller's concern; the daemon mounts this behind the
// same origin-checked upgrader as the page channel.
func (b *Broker) Handler(upgrader websocket.Upgrader) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			b.logger.Debug("ingest upgrade rejected",
				logging.String("origin", r.Header.Get("Origin")),
				logging.Error(err))
			return
		}
		b.serve(conn)
	})
}

func (b *Broker) serve(conn *websocket.Conn) {
	defer conn.Close()

	_ = conn.SetReadDeadline(time.Now().Add(10 * time.Second))
	var h hello
	if err := conn.ReadJSON(&h); err != nil {
		b.logger.Debug("ingest hello failed", logging.Error(err))
		return
	}
	_ = conn.SetReadDeadline(time.Time{})

	var f *feed
	switch h.Kind {
	case kindTab:
		attached, ok := b.attachTab(h.StreamID, h.Label)
		if !ok {
			b.logger.Warn("tab feed for unknown capture handle",
				logging.String("stream_id", h.StreamID))
			return
		}
		f = attached
	case kindMicrophone:
		f = b.attachMic(h.Label)
		defer b.dropMic(f)
	default:
		b.logger.Warn("ingest connection with unknown kind",
			logging.String("kind", h.Kind))
		return
	}
	defer f.Close()

	b.logger.Info("audio feed attached",
		logging.String("kind", h.Kind),
		logging.String("label", f.label))

	for {
		messageType, frame, err := conn.ReadMessage()
		if err != nil {
			return
		}
		if f.closedNow() {
			return
		}
		if messageType != websocket.BinaryMessage || len(frame) == 0 {
			continue
		}
		f.push(frame)
	}
}
