package reconcile

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/patternlab/graphscout/pkg/annotation"
)

// joinMessage is the client's room subscription request, sent once right
// after the connection opens.
type joinMessage struct {
	Event string `json:"event"`
	Room  string `json:"room"`
}

// wireEvent is the envelope the annotation service pushes into a room.
type wireEvent struct {
	Event  string            `json:"event"`
	Status annotation.Status `json:"status"`
	Update annotation.Patch  `json:"update"`
}

// WSListener is a websocket-backed Listener for one job room.
type WSListener struct {
	conn   *websocket.Conn
	events chan UpdateEvent
	closed chan struct{}
	once   sync.Once
	log    *zap.Logger
}

// NewWSDialer returns a DialFunc that connects to the annotation-update
// endpoint at socketURL and joins the requested room.
func NewWSDialer(socketURL string, log *zap.Logger) DialFunc {
	return func(ctx context.Context, room string) (Listener, error) {
		return DialRoom(ctx, socketURL, room, log)
	}
}

// DialRoom opens a websocket to socketURL and joins the given room.
func DialRoom(ctx context.Context, socketURL, room string, log *zap.Logger) (*WSListener, error) {
	socketURL = strings.TrimSpace(socketURL)
	if socketURL == "" {
		return nil, fmt.Errorf("socket URL is required")
	}
	if room == "" {
		return nil, fmt.Errorf("room is required")
	}
	if log == nil {
		log = zap.NewNop()
	}

	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, socketURL, nil)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		return nil, fmt.Errorf("dial notification endpoint: %w", err)
	}

	if err := conn.WriteJSON(joinMessage{Event: "join", Room: room}); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("join room %s: %w", room, err)
	}

	l := &WSListener{
		conn:   conn,
		events: make(chan UpdateEvent, 8),
		closed: make(chan struct{}),
		log:    log.With(zap.String("room", room)),
	}
	go l.readLoop()
	return l, nil
}

// Events delivers update events in arrival order. The channel is closed when
// the connection dies or Close is called.
func (l *WSListener) Events() <-chan UpdateEvent {
	return l.events
}

// Close shuts the connection down. Idempotent.
func (l *WSListener) Close() error {
	var err error
	l.once.Do(func() {
		close(l.closed)
		deadline := time.Now().Add(time.Second)
		_ = l.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), deadline)
		err = l.conn.Close()
	})
	return err
}

func (l *WSListener) readLoop() {
	defer close(l.events)
	for {
		var ev wireEvent
		if err := l.conn.ReadJSON(&ev); err != nil {
			select {
			case <-l.closed:
			default:
				if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
					l.log.Debug("notification channel read ended", zap.Error(err))
				}
			}
			return
		}
		if ev.Event != "" && ev.Event != "update" {
			continue
		}
		select {
		case l.events <- UpdateEvent{Status: ev.Status, Update: ev.Update}:
		case <-l.closed:
			return
		}
	}
}
