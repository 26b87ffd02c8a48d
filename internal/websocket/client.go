package websocket

import (
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"time"

	"support-chat-backend/internal/eventbus"

	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	maxFrameSize   = 64 * 1024
	defaultPingGap = 30 * time.Second
)

// frameHandler answers one inbound text frame. A nil reply sends nothing.
type frameHandler func(raw []byte) any

type WSClient struct {
	Conn  *websocket.Conn
	ID    string
	Kind  Kind
	Topic string

	sub      *eventbus.Subscription
	hub      *Hub
	logger   *slog.Logger
	pingGap  time.Duration
	done     chan struct{}
	mu       sync.Mutex // serialises writes to Conn
	once     sync.Once
	isClosed bool
}

// start runs the pumps. Every pump calls close on exit, so the subscription
// and the socket are released exactly once whichever side fails first.
func (cl *WSClient) start(handle frameHandler) {
	cl.hub.register(cl)
	go cl.keepAlive()
	go cl.writeMessage()
	go cl.readMessage(handle)
}

func (cl *WSClient) close() {
	cl.once.Do(func() {
		close(cl.done)
		cl.sub.Close()

		cl.mu.Lock()
		cl.isClosed = true
		_ = cl.Conn.WriteControl(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(writeWait),
		)
		cl.Conn.Close()
		cl.mu.Unlock()

		cl.hub.unregister(cl)
		cl.logger.Debug("client disconnected")
	})
}

func (cl *WSClient) write(messageType int, data []byte) error {
	cl.mu.Lock()
	defer cl.mu.Unlock()
	if cl.isClosed {
		return websocket.ErrCloseSent
	}
	_ = cl.Conn.SetWriteDeadline(time.Now().Add(writeWait))
	return cl.Conn.WriteMessage(messageType, data)
}

func (cl *WSClient) writeJSON(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return cl.write(websocket.TextMessage, data)
}

func (cl *WSClient) keepAlive() {
	defer cl.close()

	ticker := time.NewTicker(cl.pingGap)
	defer ticker.Stop()

	for {
		select {
		case <-cl.done:
			return
		case <-ticker.C:
			if err := cl.write(websocket.PingMessage, nil); err != nil {
				cl.logger.Debug("ping failed", "error", err)
				return
			}
		}
	}
}

// writeMessage forwards bus events to the socket untouched.
func (cl *WSClient) writeMessage() {
	defer cl.close()

	for {
		select {
		case <-cl.done:
			return
		case msg, ok := <-cl.sub.C:
			if !ok {
				return
			}
			if err := cl.write(websocket.TextMessage, msg.Payload); err != nil {
				cl.logger.Debug("write failed", "error", err)
				return
			}
			addDelivered(cl.Kind)
		}
	}
}

func (cl *WSClient) readMessage(handle frameHandler) {
	defer cl.close()
	defer func() {
		if r := recover(); r != nil {
			cl.logger.Error("recovered from panic in read loop", "panic", r)
		}
	}()

	cl.Conn.SetReadLimit(maxFrameSize)
	_ = cl.Conn.SetReadDeadline(time.Now().Add(2 * cl.pingGap))
	cl.Conn.SetPongHandler(func(string) error {
		return cl.Conn.SetReadDeadline(time.Now().Add(2 * cl.pingGap))
	})

	for {
		messageType, message, err := cl.Conn.ReadMessage()
		if err != nil {
			var closeErr *websocket.CloseError
			if !errors.As(err, &closeErr) || !isExpectedClose(closeErr.Code) {
				cl.logger.Debug("read failed", "error", err)
			}
			return
		}
		_ = cl.Conn.SetReadDeadline(time.Now().Add(2 * cl.pingGap))
		if messageType != websocket.TextMessage {
			continue
		}

		if reply := handle(message); reply != nil {
			if err := cl.writeJSON(reply); err != nil {
				cl.logger.Debug("reply failed", "error", err)
				return
			}
		}
	}
}

func isExpectedClose(code int) bool {
	return code == websocket.CloseNormalClosure ||
		code == websocket.CloseGoingAway ||
		code == websocket.CloseNoStatusReceived
}
