package endpoints

import (
	"fmt"
	"net/http"
	"strings"

	"support-chat-backend/internal/websocket"
)

// GatewayEndpoints upgrade realtime connections. Path parsing happens here;
// authorization and the socket lifecycle belong to the websocket handler.
type GatewayEndpoints interface {
	Queue(http.ResponseWriter, *http.Request) error
	Agent(http.ResponseWriter, *http.Request) error
	Conversation(http.ResponseWriter, *http.Request) error
}

type gatewayEndpoints struct {
	handler            *websocket.Handler
	agentPrefix        string
	conversationPrefix string
}

func NewGatewayEndpoints(handler *websocket.Handler, prefix string) GatewayEndpoints {
	base := strings.TrimRight(prefix, "/")
	return &gatewayEndpoints{
		handler:            handler,
		agentPrefix:        base + "/agents/",
		conversationPrefix: base + "/conversations/",
	}
}

func (h *gatewayEndpoints) Queue(w http.ResponseWriter, r *http.Request) error {
	return MethodHandler(w, r, map[string]func(http.ResponseWriter, *http.Request) error{
		http.MethodGet: h.handler.ServeQueue,
	})
}

func (h *gatewayEndpoints) Agent(w http.ResponseWriter, r *http.Request) error {
	return MethodHandler(w, r, map[string]func(http.ResponseWriter, *http.Request) error{
		http.MethodGet: func(w http.ResponseWriter, r *http.Request) error {
			agentID, err := singleSegment(r.URL.Path, h.agentPrefix)
			if err != nil {
				return err
			}
			return h.handler.ServeAgent(w, r, agentID)
		},
	})
}

func (h *gatewayEndpoints) Conversation(w http.ResponseWriter, r *http.Request) error {
	return MethodHandler(w, r, map[string]func(http.ResponseWriter, *http.Request) error{
		http.MethodGet: func(w http.ResponseWriter, r *http.Request) error {
			conversationID, err := singleSegment(r.URL.Path, h.conversationPrefix)
			if err != nil {
				return err
			}
			return h.handler.ServeConversation(w, r, conversationID)
		},
	})
}

func singleSegment(path, prefix string) (string, error) {
	id, action, err := conversationAction(path, prefix)
	if err != nil {
		return "", err
	}
	if action != "" {
		return "", notFound(fmt.Errorf("unexpected path segment in %s", path))
	}
	return id, nil
}
