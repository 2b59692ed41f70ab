package handlers

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/anaslahboub/app-microservice/internal/realtime"
	"github.com/anaslahboub/app-microservice/pkg/errors"
	"github.com/anaslahboub/app-microservice/pkg/response"
)

// RealtimeHandler upgrades authenticated HTTP connections into WebSocket sessions on the hub.
type RealtimeHandler struct {
	hub *realtime.Hub
}

// NewRealtimeHandler constructs a realtime handler.
func NewRealtimeHandler(hub *realtime.Hub) *RealtimeHandler {
	return &RealtimeHandler{hub: hub}
}

// Stream registers the session with the destinations named in the query.
// Without any, the caller's notification queue is subscribed. Further
// destinations are managed with subscribe and unsubscribe frames.
func (h *RealtimeHandler) Stream(c *gin.Context) {
	if h.hub == nil {
		response.Error(c, errors.ErrNotFound)
		return
	}

	actor, ok := actorFromContext(c)
	if !ok {
		return
	}

	destinations := gatherDestinations(c)
	if len(destinations) == 0 {
		destinations = []string{realtime.DestinationUserNotifications}
	}

	h.hub.Serve(actor.ID, destinations, c.Writer, c.Request)
}

func gatherDestinations(c *gin.Context) []string {
	var destinations []string

	for _, value := range c.QueryArray("destination") {
		if normalized := strings.TrimSpace(value); normalized != "" {
			destinations = append(destinations, normalized)
		}
	}

	if raw := c.Query("destinations"); raw != "" {
		for _, part := range strings.Split(raw, ",") {
			if normalized := strings.TrimSpace(part); normalized != "" {
				destinations = append(destinations, normalized)
			}
		}
	}

	return destinations
}
