package api

import (
	"context"
	"net/http"

	"github.com/nerrad567/airguard-core/internal/ingest"
)

// Component status values.
const (
	statusOK          = "ok"
	statusDegraded    = "degraded"
	statusDown        = "down"
	statusUnavailable = "unavailable"
)

// HealthResponse is the body of GET /api/v1/health.
type HealthResponse struct {
	Status     string                     `json:"status"`
	Version    string                     `json:"version"`
	Components map[string]ComponentHealth `json:"components"`
}

// ComponentHealth describes one dependency.
type ComponentHealth struct {
	Status        string `json:"status"`
	Error         string `json:"error,omitempty"`
	State         string `json:"state,omitempty"`
	QueueDepth    *int   `json:"queue_depth,omitempty"`
	Subscriptions *int   `json:"subscriptions,omitempty"`
}

// handleHealth reports 200 when the store is reachable and the pipeline is
// subscribed, 503 otherwise. The body always lists every component.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
	defer cancel()

	resp := HealthResponse{
		Status:     statusOK,
		Version:    s.version,
		Components: make(map[string]ComponentHealth, 3),
	}

	degrade := func(name string, c ComponentHealth) {
		resp.Components[name] = c
		if c.Status != statusOK {
			resp.Status = statusDegraded
		}
	}

	degrade("database", checkComponent(ctx, s.db.HealthCheck))

	if s.broker != nil {
		c := checkComponent(ctx, s.broker.HealthCheck)
		subs := s.broker.SubscriptionCount()
		c.Subscriptions = &subs
		degrade("mqtt", c)
	} else {
		degrade("mqtt", ComponentHealth{Status: statusUnavailable})
	}

	if s.pipeline != nil {
		state := s.pipeline.State()
		depth := s.pipeline.QueueDepth()
		c := ComponentHealth{Status: statusOK, State: string(state), QueueDepth: &depth}
		if state != ingest.StateSubscribed {
			c.Status = statusDegraded
		}
		degrade("subscriber", c)
	} else {
		degrade("subscriber", ComponentHealth{Status: statusUnavailable})
	}

	code := http.StatusOK
	if resp.Status != statusOK {
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, resp)
}

func checkComponent(ctx context.Context, check func(context.Context) error) ComponentHealth {
	if err := check(ctx); err != nil {
		return ComponentHealth{Status: statusDown, Error: err.Error()}
	}
	return ComponentHealth{Status: statusOK}
}
