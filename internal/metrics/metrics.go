package metrics

import (
	"fmt"
	"net/http"

	"github.com/VictoriaMetrics/metrics"
)

var (
	// RoomsCreated - The total number of rooms created through this service
	RoomsCreated = metrics.NewCounter("rps_rooms_created")
	// DiscussionsReused - The total number of discussion lookups that found an existing room
	DiscussionsReused = metrics.NewCounter("rps_discussions_reused")
	// InvitesSent - The total number of email invites that created a new discussion room
	InvitesSent = metrics.NewCounter("rps_invites_sent")
)

// IncPolicyChecks increments policy checks counter with labels
func IncPolicyChecks(op, outcome string) {
	metrics.GetOrCreateCounter(fmt.Sprintf("rps_policy_checks{op=%q,outcome=%q}", op, outcome)).Inc()
}

// Handler for metrics
type Handler struct{}

func (h *Handler) ServeHTTP(w http.ResponseWriter, _ *http.Request) {
	metrics.WritePrometheus(w, false)
}
