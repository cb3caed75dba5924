package observability

import (
	"log/slog"
	"net/http"
	"strconv"

	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// AuditInput describes an administrative action for the audit log.
type AuditInput struct {
	EventName   string
	ActorUserID string
	TargetType  string
	TargetID    string
	Action      string
	Outcome     string
	Reason      string
}

func ActorUserID(id uint) string {
	return strconv.FormatUint(uint64(id), 10)
}

// EmitAudit writes a structured audit line tied to the request and counts it.
// Extra context goes in as trailing key/value pairs.
func EmitAudit(r *http.Request, in AuditInput, kv ...any) {
	attrs := []any{
		"audit", true,
		"event_id", uuid.New().String(),
		"event_name", in.EventName,
		"actor_user_id", in.ActorUserID,
		"target_type", in.TargetType,
		"target_id", in.TargetID,
		"action", in.Action,
		"outcome", in.Outcome,
		"reason", in.Reason,
		"request_id", chimiddleware.GetReqID(r.Context()),
		"path", r.URL.Path,
	}
	attrs = append(attrs, kv...)
	slog.Default().InfoContext(r.Context(), "audit_event", attrs...)

	initCounters()
	auditEventCounter.Add(r.Context(), 1, metric.WithAttributes(
		attribute.String("event", in.EventName),
		attribute.String("outcome", in.Outcome),
	))
}
