package auth

import (
	"context"
	"time"
)

// ActivityEventType enumerates session lifecycle events.
type ActivityEventType string

const (
	ActivityEventSignUpSuccess  ActivityEventType = "session.signup.success"
	ActivityEventSignInSuccess  ActivityEventType = "session.signin.success"
	ActivityEventSignInFailure  ActivityEventType = "session.signin.failure"
	ActivityEventSignOut        ActivityEventType = "session.signout"
	ActivityEventTokenRefreshed ActivityEventType = "session.token.refreshed"
	ActivityEventRefreshFailure ActivityEventType = "session.token.refresh_failure"
	ActivityEventIdleTimeout    ActivityEventType = "session.idle.timeout"
	ActivityEventPasswordReset  ActivityEventType = "session.password.reset"
)

// ActivityEvent captures audit-friendly information about a session
// lifecycle action.
type ActivityEvent struct {
	EventType  ActivityEventType
	UserID     string
	Metadata   map[string]any
	OccurredAt time.Time
}

// ActivitySink consumes session events for auditing/telemetry. Sinks
// run best-effort: errors are logged, never propagated.
type ActivitySink interface {
	Record(ctx context.Context, event ActivityEvent) error
}

// ActivitySinkFunc adapts a function to the ActivitySink interface.
type ActivitySinkFunc func(ctx context.Context, event ActivityEvent) error

// Record implements ActivitySink.
func (f ActivitySinkFunc) Record(ctx context.Context, event ActivityEvent) error {
	if f == nil {
		return nil
	}
	return f(ctx, event)
}

type noopActivitySink struct{}

func (noopActivitySink) Record(context.Context, ActivityEvent) error {
	return nil
}

func normalizeActivitySink(s ActivitySink) ActivitySink {
	if s == nil {
		return noopActivitySink{}
	}
	return s
}
