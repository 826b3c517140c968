// Package calendar schedules meeting follow-ups on the user's calendar
// using delegated authorization.
package calendar

import (
	"context"
	"fmt"
	"time"

	gmerrors "github.com/Welshcorki/Genminute/pkg/errors"
	"github.com/Welshcorki/Genminute/pkg/logging"
)

// DefaultEventDuration is used when a request names a start but no end.
const DefaultEventDuration = time.Hour

// EventRequest is a validated request to create one calendar event.
type EventRequest struct {
	Summary     string     `json:"summary"`
	StartTime   time.Time  `json:"start_time"`
	EndTime     *time.Time `json:"end_time,omitempty"`
	Location    string     `json:"location,omitempty"`
	Description string     `json:"description,omitempty"`
}

// Validate checks required fields and resolves the effective end time.
// A missing end defaults to start plus one hour.
func (r *EventRequest) Validate() error {
	if r.Summary == "" {
		return fmt.Errorf("event summary is required: %w", gmerrors.ErrValidation)
	}
	if r.StartTime.IsZero() {
		return fmt.Errorf("event start time is required: %w", gmerrors.ErrValidation)
	}
	if r.EndTime == nil {
		end := r.StartTime.Add(DefaultEventDuration)
		r.EndTime = &end
	}
	if !r.EndTime.After(r.StartTime) {
		return fmt.Errorf("event end %s is not after start %s: %w",
			r.EndTime.Format(time.RFC3339), r.StartTime.Format(time.RFC3339), gmerrors.ErrValidation)
	}
	return nil
}

// Confirmation reports a successfully created event.
type Confirmation struct {
	EventID   string    `json:"event_id"`
	Summary   string    `json:"summary"`
	StartTime time.Time `json:"start_time"`
	EndTime   time.Time `json:"end_time"`
	HTMLLink  string    `json:"html_link,omitempty"`
}

// Client creates events on the external calendar service on behalf of an
// already-authorized user. Implementations validate the request before
// use, so a request with no end time is scheduled with the default
// duration rather than rejected.
type Client interface {
	CreateEvent(ctx context.Context, token string, req EventRequest) (*Confirmation, error)
}

// AuthorizationSource resolves a user's stored delegated calendar
// authorization. Implemented by the credentials store.
type AuthorizationSource interface {
	// Token returns the access token for the user, or ErrNoAuthorization
	// when none is stored.
	Token(ctx context.Context, userID string) (string, error)
}

// Adapter binds tool-call scheduling to a concrete client and the
// authorization store. The user identity is injected by the caller, never
// taken from model output.
type Adapter struct {
	client Client
	auth   AuthorizationSource
	logger logging.Logger
}

// NewAdapter creates a calendar adapter.
func NewAdapter(client Client, auth AuthorizationSource, logger logging.Logger) *Adapter {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &Adapter{
		client: client,
		auth:   auth,
		logger: logger.With(logging.F("component", "calendar_adapter")),
	}
}

// Schedule validates the request, resolves the user's authorization, and
// creates the event. Every failure is returned as an error value; nothing
// here panics or escalates past the caller.
func (a *Adapter) Schedule(ctx context.Context, req EventRequest, userID string) (*Confirmation, error) {
	if userID == "" {
		return nil, fmt.Errorf("no user in scheduling context: %w", gmerrors.ErrNoIdentity)
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}

	token, err := a.auth.Token(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("resolve authorization for %s: %w", userID, err)
	}

	conf, err := a.client.CreateEvent(ctx, token, req)
	if err != nil {
		return nil, fmt.Errorf("create event %q: %w", req.Summary, err)
	}

	a.logger.Info("event scheduled",
		logging.F("user_id", userID),
		logging.F("event_id", conf.EventID),
		logging.F("summary", conf.Summary))
	return conf, nil
}
