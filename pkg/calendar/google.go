package calendar

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"

	gmerrors "github.com/Welshcorki/Genminute/pkg/errors"
	"github.com/Welshcorki/Genminute/pkg/logging"
)

// GoogleClient creates events through the Google Calendar REST API using
// the user's delegated access token.
type GoogleClient struct {
	baseURL    string
	httpClient *http.Client
	logger     logging.Logger
}

// NewGoogleClient creates a client against the Calendar v3 API. baseURL
// is overridable for tests and proxies.
func NewGoogleClient(baseURL string, timeout time.Duration, logger logging.Logger) *GoogleClient {
	if baseURL == "" {
		baseURL = "https://www.googleapis.com/calendar/v3"
	}
	if timeout == 0 {
		timeout = 2 * time.Minute
	}
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &GoogleClient{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger.With(logging.F("component", "google_calendar")),
	}
}

type googleEventTime struct {
	DateTime string `json:"dateTime"`
	TimeZone string `json:"timeZone,omitempty"`
}

type googleEvent struct {
	ID          string          `json:"id,omitempty"`
	Summary     string          `json:"summary"`
	Location    string          `json:"location,omitempty"`
	Description string          `json:"description,omitempty"`
	Start       googleEventTime `json:"start"`
	End         googleEventTime `json:"end"`
	HTMLLink    string          `json:"htmlLink,omitempty"`
}

// CreateEvent inserts the event into the user's primary calendar.
func (c *GoogleClient) CreateEvent(ctx context.Context, token string, req EventRequest) (*Confirmation, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	ev := googleEvent{
		Summary:     req.Summary,
		Location:    req.Location,
		Description: req.Description,
		Start:       googleEventTime{DateTime: req.StartTime.Format(time.RFC3339)},
		End:         googleEventTime{DateTime: req.EndTime.Format(time.RFC3339)},
	}

	body, err := json.Marshal(ev)
	if err != nil {
		return nil, fmt.Errorf("marshal event: %w", err)
	}

	url := c.baseURL + "/calendars/primary/events"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, &gmerrors.StageError{
			Code:    gmerrors.ErrExternalService,
			Stage:   "calendar",
			Message: fmt.Sprintf("calendar request failed: %v", err),
			Cause:   err,
		}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	switch resp.StatusCode {
	case http.StatusOK, http.StatusCreated:
	case http.StatusUnauthorized, http.StatusForbidden:
		return nil, fmt.Errorf("calendar rejected token (HTTP %d): %w", resp.StatusCode, gmerrors.ErrNoAuthorization)
	default:
		return nil, &gmerrors.StageError{
			Code:    gmerrors.ErrExternalService,
			Stage:   "calendar",
			Message: fmt.Sprintf("calendar returned %d: %s", resp.StatusCode, string(respBody)),
		}
	}

	var created googleEvent
	if err := json.Unmarshal(respBody, &created); err != nil {
		return nil, fmt.Errorf("parse response: %w", err)
	}

	return &Confirmation{
		EventID:   created.ID,
		Summary:   created.Summary,
		StartTime: req.StartTime,
		EndTime:   *req.EndTime,
		HTMLLink:  created.HTMLLink,
	}, nil
}

// SimulatedClient records events in memory instead of calling the
// external service. Used for dry runs and local development.
type SimulatedClient struct {
	mu     sync.Mutex
	events []Confirmation
	logger logging.Logger
}

// NewSimulatedClient creates a client that schedules nothing externally.
func NewSimulatedClient(logger logging.Logger) *SimulatedClient {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &SimulatedClient{
		logger: logger.With(logging.F("component", "simulated_calendar")),
	}
}

// CreateEvent records the event and returns a synthetic confirmation.
func (c *SimulatedClient) CreateEvent(_ context.Context, _ string, req EventRequest) (*Confirmation, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	conf := Confirmation{
		EventID:   "sim-" + uuid.New().String(),
		Summary:   req.Summary,
		StartTime: req.StartTime,
		EndTime:   *req.EndTime,
	}

	c.mu.Lock()
	c.events = append(c.events, conf)
	c.mu.Unlock()

	c.logger.Info("simulated event", logging.F("summary", req.Summary))
	return &conf, nil
}

// Events returns all events recorded so far.
func (c *SimulatedClient) Events() []Confirmation {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Confirmation, len(c.events))
	copy(out, c.events)
	return out
}
