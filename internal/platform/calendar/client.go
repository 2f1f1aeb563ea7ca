// Package calendar pushes generated task instances to the owner's external
// calendar. Delivery is best effort: failures are logged by the caller and
// never affect the job that created the instance.
package calendar

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sethvargo/go-retry"
	"github.com/taskflow/taskflow-api/internal/config"
	"golang.org/x/oauth2"
	"golang.org/x/time/rate"
)

const (
	defaultTimeout  = 10 * time.Second
	maxRetries      = 3
	retryBase       = 200 * time.Millisecond
	defaultDuration = 30 * time.Minute
)

// EventTime is a point in time as the calendar API expects it.
type EventTime struct {
	DateTime time.Time `json:"dateTime"`
}

// Event is the calendar entry created for a task instance.
type Event struct {
	Summary            string             `json:"summary"`
	Description        string             `json:"description,omitempty"`
	Start              EventTime          `json:"start"`
	End                EventTime          `json:"end"`
	ExtendedProperties extendedProperties `json:"extendedProperties"`
}

type extendedProperties struct {
	Private map[string]string `json:"private"`
}

// NewTaskEvent builds the entry for a task due at due.
func NewTaskEvent(taskID uuid.UUID, title string, due time.Time) Event {
	due = due.UTC()
	return Event{
		Summary: title,
		Start:   EventTime{DateTime: due},
		End:     EventTime{DateTime: due.Add(defaultDuration)},
		ExtendedProperties: extendedProperties{
			Private: map[string]string{"task_id": taskID.String()},
		},
	}
}

// APIError is a non-2xx answer from the calendar API.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("calendar api returned %d: %s", e.StatusCode, e.Body)
}

// Client talks to the calendar API on behalf of users.
type Client struct {
	baseURL    string
	httpClient *http.Client
	tokens     TokenProvider
	limiter    *rate.Limiter
	backoff    func() retry.Backoff
	logger     *slog.Logger
}

// NewClient creates a calendar client. Requests are throttled to
// cfg.RateLimit per second (unlimited when zero) and retried with
// exponential backoff on 429 and 5xx answers.
func NewClient(cfg config.CalendarConfig, tokens TokenProvider, logger *slog.Logger) *Client {
	if tokens == nil {
		panic("tokens cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}

	limit := rate.Inf
	if cfg.RateLimit > 0 {
		limit = rate.Limit(cfg.RateLimit)
	}

	return &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		httpClient: &http.Client{Timeout: defaultTimeout},
		tokens:     tokens,
		limiter:    rate.NewLimiter(limit, 1),
		backoff: func() retry.Backoff {
			return retry.WithMaxRetries(maxRetries, retry.NewExponential(retryBase))
		},
		logger: logger.With(slog.String("component", "calendar_client")),
	}
}

// CreateEvent adds event to the user's primary calendar.
// Returns ErrNoToken if the user has no connected calendar.
func (c *Client) CreateEvent(ctx context.Context, userID uuid.UUID, event Event) error {
	tok, err := c.tokens.Token(ctx, userID)
	if err != nil {
		return err
	}

	// The transport re-asks the provider when tok expires between retries.
	httpClient := &http.Client{
		Timeout: c.httpClient.Timeout,
		Transport: &oauth2.Transport{
			Base:   c.httpClient.Transport,
			Source: oauth2.ReuseTokenSource(tok, userTokenSource{ctx: ctx, tokens: c.tokens, userID: userID}),
		},
	}

	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encoding event: %w", err)
	}

	attempt := 0
	return retry.Do(ctx, c.backoff(), func(ctx context.Context) error {
		attempt++
		if err := c.limiter.Wait(ctx); err != nil {
			return err
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost,
			c.baseURL+"/calendars/primary/events", bytes.NewReader(body))
		if err != nil {
			return err
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := httpClient.Do(req)
		if err != nil {
			return retry.RetryableError(err)
		}
		defer func() { _ = resp.Body.Close() }()

		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			return nil
		}

		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		apiErr := &APIError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(msg))}
		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			c.logger.Debug("calendar request failed, retrying",
				slog.String("user_id", userID.String()),
				slog.Int("attempt", attempt),
				slog.Int("status", resp.StatusCode))
			return retry.RetryableError(apiErr)
		}
		return apiErr
	})
}
