// Package remote implements the authenticated conference backend client.
package remote

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sony/gobreaker"

	"github.com/schedpulse/schedpulse/internal/domain"
	apperrors "github.com/schedpulse/schedpulse/internal/errors"
	"github.com/schedpulse/schedpulse/internal/metrics"
)

const requestTimeout = 15 * time.Second

// TokenProvider supplies the signed-in attendee's bearer token.
// An empty token means no user is signed in.
type TokenProvider interface {
	Token() string
}

// Client talks to the conference backend. All requests flow through a circuit
// breaker so a flapping backend trips open instead of being hammered.
type Client struct {
	baseURL *url.URL
	http    *http.Client
	tokens  TokenProvider
	breaker *gobreaker.CircuitBreaker
}

// New creates a backend client for the given base URL.
func New(baseURL string, tokens TokenProvider) (*Client, error) {
	base, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("remote: invalid base URL: %w", err)
	}

	settings := gobreaker.Settings{
		Name:    "backend",
		Timeout: 30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(_ string, _, to gobreaker.State) {
			metrics.BackendBreakerState.Set(float64(to))
		},
	}

	return &Client{
		baseURL: base,
		http:    &http.Client{Timeout: requestTimeout},
		tokens:  tokens,
		breaker: gobreaker.NewCircuitBreaker(settings),
	}, nil
}

// Send issues method against ref (absolute or relative to the base URL) with
// no payload. This is the narrow surface the offline replayer depends on.
func (c *Client) Send(ctx context.Context, method, ref string, authenticated bool) error {
	_, err := c.do(ctx, method, ref, authenticated, nil)
	return err
}

// FetchSchedule retrieves the master schedule.
func (c *Client) FetchSchedule(ctx context.Context) (*domain.Schedule, error) {
	body, err := c.do(ctx, http.MethodGet, "api/v1/schedule", false, nil)
	if err != nil {
		return nil, err
	}

	var schedule domain.Schedule
	if err := json.Unmarshal(body, &schedule); err != nil {
		return nil, apperrors.Wrap(apperrors.TypeInternal, "decode schedule", err)
	}
	schedule.FetchedAt = time.Now()
	return &schedule, nil
}

// FetchUserData retrieves the signed-in attendee's bookmarks and surveys.
func (c *Client) FetchUserData(ctx context.Context) (*domain.UserData, error) {
	body, err := c.do(ctx, http.MethodGet, "api/v1/user/schedule", true, nil)
	if err != nil {
		return nil, err
	}

	var data domain.UserData
	if err := json.Unmarshal(body, &data); err != nil {
		return nil, apperrors.Wrap(apperrors.TypeInternal, "decode user data", err)
	}
	return &data, nil
}

// SetBookmarked bookmarks (PUT) or unbookmarks (DELETE) a session.
// The session ID is the whole mutation: there is no request payload, which is
// what lets the offline queue replay these as bare (url, method) pairs.
func (c *Client) SetBookmarked(ctx context.Context, sessionID string, bookmarked bool) error {
	method := http.MethodPut
	if !bookmarked {
		method = http.MethodDelete
	}
	return c.Send(ctx, method, BookmarkURL(sessionID), true)
}

// SubmitSurvey marks a session survey as submitted.
func (c *Client) SubmitSurvey(ctx context.Context, sessionID string) error {
	return c.Send(ctx, http.MethodPut, SurveyURL(sessionID), true)
}

// VerifyToken checks an attendee token against the backend and returns the
// attendee ID it belongs to.
func (c *Client) VerifyToken(ctx context.Context, token string) (string, error) {
	req, err := c.newRequest(ctx, http.MethodPost, "api/v1/auth/verify", nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+token)

	body, err := c.execute(req)
	if err != nil {
		return "", err
	}

	var resp struct {
		AttendeeID string `json:"attendee_id"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", apperrors.Wrap(apperrors.TypeInternal, "decode verify response", err)
	}
	if resp.AttendeeID == "" {
		return "", apperrors.New(apperrors.TypeUnauthorized, "token not recognized")
	}
	return resp.AttendeeID, nil
}

// BookmarkURL is the mutation endpoint for a session bookmark.
func BookmarkURL(sessionID string) string {
	return "api/v1/user/schedule/" + url.PathEscape(sessionID)
}

// SurveyURL is the mutation endpoint for a session survey.
func SurveyURL(sessionID string) string {
	return "api/v1/user/survey/" + url.PathEscape(sessionID)
}

func (c *Client) do(ctx context.Context, method, ref string, authenticated bool, payload io.Reader) ([]byte, error) {
	req, err := c.newRequest(ctx, method, ref, payload)
	if err != nil {
		return nil, err
	}

	if authenticated {
		token := c.tokens.Token()
		if token == "" {
			return nil, apperrors.New(apperrors.TypeUnauthorized, "no attendee signed in")
		}
		req.Header.Set("Authorization", "Bearer "+token)
	}

	body, err := c.execute(req)
	result := "success"
	if err != nil {
		result = "error"
	}
	metrics.BackendRequestsTotal.WithLabelValues(method, result).Inc()
	return body, err
}

func (c *Client) newRequest(ctx context.Context, method, ref string, payload io.Reader) (*http.Request, error) {
	target, err := c.baseURL.Parse(strings.TrimPrefix(ref, "/"))
	if err != nil {
		return nil, apperrors.Wrap(apperrors.TypeValidation, "invalid request URL", err)
	}
	req, err := http.NewRequestWithContext(ctx, method, target.String(), payload)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.TypeInternal, "build request", err)
	}
	return req, nil
}

func (c *Client) execute(req *http.Request) ([]byte, error) {
	body, err := c.breaker.Execute(func() (interface{}, error) {
		resp, err := c.http.Do(req)
		if err != nil {
			// Transport-level failure: connectivity, DNS, timeout. This is
			// the offline case the mutation queue exists for.
			return nil, apperrors.Wrap(apperrors.TypeUnavailable, "backend unreachable", err)
		}
		defer resp.Body.Close()

		data, err := io.ReadAll(io.LimitReader(resp.Body, 10<<20))
		if err != nil {
			return nil, apperrors.Wrap(apperrors.TypeUnavailable, "read response", err)
		}

		switch {
		case resp.StatusCode >= 200 && resp.StatusCode < 300:
			return data, nil
		case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
			return nil, apperrors.New(apperrors.TypeUnauthorized, fmt.Sprintf("backend rejected credentials (%d)", resp.StatusCode))
		case resp.StatusCode == http.StatusNotFound:
			return nil, apperrors.New(apperrors.TypeNotFound, "resource not found")
		case resp.StatusCode >= 500:
			return nil, apperrors.New(apperrors.TypeUnavailable, fmt.Sprintf("backend error (%d)", resp.StatusCode))
		default:
			return nil, apperrors.New(apperrors.TypeValidation, fmt.Sprintf("backend rejected request (%d)", resp.StatusCode))
		}
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, apperrors.Wrap(apperrors.TypeUnavailable, "circuit breaker open", err)
		}
		return nil, err
	}
	return body.([]byte), nil
}

// IsOffline reports whether err means the backend could not be reached, as
// opposed to the backend rejecting the request.
func IsOffline(err error) bool {
	return apperrors.IsType(err, apperrors.TypeUnavailable)
}
