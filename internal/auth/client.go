package auth

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/sony/gobreaker/v2"
	"go.uber.org/zap"
)

// ClientConfig points the client at a Supabase project.
type ClientConfig struct {
	BaseURL string
	AnonKey string
	Timeout time.Duration
}

// Client talks to the provider's GoTrue REST API behind a circuit breaker.
type Client struct {
	baseURL string
	anonKey string
	http    *http.Client
	breaker *gobreaker.CircuitBreaker[response]
	logger  *zap.Logger
}

type response struct {
	status int
	body   []byte
}

type providerError struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description"`
	Message          string `json:"msg"`
}

// NewClient builds a Client. A nil httpClient gets one with cfg.Timeout.
func NewClient(cfg ClientConfig, httpClient *http.Client, logger *zap.Logger) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, errors.New("auth base url is required")
	}
	if cfg.AnonKey == "" {
		return nil, errors.New("auth anon key is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 10 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	c := &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		anonKey: cfg.AnonKey,
		http:    httpClient,
		logger:  logger,
	}
	c.breaker = gobreaker.NewCircuitBreaker[response](gobreaker.Settings{
		Name:        "identity-provider",
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		// A caller that hangs up says nothing about the provider's health.
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state changed",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
	})
	return c, nil
}

// SignInWithPassword exchanges credentials for a session.
func (c *Client) SignInWithPassword(ctx context.Context, email, password string) (Session, error) {
	payload, err := json.Marshal(map[string]string{
		"email":    strings.TrimSpace(email),
		"password": password,
	})
	if err != nil {
		return Session{}, fmt.Errorf("encode login: %w", err)
	}
	resp, err := c.do(ctx, http.MethodPost, "/auth/v1/token?grant_type=password", "", payload)
	if err != nil {
		return Session{}, err
	}
	switch {
	case resp.status == http.StatusOK:
	case resp.status == http.StatusBadRequest || resp.status == http.StatusUnauthorized:
		return Session{}, fmt.Errorf("%w: %s", ErrInvalidCredentials, describe(resp.body))
	default:
		return Session{}, fmt.Errorf("login: unexpected status %d", resp.status)
	}

	var session Session
	if err := json.Unmarshal(resp.body, &session); err != nil {
		return Session{}, fmt.Errorf("decode session: %w", err)
	}
	if session.AccessToken == "" {
		return Session{}, fmt.Errorf("%w: provider returned no session", ErrInvalidCredentials)
	}
	return session, nil
}

// Verify resolves token by asking the provider for its user.
func (c *Client) Verify(ctx context.Context, token string) (User, error) {
	resp, err := c.do(ctx, http.MethodGet, "/auth/v1/user", token, nil)
	if err != nil {
		return User{}, err
	}
	switch resp.status {
	case http.StatusOK:
	case http.StatusUnauthorized, http.StatusForbidden:
		return User{}, ErrUnauthorized
	default:
		return User{}, fmt.Errorf("get user: unexpected status %d", resp.status)
	}
	var user User
	if err := json.Unmarshal(resp.body, &user); err != nil {
		return User{}, fmt.Errorf("decode user: %w", err)
	}
	if user.ID == "" {
		return User{}, ErrUnauthorized
	}
	return user, nil
}

// do performs one request. Transport failures and 5xx responses count against
// the breaker; 4xx answers are returned to the caller as-is.
func (c *Client) do(ctx context.Context, method, path, bearer string, body []byte) (response, error) {
	resp, err := c.breaker.Execute(func() (response, error) {
		var reader io.Reader
		if body != nil {
			reader = bytes.NewReader(body)
		}
		req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
		if err != nil {
			return response{}, err
		}
		req.Header.Set("apikey", c.anonKey)
		if body != nil {
			req.Header.Set("Content-Type", "application/json")
		}
		if bearer != "" {
			req.Header.Set("Authorization", "Bearer "+bearer)
		}
		res, err := c.http.Do(req)
		if err != nil {
			return response{}, err
		}
		defer func() {
			if cerr := res.Body.Close(); cerr != nil {
				c.logger.Debug("close provider response", zap.Error(cerr))
			}
		}()
		data, err := io.ReadAll(io.LimitReader(res.Body, 1<<20))
		if err != nil {
			return response{}, err
		}
		out := response{status: res.StatusCode, body: data}
		if res.StatusCode >= http.StatusInternalServerError {
			return out, fmt.Errorf("provider returned %d", res.StatusCode)
		}
		return out, nil
	})
	if errors.Is(err, context.Canceled) {
		return response{}, fmt.Errorf("provider request: %w", err)
	}
	if err != nil {
		// Open-state rejections and transport failures look the same to callers.
		return response{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return resp, nil
}

func describe(body []byte) string {
	var perr providerError
	if err := json.Unmarshal(body, &perr); err != nil {
		return "authentication failed"
	}
	switch {
	case perr.ErrorDescription != "":
		return perr.ErrorDescription
	case perr.Message != "":
		return perr.Message
	case perr.Error != "":
		return perr.Error
	default:
		return "authentication failed"
	}
}
