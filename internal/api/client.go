// Package api is the HTTP client for the interview backend. It mirrors the
// server's REST surface and reports server-side rejections as errors carrying
// the backend's message text.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"prepmate/internal/config"
	"prepmate/internal/models"
)

// ErrNoToken is returned by authenticated calls when no token is configured.
var ErrNoToken = errors.New("no backend token configured; set server.token or PREPMATE_TOKEN")

// Error is a rejection from the backend, preserving its status and message.
type Error struct {
	Status  int
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("backend returned %d: %s", e.Status, e.Message)
}

// Client talks to the interview backend.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
}

// New builds a client from the server section of the configuration.
func New(cfg config.ServerConfig) *Client {
	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		token:   cfg.Token,
		http: &http.Client{
			Timeout: time.Duration(cfg.TimeoutSeconds) * time.Second,
		},
	}
}

// Credentials is the register/login response.
type Credentials struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
	Token string `json:"token"`
}

// Profile is the authenticated user's account record.
type Profile struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"createdAt"`
}

// Register creates an account and returns its credentials, including a fresh
// token. The returned token is not stored on the client.
func (c *Client) Register(ctx context.Context, name, email, password string) (Credentials, error) {
	var creds Credentials
	err := c.call(ctx, http.MethodPost, "/api/users", false, map[string]string{
		"name": name, "email": email, "password": password,
	}, &creds)
	return creds, err
}

// Login exchanges credentials for a token.
func (c *Client) Login(ctx context.Context, email, password string) (Credentials, error) {
	var creds Credentials
	err := c.call(ctx, http.MethodPost, "/api/users/login", false, map[string]string{
		"email": email, "password": password,
	}, &creds)
	return creds, err
}

// UserProfile fetches the account owning the configured token.
func (c *Client) UserProfile(ctx context.Context) (Profile, error) {
	var profile Profile
	err := c.call(ctx, http.MethodGet, "/api/users/profile", true, nil, &profile)
	return profile, err
}

// CreateInterview registers a new interview holding the question list.
func (c *Client) CreateInterview(ctx context.Context, questions []string) (models.Interview, error) {
	var interview models.Interview
	err := c.call(ctx, http.MethodPost, "/api/interviews", true, map[string]any{
		"questions": questions,
	}, &interview)
	return interview, err
}

// ListInterviews fetches one page of the caller's interviews, newest first.
func (c *Client) ListInterviews(ctx context.Context, page, limit int) (models.InterviewPage, error) {
	query := url.Values{}
	if page > 0 {
		query.Set("page", fmt.Sprint(page))
	}
	if limit > 0 {
		query.Set("limit", fmt.Sprint(limit))
	}
	path := "/api/interviews"
	if encoded := query.Encode(); encoded != "" {
		path += "?" + encoded
	}

	var result models.InterviewPage
	err := c.call(ctx, http.MethodGet, path, true, nil, &result)
	return result, err
}

// GetInterview fetches a single interview by id.
func (c *Client) GetInterview(ctx context.Context, id string) (models.Interview, error) {
	var interview models.Interview
	err := c.call(ctx, http.MethodGet, "/api/interviews/"+url.PathEscape(id), true, nil, &interview)
	return interview, err
}

// InterviewUpdate carries the fields to replace on an interview, the full
// set the update endpoint accepts. Nil fields are omitted from the request
// and left untouched on the server.
type InterviewUpdate struct {
	Transcript     []models.TranscriptEntry `json:"transcript,omitempty"`
	Feedback       map[string]any           `json:"feedback,omitempty"`
	VisualAnalysis map[string]any           `json:"visualAnalysis,omitempty"`
	FinalScore     *float64                 `json:"finalScore,omitempty"`
}

// UpdateInterview replaces the provided fields wholesale.
func (c *Client) UpdateInterview(ctx context.Context, id string, update InterviewUpdate) (models.Interview, error) {
	var interview models.Interview
	err := c.call(ctx, http.MethodPut, "/api/interviews/"+url.PathEscape(id), true, update, &interview)
	return interview, err
}

// DeleteInterview removes an interview.
func (c *Client) DeleteInterview(ctx context.Context, id string) error {
	return c.call(ctx, http.MethodDelete, "/api/interviews/"+url.PathEscape(id), true, nil, nil)
}

// Health probes the backend's liveness endpoint.
func (c *Client) Health(ctx context.Context) error {
	return c.call(ctx, http.MethodGet, "/health", false, nil, nil)
}

func (c *Client) call(ctx context.Context, method, path string, authed bool, body, out any) error {
	if authed && c.token == "" {
		return ErrNoToken
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encoding request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if authed {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("reaching backend: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("reading response: %w", err)
	}

	if resp.StatusCode >= 400 {
		return &Error{Status: resp.StatusCode, Message: errorMessage(data)}
	}

	if out != nil {
		if err := json.Unmarshal(data, out); err != nil {
			return fmt.Errorf("decoding response: %w", err)
		}
	}
	return nil
}

func errorMessage(data []byte) string {
	var payload struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(data, &payload); err == nil && payload.Message != "" {
		return payload.Message
	}
	return strings.TrimSpace(string(data))
}
