// Package remote implements store.Store and store.Auth against the hosted
// backend's HTTP API.
package remote

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
	"sync"
	"time"

	"golang.org/x/oauth2"

	"taskdeck/internal/store"
	"taskdeck/internal/task"
)

const (
	// APITimeout bounds every request so a hung call surfaces as an error.
	APITimeout = 10 * time.Second

	apiKeyHeader = "apikey"
)

// Client talks to the backend. It holds at most one session.
type Client struct {
	baseURL string
	base    *http.Client

	mu      sync.RWMutex
	session *task.Session
	authed  *http.Client
}

var _ store.Backend = (*Client)(nil)

// New creates a client for baseURL. apiKey is sent on every request.
func New(baseURL, apiKey string) (*Client, error) {
	return NewWithHTTPClient(baseURL, apiKey, &http.Client{})
}

// NewWithHTTPClient uses hc as the underlying transport (for testing).
func NewWithHTTPClient(baseURL, apiKey string, hc *http.Client) (*Client, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid backend url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("invalid backend url: %q", baseURL)
	}
	transport := hc.Transport
	if transport == nil {
		transport = http.DefaultTransport
	}
	base := *hc
	base.Transport = &apiKeyTransport{key: apiKey, base: transport}
	return &Client{
		baseURL: strings.TrimRight(u.String(), "/"),
		base:    &base,
	}, nil
}

type apiKeyTransport struct {
	key  string
	base http.RoundTripper
}

func (t *apiKeyTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if t.key == "" {
		return t.base.RoundTrip(req)
	}
	r := req.Clone(req.Context())
	r.Header.Set(apiKeyHeader, t.key)
	return t.base.RoundTrip(r)
}

type tokenResponse struct {
	AccessToken string    `json:"access_token"`
	TokenType   string    `json:"token_type"`
	ExpiresAt   time.Time `json:"expires_at"`
	User        task.User `json:"user"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (c *Client) SignUp(ctx context.Context, req task.SignUpRequest) (task.User, error) {
	var u task.User
	if err := c.do(ctx, c.base, http.MethodPost, "/auth/v1/signup", req, &u); err != nil {
		return task.User{}, wrapError("sign up", err)
	}
	return u, nil
}

func (c *Client) SignIn(ctx context.Context, email, password string) (task.Session, error) {
	body := map[string]string{"email": email, "password": password}
	var resp tokenResponse
	if err := c.do(ctx, c.base, http.MethodPost, "/auth/v1/token", body, &resp); err != nil {
		return task.Session{}, wrapError("sign in", err)
	}
	sess := task.Session{AccessToken: resp.AccessToken, ExpiresAt: resp.ExpiresAt, User: resp.User}

	// The bearer header rides on top of the api key transport.
	src := oauth2.StaticTokenSource(&oauth2.Token{
		AccessToken: resp.AccessToken,
		TokenType:   "Bearer",
		Expiry:      resp.ExpiresAt,
	})
	authed := oauth2.NewClient(context.WithValue(context.Background(), oauth2.HTTPClient, c.base), src)
	authed.Timeout = c.base.Timeout

	c.mu.Lock()
	c.session = &sess
	c.authed = authed
	c.mu.Unlock()
	return sess, nil
}

// SignOut always forgets the local session; the error reports whether the
// server side revocation went through.
func (c *Client) SignOut(ctx context.Context) error {
	c.mu.Lock()
	authed := c.authed
	c.session = nil
	c.authed = nil
	c.mu.Unlock()

	if authed == nil {
		return nil
	}
	if err := c.do(ctx, authed, http.MethodPost, "/auth/v1/logout", nil, nil); err != nil {
		return wrapError("sign out", err)
	}
	return nil
}

func (c *Client) CurrentUser(ctx context.Context) (task.User, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.session == nil {
		return task.User{}, false
	}
	if !c.session.ExpiresAt.IsZero() && time.Now().After(c.session.ExpiresAt) {
		return task.User{}, false
	}
	return c.session.User, true
}

func (c *Client) FetchOwnedTasks(ctx context.Context, ownerID string) ([]task.Task, error) {
	hc, err := c.ownerClient(ownerID)
	if err != nil {
		return nil, err
	}
	tasks := []task.Task{}
	if err := c.do(ctx, hc, http.MethodGet, "/rest/v1/tasks?order=deadline.desc", nil, &tasks); err != nil {
		return nil, wrapError("fetch tasks", err)
	}
	return tasks, nil
}

func (c *Client) CreateTask(ctx context.Context, ownerID string, p task.Payload) error {
	hc, err := c.ownerClient(ownerID)
	if err != nil {
		return err
	}
	if err := c.do(ctx, hc, http.MethodPost, "/rest/v1/tasks", p, nil); err != nil {
		return wrapError("create task", err)
	}
	return nil
}

func (c *Client) UpdateTask(ctx context.Context, taskID string, patch task.Patch) ([]task.Task, error) {
	if err := store.RequireTaskID(taskID); err != nil {
		return nil, err
	}
	hc, err := c.sessionClient()
	if err != nil {
		return nil, err
	}
	var updated []task.Task
	if err := c.do(ctx, hc, http.MethodPatch, "/rest/v1/tasks/"+url.PathEscape(taskID), patch, &updated); err != nil {
		return nil, wrapError("update task", err)
	}
	return updated, nil
}

func (c *Client) DeleteTask(ctx context.Context, taskID string) error {
	hc, err := c.sessionClient()
	if err != nil {
		return err
	}
	if err := c.do(ctx, hc, http.MethodDelete, "/rest/v1/tasks/"+url.PathEscape(taskID), nil, nil); err != nil {
		return wrapError("delete task", err)
	}
	return nil
}

func (c *Client) FetchOwnerProfile(ctx context.Context, userID string) (task.Profile, error) {
	hc, err := c.sessionClient()
	if err != nil {
		return task.Profile{}, err
	}
	var p task.Profile
	err = c.do(ctx, hc, http.MethodGet, "/rest/v1/user_details/"+url.PathEscape(userID), nil, &p)
	var he *httpError
	if errors.As(err, &he) && he.status == http.StatusNotFound {
		return task.Profile{}, &task.NotFoundError{Kind: "profile", ID: userID}
	}
	if err != nil {
		return task.Profile{}, wrapError("fetch profile", err)
	}
	return p, nil
}

var errNotSignedIn = &task.StoreError{Op: "auth", Message: "not signed in"}

func (c *Client) sessionClient() (*http.Client, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.authed == nil {
		return nil, errNotSignedIn
	}
	return c.authed, nil
}

// ownerClient refuses requests on behalf of anyone but the session user.
func (c *Client) ownerClient(ownerID string) (*http.Client, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.authed == nil || c.session == nil {
		return nil, errNotSignedIn
	}
	if c.session.User.ID != ownerID {
		return nil, &task.StoreError{Op: "auth", Message: "not allowed to access another user's data"}
	}
	return c.authed, nil
}

type httpError struct {
	status  int
	message string
}

func (e *httpError) Error() string {
	if e.message == "" {
		return http.StatusText(e.status)
	}
	return e.message
}

func (c *Client) do(ctx context.Context, hc *http.Client, method, path string, in, out any) error {
	ctx, cancel := context.WithTimeout(ctx, APITimeout)
	defer cancel()

	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := hc.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var er errorResponse
		_ = json.Unmarshal(data, &er)
		return &httpError{status: resp.StatusCode, message: er.Error}
	}
	if out == nil || len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// wrapError turns transport and HTTP failures into *task.StoreError with a
// message fit for the user.
func wrapError(op string, err error) error {
	if err == nil {
		return nil
	}

	var he *httpError
	if errors.As(err, &he) {
		switch he.status {
		case http.StatusUnauthorized:
			if he.message == "" {
				he.message = "session expired, please sign in again"
			}
		case http.StatusNotFound:
			return &task.StoreError{Op: op, Message: he.Error(), Err: &task.NotFoundError{Kind: "task"}}
		}
		return &task.StoreError{Op: op, Message: he.Error(), Err: err}
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return &task.StoreError{Op: op, Message: "request timed out", Err: err}
	}
	if errors.Is(err, context.Canceled) {
		return &task.StoreError{Op: op, Message: "request cancelled", Err: err}
	}
	return &task.StoreError{Op: op, Message: fmt.Sprintf("%s failed: network error", op), Err: err}
}
