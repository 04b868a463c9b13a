// Package client provides a session-managed client for the SAP
// BusinessObjects RESTful Web Services API.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// logonTokenHeader carries the opaque session credential on every
// authenticated call.
const logonTokenHeader = "X-SAP-LogonToken"

// Client is the REST gateway to a SAP BO server. It owns session renewal
// and retry policy; callers see only categorized errors and decoded
// responses.
type Client struct {
	cfg        Config
	httpClient *http.Client
	sessions   *SessionManager
}

// New creates a client from the configuration.
func New(cfg Config) (*Client, error) {
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}
	c := &Client{cfg: cfg, httpClient: httpClient}
	c.sessions = NewSessionManager(c)
	return c, nil
}

// Sessions exposes the session manager, primarily for eager startup login.
func (c *Client) Sessions() *SessionManager {
	return c.sessions
}

// Ping acquires a session, logging in if none is held.
func (c *Client) Ping(ctx context.Context) error {
	_, err := c.sessions.Acquire(ctx)
	return err
}

// Close releases the session best-effort and drops idle connections.
func (c *Client) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	c.sessions.Release(ctx)
	c.httpClient.CloseIdleConnections()
	return nil
}

// ListUniverses fetches the universe catalog.
func (c *Client) ListUniverses(ctx context.Context) ([]Universe, error) {
	var resp universesResponse
	if err := c.do(ctx, http.MethodGet, "/raylight/v1/universes", nil, &resp); err != nil {
		return nil, err
	}
	return []Universe(resp.Universes.Universe), nil
}

// UniverseOutline fetches the queryable objects of one universe in outline
// order.
func (c *Client) UniverseOutline(ctx context.Context, universeID string) ([]OutlineObject, error) {
	path := "/raylight/v1/universes/" + url.PathEscape(universeID) + "?aggregated=true"
	var resp outlineResponse
	if err := c.do(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}
	return resp.flatten(), nil
}

// CreateDocument creates a transient query document and returns its id.
func (c *Client) CreateDocument(ctx context.Context, spec DocumentSpec) (string, error) {
	var resp createDocumentResponse
	if err := c.do(ctx, http.MethodPost, "/raylight/v1/documents", newCreateDocumentRequest(spec), &resp); err != nil {
		return "", err
	}
	id := string(resp.Document.ID)
	if id == "" {
		return "", Errorf(KindProtocol, "document creation response carried no id")
	}
	return id, nil
}

// DocumentFlow fetches the result rows of the document's first data
// provider flow.
func (c *Client) DocumentFlow(ctx context.Context, documentID string) ([][]any, error) {
	path := fmt.Sprintf("/raylight/v1/documents/%s/dataproviders/1/flows/1", url.PathEscape(documentID))
	var resp flowResponse
	if err := c.do(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}
	if resp.Flow == nil {
		return nil, Errorf(KindProtocol, "flow response carried no flow data")
	}
	return resp.Flow.Values, nil
}

// DeleteDocument removes a transient document.
func (c *Client) DeleteDocument(ctx context.Context, documentID string) error {
	path := "/raylight/v1/documents/" + url.PathEscape(documentID)
	return c.do(ctx, http.MethodDelete, path, nil, nil)
}

// login implements sessionAPI. Only the logon call itself runs
// unauthenticated.
func (c *Client) login(ctx context.Context) (Session, error) {
	body := logonRequest{
		UserName: c.cfg.Username,
		Password: c.cfg.Password,
		Auth:     c.cfg.AuthType,
	}
	resp, err := c.send(ctx, http.MethodPost, "/logon/long", "", body)
	if err != nil {
		return Session{}, err
	}

	// The token is normally returned in the response header; some server
	// builds put it in the body instead.
	token := resp.header.Get(logonTokenHeader)
	if token == "" {
		var lr logonResponse
		if jsonErr := json.Unmarshal(resp.body, &lr); jsonErr == nil {
			token = lr.LogonToken
		}
	}
	if token == "" {
		return Session{}, Errorf(KindProtocol, "logon response carried no token")
	}
	return Session{Token: token, ObtainedAt: time.Now(), ValidFor: c.cfg.SessionTTL}, nil
}

// logout implements sessionAPI.
func (c *Client) logout(ctx context.Context, token string) error {
	_, err := c.send(ctx, http.MethodPost, "/logoff", token, struct{}{})
	return err
}

// do issues an authenticated request and decodes the response into out.
// On an authorization failure the session is invalidated and the request
// retried exactly once with a fresh login; a second rejection surfaces as
// an authentication error.
func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	session, err := c.sessions.Acquire(ctx)
	if err != nil {
		return err
	}

	resp, err := c.send(ctx, method, path, session.Token, body)
	if KindOf(err) == KindAuthentication {
		c.sessions.Invalidate(session.Token)
		session, err = c.sessions.Acquire(ctx)
		if err != nil {
			return err
		}
		resp, err = c.send(ctx, method, path, session.Token, body)
	}
	if err != nil {
		return err
	}
	return decodeInto(resp.body, out)
}

// response is the raw outcome of one successful exchange.
type response struct {
	status int
	header http.Header
	body   []byte
}

// send issues one logical request, retrying network errors and 5xx
// responses with bounded exponential backoff. Authorization failures and
// other 4xx responses are permanent.
func (c *Client) send(ctx context.Context, method, path, token string, body any) (*response, error) {
	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encoding request body: %w", err)
		}
	}

	var result *response
	attempt := func() error {
		req, err := http.NewRequestWithContext(ctx, method, c.cfg.URL+path, bytes.NewReader(payload))
		if err != nil {
			return backoff.Permanent(fmt.Errorf("building request: %w", err))
		}
		req.Header.Set("Accept", "application/json")
		req.Header.Set("Content-Type", "application/json")
		if token != "" {
			req.Header.Set(logonTokenHeader, token)
		}

		httpResp, err := c.httpClient.Do(req)
		if err != nil {
			return Wrap(KindTransport, err, method+" "+path+" failed")
		}
		defer func() { _ = httpResp.Body.Close() }()

		data, err := io.ReadAll(httpResp.Body)
		if err != nil {
			return Wrap(KindTransport, err, "reading response body")
		}

		switch {
		case httpResp.StatusCode >= http.StatusInternalServerError:
			return Errorf(KindTransport, "%s %s returned %d", method, path, httpResp.StatusCode)
		case httpResp.StatusCode == http.StatusUnauthorized || httpResp.StatusCode == http.StatusForbidden:
			return backoff.Permanent(&Error{
				Kind:    KindAuthentication,
				Status:  httpResp.StatusCode,
				Message: fmt.Sprintf("%s %s rejected with %d", method, path, httpResp.StatusCode),
			})
		case httpResp.StatusCode >= http.StatusBadRequest:
			return backoff.Permanent(&Error{
				Kind:    KindRequest,
				Status:  httpResp.StatusCode,
				Message: fmt.Sprintf("%s %s returned %d: %s", method, path, httpResp.StatusCode, truncate(data, 256)),
			})
		}

		result = &response{status: httpResp.StatusCode, header: httpResp.Header, body: data}
		return nil
	}

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = c.cfg.RetryBackoff

	retries := c.cfg.RetryMax - 1
	if retries < 0 {
		retries = 0
	}

	err := backoff.Retry(attempt, backoff.WithContext(backoff.WithMaxRetries(policy, uint64(retries)), ctx))
	if err != nil {
		return nil, err
	}
	return result, nil
}

// decodeInto unmarshals a response body, mapping failures to protocol
// errors.
func decodeInto(data []byte, out any) error {
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return Wrap(KindProtocol, err, "unexpected response shape")
	}
	return nil
}

// truncate bounds an error payload echo.
func truncate(data []byte, limit int) string {
	if len(data) <= limit {
		return string(data)
	}
	return string(data[:limit]) + "..."
}
