// Package remote talks to the task store, notification and project endpoints.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
)

var (
	// ErrUnavailable wraps transport failures: the request never got an answer.
	ErrUnavailable = errors.New("remote unavailable")
	ErrNotFound    = errors.New("not found")
)

// StatusError is a remote rejection: a non-2xx answer or an envelope whose
// status is not SUCCESS.
type StatusError struct {
	Op         string
	StatusCode int
	Message    string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("%s: remote returned %d", e.Op, e.StatusCode)
	}
	return fmt.Sprintf("%s: remote returned %d: %s", e.Op, e.StatusCode, e.Message)
}

func (e *StatusError) Is(target error) bool {
	return target == ErrNotFound && e.StatusCode == http.StatusNotFound
}

// TokenSource yields the bearer token for each request.
type TokenSource func() string

// Client is a JSON client for the /api surface.
type Client struct {
	baseURL string
	token   TokenSource
	http    *http.Client
	log     *log.Logger
}

// New builds a client. timeout <= 0 keeps the transport default.
func New(baseURL string, token TokenSource, timeout time.Duration, logger *log.Logger) *Client {
	if logger == nil {
		panic("remote.New: logger is nil")
	}
	hc := &http.Client{}
	if timeout > 0 {
		hc.Timeout = timeout
	}
	if token == nil {
		token = func() string { return "" }
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		http:    hc,
		log:     logger,
	}
}

// envelope is the {status, data, message} shape of the task and project services.
type envelope struct {
	Status  string          `json:"status"`
	Data    json.RawMessage `json:"data"`
	Message string          `json:"message"`
}

const statusSuccess = "SUCCESS"

func (c *Client) do(ctx context.Context, op, method, path string, body any) (int, []byte, error) {
	var rdr io.Reader
	if body != nil {
		buf := new(bytes.Buffer)
		if err := json.NewEncoder(buf).Encode(body); err != nil {
			return 0, nil, fmt.Errorf("%s: encode: %w", op, err)
		}
		rdr = buf
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, rdr)
	if err != nil {
		return 0, nil, fmt.Errorf("%s: %w", op, err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if tok := c.token(); tok != "" {
		req.Header.Set("Authorization", "Bearer "+tok)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, nil, fmt.Errorf("%s: %w: %v", op, ErrUnavailable, err)
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, nil, fmt.Errorf("%s: %w: read body: %v", op, ErrUnavailable, err)
	}
	c.log.WithFields(log.Fields{"op": op, "method": method, "path": path, "status": resp.StatusCode}).Debug("remote call")
	return resp.StatusCode, data, nil
}

// call performs a request against an enveloped endpoint and decodes data into out.
func (c *Client) call(ctx context.Context, op, method, path string, body, out any) error {
	code, data, err := c.do(ctx, op, method, path, body)
	if err != nil {
		return err
	}
	var env envelope
	decodeErr := json.Unmarshal(data, &env)
	if code < 200 || code > 299 {
		return &StatusError{Op: op, StatusCode: code, Message: env.Message}
	}
	if decodeErr != nil {
		return fmt.Errorf("%s: decode: %w", op, decodeErr)
	}
	if env.Status != statusSuccess {
		return &StatusError{Op: op, StatusCode: code, Message: firstNonEmpty(env.Message, "status "+env.Status)}
	}
	if out == nil || len(env.Data) == 0 || string(env.Data) == "null" {
		return nil
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return fmt.Errorf("%s: decode data: %w", op, err)
	}
	return nil
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
