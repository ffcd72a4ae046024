// Package graphapi posts JSON to the Meta Graph API, shared by the Messenger and
// WhatsApp gateways.
package graphapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

// DefaultBaseURL is the public Graph API host.
const DefaultBaseURL = "https://graph.facebook.com"

// Error is the error object the Graph API returns with non-2xx responses.
type Error struct {
	StatusCode int    `json:"-"`
	Message    string `json:"message"`
	Type       string `json:"type"`
	Code       int    `json:"code"`
	TraceID    string `json:"fbtrace_id"`
}

func (e *Error) Error() string {
	return fmt.Sprintf("graph api: status %d: (#%d) %s %s", e.StatusCode, e.Code, e.Type, e.Message)
}

// Client posts to one Graph API version with one access token.
type Client struct {
	baseURL    string
	version    string
	token      string
	httpClient *http.Client
}

// NewClient creates a Client. An empty baseURL selects DefaultBaseURL.
func NewClient(baseURL, version, token string, timeout time.Duration) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		version:    version,
		token:      token,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// Post sends body as JSON to /{version}/{path}. The token travels as a Bearer header.
func (c *Client) Post(ctx context.Context, path string, body any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return errors.Wrap(err, "graph api: encode body")
	}

	endpoint := fmt.Sprintf("%s/%s/%s", c.baseURL, c.version, strings.TrimLeft(path, "/"))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return errors.Wrap(err, "graph api: build request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return errors.Wrapf(err, "graph api: post %s", path)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return errors.Wrap(err, "graph api: read response")
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return decodeError(resp.StatusCode, raw)
	}
	log.WithFields(log.Fields{"path": path, "status": resp.StatusCode}).Debug("graph api: message accepted")
	return nil
}

func decodeError(status int, raw []byte) *Error {
	var body struct {
		Error *Error `json:"error"`
	}
	if err := json.Unmarshal(raw, &body); err != nil || body.Error == nil {
		return &Error{StatusCode: status, Message: strings.TrimSpace(string(raw))}
	}
	body.Error.StatusCode = status
	return body.Error
}
