// Package relay forwards chat messages to the configured upstream endpoint.
package relay

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
)

// DefaultUserID is sent as userId when no identity is configured.
const DefaultUserID = "currentUserIdentifier"

// maxResponseBytes bounds how much of an upstream body is read.
const maxResponseBytes = 4 << 20

// EndpointSource supplies the current upstream URL.
type EndpointSource interface {
	Endpoint() string
}

// Result is the normalized outcome of a chat message.
type Result struct {
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

type request struct {
	Query  string `json:"query"`
	UserID string `json:"userId"`
}

// Relay sends one user message per call to the upstream endpoint.
type Relay struct {
	source EndpointSource
	client *http.Client
	userID string
	logger *slog.Logger
}

// Option configures a Relay.
type Option func(*Relay)

// WithHTTPClient overrides the HTTP client (http.DefaultClient otherwise).
func WithHTTPClient(c *http.Client) Option {
	return func(r *Relay) { r.client = c }
}

// WithUserID sets the userId field sent upstream.
func WithUserID(id string) Option {
	return func(r *Relay) { r.userID = id }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(r *Relay) { r.logger = l }
}

// New creates a Relay reading its endpoint from source.
func New(source EndpointSource, opts ...Option) *Relay {
	r := &Relay{
		source: source,
		client: http.DefaultClient,
		userID: DefaultUserID,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Send forwards userInput upstream and shapes the reply for display.
//
// Blank input fails with ErrEmptyInput before any I/O. Every other failure is
// a *RequestError wrapping *UpstreamError, *MalformedResponseError or a
// transport error.
func (r *Relay) Send(ctx context.Context, userInput string) (*Result, error) {
	if strings.TrimSpace(userInput) == "" {
		return nil, ErrEmptyInput
	}

	endpoint := r.source.Endpoint()

	body, err := json.Marshal(request{Query: userInput, UserID: r.userID})
	if err != nil {
		return nil, wrapGeneric(fmt.Errorf("encode request: %w", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		r.logger.Error("Invalid chat endpoint", "endpoint", endpoint, "error", err)
		return nil, wrapGeneric(fmt.Errorf("build request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		r.logger.Error("Chat request failed", "endpoint", endpoint, "error", err)
		return nil, wrapGeneric(fmt.Errorf("post to upstream: %w", err))
	}
	defer func() {
		if closeErr := resp.Body.Close(); closeErr != nil {
			r.logger.Debug("Failed to close upstream body", "error", closeErr)
		}
	}()

	raw, readErr := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		upErr := &UpstreamError{StatusCode: resp.StatusCode, Detail: upstreamDetail(resp, raw, readErr)}
		r.logger.Error("API error", "status", resp.StatusCode, "detail", upErr.Detail)
		return nil, wrapUpstream(upErr)
	}

	if readErr != nil {
		return nil, wrapGeneric(&MalformedResponseError{StatusCode: resp.StatusCode, Err: readErr})
	}
	data, err := decodeJSON(raw)
	if err != nil {
		r.logger.Error("Malformed upstream response", "status", resp.StatusCode, "error", err)
		return nil, wrapGeneric(&MalformedResponseError{StatusCode: resp.StatusCode, Err: err})
	}

	return &Result{Message: replyMessage(userInput, data), Data: data}, nil
}

// upstreamDetail picks the most helpful explanation for a failed response:
// a truthy message field, then the whole JSON body, then the status text.
// A falsy JSON body keeps the generic text.
func upstreamDetail(resp *http.Response, raw []byte, readErr error) string {
	fallback := fmt.Sprintf("API request failed with status %d", resp.StatusCode)

	if readErr == nil {
		if body, err := decodeJSON(raw); err == nil {
			if !truthy(body) {
				return fallback
			}
			if obj, ok := body.(map[string]any); ok && truthy(obj["message"]) {
				return display(obj["message"])
			}
			if text, err := json.Marshal(body); err == nil {
				return string(text)
			}
			return fallback
		}
	}

	if text := statusText(resp); text != "" {
		return text
	}
	return fallback
}

// statusText returns the reason phrase of resp's status line.
func statusText(resp *http.Response) string {
	text := strings.TrimPrefix(resp.Status, strconv.Itoa(resp.StatusCode))
	return strings.TrimSpace(text)
}

func decodeJSON(raw []byte) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()

	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	if dec.More() {
		return nil, fmt.Errorf("unexpected data after JSON value")
	}
	return v, nil
}

func replyMessage(userInput string, data any) string {
	obj, _ := data.(map[string]any)
	if title := obj["title"]; truthy(title) {
		return `Regarding "` + userInput + `", I found: ` + display(title)
	}
	if id := obj["id"]; truthy(id) {
		return fmt.Sprintf("Processed your request. Result ID: %s.", display(id))
	}
	return "Here's what I found:"
}

func truthy(v any) bool {
	switch t := v.(type) {
	case nil:
		return false
	case bool:
		return t
	case string:
		return t != ""
	case json.Number:
		f, err := t.Float64()
		return err != nil || f != 0
	default:
		return true
	}
}

func display(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case json.Number:
		return t.String()
	case bool:
		return strconv.FormatBool(t)
	default:
		text, err := json.Marshal(t)
		if err != nil {
			return fmt.Sprint(t)
		}
		return string(text)
	}
}
