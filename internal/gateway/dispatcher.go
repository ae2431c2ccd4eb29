// Package gateway sends probe chat requests to the gateway under test.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
)

const (
	HeaderAgentType = "x-agent-type"
	HeaderTargetURL = "x-target-url"
)

type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Request is one outbound probe. An empty Token means no Authorization header
// is sent at all; ClaimedAgentType is asserted regardless of who the token belongs to.
type Request struct {
	Token            string
	ClaimedAgentType string
	TargetURL        string
	Messages         []Message
}

// Response carries the gateway's status and body untouched.
type Response struct {
	StatusCode int
	Body       json.RawMessage
}

// Failure marks a response that could not be read as JSON.
type Failure struct {
	StatusCode int
	Reason     string
}

func (f *Failure) Error() string {
	return fmt.Sprintf("gateway response (status %d): %s", f.StatusCode, f.Reason)
}

func IsFailure(err error) bool {
	var f *Failure
	return errors.As(err, &f)
}

// ProbeMessages is the minimal synthetic conversation sent for a claimed agent type.
func ProbeMessages(claimed string) []Message {
	return []Message{{Role: "user", Content: "Hello from " + claimed}}
}

type Dispatcher struct {
	gatewayURL string
	httpClient *http.Client
}

type Option func(*Dispatcher)

func WithHTTPClient(c *http.Client) Option {
	return func(d *Dispatcher) { d.httpClient = c }
}

func New(gatewayURL string, opts ...Option) *Dispatcher {
	d := &Dispatcher{gatewayURL: gatewayURL, httpClient: http.DefaultClient}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Dispatch sends a single request; there are no retries.
func (d *Dispatcher) Dispatch(ctx context.Context, in Request) (Response, error) {
	msgs := in.Messages
	if len(msgs) == 0 {
		msgs = ProbeMessages(in.ClaimedAgentType)
	}
	data, err := json.Marshal(map[string]any{"messages": msgs})
	if err != nil {
		return Response{}, fmt.Errorf("marshaling body: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.gatewayURL, bytes.NewReader(data))
	if err != nil {
		return Response{}, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(HeaderAgentType, in.ClaimedAgentType)
	req.Header.Set(HeaderTargetURL, in.TargetURL)
	if in.Token != "" {
		req.Header.Set("Authorization", "Bearer "+in.Token)
	}

	resp, err := d.httpClient.Do(req)
	if err != nil {
		return Response{}, fmt.Errorf("executing request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return Response{}, fmt.Errorf("reading response body: %w", err)
	}
	if !json.Valid(body) {
		return Response{}, &Failure{StatusCode: resp.StatusCode, Reason: "response body is not valid JSON"}
	}
	return Response{StatusCode: resp.StatusCode, Body: json.RawMessage(body)}, nil
}
