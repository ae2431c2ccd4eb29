// Package auth exchanges agent credentials for a bearer token.
package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	jmes "github.com/jmespath/go-jmespath"
)

const genericReason = "Failed to authenticate"

// Context is the tenant/client scope under which agents authenticate.
type Context struct {
	OrgName  string
	ClientID string
}

// Failure is returned when the token endpoint answers but issues no token.
type Failure struct {
	StatusCode int
	Reason     string
}

func (f *Failure) Error() string { return f.Reason }

// IsFailure reports whether err came from the token endpoint rather than the transport.
func IsFailure(err error) bool {
	var f *Failure
	return errors.As(err, &f)
}

type tokenRequest struct {
	OrgName     string `json:"orgName"`
	ClientID    string `json:"clientId"`
	AgentID     string `json:"agentId"`
	AgentSecret string `json:"agentSecret"`
}

type Authenticator struct {
	tokenURL   string
	tokenField string
	errorField string
	httpClient *http.Client
}

type Option func(*Authenticator)

func WithHTTPClient(c *http.Client) Option {
	return func(a *Authenticator) { a.httpClient = c }
}

// WithFields overrides the JMESPath expressions used to read the token and
// error message from the token endpoint response. Empty values keep the defaults.
func WithFields(token, errField string) Option {
	return func(a *Authenticator) {
		if token != "" {
			a.tokenField = token
		}
		if errField != "" {
			a.errorField = errField
		}
	}
}

func New(tokenURL string, opts ...Option) *Authenticator {
	a := &Authenticator{
		tokenURL:   tokenURL,
		tokenField: "access_token",
		errorField: "error",
		httpClient: http.DefaultClient,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Authenticate performs a single token request. The token is returned verbatim.
func (a *Authenticator) Authenticate(ctx context.Context, ac Context, agentID, agentSecret string) (string, error) {
	data, err := json.Marshal(tokenRequest{
		OrgName:     ac.OrgName,
		ClientID:    ac.ClientID,
		AgentID:     agentID,
		AgentSecret: agentSecret,
	})
	if err != nil {
		return "", fmt.Errorf("marshaling token request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.tokenURL, bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("creating token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("executing token request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("reading token response: %w", err)
	}

	var doc any
	decodeErr := json.Unmarshal(body, &doc)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		reason := genericReason
		if decodeErr == nil {
			if msg := a.lookup(a.errorField, doc); strings.TrimSpace(msg) != "" {
				reason = msg
			}
		}
		return "", &Failure{StatusCode: resp.StatusCode, Reason: reason}
	}
	if decodeErr != nil {
		return "", &Failure{StatusCode: resp.StatusCode, Reason: genericReason}
	}
	tok := a.lookup(a.tokenField, doc)
	if tok == "" {
		return "", &Failure{StatusCode: resp.StatusCode, Reason: genericReason}
	}
	return tok, nil
}

// lookup returns the string at path, or "" when absent or not a string.
func (a *Authenticator) lookup(path string, doc any) string {
	v, err := jmes.Search(path, doc)
	if err != nil {
		return ""
	}
	s, _ := v.(string)
	return s
}
