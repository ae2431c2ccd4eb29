// Package testutil provides httptest fakes of the identity provider and the
// gateway so probe scenarios can be exercised end to end.
package testutil

import (
	"crypto/rand"
	"crypto/rsa"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jwk"
	"github.com/lestrrat-go/jwx/v2/jwt"
	"github.com/stretchr/testify/require"
)

const agentTypeClaim = "agent_type"

// TokenCall is one request received by the fake identity provider.
type TokenCall struct {
	OrgName     string `json:"orgName"`
	ClientID    string `json:"clientId"`
	AgentID     string `json:"agentId"`
	AgentSecret string `json:"agentSecret"`
}

// Agent is an identity the fake provider will issue tokens for.
type Agent struct {
	Secret string
	Type   string
}

// IdentityProvider issues RS256 JWTs bound to an agent type claim.
type IdentityProvider struct {
	*httptest.Server
	OrgName  string
	ClientID string
	Agents   map[string]Agent

	key jwk.Key
	pub jwk.Key

	mu    sync.Mutex
	calls []TokenCall
}

func NewIdentityProvider(t *testing.T, org, client string, agents map[string]Agent) *IdentityProvider {
	t.Helper()

	raw, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	key, err := jwk.FromRaw(raw)
	require.NoError(t, err)
	require.NoError(t, key.Set(jwk.KeyIDKey, "probe-test"))
	pub, err := key.PublicKey()
	require.NoError(t, err)

	idp := &IdentityProvider{OrgName: org, ClientID: client, Agents: agents, key: key, pub: pub}
	idp.Server = httptest.NewServer(http.HandlerFunc(idp.serveToken))
	t.Cleanup(idp.Close)
	return idp
}

func (p *IdentityProvider) serveToken(w http.ResponseWriter, r *http.Request) {
	var in TokenCall
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "bad json"})
		return
	}
	p.mu.Lock()
	p.calls = append(p.calls, in)
	p.mu.Unlock()

	if in.OrgName != p.OrgName || in.ClientID != p.ClientID {
		writeJSON(w, http.StatusUnauthorized, map[string]any{"error": "unknown client"})
		return
	}
	agent, ok := p.Agents[in.AgentID]
	if !ok || agent.Secret != in.AgentSecret {
		writeJSON(w, http.StatusUnauthorized, map[string]any{"error": "invalid agent credentials"})
		return
	}
	now := time.Now()
	tok, err := jwt.NewBuilder().
		Issuer(p.URL).
		Subject(in.AgentID).
		IssuedAt(now).
		Expiration(now.Add(5*time.Minute)).
		Claim(agentTypeClaim, agent.Type).
		Build()
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]any{"error": err.Error()})
		return
	}
	signed, err := jwt.Sign(tok, jwt.WithKey(jwa.RS256, p.key))
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]any{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"access_token": string(signed), "token_type": "Bearer"})
}

func (p *IdentityProvider) Calls() []TokenCall {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]TokenCall(nil), p.calls...)
}

// GatewayCall is one request received by the fake gateway.
type GatewayCall struct {
	Header http.Header
	Body   map[string]any
}

// Gateway rejects missing tokens and claims that do not match the token's agent type.
type Gateway struct {
	*httptest.Server
	idp *IdentityProvider

	mu    sync.Mutex
	calls []GatewayCall
}

func NewGateway(t *testing.T, idp *IdentityProvider) *Gateway {
	t.Helper()
	g := &Gateway{idp: idp}
	g.Server = httptest.NewServer(http.HandlerFunc(g.serveChat))
	t.Cleanup(g.Close)
	return g
}

func (g *Gateway) serveChat(w http.ResponseWriter, r *http.Request) {
	b, _ := io.ReadAll(r.Body)
	var body map[string]any
	_ = json.Unmarshal(b, &body)
	g.mu.Lock()
	g.calls = append(g.calls, GatewayCall{Header: r.Header.Clone(), Body: body})
	g.mu.Unlock()

	authz := r.Header.Get("Authorization")
	if !strings.HasPrefix(strings.ToLower(authz), "bearer ") {
		writeJSON(w, http.StatusUnauthorized, map[string]any{"error": "missing bearer"})
		return
	}
	raw := strings.TrimSpace(authz[len("Bearer "):])
	jt, err := jwt.Parse([]byte(raw), jwt.WithKey(jwa.RS256, g.idp.pub), jwt.WithValidate(true))
	if err != nil {
		writeJSON(w, http.StatusUnauthorized, map[string]any{"error": "invalid token"})
		return
	}
	typ, _ := jt.Get(agentTypeClaim)
	if s, _ := typ.(string); s != r.Header.Get("x-agent-type") {
		writeJSON(w, http.StatusForbidden, map[string]any{"error": "agent_type_mismatch"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"forwardedTo": r.Header.Get("x-target-url"),
		"choices":     []any{map[string]any{"message": map[string]any{"role": "assistant", "content": "ok"}}},
	})
}

func (g *Gateway) Calls() []GatewayCall {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]GatewayCall(nil), g.calls...)
}

// ClosedURL returns a URL nothing is listening on.
func ClosedURL(t *testing.T) string {
	t.Helper()
	srv := httptest.NewServer(http.NotFoundHandler())
	u := srv.URL
	srv.Close()
	return u
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
