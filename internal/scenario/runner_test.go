package scenario

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	promtest "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gatewayprobe/internal/auth"
	"gatewayprobe/internal/credentials"
	"gatewayprobe/internal/gateway"
	"gatewayprobe/internal/testutil"
	"gatewayprobe/pkg/config"
)

type authCall struct {
	ac               auth.Context
	agentID, secret string
}

type spyAuth struct {
	calls []authCall
	token string
	err   error
	panic any
}

func (s *spyAuth) Authenticate(_ context.Context, ac auth.Context, id, secret string) (string, error) {
	s.calls = append(s.calls, authCall{ac: ac, agentID: id, secret: secret})
	if s.panic != nil {
		panic(s.panic)
	}
	return s.token, s.err
}

type spyDispatch struct {
	calls []gateway.Request
	resp  gateway.Response
	err   error
}

func (s *spyDispatch) Dispatch(_ context.Context, req gateway.Request) (gateway.Response, error) {
	s.calls = append(s.calls, req)
	return s.resp, s.err
}

func exampleSettings() config.Probe {
	return config.Probe{
		OrgName:     "acme",
		ClientID:    "c1",
		TargetURL:   "https://gw.example/chat",
		Coordinator: config.AgentCredentials{ID: "coord-1", Secret: "s1"},
		Specialist:  config.AgentCredentials{ID: "spec-1", Secret: "s2"},
	}
}

func okDispatch() *spyDispatch {
	return &spyDispatch{resp: gateway.Response{StatusCode: http.StatusOK, Body: json.RawMessage(`{"ok":true}`)}}
}

func TestMatchedIdentity(t *testing.T) {
	a := &spyAuth{token: "T"}
	d := okDispatch()
	fixed := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	r := NewRunner(config.NewStore(exampleSettings()), a, d, WithClock(func() time.Time { return fixed }))

	res, err := r.Run(context.Background(), Matched, credentials.Coordinator)
	require.NoError(t, err)

	require.Equal(t, []authCall{{ac: auth.Context{OrgName: "acme", ClientID: "c1"}, agentID: "coord-1", secret: "s1"}}, a.calls)
	require.Len(t, d.calls, 1)
	assert.Equal(t, "T", d.calls[0].Token)
	assert.Equal(t, "Support-Coordinator", d.calls[0].ClaimedAgentType)
	assert.Equal(t, "https://gw.example/chat", d.calls[0].TargetURL)

	assert.Equal(t, Matched, res.Kind)
	assert.Equal(t, "Support-Coordinator", res.AgentType)
	assert.Equal(t, "Support-Coordinator credentials", res.AuthUsed)
	assert.Equal(t, "T", res.TokenReceived)
	assert.Equal(t, http.StatusOK, res.Status)
	assert.Equal(t, gateway.ClassSuccess, res.Class)
	assert.JSONEq(t, `{"ok":true}`, string(res.Response))
	assert.Equal(t, fixed, res.Timestamp)
	assert.NotEmpty(t, res.ID)
	assert.False(t, res.Failed())
}

func TestMatchedIdentitySpecialist(t *testing.T) {
	a := &spyAuth{token: "S"}
	d := okDispatch()
	r := NewRunner(config.NewStore(exampleSettings()), a, d)

	res, err := r.Run(context.Background(), Matched, credentials.Specialist)
	require.NoError(t, err)
	require.Equal(t, "spec-1", a.calls[0].agentID)
	require.Equal(t, "s2", a.calls[0].secret)
	require.Equal(t, "Technical-Specialist", d.calls[0].ClaimedAgentType)
	require.Equal(t, "Technical-Specialist credentials", res.AuthUsed)
}

func TestImpersonationIgnoresSelectedRole(t *testing.T) {
	for _, selected := range []credentials.Role{credentials.Coordinator, credentials.Specialist, 0} {
		a := &spyAuth{token: "T"}
		d := okDispatch()
		r := NewRunner(config.NewStore(exampleSettings()), a, d)

		res, err := r.Run(context.Background(), Impersonation, selected)
		require.NoError(t, err)

		require.Len(t, a.calls, 1)
		assert.Equal(t, "coord-1", a.calls[0].agentID)
		assert.Equal(t, "s1", a.calls[0].secret)
		require.Len(t, d.calls, 1)
		assert.Equal(t, "Technical-Specialist", d.calls[0].ClaimedAgentType)
		assert.Equal(t, "T", d.calls[0].Token)
		assert.Equal(t, "Technical-Specialist", res.AgentType)
		assert.Equal(t, "Support-Coordinator credentials", res.AuthUsed)
	}
}

func TestUnauthenticatedSkipsAuthentication(t *testing.T) {
	a := &spyAuth{token: "T"}
	d := &spyDispatch{resp: gateway.Response{StatusCode: http.StatusUnauthorized, Body: json.RawMessage(`{"error":"missing bearer"}`)}}
	r := NewRunner(config.NewStore(exampleSettings()), a, d)

	res, err := r.Run(context.Background(), Unauthenticated, credentials.Specialist)
	require.NoError(t, err)

	require.Empty(t, a.calls)
	require.Len(t, d.calls, 1)
	assert.Empty(t, d.calls[0].Token)
	assert.Equal(t, "Technical-Specialist", d.calls[0].ClaimedAgentType)
	assert.Empty(t, res.TokenReceived)
	assert.Equal(t, "None", res.AuthUsed)
	assert.Equal(t, gateway.ClassClientError, res.Class)
}

func TestAuthenticationFailureIsRecorded(t *testing.T) {
	a := &spyAuth{err: &auth.Failure{StatusCode: http.StatusUnauthorized, Reason: "invalid agent credentials"}}
	d := okDispatch()
	r := NewRunner(config.NewStore(exampleSettings()), a, d)

	res, err := r.Run(context.Background(), Matched, credentials.Coordinator)
	require.NoError(t, err)

	require.Empty(t, d.calls)
	assert.Equal(t, SentinelStatus, res.Status)
	assert.Equal(t, gateway.ClassError, res.Class)
	assert.Empty(t, res.TokenReceived)
	assert.JSONEq(t, `{"error":"invalid agent credentials"}`, string(res.Response))
	require.NotNil(t, res.Problem)
	assert.Contains(t, res.Problem.Type, "authentication-failed")
	assert.Equal(t, 1, r.History().Len())
}

func TestDispatchFailureIsRecorded(t *testing.T) {
	a := &spyAuth{token: "T"}
	d := &spyDispatch{err: errors.New("executing request: connection refused")}
	r := NewRunner(config.NewStore(exampleSettings()), a, d)

	res, err := r.Run(context.Background(), Impersonation, credentials.Coordinator)
	require.NoError(t, err)
	assert.Equal(t, SentinelStatus, res.Status)
	assert.Empty(t, res.TokenReceived)
	assert.JSONEq(t, `{"error":"executing request: connection refused"}`, string(res.Response))
	assert.Contains(t, res.Problem.Type, "dispatch-failed")
}

func TestPanicIsRecorded(t *testing.T) {
	a := &spyAuth{panic: "boom"}
	r := NewRunner(config.NewStore(exampleSettings()), a, okDispatch())

	res, err := r.Run(context.Background(), Matched, credentials.Coordinator)
	require.NoError(t, err)
	assert.Equal(t, SentinelStatus, res.Status)
	assert.JSONEq(t, `{"error":"boom"}`, string(res.Response))
	assert.Equal(t, "Support-Coordinator", res.AgentType)
	assert.Equal(t, 1, r.History().Len())
}

func TestIncompleteSettingsBlockEverything(t *testing.T) {
	s := exampleSettings()
	s.TargetURL = ""
	for _, k := range Kinds() {
		a := &spyAuth{token: "T"}
		d := okDispatch()
		r := NewRunner(config.NewStore(s), a, d)

		_, err := r.Run(context.Background(), k, credentials.Coordinator)
		require.ErrorIs(t, err, config.ErrIncomplete, k.String())
		require.Empty(t, a.calls)
		require.Empty(t, d.calls)
		require.Zero(t, r.History().Len())
	}
}

func TestUnknownSelectedRole(t *testing.T) {
	a := &spyAuth{token: "T"}
	d := okDispatch()
	r := NewRunner(config.NewStore(exampleSettings()), a, d)

	_, err := r.Run(context.Background(), Matched, credentials.Role(9))
	require.ErrorIs(t, err, credentials.ErrUnknownRole)
	require.Empty(t, a.calls)
	require.Zero(t, r.History().Len())
}

func TestUnknownKindPanics(t *testing.T) {
	r := NewRunner(config.NewStore(exampleSettings()), &spyAuth{}, okDispatch())
	require.Panics(t, func() { _, _ = r.Run(context.Background(), Kind(99), credentials.Coordinator) })
}

func TestHistoryMostRecentFirst(t *testing.T) {
	r := NewRunner(config.NewStore(exampleSettings()), &spyAuth{token: "T"}, okDispatch())
	for _, k := range Kinds() {
		_, err := r.Run(context.Background(), k, credentials.Coordinator)
		require.NoError(t, err)
	}
	got := r.History().List()
	require.Len(t, got, 3)
	require.Equal(t, []Kind{Unauthenticated, Impersonation, Matched}, []Kind{got[0].Kind, got[1].Kind, got[2].Kind})

	r.History().Clear()
	require.Zero(t, r.History().Len())
	require.Len(t, got, 3)
}

func TestMetricsObserved(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)
	r := NewRunner(config.NewStore(exampleSettings()), &spyAuth{token: "T"}, okDispatch(), WithMetrics(m))

	_, err := r.Run(context.Background(), Matched, credentials.Coordinator)
	require.NoError(t, err)
	_, err = r.Run(context.Background(), Matched, credentials.Specialist)
	require.NoError(t, err)

	require.Equal(t, float64(2), promtest.ToFloat64(m.runs.WithLabelValues("matched-identity", "success")))
}

func TestResultJSON(t *testing.T) {
	res := Result{ID: "1", Kind: Impersonation, AgentType: "Technical-Specialist", Response: json.RawMessage(`{}`), Status: 403, Class: gateway.ClassClientError}
	b, err := json.Marshal(res)
	require.NoError(t, err)

	var m map[string]any
	require.NoError(t, json.Unmarshal(b, &m))
	require.Equal(t, "impersonation", m["scenario"])
	require.Equal(t, "client_error", m["class"])
	_, hasToken := m["tokenReceived"]
	require.False(t, hasToken)
}

// End to end against the fake identity provider and a gateway that enforces
// the authenticated identity.
func TestScenariosAgainstEnforcingGateway(t *testing.T) {
	idp := testutil.NewIdentityProvider(t, "acme", "c1", map[string]testutil.Agent{
		"coord-1": {Secret: "s1", Type: "Support-Coordinator"},
		"spec-1":  {Secret: "s2", Type: "Technical-Specialist"},
	})
	gw := testutil.NewGateway(t, idp)

	r := NewRunner(config.NewStore(exampleSettings()), auth.New(idp.URL), gateway.New(gw.URL))

	matched, err := r.Run(context.Background(), Matched, credentials.Coordinator)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, matched.Status)

	imp, err := r.Run(context.Background(), Impersonation, credentials.Specialist)
	require.NoError(t, err)
	require.Equal(t, http.StatusForbidden, imp.Status)
	require.JSONEq(t, `{"error":"agent_type_mismatch"}`, string(imp.Response))
	require.NotEmpty(t, imp.TokenReceived)

	none, err := r.Run(context.Background(), Unauthenticated, credentials.Coordinator)
	require.NoError(t, err)
	require.Equal(t, http.StatusUnauthorized, none.Status)

	calls := gw.Calls()
	require.Len(t, calls, 3)
	_, present := calls[2].Header["Authorization"]
	require.False(t, present)
	require.Equal(t, "https://gw.example/chat", calls[0].Header.Get("x-target-url"))

	tokens := idp.Calls()
	require.Len(t, tokens, 2)
	require.Equal(t, "coord-1", tokens[0].AgentID)
	require.Equal(t, "coord-1", tokens[1].AgentID)
}

func TestUnreachableEndpointsStillRecord(t *testing.T) {
	closed := testutil.ClosedURL(t)
	r := NewRunner(config.NewStore(exampleSettings()), auth.New(closed), gateway.New(closed))

	for _, k := range Kinds() {
		res, err := r.Run(context.Background(), k, credentials.Coordinator)
		require.NoError(t, err, k.String())
		require.Equal(t, SentinelStatus, res.Status, k.String())
		require.True(t, res.Failed(), k.String())
	}
	require.Equal(t, 3, r.History().Len())
}

func TestCanceledContextIsRecorded(t *testing.T) {
	idp := testutil.NewIdentityProvider(t, "acme", "c1", map[string]testutil.Agent{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	r := NewRunner(config.NewStore(exampleSettings()), auth.New(idp.URL), gateway.New(idp.URL))
	res, err := r.Run(ctx, Matched, credentials.Coordinator)
	require.NoError(t, err)
	require.Equal(t, SentinelStatus, res.Status)
	require.Contains(t, res.Problem.Type, "authentication-failed")
}

func TestParseKind(t *testing.T) {
	for in, want := range map[string]Kind{
		"matched-identity": Matched,
		"impersonation":    Impersonation,
		"Unauthenticated":  Unauthenticated,
		"noauth":           Unauthenticated,
		"normal":           Matched,
	} {
		got, err := ParseKind(in)
		require.NoError(t, err, in)
		require.Equal(t, want, got, in)
	}
	_, err := ParseKind("reverse-impersonation")
	require.ErrorIs(t, err, ErrUnknownKind)
}
