// Package scenario runs the three agent-authentication probes against a
// gateway and records every outcome as a Result.
package scenario

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"gatewayprobe/internal/auth"
	"gatewayprobe/internal/credentials"
	"gatewayprobe/internal/gateway"
	"gatewayprobe/pkg/config"
	"gatewayprobe/pkg/problems"
)

type Authenticator interface {
	Authenticate(ctx context.Context, ac auth.Context, agentID, agentSecret string) (string, error)
}

type Dispatcher interface {
	Dispatch(ctx context.Context, req gateway.Request) (gateway.Response, error)
}

// Settings is the configuration collaborator; it is read once per run.
type Settings interface {
	Probe() config.Probe
}

type Runner struct {
	mu       sync.Mutex // one scenario in flight
	settings Settings
	auth     Authenticator
	dispatch Dispatcher
	history  *History
	metrics  *Metrics
	log      *zap.SugaredLogger
	tracer   trace.Tracer
	now      func() time.Time
}

type Option func(*Runner)

func WithLogger(log *zap.SugaredLogger) Option { return func(r *Runner) { r.log = log } }

func WithMetrics(m *Metrics) Option { return func(r *Runner) { r.metrics = m } }

func WithHistory(h *History) Option { return func(r *Runner) { r.history = h } }

func WithClock(now func() time.Time) Option { return func(r *Runner) { r.now = now } }

func NewRunner(settings Settings, a Authenticator, d Dispatcher, opts ...Option) *Runner {
	r := &Runner{
		settings: settings,
		auth:     a,
		dispatch: d,
		history:  NewHistory(),
		log:      zap.NewNop().Sugar(),
		tracer:   otel.Tracer("gatewayprobe/scenario"),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *Runner) History() *History { return r.history }

// Run executes one scenario. The only errors returned are precondition
// failures (incomplete settings, unknown role); in that case nothing was sent
// and nothing was recorded. Every other outcome is a recorded Result.
func (r *Runner) Run(ctx context.Context, kind Kind, selected credentials.Role) (Result, error) {
	p, ok := plans[kind]
	if !ok {
		panic(fmt.Sprintf("scenario: unknown kind %d", int(kind)))
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	settings := r.settings.Probe()
	res, err := credentials.New(settings)
	if err != nil {
		r.log.Warnw("scenario not started", "scenario", kind.String(), "err", err)
		return Result{}, err
	}
	if kind != Impersonation && !selected.Valid() {
		return Result{}, fmt.Errorf("%w: %s", credentials.ErrUnknownRole, selected)
	}
	b, err := p.resolve(res, selected)
	if err != nil {
		return Result{}, err
	}

	ctx, span := r.tracer.Start(ctx, "scenario.run", trace.WithAttributes(
		attribute.String("probe.scenario", kind.String()),
		attribute.String("probe.claimed_agent_type", b.claim.String()),
		attribute.Bool("probe.token_attached", p.attachToken),
	))
	defer span.End()

	start := r.now()
	out := r.execute(ctx, kind, p, b, settings)
	out.Timestamp = r.now()

	span.SetAttributes(attribute.Int("http.status_code", out.Status))
	if out.Failed() {
		span.SetStatus(codes.Error, out.Problem.Detail)
	}
	r.metrics.observe(kind, out.Class, out.Timestamp.Sub(start))
	r.history.Prepend(out)

	kv := []any{
		"id", out.ID,
		"scenario", kind.String(),
		"agentType", out.AgentType,
		"authUsed", out.AuthUsed,
		"tokenAttached", out.TokenReceived != "",
		"status", out.Status,
		"class", out.Class,
	}
	if out.Failed() {
		r.log.Warnw("scenario failed", append(kv, "problem", out.Problem.Type, "detail", out.Problem.Detail)...)
	} else {
		r.log.Infow("scenario recorded", kv...)
	}
	return out, nil
}

func (r *Runner) execute(ctx context.Context, kind Kind, p plan, b binding, s config.Probe) (out Result) {
	out = Result{
		ID:        uuid.NewString(),
		Kind:      kind,
		AgentType: b.claim.String(),
		AuthUsed:  b.authUsed(),
	}
	defer func() {
		if rec := recover(); rec != nil {
			out = out.withFailure(problems.DispatchFailed, "Scenario aborted", fmt.Sprint(rec))
		}
	}()

	var token string
	if p.attachToken {
		tok, err := r.auth.Authenticate(ctx, auth.Context{OrgName: s.OrgName, ClientID: s.ClientID}, b.creds.ID, b.creds.Secret)
		if err != nil {
			return out.withFailure(problems.AuthenticationFailed, "Authentication failed", err.Error())
		}
		token = tok
		out.TokenReceived = tok
	}

	resp, err := r.dispatch.Dispatch(ctx, gateway.Request{
		Token:            token,
		ClaimedAgentType: out.AgentType,
		TargetURL:        s.TargetURL,
		Messages:         gateway.ProbeMessages(out.AgentType),
	})
	if err != nil {
		return out.withFailure(problems.DispatchFailed, "Gateway request failed", err.Error())
	}
	out.Status = resp.StatusCode
	out.Class = gateway.Classify(resp.StatusCode)
	out.Response = resp.Body
	return out
}
