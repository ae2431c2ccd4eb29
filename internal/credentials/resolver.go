// Package credentials maps agent roles to their configured identity/secret pairs.
package credentials

import (
	"errors"
	"fmt"
	"strings"

	"gatewayprobe/pkg/config"
)

var ErrUnknownRole = errors.New("unknown agent role")

// Role is a logical agent identity with its own credential pair.
type Role int

const (
	Coordinator Role = iota + 1
	Specialist
)

// String returns the label sent as the claimed agent type.
func (r Role) String() string {
	switch r {
	case Coordinator:
		return "Support-Coordinator"
	case Specialist:
		return "Technical-Specialist"
	}
	return fmt.Sprintf("Role(%d)", int(r))
}

func (r Role) MarshalText() ([]byte, error) { return []byte(r.String()), nil }

func (r Role) Valid() bool { return r == Coordinator || r == Specialist }

// ParseRole accepts the label or the short role name, case-insensitively.
func ParseRole(s string) (Role, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "coordinator", "support-coordinator":
		return Coordinator, nil
	case "specialist", "technical-specialist":
		return Specialist, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownRole, s)
}

// Impersonation pairs one role's credentials with another role's claim.
type Impersonation struct {
	Credentials config.AgentCredentials
	AuthAs      Role
	Claim       Role
}

type Resolver struct {
	roles map[Role]config.AgentCredentials
}

// New fails with config.ErrIncomplete before any scenario can run on partial settings.
func New(p config.Probe) (*Resolver, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return &Resolver{roles: map[Role]config.AgentCredentials{
		Coordinator: p.Coordinator,
		Specialist:  p.Specialist,
	}}, nil
}

func (r *Resolver) Resolve(role Role) (config.AgentCredentials, error) {
	c, ok := r.roles[role]
	if !ok {
		return config.AgentCredentials{}, fmt.Errorf("%w: %s", ErrUnknownRole, role)
	}
	return c, nil
}

// ResolveImpersonation always authenticates as the coordinator and claims the specialist.
func (r *Resolver) ResolveImpersonation() Impersonation {
	return Impersonation{
		Credentials: r.roles[Coordinator],
		AuthAs:      Coordinator,
		Claim:       Specialist,
	}
}
