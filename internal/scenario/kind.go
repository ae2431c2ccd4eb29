package scenario

import (
	"errors"
	"fmt"
	"strings"

	"gatewayprobe/internal/credentials"
	"gatewayprobe/pkg/config"
)

var ErrUnknownKind = errors.New("unknown scenario")

// Kind is the closed set of probe scenarios.
type Kind int

const (
	Matched Kind = iota + 1
	Impersonation
	Unauthenticated
)

var kindNames = map[Kind]string{
	Matched:         "matched-identity",
	Impersonation:   "impersonation",
	Unauthenticated: "unauthenticated",
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

func (k Kind) MarshalText() ([]byte, error) { return []byte(k.String()), nil }

func ParseKind(s string) (Kind, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for k, name := range kindNames {
		if name == s {
			return k, nil
		}
	}
	switch s {
	case "matched", "normal":
		return Matched, nil
	case "noauth", "no-auth", "none":
		return Unauthenticated, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownKind, s)
}

// Kinds lists every scenario in display order.
func Kinds() []Kind { return []Kind{Matched, Impersonation, Unauthenticated} }

// binding is what a plan resolves to: who authenticates (zero for nobody)
// and which identity is claimed at dispatch.
type binding struct {
	authAs credentials.Role
	creds  config.AgentCredentials
	claim  credentials.Role
}

type plan struct {
	attachToken bool
	resolve     func(res *credentials.Resolver, selected credentials.Role) (binding, error)
}

// plans is the scenario table; a new scenario is a new row.
var plans = map[Kind]plan{
	Matched: {
		attachToken: true,
		resolve: func(res *credentials.Resolver, selected credentials.Role) (binding, error) {
			c, err := res.Resolve(selected)
			return binding{authAs: selected, creds: c, claim: selected}, err
		},
	},
	Impersonation: {
		attachToken: true,
		resolve: func(res *credentials.Resolver, _ credentials.Role) (binding, error) {
			imp := res.ResolveImpersonation()
			return binding{authAs: imp.AuthAs, creds: imp.Credentials, claim: imp.Claim}, nil
		},
	},
	Unauthenticated: {
		resolve: func(_ *credentials.Resolver, selected credentials.Role) (binding, error) {
			return binding{claim: selected}, nil
		},
	},
}

func (b binding) authUsed() string {
	if b.authAs == 0 {
		return "None"
	}
	return b.authAs.String() + " credentials"
}
