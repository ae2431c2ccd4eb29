package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

// MaskedSecret replaces secret values in Redacted copies.
const MaskedSecret = "***"

// ErrIncomplete is matched by errors.Is for any *IncompleteError.
var ErrIncomplete = errors.New("configuration incomplete")

// AgentCredentials is the identity/secret pair issued to one agent role.
type AgentCredentials struct {
	ID     string `json:"agentId" yaml:"agent_id"`
	Secret string `json:"agentSecret,omitempty" yaml:"agent_secret"`
}

// Probe holds the settings every scenario needs before it may touch the network.
type Probe struct {
	OrgName     string           `json:"orgName" yaml:"org_name"`
	ClientID    string           `json:"clientId" yaml:"client_id"`
	TargetURL   string           `json:"targetUrl" yaml:"target_url"`
	Coordinator AgentCredentials `json:"coordinator" yaml:"coordinator"`
	Specialist  AgentCredentials `json:"specialist" yaml:"specialist"`
}

// IncompleteError lists the settings that are missing.
type IncompleteError struct {
	Missing []string
}

func (e *IncompleteError) Error() string {
	return fmt.Sprintf("%s: missing %s", ErrIncomplete, strings.Join(e.Missing, ", "))
}

func (e *IncompleteError) Is(target error) bool { return target == ErrIncomplete }

// Validate reports every required field that is blank.
func (p Probe) Validate() error {
	var missing []string
	check := func(name, v string) {
		if strings.TrimSpace(v) == "" {
			missing = append(missing, name)
		}
	}
	check("orgName", p.OrgName)
	check("clientId", p.ClientID)
	check("targetUrl", p.TargetURL)
	check("coordinator.agentId", p.Coordinator.ID)
	check("coordinator.agentSecret", p.Coordinator.Secret)
	check("specialist.agentId", p.Specialist.ID)
	check("specialist.agentSecret", p.Specialist.Secret)
	if len(missing) > 0 {
		return &IncompleteError{Missing: missing}
	}
	return nil
}

// Redacted returns a copy safe to log or serve; secrets are masked when set.
func (p Probe) Redacted() Probe {
	mask := func(s string) string {
		if s == "" {
			return ""
		}
		return MaskedSecret
	}
	p.Coordinator.Secret = mask(p.Coordinator.Secret)
	p.Specialist.Secret = mask(p.Specialist.Secret)
	return p
}

// LoadProbe reads the optional YAML settings file and lets PROBE_* env vars
// override individual fields.
func LoadProbe(path string) (Probe, error) {
	var p Probe
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return Probe{}, fmt.Errorf("read settings: %w", err)
		}
		if err := yaml.Unmarshal(b, &p); err != nil {
			return Probe{}, fmt.Errorf("yaml parse: %w", err)
		}
	}
	p.OrgName = env("PROBE_ORG_NAME", p.OrgName)
	p.ClientID = env("PROBE_CLIENT_ID", p.ClientID)
	p.TargetURL = env("PROBE_TARGET_URL", p.TargetURL)
	p.Coordinator.ID = env("PROBE_COORDINATOR_ID", p.Coordinator.ID)
	p.Coordinator.Secret = env("PROBE_COORDINATOR_SECRET", p.Coordinator.Secret)
	p.Specialist.ID = env("PROBE_SPECIALIST_ID", p.Specialist.ID)
	p.Specialist.Secret = env("PROBE_SPECIALIST_SECRET", p.Specialist.Secret)
	return p, nil
}

// Store is the live settings holder shared by the drivers and the runner.
type Store struct {
	mu sync.RWMutex
	p  Probe
}

func NewStore(p Probe) *Store { return &Store{p: p} }

func (s *Store) Probe() Probe {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.p
}

func (s *Store) Replace(p Probe) {
	s.mu.Lock()
	s.p = p
	s.mu.Unlock()
}
