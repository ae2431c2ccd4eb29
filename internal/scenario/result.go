package scenario

import (
	"encoding/json"
	"sync"
	"time"

	"gatewayprobe/internal/gateway"
	"gatewayprobe/pkg/problems"
)

// SentinelStatus is recorded when no gateway response was obtained.
const SentinelStatus = 500

// Result is the normalized outcome of one scenario run, success or failure.
type Result struct {
	ID            string            `json:"id"`
	Kind          Kind              `json:"scenario"`
	AgentType     string            `json:"agentType"`
	AuthUsed      string            `json:"authUsed"`
	TokenReceived string            `json:"tokenReceived,omitempty"`
	Response      json.RawMessage   `json:"response"`
	Status        int               `json:"status"`
	Class         gateway.Class     `json:"class"`
	Problem       *problems.Problem `json:"problem,omitempty"`
	Timestamp     time.Time         `json:"timestamp"`
}

// Failed reports whether the result was synthesized from an auth or transport failure.
func (r Result) Failed() bool { return r.Problem != nil }

func (r Result) withFailure(slug, title, reason string) Result {
	body, _ := json.Marshal(map[string]string{"error": reason})
	r.TokenReceived = ""
	r.Response = body
	r.Status = SentinelStatus
	r.Class = gateway.Classify(SentinelStatus)
	r.Problem = problems.New(slug, title, reason)
	return r
}

// History keeps results most recent first. It is unbounded until cleared.
type History struct {
	mu    sync.RWMutex
	items []Result
}

func NewHistory() *History { return &History{} }

func (h *History) Prepend(r Result) {
	h.mu.Lock()
	h.items = append([]Result{r}, h.items...)
	h.mu.Unlock()
}

// List returns a copy, so callers may keep it across later runs.
func (h *History) List() []Result {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]Result, len(h.items))
	copy(out, h.items)
	return out
}

func (h *History) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.items)
}

func (h *History) Clear() {
	h.mu.Lock()
	h.items = nil
	h.mu.Unlock()
}
