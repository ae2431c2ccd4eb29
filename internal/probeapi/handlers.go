package probeapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"gatewayprobe/internal/credentials"
	"gatewayprobe/internal/scenario"
	"gatewayprobe/pkg/config"
	"gatewayprobe/pkg/middleware"
	"gatewayprobe/pkg/problems"
)

func (a *App) getConfig(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, a.store.Probe().Redacted(), http.StatusOK)
}

// putConfig replaces the probe settings. A secret sent back masked keeps the stored value.
func (a *App) putConfig(w http.ResponseWriter, r *http.Request) {
	var in config.Probe
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeProblem(w, http.StatusBadRequest, problems.New("bad-request", "bad json", err.Error()))
		return
	}
	cur := a.store.Probe()
	if in.Coordinator.Secret == config.MaskedSecret {
		in.Coordinator.Secret = cur.Coordinator.Secret
	}
	if in.Specialist.Secret == config.MaskedSecret {
		in.Specialist.Secret = cur.Specialist.Secret
	}
	a.store.Replace(in)

	complete := in.Validate() == nil
	a.log.Infow("probe settings replaced", "org", in.OrgName, "clientId", in.ClientID, "target", in.TargetURL, "complete", complete)
	writeJSON(w, in.Redacted(), http.StatusOK)
}

func (a *App) listScenarios(w http.ResponseWriter, r *http.Request) {
	kinds := scenario.Kinds()
	out := make([]string, 0, len(kinds))
	for _, k := range kinds {
		out = append(out, k.String())
	}
	writeJSON(w, map[string]any{"scenarios": out}, http.StatusOK)
}

// runScenario executes one probe. ?role selects the agent for matched-identity
// and unauthenticated; impersonation ignores it.
func (a *App) runScenario(w http.ResponseWriter, r *http.Request) {
	kind, err := scenario.ParseKind(chi.URLParam(r, "kind"))
	if err != nil {
		writeProblem(w, http.StatusBadRequest, problems.New("unknown-scenario", "Unknown scenario", err.Error()))
		return
	}
	role := credentials.Coordinator
	if v := strings.TrimSpace(r.URL.Query().Get("role")); v != "" {
		if role, err = credentials.ParseRole(v); err != nil {
			writeProblem(w, http.StatusBadRequest, problems.New("unknown-role", "Unknown agent role", err.Error()))
			return
		}
	}

	res, err := a.runner.Run(r.Context(), kind, role)
	switch {
	case errors.Is(err, config.ErrIncomplete):
		writeProblem(w, http.StatusPreconditionFailed, problems.New(problems.ConfigurationIncomplete, "Configuration incomplete", err.Error()))
		return
	case err != nil:
		writeProblem(w, http.StatusBadRequest, problems.New("bad-request", "Scenario rejected", err.Error()))
		return
	}
	a.log.Debugw("scenario served", "id", res.ID, "reqid", middleware.RequestIDFrom(r.Context()))
	writeJSON(w, res, http.StatusCreated)
}

func (a *App) listResults(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]any{"results": a.runner.History().List()}, http.StatusOK)
}

func (a *App) clearResults(w http.ResponseWriter, r *http.Request) {
	a.runner.History().Clear()
	w.WriteHeader(http.StatusNoContent)
}

func writeJSON(w http.ResponseWriter, v any, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeProblem(w http.ResponseWriter, status int, p *problems.Problem) {
	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(p)
}
