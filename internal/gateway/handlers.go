package gateway

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/divyang-garg/astra-guardrails/internal/editor"
	"github.com/divyang-garg/astra-guardrails/internal/propcheck"
	"github.com/divyang-garg/astra-guardrails/internal/repairdriver"
	"github.com/divyang-garg/astra-guardrails/internal/testrunner"
)

// Handlers wires the editor service and repair driver to HTTP. Every
// endpoint takes a document by URI already open in the editor service's
// store, mirroring the original's LSP textDocument/* request shapes.
type Handlers struct {
	Editor  *editor.Service
	Driver  *repairdriver.Driver
	Logger  zerolog.Logger
	Metrics *Metrics
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, msg string) {
	writeJSON(w, status, map[string]string{"code": code, "message": msg})
}

type openDocRequest struct {
	URI  string `json:"uri"`
	Text string `json:"text"`
}

// DidOpen handles POST /documents: opens or replaces a document's text and
// returns its diagnostics, equivalent to textDocument/didOpen.
func (h *Handlers) DidOpen(w http.ResponseWriter, r *http.Request) {
	var req openDocRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "BadRequest", err.Error())
		return
	}
	diags := h.Editor.DidOpen(req.URI, req.Text, 1)
	writeJSON(w, http.StatusOK, diags)
}

// Diagnostics handles GET /diagnostics?uri=...
func (h *Handlers) Diagnostics(w http.ResponseWriter, r *http.Request) {
	uri := r.URL.Query().Get("uri")
	writeJSON(w, http.StatusOK, h.Editor.Diagnostics(uri))
}

// Format handles GET /format?uri=...
func (h *Handlers) Format(w http.ResponseWriter, r *http.Request) {
	uri := r.URL.Query().Get("uri")
	edits := h.Editor.Formatting(uri)
	if edits == nil {
		writeError(w, http.StatusNotFound, "DocumentNotFound", "no open or parseable document: "+uri)
		return
	}
	writeJSON(w, http.StatusOK, edits)
}

// CodeActions handles GET /codeActions?uri=..., reusing Diagnostics to
// build the context diagnostics the original passes alongside a range.
func (h *Handlers) CodeActions(w http.ResponseWriter, r *http.Request) {
	uri := r.URL.Query().Get("uri")
	diags := h.Editor.Diagnostics(uri)
	writeJSON(w, http.StatusOK, h.Editor.CodeActions(uri, diags))
}

type runRequest struct {
	URI            string   `json:"uri"`
	Function       string   `json:"function"`
	Args           []any    `json:"args"`
	AllowedEffects []string `json:"allowed_effects"`
}

// Run handles POST /run: evaluates a function in an already-open document.
func (h *Handlers) Run(w http.ResponseWriter, r *http.Request) {
	var req runRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "BadRequest", err.Error())
		return
	}
	allowed := req.AllowedEffects
	if len(allowed) == 0 {
		allowed = []string{"pure"}
	}
	result, err := h.Editor.RunModule(req.URI, req.Function, req.Args, allowed)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, "RuntimeFault", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"result": result})
}

type testRequest struct {
	URI            string   `json:"uri"`
	AllowedEffects []string `json:"allowed_effects"`
}

// Test handles POST /test: runs the unit test runner and property runner
// against an open document's module and returns both result sets.
func (h *Handlers) Test(w http.ResponseWriter, r *http.Request) {
	var req testRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "BadRequest", err.Error())
		return
	}
	allowed := req.AllowedEffects
	if len(allowed) == 0 {
		allowed = []string{"pure"}
	}
	mod, ok := h.Editor.Module(req.URI)
	if !ok {
		writeError(w, http.StatusNotFound, "DocumentNotFound", "no open or parseable document: "+req.URI)
		return
	}
	failures := testrunner.RunTests(mod, allowed)
	properties := propcheck.RunModuleProperties(mod, allowed)
	if h.Metrics != nil {
		for _, p := range properties {
			h.Metrics.PropcheckCasesRun.Add(float64(p.Cases))
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"test_failures":    failures,
		"property_results": properties,
	})
}

type repairRequest struct {
	URI string `json:"uri"`
}

// Repair handles POST /repair: runs the closed-loop repair driver against
// an open document's module and returns the run's id, final module, and
// per-iteration history. It does not write the repaired module back into
// the document store; callers apply the result via a follow-up DidOpen if
// they want it persisted, keeping this handler side-effect-free on failure.
func (h *Handlers) Repair(w http.ResponseWriter, r *http.Request) {
	var req repairRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "BadRequest", err.Error())
		return
	}
	mod, ok := h.Editor.Module(req.URI)
	if !ok {
		writeError(w, http.StatusNotFound, "DocumentNotFound", "no open or parseable document: "+req.URI)
		return
	}

	log := h.Logger.With().Str("request_id", middleware.GetReqID(r.Context())).Logger()
	d := *h.Driver
	d.Logger = log
	result := d.Run(r.Context(), mod)
	if h.Metrics != nil {
		h.Metrics.RepairIterations.Observe(float64(len(result.History)))
	}

	status := http.StatusOK
	if result.FinalHasErrors() {
		status = http.StatusUnprocessableEntity
	}
	writeJSON(w, status, map[string]any{
		"run_id":  result.RunID,
		"module":  result.Module,
		"history": result.History,
	})
}

// Health handles GET /health, unauthenticated, matching the teacher's
// auth-skip-list convention for health endpoints.
func Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
