package repairdriver

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/divyang-garg/astra-guardrails/internal/apperr"
	"github.com/divyang-garg/astra-guardrails/internal/pointer"
)

// PatchProvider proposes a JSON Patch for an already-built repair prompt.
// The driver only ever calls this after the deterministic suggester (§4.I)
// has nothing left to offer.
type PatchProvider interface {
	ProposePatches(ctx context.Context, prompt string) ([]pointer.Op, error)
}

// MockProvider always proposes nothing; used in tests and as the default
// when no real provider is configured.
type MockProvider struct{}

func (MockProvider) ProposePatches(ctx context.Context, prompt string) ([]pointer.Op, error) {
	return nil, nil
}

// CmdProvider shells out to an external command, writing prompt to its
// stdin and expecting a JSON array of patch ops (or {"patch": [...]}) on
// stdout.
type CmdProvider struct {
	Command []string
	Timeout time.Duration
}

// NewCmdProvider splits cmd the way a shell would for simple invocations
// (no quoting support, matching the original's `cmd.split()`).
func NewCmdProvider(cmd string, timeout time.Duration) (*CmdProvider, error) {
	fields := strings.Fields(cmd)
	if len(fields) == 0 {
		return nil, apperr.NewDriver("cmd provider requires a non-empty command")
	}
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &CmdProvider{Command: fields, Timeout: timeout}, nil
}

func (p *CmdProvider) ProposePatches(ctx context.Context, prompt string) ([]pointer.Op, error) {
	ctx, cancel := context.WithTimeout(ctx, p.Timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, p.Command[0], p.Command[1:]...)
	cmd.Stdin = strings.NewReader(prompt)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return nil, apperr.NewDriver(fmt.Sprintf("LLM cmd provider failed: %v: %s", err, stderr.String()))
	}

	out := strings.TrimSpace(stdout.String())
	if out == "" {
		return nil, nil
	}

	var raw any
	if err := json.Unmarshal([]byte(out), &raw); err != nil {
		return nil, apperr.NewDriver(fmt.Sprintf("LLM cmd provider produced invalid JSON: %v", err))
	}
	if m, isMap := raw.(map[string]any); isMap {
		if p, has := m["patch"]; has {
			raw = p
		}
	}
	list, isList := raw.([]any)
	if !isList {
		return nil, apperr.NewDriver("LLM cmd provider must output a JSON array")
	}

	ops := make([]pointer.Op, 0, len(list))
	for _, e := range list {
		var op pointer.Op
		b, err := json.Marshal(e)
		if err != nil {
			return nil, apperr.NewDriver(fmt.Sprintf("invalid patch op: %v", err))
		}
		if err := json.Unmarshal(b, &op); err != nil {
			return nil, apperr.NewDriver(fmt.Sprintf("invalid patch op: %v", err))
		}
		if _, hasValue := e.(map[string]any)["value"]; hasValue {
			op.HasV = true
		}
		ops = append(ops, op)
	}
	return ops, nil
}

// MakeProvider builds a PatchProvider by kind ("mock" | "cmd"), mirroring
// the original's make_provider dispatch. "openai" is intentionally not
// wired: this port has no sanctioned outbound LLM dependency in the
// examples pack, so a network-calling provider would be a fabricated one.
func MakeProvider(kind, cmd string, timeout time.Duration) (PatchProvider, error) {
	switch strings.ToLower(strings.TrimSpace(kind)) {
	case "", "mock":
		return MockProvider{}, nil
	case "cmd":
		return NewCmdProvider(cmd, timeout)
	default:
		return nil, apperr.NewDriver("unknown provider kind: " + kind)
	}
}
