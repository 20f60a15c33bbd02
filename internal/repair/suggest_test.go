package repair

import (
	"testing"

	"github.com/stretchr/testify/suite"

	"github.com/divyang-garg/astra-guardrails/internal/apperr"
)

type SuggestTestSuite struct {
	suite.Suite
}

func TestSuggestTestSuite(t *testing.T) {
	suite.Run(t, new(SuggestTestSuite))
}

func repairFn(name string, effects []string, body []any) map[string]any {
	out := map[string]any{"name": name, "params": []any{}, "body": body}
	if effects != nil {
		list := make([]any, len(effects))
		for i, e := range effects {
			list[i] = e
		}
		out["effects"] = list
	}
	return out
}

func repairModule(fns ...map[string]any) map[string]any {
	list := make([]any, len(fns))
	for i, f := range fns {
		list[i] = f
	}
	return map[string]any{"functions": list}
}

func (s *SuggestTestSuite) TestMissingReturnPatchAppendsNullReturn() {
	mod := repairModule(repairFn("f", nil, []any{}))
	issues := []apperr.Issue{{Code: "MissingReturn", Pointer: "/functions/0"}}

	patches := SuggestPatches(mod, issues)
	s.Len(patches, 1)
	s.Equal("add", patches[0].Op)
	s.Equal("/functions/0/body/-", patches[0].Path)
}

func (s *SuggestTestSuite) TestNotPurePatchRemovesPureFromEffects() {
	mod := repairModule(repairFn("f", []string{"pure", "io.print"}, []any{}))
	issues := []apperr.Issue{{Code: "NotPure", Pointer: "/functions/0/effects"}}

	patches := SuggestPatches(mod, issues)
	s.Len(patches, 1)
	s.Equal("remove", patches[0].Op)
	s.Equal("/functions/0/effects/0", patches[0].Path)
}

func (s *SuggestTestSuite) TestMissingEffectPatchAddsRequiredEffect() {
	inner := repairFn("logger", []string{"io.print"}, []any{
		map[string]any{"expr": map[string]any{"call": map[string]any{"fn": "print", "args": []any{"hi"}}}},
		map[string]any{"return": true},
	})
	outer := repairFn("caller", nil, []any{
		map[string]any{"return": map[string]any{"call": map[string]any{"fn": "logger", "args": []any{}}}},
	})
	mod := repairModule(inner, outer)
	issues := []apperr.Issue{{Code: "MissingEffect", Pointer: "/functions/1/effects"}}

	patches := SuggestPatches(mod, issues)
	s.Len(patches, 1)
	s.Equal("replace", patches[0].Op)
	s.Equal("/functions/1/effects", patches[0].Path)
	newEff := patches[0].Value.([]any)
	s.Contains(newEff, "io.print")
}

func (s *SuggestTestSuite) TestUnrelatedIssueCodesProduceNoPatches() {
	mod := repairModule(repairFn("f", nil, []any{}))
	issues := []apperr.Issue{{Code: "UndefinedVariable", Pointer: "/functions/0/body/0"}}

	patches := SuggestPatches(mod, issues)
	s.Empty(patches)
}

func (s *SuggestTestSuite) TestApplySuggestionsLeavesOriginalModuleUntouched() {
	mod := repairModule(repairFn("f", nil, []any{}))
	issues := []apperr.Issue{{Code: "MissingReturn", Pointer: "/functions/0"}}

	patched, err := ApplySuggestions(mod, issues)
	s.NoError(err)

	origBody := mod["functions"].([]any)[0].(map[string]any)["body"].([]any)
	s.Len(origBody, 0)

	patchedBody := patched["functions"].([]any)[0].(map[string]any)["body"].([]any)
	s.Len(patchedBody, 1)
}

func (s *SuggestTestSuite) TestApplySuggestionsNoPatchesReturnsSameModule() {
	mod := repairModule(repairFn("f", nil, []any{
		map[string]any{"return": true},
	}))
	patched, err := ApplySuggestions(mod, nil)
	s.NoError(err)
	s.Equal(mod, patched)
}

func (s *SuggestTestSuite) TestDedupeRemovesDuplicatePatches() {
	mod := repairModule(repairFn("f", nil, []any{}), repairFn("g", nil, []any{}))
	issues := []apperr.Issue{
		{Code: "MissingReturn", Pointer: "/functions/0"},
		{Code: "MissingReturn", Pointer: "/functions/0"},
	}
	patches := SuggestPatches(mod, issues)
	s.Len(patches, 1)
}
