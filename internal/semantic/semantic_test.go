package semantic

import (
	"testing"

	"github.com/stretchr/testify/suite"

	"github.com/divyang-garg/astra-guardrails/internal/apperr"
)

type SemanticTestSuite struct {
	suite.Suite
}

func TestSemanticTestSuite(t *testing.T) {
	suite.Run(t, new(SemanticTestSuite))
}

func fn(name string, params []any, body []any) map[string]any {
	return map[string]any{"name": name, "params": params, "body": body}
}

func module(fns ...map[string]any) map[string]any {
	list := make([]any, len(fns))
	for i, f := range fns {
		list[i] = f
	}
	return map[string]any{"functions": list}
}

func (s *SemanticTestSuite) TestMissingReturnDetected() {
	mod := module(fn("no_return", []any{"a"}, []any{
		map[string]any{"expr": map[string]any{"var": "a"}},
	}))
	issues := CheckModule(mod)
	s.True(hasCode(*issues, "MissingReturn"))
}

func (s *SemanticTestSuite) TestAlwaysReturnsViaIfBothBranches() {
	mod := module(fn("choose", []any{"a"}, []any{
		map[string]any{"if": map[string]any{
			"cond": map[string]any{"var": "a"},
			"then": []any{map[string]any{"return": int64(1)}},
			"else": []any{map[string]any{"return": int64(0)}},
		}},
	}))
	issues := CheckModule(mod)
	s.False(hasCode(*issues, "MissingReturn"))
}

func (s *SemanticTestSuite) TestUndefinedVariable() {
	mod := module(fn("uses_undefined", []any{"a"}, []any{
		map[string]any{"return": map[string]any{"var": "b"}},
	}))
	issues := CheckModule(mod)
	s.True(hasCode(*issues, "UndefinedVariable"))
}

func (s *SemanticTestSuite) TestUnreachableStatementAfterReturn() {
	mod := module(fn("dead_code", []any{"a"}, []any{
		map[string]any{"return": map[string]any{"var": "a"}},
		map[string]any{"expr": map[string]any{"var": "a"}},
	}))
	issues := CheckModule(mod)
	s.True(hasCode(*issues, "UnreachableStatement"))
}

func (s *SemanticTestSuite) TestReservedParamName() {
	mod := module(fn("uses_result", []any{"result"}, []any{
		map[string]any{"return": map[string]any{"var": "result"}},
	}))
	issues := CheckModule(mod)
	s.True(hasCode(*issues, "ReservedName"))
}

func (s *SemanticTestSuite) TestRebindOnSamePath() {
	mod := module(fn("rebinds", []any{"a"}, []any{
		map[string]any{"let": map[string]any{"name": "a", "expr": int64(1)}},
		map[string]any{"return": map[string]any{"var": "a"}},
	}))
	issues := CheckModule(mod)
	s.True(hasCode(*issues, "Rebind"))
}

func (s *SemanticTestSuite) TestArityMismatchOnCall() {
	mod := module(fn("bad_call", nil, []any{
		map[string]any{"return": map[string]any{"call": map[string]any{
			"fn": "add", "args": []any{int64(1)},
		}}},
	}))
	issues := CheckModule(mod)
	s.True(hasCode(*issues, "ArityMismatch"))
}

func (s *SemanticTestSuite) TestUnknownFunctionCall() {
	mod := module(fn("calls_ghost", nil, []any{
		map[string]any{"return": map[string]any{"call": map[string]any{
			"fn": "ghost_fn", "args": []any{},
		}}},
	}))
	issues := CheckModule(mod)
	s.True(hasCode(*issues, "UnknownFunctionCall"))
}

func (s *SemanticTestSuite) TestHigherOrderMatchingArityHasNoMismatch() {
	single := fn("single_arg", []any{"x"}, []any{
		map[string]any{"return": map[string]any{"var": "x"}},
	})
	caller := fn("calls_map", []any{"xs"}, []any{
		map[string]any{"return": map[string]any{"call": map[string]any{
			"fn":   "list_map",
			"args": []any{"single_arg", map[string]any{"var": "xs"}},
		}}},
	})
	mod := module(single, caller)
	issues := CheckModule(mod)
	s.False(hasCode(*issues, "ArityMismatch"))
}

func (s *SemanticTestSuite) TestCleanModuleHasNoIssues() {
	mod := module(fn("id", []any{"x"}, []any{
		map[string]any{"return": map[string]any{"var": "x"}},
	}))
	issues := CheckModule(mod)
	s.Empty(*issues)
}

func hasCode(issues apperr.StaticIssues, code string) bool {
	for _, i := range issues {
		if i.Code == code {
			return true
		}
	}
	return false
}
