package testrunner

import (
	"testing"

	"github.com/stretchr/testify/suite"
)

type TestRunnerTestSuite struct {
	suite.Suite
}

func TestTestRunnerTestSuite(t *testing.T) {
	suite.Run(t, new(TestRunnerTestSuite))
}

func runnerFn(name string, params []string, body []any, tests []any) map[string]any {
	plist := make([]any, len(params))
	for i, p := range params {
		plist[i] = p
	}
	out := map[string]any{"name": name, "params": plist, "body": body}
	if tests != nil {
		out["tests"] = tests
	}
	return out
}

func runnerModule(moduleTests []any, fns ...map[string]any) map[string]any {
	list := make([]any, len(fns))
	for i, f := range fns {
		list[i] = f
	}
	mod := map[string]any{"functions": list}
	if moduleTests != nil {
		mod["tests"] = moduleTests
	}
	return mod
}

func addTwoFn() map[string]any {
	return runnerFn("add_two", []string{"a", "b"}, []any{
		map[string]any{"return": map[string]any{"call": map[string]any{
			"fn": "add", "args": []any{map[string]any{"var": "a"}, map[string]any{"var": "b"}},
		}}},
	}, nil)
}

func (s *TestRunnerTestSuite) TestModuleLevelTestPasses() {
	mod := runnerModule([]any{
		map[string]any{"fn": "add_two", "args": []any{int64(2), int64(3)}, "expect": int64(5)},
	}, addTwoFn())

	failures := RunTests(mod, nil)
	s.Empty(failures)
}

func (s *TestRunnerTestSuite) TestModuleLevelTestFails() {
	mod := runnerModule([]any{
		map[string]any{"fn": "add_two", "args": []any{int64(2), int64(3)}, "expect": int64(6)},
	}, addTwoFn())

	failures := RunTests(mod, nil)
	s.Len(failures, 1)
	s.Equal("TestFailed", failures[0].Code)
	s.Equal("/tests/0", failures[0].Pointer)
}

func (s *TestRunnerTestSuite) TestFunctionLevelTestFails() {
	fn := runnerFn("add_two", []string{"a", "b"}, []any{
		map[string]any{"return": map[string]any{"call": map[string]any{
			"fn": "add", "args": []any{map[string]any{"var": "a"}, map[string]any{"var": "b"}},
		}}},
	}, []any{
		map[string]any{"args": []any{int64(1), int64(1)}, "expect": int64(3)},
	})
	mod := runnerModule(nil, fn)

	failures := RunTests(mod, nil)
	s.Len(failures, 1)
	s.Equal("/functions/0/tests/0", failures[0].Pointer)
}

func (s *TestRunnerTestSuite) TestRuntimeErrorDuringTestYieldsTestError() {
	fn := runnerFn("boom", nil, []any{
		map[string]any{"return": map[string]any{"call": map[string]any{
			"fn": "div", "args": []any{int64(1), int64(0)},
		}}},
	}, nil)
	mod := runnerModule([]any{
		map[string]any{"fn": "boom", "args": []any{}, "expect": int64(1)},
	}, fn)

	failures := RunTests(mod, nil)
	s.Len(failures, 1)
	s.Equal("TestError", failures[0].Code)
	s.NotNil(failures[0].Detail["error"])
}
