package repairdriver

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/suite"
)

type DriverTestSuite struct {
	suite.Suite
}

func TestDriverTestSuite(t *testing.T) {
	suite.Run(t, new(DriverTestSuite))
}

func driverModule(fns ...map[string]any) map[string]any {
	list := make([]any, len(fns))
	for i, f := range fns {
		list[i] = f
	}
	return map[string]any{"module": "m", "version": "1", "functions": list}
}

func (s *DriverTestSuite) newDriver() *Driver {
	d, err := NewDriver(zerolog.Nop())
	s.Require().NoError(err)
	d.MaxIters = 3
	return d
}

func (s *DriverTestSuite) TestCollectIssuesFindsMissingReturn() {
	d := s.newDriver()
	mod := driverModule(map[string]any{
		"name": "f", "params": []any{}, "body": []any{},
	})
	issues := d.CollectIssues(mod, false)

	found := false
	for _, i := range issues {
		if i.Code == "MissingReturn" {
			found = true
		}
	}
	s.True(found)
}

func (s *DriverTestSuite) TestBuildPromptIncludesModuleAndIssues() {
	mod := driverModule(map[string]any{"name": "f", "params": []any{}, "body": []any{}})
	prompt := BuildPrompt(mod, nil)
	s.Contains(prompt, "Astra module JSON")
	s.Contains(prompt, "\"name\": \"f\"")
}

func (s *DriverTestSuite) TestRunFixesMissingReturnViaDeterministicSuggester() {
	d := s.newDriver()
	mod := driverModule(map[string]any{
		"name": "f", "params": []any{}, "returns": "Null", "body": []any{},
	})

	result := d.Run(context.Background(), mod)
	s.NotEmpty(result.RunID)
	s.False(result.FinalHasErrors())
}

func (s *DriverTestSuite) TestRunStopsWhenProviderProposesNothing() {
	d := s.newDriver()
	mod := driverModule(map[string]any{
		"name": "f", "params": []any{}, "body": []any{
			map[string]any{"return": map[string]any{"var": "undefined_var"}},
		},
	})

	result := d.Run(context.Background(), mod)
	s.Len(result.History, 1)
	s.True(result.FinalHasErrors())
}

func (s *DriverTestSuite) TestFinalHasErrorsFalseForEmptyHistory() {
	r := Result{}
	s.False(r.FinalHasErrors())
}
