package repairdriver

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
)

type ProviderTestSuite struct {
	suite.Suite
}

func TestProviderTestSuite(t *testing.T) {
	suite.Run(t, new(ProviderTestSuite))
}

func (s *ProviderTestSuite) TestMockProviderAlwaysReturnsNothing() {
	ops, err := MockProvider{}.ProposePatches(context.Background(), "irrelevant")
	s.NoError(err)
	s.Nil(ops)
}

func (s *ProviderTestSuite) TestNewCmdProviderRejectsEmptyCommand() {
	_, err := NewCmdProvider("   ", time.Second)
	s.Error(err)
}

func (s *ProviderTestSuite) TestNewCmdProviderDefaultsTimeout() {
	p, err := NewCmdProvider("/bin/echo hi", 0)
	s.NoError(err)
	s.Equal(60*time.Second, p.Timeout)
	s.Equal([]string{"/bin/echo", "hi"}, p.Command)
}

func (s *ProviderTestSuite) TestCmdProviderParsesBareArrayOutput() {
	p, err := NewCmdProvider(`/bin/echo [{"op":"remove","path":"/x"}]`, 2*time.Second)
	s.Require().NoError(err)

	ops, err := p.ProposePatches(context.Background(), "prompt")
	s.NoError(err)
	s.Require().Len(ops, 1)
	s.Equal("remove", ops[0].Op)
	s.Equal("/x", ops[0].Path)
}

func (s *ProviderTestSuite) TestCmdProviderParsesPatchWrappedOutput() {
	p, err := NewCmdProvider(`/bin/echo {"patch":[{"op":"add","path":"/y","value":1}]}`, 2*time.Second)
	s.Require().NoError(err)

	ops, err := p.ProposePatches(context.Background(), "prompt")
	s.NoError(err)
	s.Require().Len(ops, 1)
	s.Equal("add", ops[0].Op)
	s.True(ops[0].HasV)
}

func (s *ProviderTestSuite) TestCmdProviderEmptyOutputYieldsNoPatches() {
	p, err := NewCmdProvider("/bin/true", 2*time.Second)
	s.Require().NoError(err)

	ops, err := p.ProposePatches(context.Background(), "prompt")
	s.NoError(err)
	s.Nil(ops)
}

func (s *ProviderTestSuite) TestCmdProviderInvalidJSONErrors() {
	p, err := NewCmdProvider("/bin/echo not-json", 2*time.Second)
	s.Require().NoError(err)

	_, err = p.ProposePatches(context.Background(), "prompt")
	s.Error(err)
}

func (s *ProviderTestSuite) TestCmdProviderNonZeroExitErrors() {
	p, err := NewCmdProvider("/bin/false", 2*time.Second)
	s.Require().NoError(err)

	_, err = p.ProposePatches(context.Background(), "prompt")
	s.Error(err)
}

func (s *ProviderTestSuite) TestMakeProviderMock() {
	p, err := MakeProvider("mock", "", 0)
	s.NoError(err)
	s.IsType(MockProvider{}, p)
}

func (s *ProviderTestSuite) TestMakeProviderCmd() {
	p, err := MakeProvider("cmd", "/bin/echo []", time.Second)
	s.NoError(err)
	s.IsType(&CmdProvider{}, p)
}

func (s *ProviderTestSuite) TestMakeProviderRejectsOpenAI() {
	_, err := MakeProvider("openai", "", 0)
	s.Error(err)
}

func (s *ProviderTestSuite) TestMakeProviderRejectsUnknownKind() {
	_, err := MakeProvider("bogus", "", 0)
	s.Error(err)
}
