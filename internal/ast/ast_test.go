package ast

import (
	"testing"

	"github.com/stretchr/testify/suite"
)

type AstTestSuite struct {
	suite.Suite
}

func TestAstTestSuite(t *testing.T) {
	suite.Run(t, new(AstTestSuite))
}

func (s *AstTestSuite) TestAsStringOnNonStringReturnsEmpty() {
	s.Equal("", AsString(int64(1)))
	s.Equal("hi", AsString("hi"))
}

func (s *AstTestSuite) TestStringListSkipsNonStrings() {
	out := StringList([]any{"a", int64(1), "b"})
	s.Equal([]string{"a", "b"}, out)
}

func (s *AstTestSuite) TestDeepEqualDistinguishesIntFromFloat() {
	s.True(DeepEqual(int64(1), int64(1)))
	s.False(DeepEqual(int64(1), float64(1)))
}

func (s *AstTestSuite) TestDeepEqualComparesListsAndMapsStructurally() {
	a := []any{int64(1), map[string]any{"x": "y"}}
	b := []any{int64(1), map[string]any{"x": "y"}}
	s.True(DeepEqual(a, b))

	c := []any{int64(1), map[string]any{"x": "z"}}
	s.False(DeepEqual(a, c))
}

func (s *AstTestSuite) TestDeepEqualLengthMismatch() {
	s.False(DeepEqual([]any{int64(1)}, []any{int64(1), int64(2)}))
	s.False(DeepEqual(map[string]any{"a": 1}, map[string]any{"a": 1, "b": 2}))
}

func (s *AstTestSuite) TestModuleFunctionsAndByName() {
	mod := Module{
		"functions": []any{
			map[string]any{"name": "f", "params": []any{"a"}, "body": []any{}},
			map[string]any{"name": "g", "params": []any{}, "body": []any{}},
		},
	}
	fns := mod.Functions()
	s.Len(fns, 2)

	byName := mod.FunctionByName()
	s.Contains(byName, "f")
	s.Contains(byName, "g")
	s.Equal([]string{"a"}, byName["f"].Params())
}

func (s *AstTestSuite) TestFunctionEffectsDefaultsToPure() {
	f := Function{"name": "f"}
	s.Equal([]string{"pure"}, f.Effects())

	f2 := Function{"name": "g", "effects": []any{"io.print"}}
	s.Equal([]string{"io.print"}, f2.Effects())
}

func (s *AstTestSuite) TestFunctionParamTypesNilWhenAbsent() {
	f := Function{"name": "f"}
	s.Nil(f.ParamTypes())
}

func (s *AstTestSuite) TestQualLastReturnsFinalSegment() {
	s.Equal("print", QualLast("io.print"))
	s.Equal("add", QualLast("add"))
	s.Equal("c", QualLast("a.b.c"))
}

func (s *AstTestSuite) TestStmtTagRequiresSingleKey() {
	tag, val, ok := StmtTag(map[string]any{"return": int64(1)})
	s.True(ok)
	s.Equal("return", tag)
	s.Equal(int64(1), val)

	_, _, ok = StmtTag(map[string]any{"return": int64(1), "let": "x"})
	s.False(ok)

	_, _, ok = StmtTag("not a map")
	s.False(ok)
}

func (s *AstTestSuite) TestExprTagFindsKnownTags() {
	tag, val, ok := ExprTag(map[string]any{"var": "x"})
	s.True(ok)
	s.Equal("var", tag)
	s.Equal("x", val)

	_, _, ok = ExprTag(int64(5))
	s.False(ok)

	_, _, ok = ExprTag(map[string]any{"unknown": true})
	s.False(ok)
}

func (s *AstTestSuite) TestIsLiteral() {
	s.True(IsLiteral(nil))
	s.True(IsLiteral(true))
	s.True(IsLiteral(int64(1)))
	s.True(IsLiteral(float64(1.5)))
	s.True(IsLiteral("s"))
	s.False(IsLiteral(map[string]any{"var": "x"}))
	s.False(IsLiteral([]any{}))
}
