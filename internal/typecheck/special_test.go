package typecheck

import (
	"testing"

	"github.com/stretchr/testify/suite"

	"github.com/divyang-garg/astra-guardrails/internal/apperr"
)

type SpecialTestSuite struct {
	suite.Suite
}

func TestSpecialTestSuite(t *testing.T) {
	suite.Run(t, new(SpecialTestSuite))
}

func (s *SpecialTestSuite) TestListSumOfIntsStaysInt() {
	fn := typedFn("sum_it", []string{"xs"}, []string{"List[Int]"}, "Int", []any{
		map[string]any{"return": map[string]any{"call": map[string]any{
			"fn": "list_sum", "args": []any{map[string]any{"var": "xs"}},
		}}},
	})
	issues := CheckModule(checkModule(fn))
	s.Empty(*issues)
}

func (s *SpecialTestSuite) TestListMeanAlwaysReturnsFloat() {
	fn := typedFn("mean_it", []string{"xs"}, []string{"List[Int]"}, "Float", []any{
		map[string]any{"return": map[string]any{"call": map[string]any{
			"fn": "list_mean", "args": []any{map[string]any{"var": "xs"}},
		}}},
	})
	issues := CheckModule(checkModule(fn))
	s.Empty(*issues)
}

func (s *SpecialTestSuite) TestObjGetKnownFieldReturnsFieldType() {
	c := &checker{issues: apperr.NewStaticIssues(), sigs: builtinSigs()}
	objT := RecordT{Fields: map[string]Type{"name": Prim{"String"}}}
	ty, handled := c.inferSpecialCall("obj_get", "obj_get", []any{nil, "name"}, []Type{objT, Prim{"String"}}, nil)
	s.True(handled)
	s.Equal(Prim{"String"}, ty)
}

func (s *SpecialTestSuite) TestObjGetUnknownFieldIssuesUnknownField() {
	c := &checker{issues: apperr.NewStaticIssues(), sigs: builtinSigs()}
	objT := RecordT{Fields: map[string]Type{"name": Prim{"String"}}}
	_, handled := c.inferSpecialCall("obj_get", "obj_get", []any{nil, "missing"}, []Type{objT, Prim{"String"}}, nil)
	s.True(handled)
	s.True(hasCheckCode(*c.issues, "UnknownField"))
}

func (s *SpecialTestSuite) TestObjGetFallsThroughWhenReceiverIsAny() {
	c := &checker{issues: apperr.NewStaticIssues(), sigs: builtinSigs()}
	_, handled := c.inferSpecialCall("obj_get", "obj_get", []any{nil, "name"}, []Type{AnyType{}, Prim{"String"}}, nil)
	s.False(handled)
}

func (s *SpecialTestSuite) TestListMapInfersElementReturnType() {
	fnSigs := builtinSigs()
	fnSigs["to_str"] = Sig{Name: "to_str", ParamNames: []string{"x"}, ParamTypes: []Type{Prim{"Int"}}, Ret: Prim{"String"}}
	c := &checker{issues: apperr.NewStaticIssues(), sigs: fnSigs}
	ty, handled := c.inferSpecialCall("list_map", "list_map", []any{"to_str", nil}, []Type{Prim{"String"}, ListT{Prim{"Int"}}}, nil)
	s.True(handled)
	s.Equal(ListT{Elem: Prim{"String"}}, ty)
}
