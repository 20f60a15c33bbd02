package typecheck

import (
	"testing"

	"github.com/stretchr/testify/suite"
)

type TypesTestSuite struct {
	suite.Suite
}

func TestTypesTestSuite(t *testing.T) {
	suite.Run(t, new(TypesTestSuite))
}

func (s *TypesTestSuite) TestUnifyIdenticalPrims() {
	subs := Subst{}
	s.True(Unify(Prim{"Int"}, Prim{"Int"}, subs))
}

func (s *TypesTestSuite) TestUnifyIntExpectedFloatActualFails() {
	subs := Subst{}
	s.False(Unify(Prim{"Int"}, Prim{"Float"}, subs))
}

func (s *TypesTestSuite) TestUnifyFloatExpectedIntActualSucceeds() {
	subs := Subst{}
	s.True(Unify(Prim{"Float"}, Prim{"Int"}, subs))
}

func (s *TypesTestSuite) TestUnifyAnyAlwaysSucceeds() {
	subs := Subst{}
	s.True(Unify(AnyType{}, Prim{"String"}, subs))
	s.True(Unify(Prim{"Bool"}, AnyType{}, subs))
}

func (s *TypesTestSuite) TestUnifyBindsTypeVariable() {
	subs := Subst{}
	s.True(Unify(VarType{"T"}, Prim{"Int"}, subs))
	s.Equal(Prim{"Int"}, subs["T"])
}

func (s *TypesTestSuite) TestUnifySameVariableTwiceConsistently() {
	subs := Subst{}
	s.True(Unify(ListT{VarType{"T"}}, ListT{Prim{"Int"}}, subs))
	s.True(Unify(VarType{"T"}, Prim{"Int"}, subs))
	s.False(Unify(VarType{"T"}, Prim{"String"}, subs))
}

func (s *TypesTestSuite) TestUnifyListElemMismatch() {
	subs := Subst{}
	s.False(Unify(ListT{Prim{"Int"}}, ListT{Prim{"String"}}, subs))
}

func (s *TypesTestSuite) TestUnifyRecordRequiresAllFields() {
	subs := Subst{}
	expected := RecordT{Fields: map[string]Type{"x": Prim{"Int"}}}
	actual := RecordT{Fields: map[string]Type{}}
	s.False(Unify(expected, actual, subs))
}

func (s *TypesTestSuite) TestJoinIntFloatIsFloat() {
	s.Equal(Prim{"Float"}, Join(Prim{"Int"}, Prim{"Float"}))
}

func (s *TypesTestSuite) TestJoinMismatchedPrimsIsAny() {
	s.Equal(AnyType{}, Join(Prim{"Bool"}, Prim{"String"}))
}

func (s *TypesTestSuite) TestJoinListsJoinsElements() {
	got := Join(ListT{Prim{"Int"}}, ListT{Prim{"Float"}})
	s.Equal(ListT{Prim{"Float"}}, got)
}

func (s *TypesTestSuite) TestRenderComposite() {
	ty := ListT{Elem: RecordT{Fields: map[string]Type{"a": Prim{"Int"}, "b": Prim{"String"}}}}
	s.Equal("List[Record{a:Int,b:String}]", ty.Render())
}
