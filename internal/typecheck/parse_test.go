package typecheck

import (
	"testing"

	"github.com/stretchr/testify/suite"
)

type ParseTestSuite struct {
	suite.Suite
}

func TestParseTestSuite(t *testing.T) {
	suite.Run(t, new(ParseTestSuite))
}

func (s *ParseTestSuite) TestParsePrimitive() {
	ty, err := ParseTypeExpr("Int")
	s.NoError(err)
	s.Equal(Prim{"Int"}, ty)
}

func (s *ParseTestSuite) TestParseAny() {
	ty, err := ParseTypeExpr("Any")
	s.NoError(err)
	s.Equal(AnyType{}, ty)
}

func (s *ParseTestSuite) TestParseList() {
	ty, err := ParseTypeExpr("List[Int]")
	s.NoError(err)
	s.Equal(ListT{Elem: Prim{"Int"}}, ty)
}

func (s *ParseTestSuite) TestParseNestedList() {
	ty, err := ParseTypeExpr("List[List[String]]")
	s.NoError(err)
	s.Equal(ListT{Elem: ListT{Elem: Prim{"String"}}}, ty)
}

func (s *ParseTestSuite) TestParseRecord() {
	ty, err := ParseTypeExpr("Record{x:Int,y:Float}")
	s.NoError(err)
	rec, ok := ty.(RecordT)
	s.True(ok)
	s.Equal(Prim{"Int"}, rec.Fields["x"])
	s.Equal(Prim{"Float"}, rec.Fields["y"])
}

func (s *ParseTestSuite) TestParseEmptyRecord() {
	ty, err := ParseTypeExpr("Record{}")
	s.NoError(err)
	s.Equal(RecordT{Fields: map[string]Type{}}, ty)
}

func (s *ParseTestSuite) TestParseTypeVariable() {
	ty, err := ParseTypeExpr("T")
	s.NoError(err)
	s.Equal(VarType{Name: "T"}, ty)
}

func (s *ParseTestSuite) TestParseMissingCloseBracketErrors() {
	_, err := ParseTypeExpr("List[Int")
	s.Error(err)
}

func (s *ParseTestSuite) TestParseTrailingGarbageErrors() {
	_, err := ParseTypeExpr("Int Int")
	s.Error(err)
}

func (s *ParseTestSuite) TestParseInvalidCharacterErrors() {
	_, err := ParseTypeExpr("Int!")
	s.Error(err)
}
