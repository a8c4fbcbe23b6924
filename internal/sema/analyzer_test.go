package sema

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/litecode-org/lcc/internal/ast"
	"github.com/litecode-org/lcc/internal/parser"
)

func analyzeSrc(t *testing.T, src string) error {
	t.Helper()
	prog, err := parser.Parse([]byte(src))
	require.NoError(t, err)
	return Analyze(prog)
}

func TestAnalyzeEmptyRunBlock(t *testing.T) {
	assert.NoError(t, analyzeSrc(t, "run {};"))
}

func TestAnalyzeVarDeclTypeMismatch(t *testing.T) {
	err := analyzeSrc(t, `run { num x = "hi"; };`)
	require.Error(t, err)
}

func TestAnalyzeVarDeclMatchingType(t *testing.T) {
	assert.NoError(t, analyzeSrc(t, "run { num x = 1; };"))
}

func TestAnalyzeUndefinedIdentifier(t *testing.T) {
	err := analyzeSrc(t, "run { num x = y; };")
	require.Error(t, err)
}

func TestAnalyzeConstReassignmentRejected(t *testing.T) {
	err := analyzeSrc(t, "run { val num x = 1; x = 2; };")
	require.Error(t, err)
}

func TestAnalyzeArithmeticRequiresNumeric(t *testing.T) {
	err := analyzeSrc(t, `run { num x = "a" - 1; };`)
	require.Error(t, err)
}

func TestAnalyzeConcatAcceptsMixedTypes(t *testing.T) {
	assert.NoError(t, analyzeSrc(t, `run { text s = 1 +>> "x" +>> true; };`))
}

func TestAnalyzeComparisonRequiresEqualTypes(t *testing.T) {
	err := analyzeSrc(t, `run { bool b = 1 == "x"; };`)
	require.Error(t, err)
}

func TestAnalyzeLogicalRequiresBoolean(t *testing.T) {
	err := analyzeSrc(t, "run { bool b = 1 && true; };")
	require.Error(t, err)
}

func TestAnalyzeIfConditionMustBeBoolean(t *testing.T) {
	err := analyzeSrc(t, "run { if [1] { }; };")
	require.Error(t, err)
}

func TestAnalyzeForConditionMustBeBoolean(t *testing.T) {
	err := analyzeSrc(t, "run { for [num i = 0; i; i = i + 1] { }; };")
	require.Error(t, err)
}

func TestAnalyzeArrayDeclWithoutInitializer(t *testing.T) {
	err := analyzeSrc(t, "run { num[] a; };")
	assert.NoError(t, err)
}

func TestAnalyzeArrayAccessRequiresArrayVariable(t *testing.T) {
	err := analyzeSrc(t, "run { num x = 1; num y = x[0]; };")
	require.Error(t, err)
}

func TestAnalyzeMemberAccessRequiresStruct(t *testing.T) {
	err := analyzeSrc(t, "run { num x = 1; num y = x->f; };")
	require.Error(t, err)
}

func TestAnalyzeStructLiteralAllFieldsRequired(t *testing.T) {
	err := analyzeSrc(t, "struct Point { num x; num y; } run { Point p = Point { x: 1 }; };")
	require.Error(t, err)
}

func TestAnalyzeStructLiteralFieldTypeMismatch(t *testing.T) {
	err := analyzeSrc(t, `struct Point { num x; num y; } run { Point p = Point { x: "a", y: 2 }; };`)
	require.Error(t, err)
}

func TestAnalyzeStructLiteralValid(t *testing.T) {
	err := analyzeSrc(t, "struct Point { num x; num y; } run { Point p = Point { x: 1, y: 2 }; };")
	assert.NoError(t, err)
}

func TestAnalyzeFunctionCallArityMismatch(t *testing.T) {
	err := analyzeSrc(t, "fnc add[num a, num b]: num { return a + b; } run { num x = @add[1]; };")
	require.Error(t, err)
}

func TestAnalyzeFunctionCallArgTypeMismatch(t *testing.T) {
	err := analyzeSrc(t, `fnc add[num a, num b]: num { return a + b; } run { num x = @add[1, "y"]; };`)
	require.Error(t, err)
}

func TestAnalyzeFunctionCallValid(t *testing.T) {
	err := analyzeSrc(t, "fnc add[num a, num b]: num { return a + b; } run { num x = @add[1, 2]; };")
	assert.NoError(t, err)
}

func TestAnalyzeReturnTypeMismatch(t *testing.T) {
	err := analyzeSrc(t, `fnc f[]: num { return "x"; } run {};`)
	require.Error(t, err)
}

func TestAnalyzeVoidFunctionBareReturn(t *testing.T) {
	err := analyzeSrc(t, "fnc f[]: void { return; } run {};")
	assert.NoError(t, err)
}

func TestAnalyzeRepeatWhenCaseTypeMismatch(t *testing.T) {
	err := analyzeSrc(t, `run { num x = 1; repeat [x] { when ["a"] { } }; };`)
	require.Error(t, err)
}

func TestAnalyzeRepeatWhenCaseValid(t *testing.T) {
	err := analyzeSrc(t, "run { num x = 1; repeat [x] { when [1] { } when [2] { } fixed { } }; };")
	assert.NoError(t, err)
}

func TestAnalyzeNullOnlyAssignableToNullable(t *testing.T) {
	err := analyzeSrc(t, "run { num x = null; };")
	require.Error(t, err)
}

func TestAnalyzeNullAssignableToNullableType(t *testing.T) {
	err := analyzeSrc(t, "run { num? x = null; };")
	assert.NoError(t, err)
}

func TestAnalyzeNonNullableAssignableToNullable(t *testing.T) {
	err := analyzeSrc(t, "run { num x = 1; num? y = x; };")
	assert.NoError(t, err)
}

func TestAnalyzeDuplicateLocalRejected(t *testing.T) {
	err := analyzeSrc(t, "run { num x = 1; num x = 2; };")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate declaration")
}

func TestAnalyzeDuplicateParameterRejected(t *testing.T) {
	err := analyzeSrc(t, "fnc f[num a, num a]: num { return a; } run {};")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate declaration")
}

func TestAnalyzeSameNameInSiblingScopesAllowed(t *testing.T) {
	assert.NoError(t, analyzeSrc(t, "run { if [true] { num x = 1; } else { num x = 2; } };"))
}

func TestAnalyzeDuplicateStructName(t *testing.T) {
	err := analyzeSrc(t, "struct P { num x; } struct P { num y; } run {};")
	require.Error(t, err)
}

func TestAnalyzeDuplicateFunctionName(t *testing.T) {
	err := analyzeSrc(t, "fnc f[]: void { } fnc f[]: void { } run {};")
	require.Error(t, err)
}

func TestAnalyzeConstantFoldingSimpleLiteral(t *testing.T) {
	prog, err := parser.Parse([]byte("run { val num x = 2 + 3; };"))
	require.NoError(t, err)
	require.NoError(t, Analyze(prog))
	decl := prog.Run.Body[0].(*ast.VarDecl)
	assert.True(t, decl.IsCompileTimeConst)
	assert.Equal(t, int64(5), decl.FoldedValue)
}

func TestAnalyzeConstantFoldingChainedReference(t *testing.T) {
	err := analyzeSrc(t, "run { val num a = 2; val num b = a * 3; };")
	assert.NoError(t, err)
}

func TestAnalyzeConstantDivisionByZeroIsCompileError(t *testing.T) {
	err := analyzeSrc(t, "run { val num x = 1 / 0; };")
	require.Error(t, err)
}

func TestAnalyzeConstantWithoutInitializerRejected(t *testing.T) {
	err := analyzeSrc(t, "run { val num x; };")
	require.Error(t, err)
}

func TestAnalyzeTextConstantFolds(t *testing.T) {
	prog, err := parser.Parse([]byte(`run { val text T = "hi"; };`))
	require.NoError(t, err)
	require.NoError(t, Analyze(prog))
	decl := prog.Run.Body[0].(*ast.VarDecl)
	assert.True(t, decl.IsCompileTimeConst)
	assert.Equal(t, "hi", decl.FoldedText)
}

func TestAnalyzeTextConstantChainedReference(t *testing.T) {
	prog, err := parser.Parse([]byte(`run { val text A = "x"; val text B = A; };`))
	require.NoError(t, err)
	require.NoError(t, Analyze(prog))
	decl := prog.Run.Body[1].(*ast.VarDecl)
	assert.True(t, decl.IsCompileTimeConst)
	assert.Equal(t, "x", decl.FoldedText)
}

func TestAnalyzeConstantFromNonConstantRejected(t *testing.T) {
	err := analyzeSrc(t, "run { num y = 1; val num x = y; };")
	require.Error(t, err)
}

func TestAnalyzeArrayLiteralElementTypesMustMatch(t *testing.T) {
	err := analyzeSrc(t, `run { num[] a = [1, "x"]; };`)
	require.Error(t, err)
}

func TestAnalyzeArrayLiteralIntoDynamicArray(t *testing.T) {
	assert.NoError(t, analyzeSrc(t, "run { num[] a = [1, 2, 3]; };"))
}

func TestAnalyzeArrayLiteralSizeMatchesFixedDeclaration(t *testing.T) {
	assert.NoError(t, analyzeSrc(t, "run { num[2] a = [1, 2]; };"))
	err := analyzeSrc(t, "run { num[3] a = [1, 2]; };")
	require.Error(t, err)
}
