package x86_64

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/litecode-org/lcc/internal/parser"
	"github.com/litecode-org/lcc/internal/sema"
)

func compileSrc(t *testing.T, src string) string {
	t.Helper()
	prog, err := parser.Parse([]byte(src))
	require.NoError(t, err)
	require.NoError(t, sema.Analyze(prog))
	out, err := New().Emit(prog)
	require.NoError(t, err)
	return out
}

func TestEmitEmptyRunBlock(t *testing.T) {
	out := compileSrc(t, "run {};")
	assert.Contains(t, out, "_start:")
	assert.Contains(t, out, "movq $60, %rax")
	assert.Contains(t, out, "syscall")
}

func TestEmitHasDataSectionWithScratchBuffers(t *testing.T) {
	out := compileSrc(t, "run {};")
	assert.Contains(t, out, ".data")
	assert.Contains(t, out, "input_buffer:")
	assert.Contains(t, out, "temp_buffer:")
	assert.Contains(t, out, "string_buffer:")
}

func TestEmitInternsTextLiteralOnce(t *testing.T) {
	out := compileSrc(t, `run { text s = "hi"; text t = "hi"; };`)
	assert.Equal(t, 1, strings.Count(out, `.asciz "hi"`))
}

func TestEmitFunctionLabel(t *testing.T) {
	out := compileSrc(t, "fnc add[num a, num b]: num { return a + b; } run { num r = @add[1, 2]; };")
	assert.Contains(t, out, "add:")
	assert.Contains(t, out, "call add")
}

func TestEmitPrintTextGoesToPrintString(t *testing.T) {
	out := compileSrc(t, `run { @print["hi"]; };`)
	assert.Contains(t, out, "call print_string")
}

func TestEmitPrintNumberConvertsFirst(t *testing.T) {
	out := compileSrc(t, "run { @print[1]; };")
	assert.Contains(t, out, "call num_to_string")
	assert.Contains(t, out, "call print_string")
}

func TestEmitRuntimeRoutinesPresent(t *testing.T) {
	out := compileSrc(t, "run {};")
	for _, routine := range []string{
		"print_string:", "read_string:", "remove_newline:", "strlen:",
		"string_to_num:", "string_to_char:", "string_to_bool:",
		"num_to_string:", "char_to_string:", "bool_to_string:",
		"string_concat:", "string_interpolate:", "string_append:",
		"value_to_string_formatted:", "memcpy_simple:", "print_value_auto:",
	} {
		assert.Contains(t, out, routine)
	}
}

func TestEmitForLoopLowersToLabelsAndBranches(t *testing.T) {
	out := compileSrc(t, "run { for [num i = 0; i < 10; i = i + 1] { }; };")
	assert.Contains(t, out, "L_for_top")
	assert.Contains(t, out, "L_for_end")
}

func TestEmitIfElseIfElseChain(t *testing.T) {
	out := compileSrc(t, "run { if [1 == 1] { } or [2 == 2] { } else { }; };")
	assert.Contains(t, out, "L_if_end")
	assert.Contains(t, out, "L_if_next")
}

func TestEmitFoldedConstantSkipsStackSlot(t *testing.T) {
	out := compileSrc(t, "run { val num X = 2 + 3 * 4; @print[X]; };")
	assert.Contains(t, out, "movq $14, %rax")
	assert.NotContains(t, out, "-8(%rbp)")
}

func TestEmitRepeatWhenFixed(t *testing.T) {
	out := compileSrc(t, "run { num x = 1; repeat [x] { when [1] { } fixed { } }; };")
	assert.Contains(t, out, "L_repeat_case")
	assert.Contains(t, out, "L_repeat_fixed")
	assert.Contains(t, out, "L_repeat_end")
}

func TestEmitRepeatReloadsSubjectFromSlot(t *testing.T) {
	out := compileSrc(t, "run { num x = 1; repeat [x] { when [1] { } }; };")
	// x at -8, the hidden subject slot at -16; each compare reloads it.
	assert.Contains(t, out, "movq -16(%rbp), %rdx")
}

func TestEmitFrameReservesLocalSpace(t *testing.T) {
	out := compileSrc(t, "run { num a = 1; num b = a + 2; };")
	assert.Contains(t, out, "subq $16, %rsp")
}

func TestEmitDivisionDividendIsLeftOperand(t *testing.T) {
	out := compileSrc(t, "run { num a = 10; num b = a / 2; };")
	// Left operand is popped into %rbx; it must become the dividend.
	assert.Contains(t, out, "movq %rax, %rcx\n\tmovq %rbx, %rax\n\tcqto\n\tidivq %rcx")
}

func TestEmitTextConstantFoldsToLabel(t *testing.T) {
	out := compileSrc(t, `run { val text T = "hi"; @print[T]; };`)
	assert.NotContains(t, out, "-8(%rbp)")
	assert.Contains(t, out, "call print_string")
}

func TestEmitCallSpillsArgsBeyondSix(t *testing.T) {
	out := compileSrc(t, `
fnc sum[num a, num b, num c, num d, num e, num f, num g]: num {
	return a + g;
}
run { num r = @sum[1, 2, 3, 4, 5, 6, 7]; @print[r]; };`)
	// The seventh argument travels on the stack: the callee reads it at
	// 16(%rbp) and the caller pops it back off after the call.
	assert.Contains(t, out, "movq 16(%rbp), %rax")
	assert.Contains(t, out, "addq $8, %rsp")
}

func TestEmitArrayLiteralInitializesSlots(t *testing.T) {
	out := compileSrc(t, "run { num[3] a = [7, 8, 9]; @print[a[0]]; };")
	assert.Contains(t, out, "movq %rax, -24(%rbp)")
	assert.Contains(t, out, "movq %rax, -16(%rbp)")
	assert.Contains(t, out, "movq %rax, -8(%rbp)")
}

func TestEmitStructLiteralWritesDeclaredSlots(t *testing.T) {
	out := compileSrc(t, `
struct Point { num x; num y; }
run { num pad = 0; Point p = Point { x: 1, y: 2 }; num q = p->y; };`)
	// pad at -8, p's fields at -16/-24: the literal must target p's base,
	// not the first allocated local.
	assert.Contains(t, out, "movq %rax, -16(%rbp)")
	assert.Contains(t, out, "movq %rax, -24(%rbp)")
	assert.Contains(t, out, "movq -24(%rbp), %rax")
}

func TestEmitInterpolationCallsRuntimeRoutine(t *testing.T) {
	out := compileSrc(t, `run { num n = 4; @print["n is ${n:d}!"]; };`)
	assert.Contains(t, out, "call string_interpolate")
	// One hole: expr_count 1, parts_count 2, layout is 6 slots.
	assert.Contains(t, out, "pushq $1")
	assert.Contains(t, out, "pushq $2")
	assert.Contains(t, out, "addq $48, %rsp")
}

func TestEmitReturnInsideRunExitsProcess(t *testing.T) {
	out := compileSrc(t, "run { return; };")
	assert.Equal(t, 2, strings.Count(out, "movq $60, %rax"))
}
