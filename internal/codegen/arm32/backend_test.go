package arm32

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/litecode-org/lcc/internal/parser"
	"github.com/litecode-org/lcc/internal/sema"
)

func TestARMEmptyRunBlock(t *testing.T) {
	prog, err := parser.Parse([]byte("run {};"))
	require.NoError(t, err)
	require.NoError(t, sema.Analyze(prog))
	out, err := New().Emit(prog)
	require.NoError(t, err)
	assert.Contains(t, out, "_start:")
	assert.Contains(t, out, "svc #0")
	assert.Contains(t, out, "mov r7, #1")
}

func TestARMTrivialPrintLiteral(t *testing.T) {
	prog, err := parser.Parse([]byte(`run { @print["hi"]; };`))
	require.NoError(t, err)
	require.NoError(t, sema.Analyze(prog))
	out, err := New().Emit(prog)
	require.NoError(t, err)
	assert.Contains(t, out, "mov r7, #4")
	assert.Contains(t, out, `.asciz "hi"`)
}

func TestARMRejectsFunctions(t *testing.T) {
	prog, err := parser.Parse([]byte("fnc f[]: void { } run {};"))
	require.NoError(t, err)
	require.NoError(t, sema.Analyze(prog))
	_, err = New().Emit(prog)
	require.Error(t, err)
}

func TestARMRejectsNonTrivialStatements(t *testing.T) {
	prog, err := parser.Parse([]byte("run { num x = 1; };"))
	require.NoError(t, err)
	require.NoError(t, sema.Analyze(prog))
	_, err = New().Emit(prog)
	require.Error(t, err)
}
