package driver

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveTargetAliases(t *testing.T) {
	cases := map[string]string{
		"x86_64": "x86_64", "x86-64": "x86_64", "amd64": "x86_64",
		"arm64": "aarch64", "aarch64": "aarch64",
		"arm32": "arm", "arm": "arm", "armv7": "arm",
	}
	for in, want := range cases {
		got, err := ResolveTarget(in)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
}

func TestResolveTargetUnknown(t *testing.T) {
	_, err := ResolveTarget("mips")
	assert.Error(t, err)
}

func TestEmitOnlyX86_64(t *testing.T) {
	out, err := EmitOnly([]byte(`run { @print["hi"]; };`), "x86_64")
	require.NoError(t, err)
	assert.Contains(t, out, ".text")
	assert.Contains(t, out, "_start")
}

func TestEmitOnlyAArch64Stub(t *testing.T) {
	out, err := EmitOnly([]byte(`run { @print["hi"]; };`), "aarch64")
	require.NoError(t, err)
	assert.Contains(t, out, "_start")
}

func TestEmitOnlyArmStub(t *testing.T) {
	out, err := EmitOnly([]byte(`run { @print["hi"]; };`), "arm")
	require.NoError(t, err)
	assert.Contains(t, out, "_start")
}

func TestEmitOnlyUnsupportedTarget(t *testing.T) {
	_, err := EmitOnly([]byte(`run {};`), "mips")
	assert.Error(t, err)
}

func TestEmitOnlyEndToEndPrograms(t *testing.T) {
	programs := []string{
		`run { @print["Hello"]; };`,
		`run { val num X = 2 + 3 * 4; @print[X]; };`,
		`fnc add[num a, num b]: num { return a + b; } run { num r = @add[5, 3]; @print[r]; };`,
		`run { num d = 3; repeat [d] { when [1] { @print["one"]; } when [3] { @print["three"]; } fixed { @print["other"]; } } };`,
		`run { num n = @num.read[""]; @print[n]; };`,
		`run { text a = "foo"; text b = "bar"; @print[a +>> b]; };`,
	}
	for _, src := range programs {
		out, err := EmitOnly([]byte(src), "x86_64")
		require.NoError(t, err, src)
		assert.Contains(t, out, "_start:")
	}
}

func TestEmitOnlyParseErrorTaggedPhase(t *testing.T) {
	_, err := EmitOnly([]byte(`run { num x = ; };`), "x86_64")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse:")
}

func TestEmitOnlySemaErrorTaggedPhase(t *testing.T) {
	_, err := EmitOnly([]byte(`run { num x = "not a number"; };`), "x86_64")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "sema:")
}

func TestParseAndAnalyzeReturnsProgram(t *testing.T) {
	prog, err := ParseAndAnalyze([]byte(`run { num x = 1; };`))
	require.NoError(t, err)
	require.NotNil(t, prog)
	require.NotNil(t, prog.Run)
}

func TestEnvOrFallsBackWhenUnset(t *testing.T) {
	t.Setenv("CC_AS_TEST_UNSET", "")
	got := envOr("CC_AS_TEST_UNSET", "as")
	assert.Equal(t, "as", got)
}

func TestEnvOrUsesOverride(t *testing.T) {
	t.Setenv("CC_AS_TEST_SET", "my-custom-as")
	assert.Equal(t, "my-custom-as", envOr("CC_AS_TEST_SET", "as"))
}
