// Package driver orchestrates a compilation end to end: target
// auto-detection via `uname -m`, the in-process lex/parse/analyze/codegen
// pipeline, invocation of a platform-specific assembler and linker, and
// intermediate-file handling.
package driver

import (
	"bytes"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/litecode-org/lcc/internal/ast"
	"github.com/litecode-org/lcc/internal/codegen"
	"github.com/litecode-org/lcc/internal/codegen/arm32"
	"github.com/litecode-org/lcc/internal/codegen/arm64"
	"github.com/litecode-org/lcc/internal/codegen/x86_64"
	"github.com/litecode-org/lcc/internal/lexer"
	"github.com/litecode-org/lcc/internal/parser"
	"github.com/litecode-org/lcc/internal/sema"
)

// Options holds the resolved CLI configuration for one compilation,
// already parsed by the cmd/lcc entry point.
type Options struct {
	Input    string
	Output   string
	Target   string // "" means auto-detect via uname -m
	KeepAsm  bool
	Verbose  bool
}

// targetAliases maps every accepted --target spelling to its canonical
// backend name.
var targetAliases = map[string]string{
	"x86_64": "x86_64", "x86-64": "x86_64", "amd64": "x86_64",
	"arm64": "aarch64", "aarch64": "aarch64",
	"arm32": "arm", "arm": "arm", "armv7": "arm",
}

// unameAliases maps `uname -m` output to a canonical target name.
var unameAliases = map[string]string{
	"x86_64": "x86_64",
	"aarch64": "aarch64", "arm64": "aarch64",
	"armv7l": "arm", "armv6l": "arm", "arm": "arm",
}

// toolchain names the assembler/linker binary for a canonical target,
// plus any extra flags the assembler needs (x86-64's `as` takes --64).
type toolchain struct {
	assembler     string
	assemblerArgs []string
	linker        string
}

var toolchains = map[string]toolchain{
	"x86_64":  {assembler: "as", assemblerArgs: []string{"--64"}, linker: "ld"},
	"aarch64": {assembler: "aarch64-linux-gnu-as", linker: "aarch64-linux-gnu-ld"},
	"arm":     {assembler: "arm-linux-gnueabihf-as", linker: "arm-linux-gnueabihf-ld"},
}

func backendFor(target string) (codegen.Backend, error) {
	switch target {
	case "x86_64":
		return x86_64.New(), nil
	case "aarch64":
		return arm64.New(), nil
	case "arm":
		return arm32.New(), nil
	default:
		return nil, fmt.Errorf("unsupported target %q", target)
	}
}

// DetectTarget runs `uname -m` and maps its output through unameAliases.
func DetectTarget() (string, error) {
	out, err := exec.Command("uname", "-m").Output()
	if err != nil {
		return "", fmt.Errorf("uname -m: %w", err)
	}
	machine := strings.TrimSpace(string(out))
	target, ok := unameAliases[machine]
	if !ok {
		return "", fmt.Errorf("unrecognized machine type %q from uname -m", machine)
	}
	return target, nil
}

// ResolveTarget normalizes an explicit --target flag value, or auto-detects
// one when empty.
func ResolveTarget(flag string) (string, error) {
	if flag == "" {
		return DetectTarget()
	}
	target, ok := targetAliases[flag]
	if !ok {
		return "", fmt.Errorf("unknown target %q", flag)
	}
	return target, nil
}

// Compile runs the full pipeline: lex, parse, analyze, generate, assemble,
// link. Each failing phase returns an error already tagged with its phase
// name; callers print it to stderr and exit 1.
func Compile(opts Options) error {
	target, err := ResolveTarget(opts.Target)
	if err != nil {
		return fmt.Errorf("lcc: target: %w", err)
	}
	if opts.Verbose {
		fmt.Fprintf(os.Stderr, "lcc: target %s\n", target)
	}

	if !strings.HasSuffix(opts.Input, ".lc") {
		fmt.Fprintf(os.Stderr, "lcc: warning: input file %q does not end in .lc\n", opts.Input)
	}

	src, err := os.ReadFile(opts.Input)
	if err != nil {
		return fmt.Errorf("lcc: read: %w", err)
	}

	prog, err := compileToAsm(src, target, opts.Verbose)
	if err != nil {
		return err
	}

	base := opts.Output
	if base == "" {
		base = strings.TrimSuffix(filepath.Base(opts.Input), filepath.Ext(opts.Input))
	}
	asmPath := base + ".s"
	objPath := base + ".o"

	if err := os.WriteFile(asmPath, []byte(prog), 0o644); err != nil {
		return fmt.Errorf("lcc: write asm: %w", err)
	}
	if !opts.KeepAsm {
		defer os.Remove(asmPath)
	}

	tc := toolchains[target]
	assembler := envOr("CC_AS", tc.assembler)
	linker := envOr("CC_LD", tc.linker)

	if opts.Verbose {
		fmt.Fprintf(os.Stderr, "lcc: as %s\n", asmPath)
	}
	if err := runTool(assembler, append(append([]string{}, tc.assemblerArgs...), "-o", objPath, asmPath)...); err != nil {
		return fmt.Errorf("lcc: as: %w", err)
	}
	defer os.Remove(objPath)

	if opts.Verbose {
		fmt.Fprintf(os.Stderr, "lcc: ld %s\n", objPath)
	}
	if err := runTool(linker, "-o", base, objPath); err != nil {
		return fmt.Errorf("lcc: ld: %w", err)
	}
	return nil
}

// envOr returns the named environment variable's value, or fallback when
// unset. CC_AS and CC_LD override the per-target assembler/linker names.
func envOr(name, fallback string) string {
	if v, ok := os.LookupEnv(name); ok && v != "" {
		return v
	}
	return fallback
}

// compileToAsm runs lex/parse/sema/codegen in-process and returns the
// emitted assembly text.
func compileToAsm(src []byte, target string, verbose bool) (string, error) {
	if verbose {
		fmt.Fprintln(os.Stderr, "lcc: lexing")
	}
	toks := lexer.Lex(src)

	if verbose {
		fmt.Fprintln(os.Stderr, "lcc: parsing")
	}
	prog, err := parser.New(toks).ParseProgram()
	if err != nil {
		return "", fmt.Errorf("lcc: parse: %w", err)
	}

	if verbose {
		fmt.Fprintln(os.Stderr, "lcc: analyzing")
	}
	if err := sema.Analyze(prog); err != nil {
		return "", fmt.Errorf("lcc: sema: %w", err)
	}

	if verbose {
		fmt.Fprintln(os.Stderr, "lcc: generating code")
	}
	backend, err := backendFor(target)
	if err != nil {
		return "", fmt.Errorf("lcc: codegen: %w", err)
	}
	asm, err := backend.Emit(prog)
	if err != nil {
		return "", fmt.Errorf("lcc: codegen: %w", err)
	}
	return asm, nil
}

// EmitOnly runs the pipeline through code generation without invoking any
// external tool, for callers (and tests) that only need the assembly text.
func EmitOnly(src []byte, target string) (string, error) {
	return compileToAsm(src, target, false)
}

// ParseAndAnalyze is exposed for callers that want the validated tree
// itself rather than assembly text.
func ParseAndAnalyze(src []byte) (*ast.Program, error) {
	prog, err := parser.New(lexer.Lex(src)).ParseProgram()
	if err != nil {
		return nil, fmt.Errorf("lcc: parse: %w", err)
	}
	if err := sema.Analyze(prog); err != nil {
		return nil, fmt.Errorf("lcc: sema: %w", err)
	}
	return prog, nil
}

// runTool runs an external assembler/linker invocation, forwarding its
// combined stdout/stderr verbatim into the returned error.
func runTool(name string, args ...string) error {
	cmd := exec.Command(name, args...)
	var buf bytes.Buffer
	cmd.Stdout = &buf
	cmd.Stderr = &buf
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("%s failed: %s: %s", name, err, buf.String())
	}
	return nil
}
