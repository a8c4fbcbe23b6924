// Package arm64 is the AArch64 stub backend: it satisfies the same
// codegen.Backend interface as the x86-64 backend but only emits working
// code for trivial run blocks (no statements, or only print[] calls whose
// argument is a text literal), returning a clear error for anything else
// rather than silently emitting incorrect code.
package arm64

import (
	"fmt"
	"strings"

	"github.com/litecode-org/lcc/internal/ast"
)

// Backend implements codegen.Backend for the AArch64 stub: x29/x30 stacked
// in 16-byte pairs, svc #0 with syscall numbers in x8 (write = 64,
// exit = 93).
type Backend struct{}

func New() *Backend { return &Backend{} }

func (b *Backend) Target() string { return "aarch64" }

func (b *Backend) Emit(prog *ast.Program) (string, error) {
	if len(prog.Functions) > 0 {
		return "", fmt.Errorf("aarch64: user-defined functions are not supported by this stub backend")
	}

	var out strings.Builder
	out.WriteString("\t.text\n\t.global _start\n\n_start:\n")
	out.WriteString("\tstp x29, x30, [sp, #-16]!\n")
	out.WriteString("\tmov x29, sp\n")

	var literals []string
	for _, stmt := range prog.Run.Body {
		es, ok := stmt.(*ast.ExprStmt)
		if !ok {
			return "", fmt.Errorf("aarch64: unsupported construct %T; this stub only runs trivial print-only run blocks", stmt)
		}
		call, ok := es.X.(*ast.CallExpr)
		if !ok || call.Receiver != "" || call.Callee != "print" || len(call.Args) != 1 {
			return "", fmt.Errorf("aarch64: unsupported construct %T; this stub only runs trivial print-only run blocks", stmt)
		}
		lit, ok := call.Args[0].(*ast.TextLit)
		if !ok {
			return "", fmt.Errorf("aarch64: print argument must be a text literal in this stub backend")
		}
		label := fmt.Sprintf("str_%d", len(literals))
		literals = append(literals, lit.Value)
		out.WriteString(fmt.Sprintf("\tadrp x0, %s\n\tadd x0, x0, :lo12:%s\n", label, label))
		out.WriteString(fmt.Sprintf("\tmov x1, x0\n\tbl strlen_aarch64\n\tmov x2, x0\n"))
		out.WriteString("\tmov x0, #1\n\tmov x8, #64\n\tsvc #0\n")
	}

	out.WriteString("\tmov x0, #0\n\tmov x8, #93\n\tsvc #0\n\n")
	out.WriteString("strlen_aarch64:\n\tmov x9, #0\n.Lstrlen_loop:\n\tldrb w10, [x1, x9]\n\tcbz w10, .Lstrlen_done\n\tadd x9, x9, #1\n\tb .Lstrlen_loop\n.Lstrlen_done:\n\tmov x0, x9\n\tret\n\n")

	out.WriteString("\t.data\n")
	for i, s := range literals {
		fmt.Fprintf(&out, "str_%d:\n\t.asciz \"%s\"\n", i, s)
	}
	return out.String(), nil
}
