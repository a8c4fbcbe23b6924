// Package arm32 is the ARMv7 stub backend: it satisfies the same
// codegen.Backend interface as the x86-64 backend but only emits working
// code for trivial print-only run blocks, matching arm64's stub contract
// with ARMv7's own register/syscall conventions.
package arm32

import (
	"fmt"
	"strings"

	"github.com/litecode-org/lcc/internal/ast"
)

// Backend implements codegen.Backend for the ARMv7 stub: fp/lr pushes,
// svc #0 with syscall numbers in r7 (write = 4, exit = 1).
type Backend struct{}

func New() *Backend { return &Backend{} }

func (b *Backend) Target() string { return "arm" }

func (b *Backend) Emit(prog *ast.Program) (string, error) {
	if len(prog.Functions) > 0 {
		return "", fmt.Errorf("arm: user-defined functions are not supported by this stub backend")
	}

	var out strings.Builder
	out.WriteString("\t.text\n\t.global _start\n\n_start:\n")
	out.WriteString("\tpush {fp, lr}\n\tmov fp, sp\n")

	var literals []string
	for _, stmt := range prog.Run.Body {
		es, ok := stmt.(*ast.ExprStmt)
		if !ok {
			return "", fmt.Errorf("arm: unsupported construct %T; this stub only runs trivial print-only run blocks", stmt)
		}
		call, ok := es.X.(*ast.CallExpr)
		if !ok || call.Receiver != "" || call.Callee != "print" || len(call.Args) != 1 {
			return "", fmt.Errorf("arm: unsupported construct %T; this stub only runs trivial print-only run blocks", stmt)
		}
		lit, ok := call.Args[0].(*ast.TextLit)
		if !ok {
			return "", fmt.Errorf("arm: print argument must be a text literal in this stub backend")
		}
		label := fmt.Sprintf("str_%d", len(literals))
		literals = append(literals, lit.Value)
		out.WriteString(fmt.Sprintf("\tldr r1, =%s\n\tbl strlen_arm\n\tmov r2, r0\n", label))
		out.WriteString(fmt.Sprintf("\tldr r1, =%s\n\tmov r0, #1\n\tmov r7, #4\n\tsvc #0\n", label))
	}

	out.WriteString("\tmov r0, #0\n\tmov r7, #1\n\tsvc #0\n\n")
	out.WriteString("strlen_arm:\n\tmov r2, #0\n.Lstrlen_loop:\n\tldrb r3, [r1, r2]\n\tcmp r3, #0\n\tbeq .Lstrlen_done\n\tadd r2, r2, #1\n\tb .Lstrlen_loop\n.Lstrlen_done:\n\tmov r0, r2\n\tbx lr\n\n")

	out.WriteString("\t.data\n")
	for i, s := range literals {
		fmt.Fprintf(&out, "str_%d:\n\t.asciz \"%s\"\n", i, s)
	}
	return out.String(), nil
}
