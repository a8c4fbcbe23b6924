// Package codegen defines the interface every litecode backend satisfies.
package codegen

import "github.com/litecode-org/lcc/internal/ast"

// Backend consumes a semantically validated program and emits target
// assembly text. Target is the GNU triple-ish name the backend identifies
// itself with in diagnostics (e.g. "x86_64", "aarch64", "arm").
type Backend interface {
	Target() string
	Emit(prog *ast.Program) (string, error)
}
