// Package x86_64 is the runtime-bearing backend: it walks a semantically
// validated program and emits GNU-assembler x86-64 text ready to hand to
// `as`/`ld`. Evaluation is a simple stack machine: results land in %rax,
// binary operators push the left side, evaluate the right, pop, and fuse.
// The string/IO runtime every generated program needs is emitted inline;
// see runtime.go.
package x86_64

import (
	"fmt"
	"strings"

	"github.com/litecode-org/lcc/internal/ast"
)

// Backend implements codegen.Backend for x86-64 Linux.
type Backend struct{}

func New() *Backend { return &Backend{} }

func (b *Backend) Target() string { return "x86_64" }

func (b *Backend) Emit(prog *ast.Program) (string, error) {
	c := newCompiler()
	return c.compile(prog)
}

// compiler carries the per-compilation state: the literal pool, the struct
// layout table rebuilt from the declaration list (codegen runs on its own
// after semantic analysis discards its registry), and the current
// function's stack-frame bookkeeping.
type compiler struct {
	em           *Emitter
	literals     map[string]string
	literalOrder []string
	structField  map[string]map[string]int // struct name -> field name -> slot index
	structSlots  map[string]int            // struct name -> total 8-byte slots
	funcs        map[string]*ast.FuncDecl

	locals     map[string]int    // name -> byte offset from %rbp (negative)
	folded     map[string]int64  // name -> folded value, for compile-time constants (no stack slot)
	foldedText map[string]string // name -> folded content, for text constants
	nextLocal  int               // next available negative offset
	hiddenSeq  int               // synthesized slot names (repeat subjects)
	inRun      bool
}

func newCompiler() *compiler {
	return &compiler{
		em:          NewEmitter(),
		literals:    make(map[string]string),
		structField: make(map[string]map[string]int),
		structSlots: make(map[string]int),
		funcs:       make(map[string]*ast.FuncDecl),
	}
}

func (c *compiler) compile(prog *ast.Program) (string, error) {
	for _, sd := range prog.Structs {
		fields := make(map[string]int, len(sd.Fields))
		for i, f := range sd.Fields {
			fields[f.Name] = i
		}
		c.structField[sd.Name] = fields
		c.structSlots[sd.Name] = len(sd.Fields)
	}
	for _, fd := range prog.Functions {
		c.funcs[fd.Name] = fd
	}

	// Pre-walk the tree once to populate the literal pool so every
	// distinct text content gets one label, emitted once in .data.
	c.collectLiterals(prog)

	c.em.Directive(".text")
	c.em.Directive(".global", "_start")
	c.em.BlankLine()

	c.em.Label("_start")
	c.emitFramePrologue()
	c.emitFrameReserve(c.frameSlots(prog.Run.Body))
	c.locals = make(map[string]int)
	c.folded = make(map[string]int64)
	c.foldedText = make(map[string]string)
	c.nextLocal = -8
	c.hiddenSeq = 0
	c.inRun = true
	for _, stmt := range prog.Run.Body {
		if err := c.emitStmt(stmt); err != nil {
			return "", err
		}
	}
	c.em.Comment("run block falls through to sys_exit(0)")
	c.em.Instr2("movq", "$60", "%rax")
	c.em.Instr2("movq", "$0", "%rdi")
	c.em.Instr0("syscall")
	c.em.BlankLine()

	for _, fd := range prog.Functions {
		if err := c.emitFunc(fd); err != nil {
			return "", err
		}
	}

	c.em.Raw(runtimeText)

	var out strings.Builder
	out.WriteString(c.em.String())
	out.WriteString("\n\t.data\n")
	c.emitDataSection(&out)
	return out.String(), nil
}

func (c *compiler) emitDataSection(out *strings.Builder) {
	for _, content := range c.literalOrder {
		label := c.literals[content]
		fmt.Fprintf(out, "%s:\n\t.asciz \"%s\"\n", label, escapeForAsm(content))
	}
	out.WriteString("input_buffer:\n\t.space 256\n")
	out.WriteString("temp_buffer:\n\t.space 64\n")
	out.WriteString("string_buffer:\n\t.space 4096\n")
}

// escapeForAsm re-escapes decoded text back into assembler string syntax.
func escapeForAsm(s string) string {
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '\n':
			b.WriteString(`\n`)
		case '\t':
			b.WriteString(`\t`)
		case '\r':
			b.WriteString(`\r`)
		case '\\':
			b.WriteString(`\\`)
		case '"':
			b.WriteString(`\"`)
		default:
			b.WriteByte(s[i])
		}
	}
	return b.String()
}

func (c *compiler) intern(content string) string {
	if label, ok := c.literals[content]; ok {
		return label
	}
	label := fmt.Sprintf("str_%d", len(c.literalOrder))
	c.literals[content] = label
	c.literalOrder = append(c.literalOrder, content)
	return label
}

// collectLiterals walks the whole tree to pre-intern every text content
// that will be referenced during emission, including the "true"/"false"
// constants used by boolean-to-string conversion.
func (c *compiler) collectLiterals(prog *ast.Program) {
	c.intern("true")
	c.intern("false")
	for _, fd := range prog.Functions {
		c.collectLiteralsStmts(fd.Body)
	}
	c.collectLiteralsStmts(prog.Run.Body)
}

func (c *compiler) collectLiteralsStmts(stmts []ast.Stmt) {
	for _, s := range stmts {
		c.collectLiteralsStmt(s)
	}
}

func (c *compiler) collectLiteralsStmt(s ast.Stmt) {
	switch st := s.(type) {
	case *ast.VarDecl:
		if st.Init != nil {
			c.collectLiteralsExpr(st.Init)
		}
	case *ast.Assign:
		c.collectLiteralsExpr(st.Value)
	case *ast.ArrayAssign:
		c.collectLiteralsExpr(st.Array)
		c.collectLiteralsExpr(st.Index)
		c.collectLiteralsExpr(st.Value)
	case *ast.MemberAssign:
		c.collectLiteralsExpr(st.Object)
		c.collectLiteralsExpr(st.Value)
	case *ast.IfStmt:
		c.collectLiteralsExpr(st.Cond)
		c.collectLiteralsStmts(st.Then)
		for _, ei := range st.ElseIfs {
			c.collectLiteralsExpr(ei.Cond)
			c.collectLiteralsStmts(ei.Body)
		}
		c.collectLiteralsStmts(st.Else)
	case *ast.ForStmt:
		if st.Init != nil {
			c.collectLiteralsStmt(st.Init)
		}
		if st.Cond != nil {
			c.collectLiteralsExpr(st.Cond)
		}
		if st.Incr != nil {
			c.collectLiteralsStmt(st.Incr)
		}
		c.collectLiteralsStmts(st.Body)
	case *ast.TryStmt:
		c.collectLiteralsStmts(st.Try)
		c.collectLiteralsStmts(st.Catch)
		c.collectLiteralsStmts(st.Finally)
	case *ast.RepeatStmt:
		c.collectLiteralsExpr(st.Subject)
		for _, cs := range st.Cases {
			c.collectLiteralsExpr(cs.Value)
			c.collectLiteralsStmts(cs.Body)
		}
		c.collectLiteralsStmts(st.Fixed)
	case *ast.ReturnStmt:
		if st.Value != nil {
			c.collectLiteralsExpr(st.Value)
		}
	case *ast.ExprStmt:
		c.collectLiteralsExpr(st.X)
	case *ast.Block:
		c.collectLiteralsStmts(st.Stmts)
	}
}

func (c *compiler) collectLiteralsExpr(e ast.Expr) {
	switch ex := e.(type) {
	case *ast.TextLit:
		c.intern(ex.Value)
	case *ast.InterpExpr:
		for _, p := range ex.Parts {
			c.intern(p)
		}
		for _, f := range ex.Formats {
			if f != ast.FmtNone {
				c.intern(string(f))
			}
		}
		for _, sub := range ex.Exprs {
			c.collectLiteralsExpr(sub)
		}
	case *ast.BinaryExpr:
		c.collectLiteralsExpr(ex.Left)
		c.collectLiteralsExpr(ex.Right)
	case *ast.UnaryExpr:
		c.collectLiteralsExpr(ex.Operand)
	case *ast.ConcatExpr:
		c.collectLiteralsExpr(ex.Left)
		c.collectLiteralsExpr(ex.Right)
	case *ast.CallExpr:
		for _, a := range ex.Args {
			c.collectLiteralsExpr(a)
		}
	case *ast.ArrayLit:
		for _, el := range ex.Elems {
			c.collectLiteralsExpr(el)
		}
	case *ast.ArrayAccess:
		c.collectLiteralsExpr(ex.Index)
	case *ast.MemberAccess:
		c.collectLiteralsExpr(ex.Target)
	case *ast.StructLit:
		for _, v := range ex.Values {
			c.collectLiteralsExpr(v)
		}
	}
}

// emitFramePrologue emits the shared `push %rbp; mov %rsp, %rbp` sequence.
func (c *compiler) emitFramePrologue() {
	c.em.Instr1("pushq", "%rbp")
	c.em.Instr2("movq", "%rsp", "%rbp")
}

// emitFrameReserve lowers %rsp past every local slot the body can allocate,
// so that the push/pop traffic of expression evaluation and calls never
// lands on local variables. The count is an upper bound from frameSlots;
// the epilogue's `movq %rbp, %rsp` releases it.
func (c *compiler) emitFrameReserve(slots int) {
	if slots == 0 {
		return
	}
	bytes := (8*slots + 15) &^ 15
	c.em.Instr2("subq", fmt.Sprintf("$%d", bytes), "%rsp")
}

// frameSlots counts the 8-byte stack slots a statement list can allocate:
// one per scalar declaration, one per field for struct-typed locals, the
// element count for arrays, and one hidden slot per repeat statement for
// its switched subject. Compile-time constants allocate nothing.
func (c *compiler) frameSlots(stmts []ast.Stmt) int {
	n := 0
	for _, s := range stmts {
		n += c.frameSlotsStmt(s)
	}
	return n
}

func (c *compiler) frameSlotsStmt(s ast.Stmt) int {
	switch st := s.(type) {
	case *ast.VarDecl:
		return c.declSlots(st)
	case *ast.IfStmt:
		n := c.frameSlots(st.Then) + c.frameSlots(st.Else)
		for _, ei := range st.ElseIfs {
			n += c.frameSlots(ei.Body)
		}
		return n
	case *ast.ForStmt:
		n := c.frameSlots(st.Body)
		if st.Init != nil {
			n += c.frameSlotsStmt(st.Init)
		}
		if st.Incr != nil {
			n += c.frameSlotsStmt(st.Incr)
		}
		return n
	case *ast.TryStmt:
		return c.frameSlots(st.Try) + c.frameSlots(st.Catch) + c.frameSlots(st.Finally)
	case *ast.RepeatStmt:
		n := 1 + c.frameSlots(st.Fixed)
		for _, cs := range st.Cases {
			n += c.frameSlots(cs.Body)
		}
		return n
	case *ast.Block:
		return c.frameSlots(st.Stmts)
	}
	return 0
}

func (c *compiler) declSlots(st *ast.VarDecl) int {
	if st.IsCompileTimeConst {
		return 0
	}
	t := st.DeclType
	switch {
	case t == nil:
		return 1
	case t.IsStruct():
		if slots := c.structSlots[t.StructName]; slots > 0 {
			return slots
		}
		return 1
	case t.IsArray():
		return c.arrayLen(st)
	default:
		return 1
	}
}

// arrayLen resolves the slot count of an array declaration: the declared
// fixed length, else the element count of an array-literal initializer,
// else a single slot.
func (c *compiler) arrayLen(st *ast.VarDecl) int {
	if st.DeclType.Len != ast.ArrayLenDynamic {
		return st.DeclType.Len
	}
	if lit, ok := st.Init.(*ast.ArrayLit); ok {
		return len(lit.Elems)
	}
	return 1
}

func (c *compiler) emitFrameEpilogue() {
	c.em.Instr2("movq", "%rbp", "%rsp")
	c.em.Instr1("popq", "%rbp")
	c.em.Instr0("ret")
}

var argRegs = []string{"%rdi", "%rsi", "%rdx", "%rcx", "%r8", "%r9"}

func (c *compiler) emitFunc(fd *ast.FuncDecl) error {
	c.em.Label(fd.Name)
	c.emitFramePrologue()
	c.emitFrameReserve(len(fd.Params) + c.frameSlots(fd.Body))
	c.locals = make(map[string]int)
	c.folded = make(map[string]int64)
	c.foldedText = make(map[string]string)
	c.nextLocal = -8
	c.hiddenSeq = 0
	c.inRun = false

	for i, p := range fd.Params {
		off := c.allocLocal(p.Name)
		if i < len(argRegs) {
			c.em.Instr2("movq", argRegs[i], fmt.Sprintf("%d(%%rbp)", off))
		} else {
			// Arguments beyond the sixth arrive on the stack above the
			// return address.
			spillOff := 16 + 8*(i-len(argRegs))
			c.em.Instr2("movq", fmt.Sprintf("%d(%%rbp)", spillOff), "%rax")
			c.em.Instr2("movq", "%rax", fmt.Sprintf("%d(%%rbp)", off))
		}
	}

	for _, stmt := range fd.Body {
		if err := c.emitStmt(stmt); err != nil {
			return err
		}
	}
	// Fallthrough for a function whose last statement is not `return`
	// (permitted for void functions).
	c.emitFrameEpilogue()
	c.em.BlankLine()
	return nil
}

// allocLocal assigns the next stack slot to name and returns its offset.
// Struct-typed locals go through allocLocalStruct, which reserves one slot
// per field.
func (c *compiler) allocLocal(name string) int {
	off := c.nextLocal
	c.locals[name] = off
	c.nextLocal -= 8
	return off
}

func (c *compiler) allocLocalStruct(name, structName string) int {
	base := c.nextLocal
	slots := c.structSlots[structName]
	if slots == 0 {
		slots = 1
	}
	c.locals[name] = base
	c.nextLocal -= 8 * slots
	return base
}

// allocLocalArray reserves length consecutive slots. The returned base is
// the most negative offset; element i lives at base + 8*i, matching the
// (%rcx, %rbx, 8) addressing of array loads and stores.
func (c *compiler) allocLocalArray(name string, length int) int {
	if length < 1 {
		length = 1
	}
	base := c.nextLocal - 8*(length-1)
	c.locals[name] = base
	c.nextLocal = base - 8
	return base
}

// ---------------------------------------------------------------------
// Statements
// ---------------------------------------------------------------------

func (c *compiler) emitStmt(stmt ast.Stmt) error {
	switch s := stmt.(type) {
	case *ast.VarDecl:
		return c.emitVarDecl(s)
	case *ast.Assign:
		return c.emitAssign(s)
	case *ast.ArrayAssign:
		return c.emitArrayAssign(s)
	case *ast.MemberAssign:
		return c.emitMemberAssign(s)
	case *ast.IfStmt:
		return c.emitIfStmt(s)
	case *ast.ForStmt:
		return c.emitForStmt(s)
	case *ast.TryStmt:
		return c.emitTryStmt(s)
	case *ast.RepeatStmt:
		return c.emitRepeatStmt(s)
	case *ast.ReturnStmt:
		return c.emitReturnStmt(s)
	case *ast.ExprStmt:
		return c.emitExpr(s.X)
	case *ast.Block:
		for _, inner := range s.Stmts {
			if err := c.emitStmt(inner); err != nil {
				return err
			}
		}
		return nil
	default:
		return fmt.Errorf("x86_64: unsupported statement %T", stmt)
	}
}

func (c *compiler) emitVarDecl(s *ast.VarDecl) error {
	if s.IsCompileTimeConst {
		// Compile-time constants allocate no stack slot at all;
		// references resolve through c.folded / c.foldedText and emit an
		// immediate (or a label for text constants) directly.
		if s.DeclType != nil && s.DeclType.IsText() {
			c.foldedText[s.Name] = s.FoldedText
		} else {
			c.folded[s.Name] = s.FoldedValue
		}
		return nil
	}
	switch {
	case s.DeclType != nil && s.DeclType.IsStruct():
		base := c.allocLocalStruct(s.Name, s.DeclType.StructName)
		if s.Init == nil {
			return nil
		}
		lit, ok := s.Init.(*ast.StructLit)
		if !ok {
			return fmt.Errorf("x86_64: struct %q must be initialized from a struct literal", s.Name)
		}
		return c.emitStructLitAt(lit, base)
	case s.DeclType != nil && s.DeclType.IsArray():
		base := c.allocLocalArray(s.Name, c.arrayLen(s))
		if lit, ok := s.Init.(*ast.ArrayLit); ok {
			return c.emitArrayLitAt(lit, base)
		}
	default:
		c.allocLocal(s.Name)
	}
	if s.Init == nil {
		return nil
	}
	if err := c.emitExpr(s.Init); err != nil {
		return err
	}
	off := c.locals[s.Name]
	c.em.Instr2("movq", "%rax", fmt.Sprintf("%d(%%rbp)", off))
	return nil
}

func (c *compiler) emitAssign(s *ast.Assign) error {
	off, ok := c.locals[s.Name]
	if !ok {
		return fmt.Errorf("x86_64: unknown local %q", s.Name)
	}
	if lit, ok := s.Value.(*ast.StructLit); ok {
		return c.emitStructLitAt(lit, off)
	}
	if err := c.emitExpr(s.Value); err != nil {
		return err
	}
	c.em.Instr2("movq", "%rax", fmt.Sprintf("%d(%%rbp)", off))
	return nil
}

func (c *compiler) emitArrayAssign(s *ast.ArrayAssign) error {
	ident, ok := s.Array.(*ast.Ident)
	if !ok {
		return fmt.Errorf("x86_64: array assignment target must be an identifier")
	}
	base, ok := c.locals[ident.Name]
	if !ok {
		return fmt.Errorf("x86_64: unknown array %q", ident.Name)
	}
	if err := c.emitExpr(s.Index); err != nil {
		return err
	}
	c.em.Instr1("pushq", "%rax")
	if err := c.emitExpr(s.Value); err != nil {
		return err
	}
	c.em.Instr1("popq", "%rbx")
	c.em.Comment("array store: base(%%rbp)+idx*8")
	c.em.Instr2("leaq", fmt.Sprintf("%d(%%rbp)", base), "%rcx")
	c.em.Instr2("movq", "%rax", "(%rcx, %rbx, 8)")
	return nil
}

func (c *compiler) emitMemberAssign(s *ast.MemberAssign) error {
	ident, ok := s.Object.(*ast.Ident)
	if !ok {
		return fmt.Errorf("x86_64: member assignment target must be an identifier")
	}
	structName := s.Object.Type().StructName
	base, ok := c.locals[ident.Name]
	if !ok {
		return fmt.Errorf("x86_64: unknown struct variable %q", ident.Name)
	}
	slot := c.structField[structName][s.Field]
	if err := c.emitExpr(s.Value); err != nil {
		return err
	}
	off := base - 8*slot
	c.em.Instr2("movq", "%rax", fmt.Sprintf("%d(%%rbp)", off))
	return nil
}

// emitIfStmt lowers the whole if / or ("else if") / else chain to a linear
// compare-branch sequence with fresh labels per arm.
func (c *compiler) emitIfStmt(s *ast.IfStmt) error {
	end := c.em.NewLabel("if_end")
	nextLabel := c.em.NewLabel("if_next")

	if err := c.emitExpr(s.Cond); err != nil {
		return err
	}
	c.em.Instr2("cmpq", "$0", "%rax")
	c.em.Instr1("je", nextLabel)
	for _, stmt := range s.Then {
		if err := c.emitStmt(stmt); err != nil {
			return err
		}
	}
	c.em.Instr1("jmp", end)
	c.em.Label(nextLabel)

	for _, ei := range s.ElseIfs {
		next := c.em.NewLabel("if_next")
		if err := c.emitExpr(ei.Cond); err != nil {
			return err
		}
		c.em.Instr2("cmpq", "$0", "%rax")
		c.em.Instr1("je", next)
		for _, stmt := range ei.Body {
			if err := c.emitStmt(stmt); err != nil {
				return err
			}
		}
		c.em.Instr1("jmp", end)
		c.em.Label(next)
	}

	if s.HasElse {
		for _, stmt := range s.Else {
			if err := c.emitStmt(stmt); err != nil {
				return err
			}
		}
	}
	c.em.Label(end)
	return nil
}

func (c *compiler) emitForStmt(s *ast.ForStmt) error {
	if s.Init != nil {
		if err := c.emitStmt(s.Init); err != nil {
			return err
		}
	}
	top := c.em.NewLabel("for_top")
	end := c.em.NewLabel("for_end")
	c.em.Label(top)
	if s.Cond != nil {
		if err := c.emitExpr(s.Cond); err != nil {
			return err
		}
		c.em.Instr2("cmpq", "$0", "%rax")
		c.em.Instr1("je", end)
	}
	for _, stmt := range s.Body {
		if err := c.emitStmt(stmt); err != nil {
			return err
		}
	}
	if s.Incr != nil {
		if err := c.emitStmt(s.Incr); err != nil {
			return err
		}
	}
	c.em.Instr1("jmp", top)
	c.em.Label(end)
	return nil
}

// emitTryStmt runs try/catch/finally bodies sequentially: the try body
// always runs, the catch body never does, the finally body always runs
// after. There is no unwinding runtime.
func (c *compiler) emitTryStmt(s *ast.TryStmt) error {
	for _, stmt := range s.Try {
		if err := c.emitStmt(stmt); err != nil {
			return err
		}
	}
	if s.HasFinally {
		for _, stmt := range s.Finally {
			if err := c.emitStmt(stmt); err != nil {
				return err
			}
		}
	}
	return nil
}

func (c *compiler) emitRepeatStmt(s *ast.RepeatStmt) error {
	if err := c.emitExpr(s.Subject); err != nil {
		return err
	}
	// The subject is held in a hidden slot and reloaded into %rdx before
	// each compare, so a case value whose evaluation clobbers %rdx
	// (division, calls) cannot corrupt later comparisons.
	c.hiddenSeq++
	subjOff := c.allocLocal(fmt.Sprintf(".repeat%d", c.hiddenSeq))
	c.em.Instr2("movq", "%rax", fmt.Sprintf("%d(%%rbp)", subjOff))
	end := c.em.NewLabel("repeat_end")
	fixed := end
	if s.HasFixed {
		fixed = c.em.NewLabel("repeat_fixed")
	}

	caseLabels := make([]string, len(s.Cases))
	for i := range s.Cases {
		caseLabels[i] = c.em.NewLabel("repeat_case")
	}
	for i, cs := range s.Cases {
		if err := c.emitExpr(cs.Value); err != nil {
			return err
		}
		c.em.Instr2("movq", fmt.Sprintf("%d(%%rbp)", subjOff), "%rdx")
		c.em.Instr2("cmpq", "%rdx", "%rax")
		c.em.Instr1("je", caseLabels[i])
	}
	c.em.Instr1("jmp", fixed)

	for i, cs := range s.Cases {
		c.em.Label(caseLabels[i])
		for _, stmt := range cs.Body {
			if err := c.emitStmt(stmt); err != nil {
				return err
			}
		}
		c.em.Instr1("jmp", end)
	}

	if s.HasFixed {
		c.em.Label(fixed)
		for _, stmt := range s.Fixed {
			if err := c.emitStmt(stmt); err != nil {
				return err
			}
		}
	}
	c.em.Label(end)
	return nil
}

func (c *compiler) emitReturnStmt(s *ast.ReturnStmt) error {
	if s.Value != nil {
		if err := c.emitExpr(s.Value); err != nil {
			return err
		}
	}
	if c.inRun {
		// The run block has no caller to return to; a return there exits
		// the process the same way the block's fallthrough does.
		c.em.Instr2("movq", "$60", "%rax")
		c.em.Instr2("movq", "$0", "%rdi")
		c.em.Instr0("syscall")
		return nil
	}
	c.emitFrameEpilogue()
	return nil
}

// ---------------------------------------------------------------------
// Expressions: result always left in %rax.
// ---------------------------------------------------------------------

// emitExpr emits e, leaving the result in %rax.
func (c *compiler) emitExpr(e ast.Expr) error {
	switch ex := e.(type) {
	case *ast.NumberLit:
		c.em.Instr2("movq", fmt.Sprintf("$%d", ex.Value), "%rax")
		return nil
	case *ast.TextLit:
		c.em.Instr2("leaq", fmt.Sprintf("%s(%%rip)", c.intern(ex.Value)), "%rax")
		return nil
	case *ast.CharLit:
		c.em.Instr2("movq", fmt.Sprintf("$%d", ex.Value), "%rax")
		return nil
	case *ast.BoolLit:
		v := 0
		if ex.Value {
			v = 1
		}
		c.em.Instr2("movq", fmt.Sprintf("$%d", v), "%rax")
		return nil
	case *ast.NullLit:
		c.em.Instr2("movq", "$0", "%rax")
		return nil
	case *ast.Ident:
		if v, ok := c.folded[ex.Name]; ok {
			c.em.Instr2("movq", fmt.Sprintf("$%d", v), "%rax")
			return nil
		}
		if txt, ok := c.foldedText[ex.Name]; ok {
			c.em.Instr2("leaq", fmt.Sprintf("%s(%%rip)", c.intern(txt)), "%rax")
			return nil
		}
		off, ok := c.locals[ex.Name]
		if !ok {
			return fmt.Errorf("x86_64: unknown identifier %q", ex.Name)
		}
		c.em.Instr2("movq", fmt.Sprintf("%d(%%rbp)", off), "%rax")
		return nil
	case *ast.BinaryExpr:
		return c.emitBinaryExpr(ex)
	case *ast.UnaryExpr:
		return c.emitUnaryExpr(ex)
	case *ast.ConcatExpr:
		return c.emitConcatExpr(ex)
	case *ast.InterpExpr:
		return c.emitInterpExpr(ex)
	case *ast.CallExpr:
		return c.emitCallExpr(ex)
	case *ast.ArrayAccess:
		return c.emitArrayAccess(ex)
	case *ast.MemberAccess:
		return c.emitMemberAccess(ex)
	case *ast.StructLit:
		return fmt.Errorf("x86_64: struct literal is only supported as a declaration or assignment value")
	case *ast.ArrayLit:
		return fmt.Errorf("x86_64: array literal is only supported as a declaration initializer")
	default:
		return fmt.Errorf("x86_64: unsupported expression %T", e)
	}
}

// emitBinaryExpr pushes the left result, evaluates the right into %rax,
// pops the left into %rbx, and fuses.
func (c *compiler) emitBinaryExpr(e *ast.BinaryExpr) error {
	if err := c.emitExpr(e.Left); err != nil {
		return err
	}
	c.em.Instr1("pushq", "%rax")
	if err := c.emitExpr(e.Right); err != nil {
		return err
	}
	c.em.Instr1("popq", "%rbx")

	switch e.Op {
	case ast.OpAdd:
		c.em.Instr2("addq", "%rbx", "%rax")
	case ast.OpSub:
		c.em.Instr2("subq", "%rax", "%rbx")
		c.em.Instr2("movq", "%rbx", "%rax")
	case ast.OpMul:
		c.em.Instr2("imulq", "%rbx", "%rax")
	case ast.OpDiv, ast.OpMod:
		// Dividend is the left operand (in %rbx after the pop), divisor
		// the right. A zero right-hand side traps with SIGFPE here.
		c.em.Instr2("movq", "%rax", "%rcx")
		c.em.Instr2("movq", "%rbx", "%rax")
		c.em.Instr0("cqto")
		c.em.Instr1("idivq", "%rcx")
		if e.Op == ast.OpMod {
			c.em.Instr2("movq", "%rdx", "%rax")
		}
	case ast.OpEq, ast.OpNe, ast.OpLt, ast.OpGt, ast.OpLe, ast.OpGe:
		c.em.Instr2("cmpq", "%rax", "%rbx")
		setcc := map[ast.BinOp]string{
			ast.OpEq: "sete", ast.OpNe: "setne",
			ast.OpLt: "setl", ast.OpGt: "setg",
			ast.OpLe: "setle", ast.OpGe: "setge",
		}[e.Op]
		c.em.Instr1(setcc, "%al")
		c.em.Instr2("movzbq", "%al", "%rax")
	case ast.OpAnd:
		c.em.Instr2("andq", "%rbx", "%rax")
	case ast.OpOr:
		c.em.Instr2("orq", "%rbx", "%rax")
	default:
		return fmt.Errorf("x86_64: unsupported binary operator")
	}
	return nil
}

func (c *compiler) emitUnaryExpr(e *ast.UnaryExpr) error {
	if err := c.emitExpr(e.Operand); err != nil {
		return err
	}
	switch e.Op {
	case ast.OpNeg:
		c.em.Instr1("negq", "%rax")
	case ast.OpPos:
		// no-op
	case ast.OpNot:
		c.em.Instr2("xorq", "$1", "%rax")
	}
	return nil
}

// conversionCallFor returns the runtime routine that converts a value of
// type t to a text pointer; text needs none.
func conversionCallFor(t *ast.Type) string {
	switch {
	case t.IsText():
		return ""
	case t.IsNumeric():
		return "num_to_string"
	case t.IsChar():
		return "char_to_string"
	case t.IsBool():
		return "bool_to_string"
	default:
		return "print_value_auto"
	}
}

func (c *compiler) emitConcatExpr(e *ast.ConcatExpr) error {
	if err := c.emitExpr(e.Left); err != nil {
		return err
	}
	if call := conversionCallFor(e.Left.Type()); call != "" {
		c.em.Instr2("movq", "%rax", "%rdi")
		c.em.Instr1("call", call)
		if usesTempBuffer(call) {
			// The right operand's conversion would overwrite temp_buffer
			// before string_concat reads it; flush the left string into
			// string_buffer first.
			c.em.Instr2("movq", "%rax", "%rdi")
			c.em.Instr2("leaq", fmt.Sprintf("%s(%%rip)", c.intern("")), "%rsi")
			c.em.Instr1("call", "string_concat")
		}
	}
	c.em.Instr1("pushq", "%rax")

	if err := c.emitExpr(e.Right); err != nil {
		return err
	}
	if call := conversionCallFor(e.Right.Type()); call != "" {
		c.em.Instr2("movq", "%rax", "%rdi")
		c.em.Instr1("call", call)
	}
	c.em.Instr2("movq", "%rax", "%rsi")
	c.em.Instr1("popq", "%rdi")
	c.em.Instr1("call", "string_concat")
	return nil
}

// usesTempBuffer reports whether a conversion routine's result lives in the
// shared temp_buffer and is therefore clobbered by the next conversion.
func usesTempBuffer(call string) bool {
	return call == "num_to_string" || call == "char_to_string"
}

// emitInterpExpr lowers a string interpolation to the string_interpolate
// runtime routine's stack layout: [expr_count, parts_count, parts...,
// (value, format)...], pushed so expr_count sits on top at the call. The
// caller cleans the layout back off afterward.
func (c *compiler) emitInterpExpr(e *ast.InterpExpr) error {
	k := len(e.Exprs)
	for i := k - 1; i >= 0; i-- {
		if label := c.formatLabelFor(e.Formats[i], e.Exprs[i].Type()); label != "" {
			c.em.Instr2("leaq", fmt.Sprintf("%s(%%rip)", label), "%rax")
			c.em.Instr1("pushq", "%rax")
		} else {
			c.em.Instr1("pushq", "$0")
		}
		if err := c.emitExpr(e.Exprs[i]); err != nil {
			return err
		}
		c.em.Instr1("pushq", "%rax")
	}
	for j := k; j >= 0; j-- {
		c.em.Instr2("leaq", fmt.Sprintf("%s(%%rip)", c.intern(e.Parts[j])), "%rax")
		c.em.Instr1("pushq", "%rax")
	}
	c.em.Instr1("pushq", fmt.Sprintf("$%d", k+1))
	c.em.Instr1("pushq", fmt.Sprintf("$%d", k))
	c.em.Instr1("call", "string_interpolate")
	c.em.Instr2("addq", fmt.Sprintf("$%d", 8*(2+(k+1)+2*k)), "%rsp")
	return nil
}

// formatLabelFor resolves the format string passed to
// value_to_string_formatted for one interpolation hole. An explicit
// specifier wins; with none, the hole's static type picks the converter
// (text stays a pointer, char and bool use the internal :c/:b specifiers,
// numbers take the routine's default path).
func (c *compiler) formatLabelFor(f ast.FormatSpec, t *ast.Type) string {
	if f != ast.FmtNone {
		return c.intern(string(f))
	}
	switch {
	case t != nil && t.IsText():
		return c.intern(":s")
	case t != nil && t.IsChar():
		return c.intern(":c")
	case t != nil && t.IsBool():
		return c.intern(":b")
	}
	return ""
}

func (c *compiler) emitCallExpr(e *ast.CallExpr) error {
	if e.Receiver != "" {
		return c.emitBuiltinReceiverCall(e)
	}
	switch e.Callee {
	case "print":
		return c.emitPrintCall(e)
	case "read":
		return c.emitReadCall(e, "")
	}
	if _, ok := c.funcs[e.Callee]; !ok {
		return fmt.Errorf("x86_64: call to undefined function %q", e.Callee)
	}
	// Arguments beyond the sixth travel on the stack: pushed first,
	// last-to-seventh, so that after the register pops the seventh
	// argument sits at (%rsp) and lands at 16(%rbp) in the callee.
	for i := len(e.Args) - 1; i >= len(argRegs); i-- {
		if err := c.emitExpr(e.Args[i]); err != nil {
			return err
		}
		c.em.Instr1("pushq", "%rax")
	}
	nreg := len(e.Args)
	if nreg > len(argRegs) {
		nreg = len(argRegs)
	}
	for i := 0; i < nreg; i++ {
		if err := c.emitExpr(e.Args[i]); err != nil {
			return err
		}
		c.em.Instr1("pushq", "%rax")
	}
	// Pop pushed register args in reverse so argRegs[0] gets the first
	// argument, then issue the call.
	for i := nreg - 1; i >= 0; i-- {
		c.em.Instr1("popq", argRegs[i])
	}
	c.em.Instr1("call", e.Callee)
	if spilled := len(e.Args) - nreg; spilled > 0 {
		c.em.Instr2("addq", fmt.Sprintf("$%d", 8*spilled), "%rsp")
	}
	return nil
}

// emitPrintCall inspects the argument's static type: numeric, char, and
// boolean values go through their specific converter; text goes straight
// to print_string; only a value with no static type falls back to the
// print_value_auto heuristic.
func (c *compiler) emitPrintCall(e *ast.CallExpr) error {
	if len(e.Args) != 1 {
		return fmt.Errorf("x86_64: print takes exactly one argument")
	}
	arg := e.Args[0]
	if err := c.emitExpr(arg); err != nil {
		return err
	}
	argType := arg.Type()
	switch {
	case argType != nil && argType.IsText():
		c.em.Instr2("movq", "%rax", "%rdi")
		c.em.Instr1("call", "print_string")
	case argType != nil && (argType.IsNumeric() || argType.IsChar() || argType.IsBool()):
		c.em.Instr2("movq", "%rax", "%rdi")
		c.em.Instr1("call", conversionCallFor(argType))
		c.em.Instr2("movq", "%rax", "%rdi")
		c.em.Instr1("call", "print_string")
	default:
		c.em.Instr2("movq", "%rax", "%rdi")
		c.em.Instr1("call", "print_value_auto")
	}
	return nil
}

func (c *compiler) emitReadCall(e *ast.CallExpr, convert string) error {
	if len(e.Args) == 1 {
		if err := c.emitExpr(e.Args[0]); err != nil {
			return err
		}
		c.em.Instr2("movq", "%rax", "%rdi")
		c.em.Instr1("call", "print_string")
	}
	c.em.Instr1("call", "read_string")
	if convert != "" {
		c.em.Instr2("movq", "%rax", "%rdi")
		c.em.Instr1("call", convert)
	}
	return nil
}

func (c *compiler) emitBuiltinReceiverCall(e *ast.CallExpr) error {
	convert := map[string]string{
		"num":  "string_to_num",
		"text": "",
		"char": "string_to_char",
		"bool": "string_to_bool",
	}[e.Receiver]
	return c.emitReadCall(e, convert)
}

func (c *compiler) emitArrayAccess(e *ast.ArrayAccess) error {
	base, ok := c.locals[e.Target.Name]
	if !ok {
		return fmt.Errorf("x86_64: unknown array %q", e.Target.Name)
	}
	if err := c.emitExpr(e.Index); err != nil {
		return err
	}
	c.em.Instr2("movq", "%rax", "%rbx")
	c.em.Instr2("leaq", fmt.Sprintf("%d(%%rbp)", base), "%rcx")
	c.em.Instr2("movq", "(%rcx, %rbx, 8)", "%rax")
	return nil
}

func (c *compiler) emitMemberAccess(e *ast.MemberAccess) error {
	ident, ok := e.Target.(*ast.Ident)
	if !ok {
		return fmt.Errorf("x86_64: member access target must be an identifier")
	}
	structName := e.Target.Type().StructName
	base, ok := c.locals[ident.Name]
	if !ok {
		return fmt.Errorf("x86_64: unknown struct variable %q", ident.Name)
	}
	slot := c.structField[structName][e.Field]
	off := base - 8*slot
	c.em.Instr2("movq", fmt.Sprintf("%d(%%rbp)", off), "%rax")
	return nil
}

// emitStructLitAt writes each field value of a struct literal into the
// slots reserved at base for the declared (or assigned) local, then leaves
// the base address in %rax.
func (c *compiler) emitStructLitAt(e *ast.StructLit, base int) error {
	fieldSlots, ok := c.structField[e.TypeName]
	if !ok {
		return fmt.Errorf("x86_64: unknown struct type %q", e.TypeName)
	}
	for i, fname := range e.Fields {
		if err := c.emitExpr(e.Values[i]); err != nil {
			return err
		}
		off := base - 8*fieldSlots[fname]
		c.em.Instr2("movq", "%rax", fmt.Sprintf("%d(%%rbp)", off))
	}
	c.em.Instr2("leaq", fmt.Sprintf("%d(%%rbp)", base), "%rax")
	return nil
}

// emitArrayLitAt writes each element of an array literal into consecutive
// slots starting at base, then leaves the base address in %rax.
func (c *compiler) emitArrayLitAt(e *ast.ArrayLit, base int) error {
	for i, el := range e.Elems {
		if err := c.emitExpr(el); err != nil {
			return err
		}
		c.em.Instr2("movq", "%rax", fmt.Sprintf("%d(%%rbp)", base+8*i))
	}
	c.em.Instr2("leaq", fmt.Sprintf("%d(%%rbp)", base), "%rax")
	return nil
}
