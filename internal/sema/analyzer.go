// Package sema implements the two-pass semantic analyzer: a
// symbol-registration pass followed by a type-checking pass that also
// enforces null safety and constant immutability and performs eager
// constant folding. Analysis halts on the first failure.
package sema

import (
	"fmt"

	"github.com/litecode-org/lcc/internal/ast"
)

// funcSig is a registered function signature.
type funcSig struct {
	Params []*ast.Type
	Ret    *ast.Type
}

// scope is one entry of the analyzer's scope stack, pushed and popped at
// function and block boundaries.
type scope struct {
	vars map[string]*binding
}

type binding struct {
	typ          *ast.Type
	isConst      bool
	isFolded     bool
	folded       int64
	isTextFolded bool
	foldedText   string
}

func newScope() *scope { return &scope{vars: make(map[string]*binding)} }

// Analyzer walks a syntactically valid Program and checks its typing and
// naming rules.
type Analyzer struct {
	structs   *ast.StructRegistry
	functions map[string]funcSig
	scopes    []*scope
}

// New creates an Analyzer backed by a fresh struct registry.
func New() *Analyzer {
	return &Analyzer{
		structs:   ast.NewStructRegistry(),
		functions: make(map[string]funcSig),
	}
}

// Analyze runs both passes over prog. On success every expression node's
// type has been filled in and every compile-time-constant VarDecl carries
// its folded value.
func Analyze(prog *ast.Program) error {
	a := New()
	return a.Analyze(prog)
}

func (a *Analyzer) Analyze(prog *ast.Program) error {
	if err := a.buildSymbolTables(prog); err != nil {
		return err
	}
	return a.typeCheck(prog)
}

// ---------------------------------------------------------------------
// Pass 1: registration
// ---------------------------------------------------------------------

func (a *Analyzer) buildSymbolTables(prog *ast.Program) error {
	for _, sd := range prog.Structs {
		if err := a.structs.Define(sd.Name, toStructFields(sd.Fields)); err != nil {
			return errAt(sd.Pos(), err.Error())
		}
	}
	for _, fd := range prog.Functions {
		if _, exists := a.functions[fd.Name]; exists {
			return errAt(fd.Pos(), "duplicate function definition: %s", fd.Name)
		}
		sig := funcSig{Ret: fd.ReturnType}
		for _, p := range fd.Params {
			sig.Params = append(sig.Params, p.Type)
		}
		a.functions[fd.Name] = sig
	}
	return nil
}

func toStructFields(fields []ast.StructField) []ast.StructField {
	out := make([]ast.StructField, len(fields))
	copy(out, fields)
	return out
}

// ---------------------------------------------------------------------
// Pass 2: type checking
// ---------------------------------------------------------------------

func (a *Analyzer) typeCheck(prog *ast.Program) error {
	for _, fd := range prog.Functions {
		if err := a.checkFunc(fd); err != nil {
			return err
		}
	}
	a.pushScope()
	defer a.popScope()
	for _, stmt := range prog.Run.Body {
		if err := a.checkStmt(stmt, ast.Void()); err != nil {
			return err
		}
	}
	return nil
}

func (a *Analyzer) pushScope() { a.scopes = append(a.scopes, newScope()) }
func (a *Analyzer) popScope()  { a.scopes = a.scopes[:len(a.scopes)-1] }

// define binds name in the current scope frame. Declared identifiers are
// unique within their scope; a second declaration is an error.
func (a *Analyzer) define(name string, typ *ast.Type, isConst bool) error {
	top := a.scopes[len(a.scopes)-1]
	if _, exists := top.vars[name]; exists {
		return fmt.Errorf("duplicate declaration: %s", name)
	}
	top.vars[name] = &binding{typ: typ, isConst: isConst}
	return nil
}

// lookup searches the scope stack innermost-first.
func (a *Analyzer) lookup(name string) (*binding, bool) {
	for i := len(a.scopes) - 1; i >= 0; i-- {
		if b, ok := a.scopes[i].vars[name]; ok {
			return b, true
		}
	}
	return nil, false
}

func (a *Analyzer) checkFunc(fd *ast.FuncDecl) error {
	a.pushScope()
	defer a.popScope()
	for _, p := range fd.Params {
		if err := a.define(p.Name, p.Type, p.IsConst); err != nil {
			return errAt(fd.Pos(), "%s in parameters of %q", err, fd.Name)
		}
	}
	for _, stmt := range fd.Body {
		if err := a.checkStmt(stmt, fd.ReturnType); err != nil {
			return err
		}
	}
	return nil
}

// ---------------------------------------------------------------------
// Statements
// ---------------------------------------------------------------------

func (a *Analyzer) checkStmt(stmt ast.Stmt, fnRet *ast.Type) error {
	switch s := stmt.(type) {
	case *ast.VarDecl:
		return a.checkVarDecl(s)
	case *ast.Assign:
		return a.checkAssign(s)
	case *ast.ArrayAssign:
		return a.checkArrayAssign(s)
	case *ast.MemberAssign:
		return a.checkMemberAssign(s)
	case *ast.IfStmt:
		return a.checkIfStmt(s, fnRet)
	case *ast.ForStmt:
		return a.checkForStmt(s, fnRet)
	case *ast.TryStmt:
		return a.checkTryStmt(s, fnRet)
	case *ast.RepeatStmt:
		return a.checkRepeatStmt(s, fnRet)
	case *ast.ReturnStmt:
		return a.checkReturnStmt(s, fnRet)
	case *ast.ExprStmt:
		_, err := a.checkExpr(s.X)
		return err
	case *ast.Block:
		a.pushScope()
		defer a.popScope()
		for _, inner := range s.Stmts {
			if err := a.checkStmt(inner, fnRet); err != nil {
				return err
			}
		}
		return nil
	default:
		return errAt(stmt.Pos(), "internal: unhandled statement type %T", stmt)
	}
}

func (a *Analyzer) checkVarDecl(s *ast.VarDecl) error {
	if s.IsConst && s.Init == nil {
		return errAt(s.Pos(), "constant %q requires an initializer", s.Name)
	}
	var initType *ast.Type
	if s.Init != nil {
		t, err := a.checkExpr(s.Init)
		if err != nil {
			return err
		}
		initType = t
		if s.DeclType != nil && !s.DeclType.Equal(initType) && !initType.AssignableTo(s.DeclType) {
			return errAt(s.Pos(), "cannot initialize %s %q with value of type %s", s.DeclType, s.Name, initType)
		}
	}
	declType := s.DeclType
	if declType == nil {
		declType = initType
	}
	if declType == nil {
		return errAt(s.Pos(), "variable %q has no type", s.Name)
	}
	if err := a.define(s.Name, declType, s.IsConst); err != nil {
		return errAt(s.Pos(), "%s", err)
	}

	if s.IsConst && s.Init != nil {
		b := a.scopes[len(a.scopes)-1].vars[s.Name]
		if txt, ok := a.foldTextConst(s.Init); ok {
			s.IsCompileTimeConst = true
			s.FoldedText = txt
			b.isTextFolded = true
			b.foldedText = txt
			return nil
		}
		v, ok, divZero := a.foldConstChecked(s.Init)
		if divZero {
			return errAt(s.Pos(), "division by zero in constant expression")
		}
		if !ok {
			return errAt(s.Pos(), "constant %q initialized from non-compile-time-constant expression", s.Name)
		}
		s.IsCompileTimeConst = true
		s.FoldedValue = v
		b.isFolded = true
		b.folded = v
	}
	return nil
}

func (a *Analyzer) checkAssign(s *ast.Assign) error {
	b, ok := a.lookup(s.Name)
	if !ok {
		return errAt(s.Pos(), "undefined variable %q", s.Name)
	}
	if b.isConst {
		return errAt(s.Pos(), "cannot assign to constant %q", s.Name)
	}
	vt, err := a.checkExpr(s.Value)
	if err != nil {
		return err
	}
	if !vt.Equal(b.typ) && !vt.AssignableTo(b.typ) {
		return errAt(s.Pos(), "cannot assign value of type %s to %q of type %s", vt, s.Name, b.typ)
	}
	return nil
}

func (a *Analyzer) checkArrayAssign(s *ast.ArrayAssign) error {
	at, err := a.checkExpr(s.Array)
	if err != nil {
		return err
	}
	if !at.IsArray() {
		return errAt(s.Pos(), "array assignment target is not an array")
	}
	it, err := a.checkExpr(s.Index)
	if err != nil {
		return err
	}
	if !it.IsNumeric() {
		return errAt(s.Pos(), "array index must be numeric")
	}
	vt, err := a.checkExpr(s.Value)
	if err != nil {
		return err
	}
	if !vt.Equal(at.Elem) && !vt.AssignableTo(at.Elem) {
		return errAt(s.Pos(), "cannot assign value of type %s to array element of type %s", vt, at.Elem)
	}
	return nil
}

func (a *Analyzer) checkMemberAssign(s *ast.MemberAssign) error {
	ot, err := a.checkExpr(s.Object)
	if err != nil {
		return err
	}
	if !ot.IsStruct() {
		return errAt(s.Pos(), "member assignment target is not a struct")
	}
	ft, ok := a.structs.Field(ot.StructName, s.Field)
	if !ok {
		return errAt(s.Pos(), "struct %s has no field %q", ot.StructName, s.Field)
	}
	vt, err := a.checkExpr(s.Value)
	if err != nil {
		return err
	}
	if !vt.Equal(ft) && !vt.AssignableTo(ft) {
		return errAt(s.Pos(), "cannot assign value of type %s to field %q of type %s", vt, s.Field, ft)
	}
	return nil
}

func (a *Analyzer) checkIfStmt(s *ast.IfStmt, fnRet *ast.Type) error {
	ct, err := a.checkExpr(s.Cond)
	if err != nil {
		return err
	}
	if !ct.IsBool() {
		return errAt(s.Pos(), "if condition must be boolean, got %s", ct)
	}
	if err := a.checkBlock(s.Then, fnRet); err != nil {
		return err
	}
	for _, ei := range s.ElseIfs {
		ect, err := a.checkExpr(ei.Cond)
		if err != nil {
			return err
		}
		if !ect.IsBool() {
			return errAt(s.Pos(), "or condition must be boolean, got %s", ect)
		}
		if err := a.checkBlock(ei.Body, fnRet); err != nil {
			return err
		}
	}
	if s.HasElse {
		if err := a.checkBlock(s.Else, fnRet); err != nil {
			return err
		}
	}
	return nil
}

func (a *Analyzer) checkForStmt(s *ast.ForStmt, fnRet *ast.Type) error {
	a.pushScope()
	defer a.popScope()
	if s.Init != nil {
		if err := a.checkStmt(s.Init, fnRet); err != nil {
			return err
		}
	}
	if s.Cond != nil {
		ct, err := a.checkExpr(s.Cond)
		if err != nil {
			return err
		}
		if !ct.IsBool() {
			return errAt(s.Pos(), "for condition must be boolean, got %s", ct)
		}
	}
	if s.Incr != nil {
		if err := a.checkStmt(s.Incr, fnRet); err != nil {
			return err
		}
	}
	for _, stmt := range s.Body {
		if err := a.checkStmt(stmt, fnRet); err != nil {
			return err
		}
	}
	return nil
}

func (a *Analyzer) checkTryStmt(s *ast.TryStmt, fnRet *ast.Type) error {
	if err := a.checkBlock(s.Try, fnRet); err != nil {
		return err
	}
	if s.HasCatch {
		a.pushScope()
		if err := a.define(s.CatchVar, ast.Text(), false); err != nil {
			a.popScope()
			return errAt(s.Pos(), "%s", err)
		}
		for _, stmt := range s.Catch {
			if err := a.checkStmt(stmt, fnRet); err != nil {
				a.popScope()
				return err
			}
		}
		a.popScope()
	}
	if s.HasFinally {
		if err := a.checkBlock(s.Finally, fnRet); err != nil {
			return err
		}
	}
	return nil
}

func (a *Analyzer) checkRepeatStmt(s *ast.RepeatStmt, fnRet *ast.Type) error {
	subjType, err := a.checkExpr(s.Subject)
	if err != nil {
		return err
	}
	for _, c := range s.Cases {
		vt, err := a.checkExpr(c.Value)
		if err != nil {
			return err
		}
		if !vt.Equal(subjType) {
			return errAt(s.Pos(), "when-case value type %s does not match switched expression type %s", vt, subjType)
		}
		if err := a.checkBlock(c.Body, fnRet); err != nil {
			return err
		}
	}
	if s.HasFixed {
		if err := a.checkBlock(s.Fixed, fnRet); err != nil {
			return err
		}
	}
	return nil
}

func (a *Analyzer) checkReturnStmt(s *ast.ReturnStmt, fnRet *ast.Type) error {
	if s.Value == nil {
		if fnRet != nil && !fnRet.IsVoid() {
			return errAt(s.Pos(), "missing return value for function returning %s", fnRet)
		}
		return nil
	}
	vt, err := a.checkExpr(s.Value)
	if err != nil {
		return err
	}
	if !vt.Equal(fnRet) && !vt.AssignableTo(fnRet) {
		return errAt(s.Pos(), "return type mismatch: expected %s, got %s", fnRet, vt)
	}
	return nil
}

func (a *Analyzer) checkBlock(stmts []ast.Stmt, fnRet *ast.Type) error {
	a.pushScope()
	defer a.popScope()
	for _, stmt := range stmts {
		if err := a.checkStmt(stmt, fnRet); err != nil {
			return err
		}
	}
	return nil
}

// ---------------------------------------------------------------------
// Expressions
// ---------------------------------------------------------------------

func (a *Analyzer) checkExpr(expr ast.Expr) (*ast.Type, error) {
	var t *ast.Type
	var err error
	switch e := expr.(type) {
	case *ast.NumberLit:
		t = ast.Num()
	case *ast.TextLit:
		t = ast.Text()
	case *ast.CharLit:
		t = ast.Char()
	case *ast.BoolLit:
		t = ast.Bool()
	case *ast.NullLit:
		t = ast.Null()
	case *ast.Ident:
		b, ok := a.lookup(e.Name)
		if !ok {
			return nil, errAt(e.Pos(), "undefined identifier %q", e.Name)
		}
		t = b.typ
	case *ast.BinaryExpr:
		t, err = a.checkBinaryExpr(e)
	case *ast.UnaryExpr:
		t, err = a.checkUnaryExpr(e)
	case *ast.ConcatExpr:
		t, err = a.checkConcatExpr(e)
	case *ast.InterpExpr:
		t, err = a.checkInterpExpr(e)
	case *ast.CallExpr:
		t, err = a.checkCallExpr(e)
	case *ast.ArrayLit:
		t, err = a.checkArrayLit(e)
	case *ast.ArrayAccess:
		t, err = a.checkArrayAccess(e)
	case *ast.MemberAccess:
		t, err = a.checkMemberAccess(e)
	case *ast.StructLit:
		t, err = a.checkStructLit(e)
	default:
		return nil, errAt(expr.Pos(), "internal: unhandled expression type %T", expr)
	}
	if err != nil {
		return nil, err
	}
	expr.SetType(t)
	return t, nil
}

func (a *Analyzer) checkBinaryExpr(e *ast.BinaryExpr) (*ast.Type, error) {
	lt, err := a.checkExpr(e.Left)
	if err != nil {
		return nil, err
	}
	rt, err := a.checkExpr(e.Right)
	if err != nil {
		return nil, err
	}
	switch e.Op {
	case ast.OpAdd, ast.OpSub, ast.OpMul, ast.OpDiv, ast.OpMod:
		if !lt.IsNumeric() || !rt.IsNumeric() {
			return nil, errAt(e.Pos(), "arithmetic operator requires numeric operands, got %s and %s", lt, rt)
		}
		return ast.Num(), nil
	case ast.OpEq, ast.OpNe, ast.OpLt, ast.OpGt, ast.OpLe, ast.OpGe:
		if !lt.Equal(rt) {
			return nil, errAt(e.Pos(), "comparison requires equal operand types, got %s and %s", lt, rt)
		}
		return ast.Bool(), nil
	case ast.OpAnd, ast.OpOr:
		if !lt.IsBool() || !rt.IsBool() {
			return nil, errAt(e.Pos(), "logical operator requires boolean operands, got %s and %s", lt, rt)
		}
		return ast.Bool(), nil
	}
	return nil, errAt(e.Pos(), "internal: unhandled binary operator")
}

func (a *Analyzer) checkUnaryExpr(e *ast.UnaryExpr) (*ast.Type, error) {
	ot, err := a.checkExpr(e.Operand)
	if err != nil {
		return nil, err
	}
	switch e.Op {
	case ast.OpNeg, ast.OpPos:
		if !ot.IsNumeric() {
			return nil, errAt(e.Pos(), "unary +/- requires numeric operand, got %s", ot)
		}
		return ast.Num(), nil
	case ast.OpNot:
		if !ot.IsBool() {
			return nil, errAt(e.Pos(), "!! requires boolean operand, got %s", ot)
		}
		return ast.Bool(), nil
	}
	return nil, errAt(e.Pos(), "internal: unhandled unary operator")
}

// checkConcatExpr types `+>>`: any operand whose type is numeric, text,
// char, or boolean is accepted, and the result is always text; non-text
// operands are converted at run time by the backend.
func (a *Analyzer) checkConcatExpr(e *ast.ConcatExpr) (*ast.Type, error) {
	lt, err := a.checkExpr(e.Left)
	if err != nil {
		return nil, err
	}
	rt, err := a.checkExpr(e.Right)
	if err != nil {
		return nil, err
	}
	if !concatable(lt) || !concatable(rt) {
		return nil, errAt(e.Pos(), "+>> requires numeric, text, char, or boolean operands, got %s and %s", lt, rt)
	}
	return ast.Text(), nil
}

func concatable(t *ast.Type) bool {
	return t.IsNumeric() || t.IsText() || t.IsChar() || t.IsBool()
}

func (a *Analyzer) checkInterpExpr(e *ast.InterpExpr) (*ast.Type, error) {
	for _, sub := range e.Exprs {
		if _, err := a.checkExpr(sub); err != nil {
			return nil, err
		}
	}
	return ast.Text(), nil
}

func (a *Analyzer) checkCallExpr(e *ast.CallExpr) (*ast.Type, error) {
	if e.Receiver != "" {
		return a.checkBuiltinReceiverCall(e)
	}
	switch e.Callee {
	case "print":
		for _, arg := range e.Args {
			if _, err := a.checkExpr(arg); err != nil {
				return nil, err
			}
		}
		return ast.Void(), nil
	case "read":
		for _, arg := range e.Args {
			at, err := a.checkExpr(arg)
			if err != nil {
				return nil, err
			}
			if !at.IsText() {
				return nil, errAt(e.Pos(), "read prompt must be text, got %s", at)
			}
		}
		return ast.Text(), nil
	}
	sig, ok := a.functions[e.Callee]
	if !ok {
		return nil, errAt(e.Pos(), "call to undefined function %q", e.Callee)
	}
	if len(e.Args) != len(sig.Params) {
		return nil, errAt(e.Pos(), "function %q expects %d arguments, got %d", e.Callee, len(sig.Params), len(e.Args))
	}
	for i, arg := range e.Args {
		at, err := a.checkExpr(arg)
		if err != nil {
			return nil, err
		}
		if !at.Equal(sig.Params[i]) && !at.AssignableTo(sig.Params[i]) {
			return nil, errAt(arg.Pos(), "argument %d to %q has type %s, expected %s", i+1, e.Callee, at, sig.Params[i])
		}
	}
	return sig.Ret, nil
}

// checkBuiltinReceiverCall types `num.read`, `text.read`, `char.read`, and
// `bool.read`: each prints the optional prompt and returns the receiver's
// own type.
func (a *Analyzer) checkBuiltinReceiverCall(e *ast.CallExpr) (*ast.Type, error) {
	if e.Callee != "read" {
		return nil, errAt(e.Pos(), "unsupported call %s.%s", e.Receiver, e.Callee)
	}
	for _, arg := range e.Args {
		at, err := a.checkExpr(arg)
		if err != nil {
			return nil, err
		}
		if !at.IsText() {
			return nil, errAt(e.Pos(), "%s.read prompt must be text, got %s", e.Receiver, at)
		}
	}
	switch e.Receiver {
	case "num":
		return ast.Num(), nil
	case "text":
		return ast.Text(), nil
	case "char":
		return ast.Char(), nil
	case "bool":
		return ast.Bool(), nil
	}
	return nil, errAt(e.Pos(), "unsupported receiver type %q", e.Receiver)
}

func (a *Analyzer) checkArrayLit(e *ast.ArrayLit) (*ast.Type, error) {
	if len(e.Elems) == 0 {
		return nil, errAt(e.Pos(), "empty array literal has no element type")
	}
	elemType, err := a.checkExpr(e.Elems[0])
	if err != nil {
		return nil, err
	}
	for _, el := range e.Elems[1:] {
		t, err := a.checkExpr(el)
		if err != nil {
			return nil, err
		}
		if !t.Equal(elemType) {
			return nil, errAt(el.Pos(), "array literal elements must share one type: %s vs %s", elemType, t)
		}
	}
	return ast.Array(elemType, len(e.Elems)), nil
}

// checkArrayAccess relies on the grammar restriction already encoded in
// ast.ArrayAccess.Target: the indexed expression is a bare identifier.
func (a *Analyzer) checkArrayAccess(e *ast.ArrayAccess) (*ast.Type, error) {
	b, ok := a.lookup(e.Target.Name)
	if !ok {
		return nil, errAt(e.Pos(), "undefined array variable %q", e.Target.Name)
	}
	if !b.typ.IsArray() {
		return nil, errAt(e.Pos(), "%q is not an array", e.Target.Name)
	}
	e.Target.SetType(b.typ)
	it, err := a.checkExpr(e.Index)
	if err != nil {
		return nil, err
	}
	if !it.IsNumeric() {
		return nil, errAt(e.Pos(), "array index must be numeric, got %s", it)
	}
	return b.typ.Elem, nil
}

func (a *Analyzer) checkMemberAccess(e *ast.MemberAccess) (*ast.Type, error) {
	ot, err := a.checkExpr(e.Target)
	if err != nil {
		return nil, err
	}
	if !ot.IsStruct() {
		return nil, errAt(e.Pos(), "member access requires a struct-typed receiver, got %s", ot)
	}
	ft, ok := a.structs.Field(ot.StructName, e.Field)
	if !ok {
		return nil, errAt(e.Pos(), "struct %s has no field %q", ot.StructName, e.Field)
	}
	return ft, nil
}

func (a *Analyzer) checkStructLit(e *ast.StructLit) (*ast.Type, error) {
	fields, ok := a.structs.Lookup(e.TypeName)
	if !ok {
		return nil, errAt(e.Pos(), "undefined struct type %q", e.TypeName)
	}
	if len(e.Fields) != len(fields) {
		return nil, errAt(e.Pos(), "struct literal for %q must supply exactly %d fields, got %d", e.TypeName, len(fields), len(e.Fields))
	}
	want := make(map[string]*ast.Type, len(fields))
	for _, f := range fields {
		want[f.Name] = f.Type
	}
	for i, name := range e.Fields {
		ft, ok := want[name]
		if !ok {
			return nil, errAt(e.Pos(), "struct %q has no field %q", e.TypeName, name)
		}
		vt, err := a.checkExpr(e.Values[i])
		if err != nil {
			return nil, err
		}
		if !vt.Equal(ft) && !vt.AssignableTo(ft) {
			return nil, errAt(e.Pos(), "field %q of %q expects %s, got %s", name, e.TypeName, ft, vt)
		}
	}
	return ast.Struct(e.TypeName), nil
}

// ---------------------------------------------------------------------
// Constant folding
// ---------------------------------------------------------------------

// foldConstChecked evaluates expr if it is a compile-time constant
// expression: numeric/char/boolean/null literals, references to other
// folded constants, and `+ - * /` over such values. The third return value
// is true when expr is a constant division by a folded zero, a
// compile-time error rather than a silent non-fold.
func (a *Analyzer) foldConstChecked(expr ast.Expr) (value int64, ok bool, divByZero bool) {
	switch e := expr.(type) {
	case *ast.NumberLit:
		return e.Value, true, false
	case *ast.BoolLit:
		if e.Value {
			return 1, true, false
		}
		return 0, true, false
	case *ast.CharLit:
		return int64(e.Value), true, false
	case *ast.NullLit:
		return 0, true, false
	case *ast.Ident:
		b, found := a.lookup(e.Name)
		if !found || !b.isFolded {
			return 0, false, false
		}
		return b.folded, true, false
	case *ast.BinaryExpr:
		lv, lok, ldz := a.foldConstChecked(e.Left)
		if ldz {
			return 0, false, true
		}
		rv, rok, rdz := a.foldConstChecked(e.Right)
		if rdz {
			return 0, false, true
		}
		if !lok || !rok {
			return 0, false, false
		}
		switch e.Op {
		case ast.OpAdd:
			return lv + rv, true, false
		case ast.OpSub:
			return lv - rv, true, false
		case ast.OpMul:
			return lv * rv, true, false
		case ast.OpDiv:
			if rv == 0 {
				return 0, false, true
			}
			return lv / rv, true, false
		}
	}
	return 0, false, false
}

// foldTextConst folds the text-typed subset of the compile-time constant
// set: a text literal, or a reference to another folded text constant.
// Text constants never stack-allocate; the backend emits their interned
// label directly.
func (a *Analyzer) foldTextConst(expr ast.Expr) (string, bool) {
	switch e := expr.(type) {
	case *ast.TextLit:
		return e.Value, true
	case *ast.Ident:
		b, found := a.lookup(e.Name)
		if found && b.isTextFolded {
			return b.foldedText, true
		}
	}
	return "", false
}

func errAt(p ast.Pos, format string, args ...interface{}) error {
	return fmt.Errorf("%d:%d: error: %s", p.Line, p.Column, fmt.Sprintf(format, args...))
}
