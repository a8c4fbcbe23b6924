// Package parser implements the recursive-descent parser for litecode: a
// precedence-climbing expression parser, bracket-based call/indexing
// grammar, and in-literal string-interpolation parsing.
package parser

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/litecode-org/lcc/internal/ast"
	"github.com/litecode-org/lcc/internal/lexer"
	"github.com/litecode-org/lcc/internal/token"
)

// Parser consumes a token stream and produces an *ast.Program. It halts on
// the first unexpected token.
type Parser struct {
	toks []token.Token
	pos  int
}

// New creates a Parser over an already-lexed token stream.
func New(toks []token.Token) *Parser {
	return &Parser{toks: toks}
}

// Parse lexes src and parses it into a Program.
func Parse(src []byte) (*ast.Program, error) {
	return New(lexer.Lex(src)).ParseProgram()
}

func (p *Parser) peek() token.Token {
	// Newlines are statement separators and nothing else; skipping them
	// here keeps every other production free of newline-handling noise.
	for p.toks[p.pos].Kind == token.Newline {
		p.pos++
	}
	return p.toks[p.pos]
}

func (p *Parser) next() token.Token {
	tok := p.peek()
	p.pos++
	return tok
}

func (p *Parser) at(k token.Kind) bool { return p.peek().Kind == k }

func (p *Parser) errorf(format string, args ...interface{}) error {
	tok := p.peek()
	return fmt.Errorf("%d:%d: error: %s", tok.Line, tok.Column, fmt.Sprintf(format, args...))
}

func (p *Parser) expect(k token.Kind) (token.Token, error) {
	if !p.at(k) {
		return token.Token{}, p.errorf("expected %s, got %s %q", k, p.peek().Kind, p.peek().Lexeme)
	}
	return p.next(), nil
}

func pos(t token.Token) ast.Pos { return ast.Pos{Line: t.Line, Column: t.Column} }

// ---------------------------------------------------------------------
// program := { struct-decl | function-decl }* run-block
// ---------------------------------------------------------------------

func (p *Parser) ParseProgram() (*ast.Program, error) {
	prog := &ast.Program{}
	for {
		if p.at(token.EOF) {
			return nil, p.errorf("missing run block")
		}
		switch p.peek().Kind {
		case token.KwStruct:
			sd, err := p.parseStructDecl()
			if err != nil {
				return nil, err
			}
			prog.Structs = append(prog.Structs, sd)
		case token.KwFnc:
			fd, err := p.parseFuncDecl()
			if err != nil {
				return nil, err
			}
			prog.Functions = append(prog.Functions, fd)
		case token.KwRun:
			rb, err := p.parseRunBlock()
			if err != nil {
				return nil, err
			}
			prog.Run = rb
			// Nothing may follow the run block in this grammar.
			if !p.at(token.EOF) {
				return nil, p.errorf("unexpected %s %q after run block", p.peek().Kind, p.peek().Lexeme)
			}
			return prog, nil
		default:
			return nil, p.errorf("expected struct, fnc, or run, got %s %q", p.peek().Kind, p.peek().Lexeme)
		}
	}
}

// struct-decl := "struct" Name "{" (Type fieldName ";")* "}" [";"]
func (p *Parser) parseStructDecl() (*ast.StructDecl, error) {
	kw, _ := p.expect(token.KwStruct)
	name, err := p.expect(token.Identifier)
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(token.LBrace); err != nil {
		return nil, err
	}
	var fields []ast.StructField
	for !p.at(token.RBrace) {
		ft, err := p.parseType()
		if err != nil {
			return nil, err
		}
		fname, err := p.expect(token.Identifier)
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(token.Semicolon); err != nil {
			return nil, err
		}
		fields = append(fields, ast.StructField{Name: fname.Lexeme, Type: ft})
	}
	if _, err := p.expect(token.RBrace); err != nil {
		return nil, err
	}
	p.skipOptionalSemi()
	return ast.NewStructDecl(pos(kw), name.Lexeme, fields), nil
}

// skipOptionalSemi consumes a trailing semicolon after a block-form
// construct when one is present. Statement terminators are mandatory after
// simple statements but tolerated either way after `}` so that both
// `if [...] { };` and `if [...] { }` parse.
func (p *Parser) skipOptionalSemi() {
	if p.at(token.Semicolon) {
		p.next()
	}
}

// function-decl := "fnc" Name "[" (val? Type paramName),* "]" ":" ReturnType "{" body "}"
func (p *Parser) parseFuncDecl() (*ast.FuncDecl, error) {
	kw, _ := p.expect(token.KwFnc)
	name, err := p.expect(token.Identifier)
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(token.LBracket); err != nil {
		return nil, err
	}
	var params []ast.FuncParam
	for !p.at(token.RBracket) {
		if len(params) > 0 {
			if _, err := p.expect(token.Comma); err != nil {
				return nil, err
			}
		}
		isConst := false
		if p.at(token.KwVal) {
			p.next()
			isConst = true
		}
		pt, err := p.parseType()
		if err != nil {
			return nil, err
		}
		pname, err := p.expect(token.Identifier)
		if err != nil {
			return nil, err
		}
		params = append(params, ast.FuncParam{Type: pt, Name: pname.Lexeme, IsConst: isConst})
	}
	if _, err := p.expect(token.RBracket); err != nil {
		return nil, err
	}
	if _, err := p.expect(token.Colon); err != nil {
		return nil, err
	}
	ret, err := p.parseType()
	if err != nil {
		return nil, err
	}
	body, err := p.parseBlockStmts()
	if err != nil {
		return nil, err
	}
	return ast.NewFuncDecl(pos(kw), name.Lexeme, params, ret, body), nil
}

// run-block := "run" "{" body "}" ";"
func (p *Parser) parseRunBlock() (*ast.RunBlock, error) {
	kw, _ := p.expect(token.KwRun)
	body, err := p.parseBlockStmts()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(token.Semicolon); err != nil {
		return nil, err
	}
	return ast.NewRunBlock(pos(kw), body), nil
}

// parseType parses a type, including the `?` nullable suffix and `[]`/`[N]`
// array suffixes.
func (p *Parser) parseType() (*ast.Type, error) {
	tok := p.next()
	var base *ast.Type
	switch tok.Kind {
	case token.KwNum:
		base = ast.Num()
	case token.KwText:
		base = ast.Text()
	case token.KwChar:
		base = ast.Char()
	case token.KwBool:
		base = ast.Bool()
	case token.KwVoid:
		base = ast.Void()
	case token.Identifier:
		base = ast.Struct(tok.Lexeme)
	default:
		return nil, p.errorf("expected type, got %s %q", tok.Kind, tok.Lexeme)
	}

	for p.at(token.LBracket) {
		p.next()
		length := ast.ArrayLenDynamic
		if !p.at(token.RBracket) {
			n, err := p.expect(token.IntLiteral)
			if err != nil {
				return nil, err
			}
			v, _ := strconv.ParseInt(n.Lexeme, 10, 64)
			length = int(v)
		}
		if _, err := p.expect(token.RBracket); err != nil {
			return nil, err
		}
		base = ast.Array(base, length)
	}

	if p.at(token.Question) {
		p.next()
		base = base.AsNullable()
	}
	return base, nil
}

// ---------------------------------------------------------------------
// Statements
// ---------------------------------------------------------------------

func (p *Parser) parseBlockStmts() ([]ast.Stmt, error) {
	if _, err := p.expect(token.LBrace); err != nil {
		return nil, err
	}
	var stmts []ast.Stmt
	for !p.at(token.RBrace) {
		s, err := p.parseStatement()
		if err != nil {
			return nil, err
		}
		stmts = append(stmts, s)
	}
	if _, err := p.expect(token.RBrace); err != nil {
		return nil, err
	}
	return stmts, nil
}

// isTypeStart reports whether the current token can begin a declared type:
// one of the built-in type keywords, or an identifier that is itself
// immediately followed by another identifier (a struct-typed declaration).
// Struct-name recognition against the registry happens in the semantic
// pass; here the parser only needs one token of lookahead.
func (p *Parser) isTypeStart() bool {
	tok := p.peek()
	if tok.Kind.IsTypeKeyword() {
		return true
	}
	if tok.Kind == token.Identifier {
		next := p.toks[p.skipNewlinesFrom(p.pos+1)]
		return next.Kind == token.Identifier
	}
	return false
}

func (p *Parser) skipNewlinesFrom(i int) int {
	for p.toks[i].Kind == token.Newline {
		i++
	}
	return i
}

// parseStatement disambiguates with one token of lookahead: an
// identifier followed by `=`, `[`, or `->` is an assignment / array-element
// assignment / member assignment; otherwise a leading type keyword (or
// struct name) begins a declaration.
func (p *Parser) parseStatement() (ast.Stmt, error) {
	switch p.peek().Kind {
	case token.KwVal:
		return p.parseVarDecl()
	case token.KwIf:
		return p.parseIfStmt()
	case token.KwFor:
		return p.parseForStmt()
	case token.KwTry:
		return p.parseTryStmt()
	case token.KwRepeat:
		return p.parseRepeatStmt()
	case token.KwReturn:
		return p.parseReturnStmt()
	case token.LBrace:
		stmts, err := p.parseBlockStmts()
		if err != nil {
			return nil, err
		}
		return ast.NewBlock(ast.Pos{}, stmts), nil
	case token.Identifier:
		next := p.toks[p.skipNewlinesFrom(p.pos+1)]
		switch next.Kind {
		case token.Assign:
			return p.parseAssign()
		case token.LBracket:
			return p.parseArrayAssign()
		case token.Arrow:
			return p.parseMemberAssign()
		}
		if p.isTypeStart() {
			return p.parseVarDecl()
		}
		return p.parseExprStmt()
	default:
		if p.isTypeStart() {
			return p.parseVarDecl()
		}
		return p.parseExprStmt()
	}
}

func (p *Parser) parseVarDecl() (ast.Stmt, error) {
	start := p.peek()
	isConst := false
	if p.at(token.KwVal) {
		p.next()
		isConst = true
	}
	declType, err := p.parseType()
	if err != nil {
		return nil, err
	}
	name, err := p.expect(token.Identifier)
	if err != nil {
		return nil, err
	}
	var init ast.Expr
	if p.at(token.Assign) {
		p.next()
		init, err = p.parseExpression()
		if err != nil {
			return nil, err
		}
	}
	if _, err := p.expect(token.Semicolon); err != nil {
		return nil, err
	}
	return ast.NewVarDecl(pos(start), declType, name.Lexeme, init, isConst), nil
}

func (p *Parser) parseAssign() (ast.Stmt, error) {
	name, _ := p.expect(token.Identifier)
	if _, err := p.expect(token.Assign); err != nil {
		return nil, err
	}
	val, err := p.parseExpression()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(token.Semicolon); err != nil {
		return nil, err
	}
	return ast.NewAssign(pos(name), name.Lexeme, val), nil
}

func (p *Parser) parseArrayAssign() (ast.Stmt, error) {
	name, _ := p.expect(token.Identifier)
	target := ast.NewIdent(pos(name), name.Lexeme)
	if _, err := p.expect(token.LBracket); err != nil {
		return nil, err
	}
	idx, err := p.parseExpression()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(token.RBracket); err != nil {
		return nil, err
	}
	if _, err := p.expect(token.Assign); err != nil {
		return nil, err
	}
	val, err := p.parseExpression()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(token.Semicolon); err != nil {
		return nil, err
	}
	return ast.NewArrayAssign(pos(name), target, idx, val), nil
}

func (p *Parser) parseMemberAssign() (ast.Stmt, error) {
	name, _ := p.expect(token.Identifier)
	var obj ast.Expr = ast.NewIdent(pos(name), name.Lexeme)
	for p.at(token.Arrow) {
		p.next()
		field, err := p.expect(token.Identifier)
		if err != nil {
			return nil, err
		}
		if p.peekIsAssignAfterField() {
			if _, err := p.expect(token.Assign); err != nil {
				return nil, err
			}
			val, err := p.parseExpression()
			if err != nil {
				return nil, err
			}
			if _, err := p.expect(token.Semicolon); err != nil {
				return nil, err
			}
			return ast.NewMemberAssign(pos(name), obj, field.Lexeme, val), nil
		}
		obj = ast.NewMemberAccess(pos(name), obj, field.Lexeme)
	}
	return nil, p.errorf("expected '=' in member assignment")
}

func (p *Parser) peekIsAssignAfterField() bool {
	return p.at(token.Assign)
}

func (p *Parser) parseIfStmt() (ast.Stmt, error) {
	kw, _ := p.expect(token.KwIf)
	if _, err := p.expect(token.LBracket); err != nil {
		return nil, err
	}
	cond, err := p.parseExpression()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(token.RBracket); err != nil {
		return nil, err
	}
	then, err := p.parseBlockStmts()
	if err != nil {
		return nil, err
	}
	stmt := ast.NewIfStmt(pos(kw), cond, then)

	for p.at(token.KwOr) {
		p.next()
		if _, err := p.expect(token.LBracket); err != nil {
			return nil, err
		}
		econd, err := p.parseExpression()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(token.RBracket); err != nil {
			return nil, err
		}
		ebody, err := p.parseBlockStmts()
		if err != nil {
			return nil, err
		}
		stmt.ElseIfs = append(stmt.ElseIfs, ast.ElseIf{Cond: econd, Body: ebody})
	}

	if p.at(token.KwElse) {
		p.next()
		ebody, err := p.parseBlockStmts()
		if err != nil {
			return nil, err
		}
		stmt.Else = ebody
		stmt.HasElse = true
	}
	p.skipOptionalSemi()
	return stmt, nil
}

func (p *Parser) parseForStmt() (ast.Stmt, error) {
	kw, _ := p.expect(token.KwFor)
	if _, err := p.expect(token.LBracket); err != nil {
		return nil, err
	}
	var init ast.Stmt
	var err error
	if !p.at(token.Semicolon) {
		init, err = p.parseSimpleStmtNoSemi()
		if err != nil {
			return nil, err
		}
	}
	if _, err := p.expect(token.Semicolon); err != nil {
		return nil, err
	}
	var cond ast.Expr
	if !p.at(token.Semicolon) {
		cond, err = p.parseExpression()
		if err != nil {
			return nil, err
		}
	}
	if _, err := p.expect(token.Semicolon); err != nil {
		return nil, err
	}
	var incr ast.Stmt
	if !p.at(token.RBracket) {
		incr, err = p.parseSimpleStmtNoSemi()
		if err != nil {
			return nil, err
		}
	}
	if _, err := p.expect(token.RBracket); err != nil {
		return nil, err
	}
	body, err := p.parseBlockStmts()
	if err != nil {
		return nil, err
	}
	p.skipOptionalSemi()
	return ast.NewForStmt(pos(kw), init, cond, incr, body), nil
}

// parseSimpleStmtNoSemi parses the init/increment clauses of a for-loop,
// which share assignment/declaration syntax with ordinary statements but
// are not terminated by their own semicolon (the for-header supplies it).
func (p *Parser) parseSimpleStmtNoSemi() (ast.Stmt, error) {
	if p.isTypeStart() || p.at(token.KwVal) {
		start := p.peek()
		isConst := false
		if p.at(token.KwVal) {
			p.next()
			isConst = true
		}
		declType, err := p.parseType()
		if err != nil {
			return nil, err
		}
		name, err := p.expect(token.Identifier)
		if err != nil {
			return nil, err
		}
		var init ast.Expr
		if p.at(token.Assign) {
			p.next()
			init, err = p.parseExpression()
			if err != nil {
				return nil, err
			}
		}
		return ast.NewVarDecl(pos(start), declType, name.Lexeme, init, isConst), nil
	}
	name, err := p.expect(token.Identifier)
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(token.Assign); err != nil {
		return nil, err
	}
	val, err := p.parseExpression()
	if err != nil {
		return nil, err
	}
	return ast.NewAssign(pos(name), name.Lexeme, val), nil
}

func (p *Parser) parseTryStmt() (ast.Stmt, error) {
	kw, _ := p.expect(token.KwTry)
	tryBody, err := p.parseBlockStmts()
	if err != nil {
		return nil, err
	}
	stmt := ast.NewTryStmt(pos(kw), tryBody)
	if p.at(token.KwCatch) {
		p.next()
		if _, err := p.expect(token.LBracket); err != nil {
			return nil, err
		}
		cvar, err := p.expect(token.Identifier)
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(token.RBracket); err != nil {
			return nil, err
		}
		catchBody, err := p.parseBlockStmts()
		if err != nil {
			return nil, err
		}
		stmt.CatchVar = cvar.Lexeme
		stmt.Catch = catchBody
		stmt.HasCatch = true
	}
	if p.at(token.KwFinally) {
		p.next()
		finallyBody, err := p.parseBlockStmts()
		if err != nil {
			return nil, err
		}
		stmt.Finally = finallyBody
		stmt.HasFinally = true
	}
	p.skipOptionalSemi()
	return stmt, nil
}

func (p *Parser) parseRepeatStmt() (ast.Stmt, error) {
	kw, _ := p.expect(token.KwRepeat)
	if _, err := p.expect(token.LBracket); err != nil {
		return nil, err
	}
	subject, err := p.parseExpression()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(token.RBracket); err != nil {
		return nil, err
	}
	if _, err := p.expect(token.LBrace); err != nil {
		return nil, err
	}
	stmt := ast.NewRepeatStmt(pos(kw), subject)
	for p.at(token.KwWhen) {
		p.next()
		if _, err := p.expect(token.LBracket); err != nil {
			return nil, err
		}
		val, err := p.parseExpression()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(token.RBracket); err != nil {
			return nil, err
		}
		body, err := p.parseBlockStmts()
		if err != nil {
			return nil, err
		}
		stmt.Cases = append(stmt.Cases, ast.WhenCase{Value: val, Body: body})
	}
	if p.at(token.KwFixed) {
		p.next()
		body, err := p.parseBlockStmts()
		if err != nil {
			return nil, err
		}
		stmt.Fixed = body
		stmt.HasFixed = true
	}
	if _, err := p.expect(token.RBrace); err != nil {
		return nil, err
	}
	p.skipOptionalSemi()
	return stmt, nil
}

func (p *Parser) parseReturnStmt() (ast.Stmt, error) {
	kw, _ := p.expect(token.KwReturn)
	var val ast.Expr
	if !p.at(token.Semicolon) {
		v, err := p.parseExpression()
		if err != nil {
			return nil, err
		}
		val = v
	}
	if _, err := p.expect(token.Semicolon); err != nil {
		return nil, err
	}
	return ast.NewReturnStmt(pos(kw), val), nil
}

func (p *Parser) parseExprStmt() (ast.Stmt, error) {
	start := p.peek()
	x, err := p.parseExpression()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(token.Semicolon); err != nil {
		return nil, err
	}
	return ast.NewExprStmt(pos(start), x), nil
}

// ---------------------------------------------------------------------
// Expressions: precedence climb, lowest to highest:
// || -> && -> == != -> < > <= >= -> + - +>> -> * / % -> unary -> postfix -> primary
// ---------------------------------------------------------------------

func (p *Parser) parseExpression() (ast.Expr, error) { return p.parseLogicalOr() }

func (p *Parser) parseLogicalOr() (ast.Expr, error) {
	left, err := p.parseLogicalAnd()
	if err != nil {
		return nil, err
	}
	for p.at(token.OrOr) {
		tok := p.next()
		right, err := p.parseLogicalAnd()
		if err != nil {
			return nil, err
		}
		left = ast.NewBinaryExpr(pos(tok), left, ast.OpOr, right)
	}
	return left, nil
}

func (p *Parser) parseLogicalAnd() (ast.Expr, error) {
	left, err := p.parseEquality()
	if err != nil {
		return nil, err
	}
	for p.at(token.AndAnd) {
		tok := p.next()
		right, err := p.parseEquality()
		if err != nil {
			return nil, err
		}
		left = ast.NewBinaryExpr(pos(tok), left, ast.OpAnd, right)
	}
	return left, nil
}

func (p *Parser) parseEquality() (ast.Expr, error) {
	left, err := p.parseRelational()
	if err != nil {
		return nil, err
	}
	for p.at(token.Eq) || p.at(token.NotEq) {
		tok := p.next()
		op := ast.OpEq
		if tok.Kind == token.NotEq {
			op = ast.OpNe
		}
		right, err := p.parseRelational()
		if err != nil {
			return nil, err
		}
		left = ast.NewBinaryExpr(pos(tok), left, op, right)
	}
	return left, nil
}

func (p *Parser) parseRelational() (ast.Expr, error) {
	left, err := p.parseAdditive()
	if err != nil {
		return nil, err
	}
	for {
		var op ast.BinOp
		switch p.peek().Kind {
		case token.Lt:
			op = ast.OpLt
		case token.Gt:
			op = ast.OpGt
		case token.Le:
			op = ast.OpLe
		case token.Ge:
			op = ast.OpGe
		default:
			return left, nil
		}
		tok := p.next()
		right, err := p.parseAdditive()
		if err != nil {
			return nil, err
		}
		left = ast.NewBinaryExpr(pos(tok), left, op, right)
	}
}

// parseAdditive handles + - and the +>> concatenation production, which
// builds a dedicated concatenation node rather than a generic binary op.
func (p *Parser) parseAdditive() (ast.Expr, error) {
	left, err := p.parseMultiplicative()
	if err != nil {
		return nil, err
	}
	for {
		switch p.peek().Kind {
		case token.Plus:
			tok := p.next()
			right, err := p.parseMultiplicative()
			if err != nil {
				return nil, err
			}
			left = ast.NewBinaryExpr(pos(tok), left, ast.OpAdd, right)
		case token.Minus:
			tok := p.next()
			right, err := p.parseMultiplicative()
			if err != nil {
				return nil, err
			}
			left = ast.NewBinaryExpr(pos(tok), left, ast.OpSub, right)
		case token.Concat:
			tok := p.next()
			right, err := p.parseMultiplicative()
			if err != nil {
				return nil, err
			}
			left = ast.NewConcatExpr(pos(tok), left, right)
		default:
			return left, nil
		}
	}
}

func (p *Parser) parseMultiplicative() (ast.Expr, error) {
	left, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	for {
		var op ast.BinOp
		switch p.peek().Kind {
		case token.Star:
			op = ast.OpMul
		case token.Slash:
			op = ast.OpDiv
		case token.Percent:
			op = ast.OpMod
		default:
			return left, nil
		}
		tok := p.next()
		right, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		left = ast.NewBinaryExpr(pos(tok), left, op, right)
	}
}

func (p *Parser) parseUnary() (ast.Expr, error) {
	switch p.peek().Kind {
	case token.Minus:
		tok := p.next()
		operand, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return ast.NewUnaryExpr(pos(tok), ast.OpNeg, operand), nil
	case token.Plus:
		tok := p.next()
		operand, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return ast.NewUnaryExpr(pos(tok), ast.OpPos, operand), nil
	case token.NotNot:
		tok := p.next()
		operand, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return ast.NewUnaryExpr(pos(tok), ast.OpNot, operand), nil
	default:
		return p.parsePostfix()
	}
}

// parsePostfix handles `[...]` indexing and `->` struct field access
// chained onto a primary expression. Dotted builtins are parsed in
// parsePrimary.
func (p *Parser) parsePostfix() (ast.Expr, error) {
	expr, err := p.parsePrimary()
	if err != nil {
		return nil, err
	}
	for {
		switch p.peek().Kind {
		case token.LBracket:
			ident, ok := expr.(*ast.Ident)
			if !ok {
				return nil, p.errorf("array access target must be an identifier")
			}
			p.next()
			idx, err := p.parseExpression()
			if err != nil {
				return nil, err
			}
			if _, err := p.expect(token.RBracket); err != nil {
				return nil, err
			}
			expr = ast.NewArrayAccess(ident.Pos(), ident, idx)
		case token.Arrow:
			tok := p.next()
			field, err := p.expect(token.Identifier)
			if err != nil {
				return nil, err
			}
			expr = ast.NewMemberAccess(pos(tok), expr, field.Lexeme)
		default:
			return expr, nil
		}
	}
}

// dottedBuiltins is the only set of type-qualified built-ins admitted by
// dotted member syntax; anything else after a `.` is rejected.
var dottedBuiltins = map[string]map[string]bool{
	"num":  {"read": true},
	"text": {"read": true},
	"char": {"read": true},
	"bool": {"read": true},
}

func (p *Parser) parsePrimary() (ast.Expr, error) {
	tok := p.peek()
	switch tok.Kind {
	case token.IntLiteral:
		p.next()
		return p.parseNumberLit(tok)
	case token.TextLiteral:
		p.next()
		return p.parseTextLiteral(tok)
	case token.CharLiteral:
		p.next()
		return p.parseCharLit(tok)
	case token.BoolLiteral:
		p.next()
		return ast.NewBoolLit(pos(tok), tok.Lexeme == "true"), nil
	case token.NullLiteral:
		p.next()
		return ast.NewNullLit(pos(tok)), nil
	case token.At:
		return p.parseCallExpr()
	case token.LParen:
		p.next()
		inner, err := p.parseExpression()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(token.RParen); err != nil {
			return nil, err
		}
		return inner, nil
	case token.Identifier:
		p.next()
		// Dotted builtins (num.read[...], etc.) or a struct literal
		// (StructName { field: value, ... }).
		if p.at(token.Dot) {
			return p.parseDottedBuiltin(tok)
		}
		if p.at(token.LBrace) {
			return p.parseStructLit(tok)
		}
		return ast.NewIdent(pos(tok), tok.Lexeme), nil
	case token.LBracket:
		return p.parseArrayLit()
	case token.KwNum, token.KwText, token.KwChar, token.KwBool:
		p.next()
		return p.parseDottedBuiltin(tok)
	default:
		return nil, p.errorf("unexpected token %s %q", tok.Kind, tok.Lexeme)
	}
}

func (p *Parser) parseDottedBuiltin(recv token.Token) (ast.Expr, error) {
	if _, err := p.expect(token.Dot); err != nil {
		return nil, err
	}
	method, err := p.expect(token.Identifier)
	if err != nil {
		return nil, err
	}
	allowed, ok := dottedBuiltins[recv.Lexeme]
	if !ok || !allowed[method.Lexeme] {
		return nil, p.errorf("unsupported dotted call %s.%s", recv.Lexeme, method.Lexeme)
	}
	args, err := p.parseBracketArgs()
	if err != nil {
		return nil, err
	}
	return ast.NewCallExpr(pos(recv), recv.Lexeme, method.Lexeme, args), nil
}

// parseCallExpr parses `@name[args...]` and the @-prefixed spelling of the
// dotted builtins (`@num.read[...]` etc.).
func (p *Parser) parseCallExpr() (ast.Expr, error) {
	at := p.next()
	if p.peek().Kind.IsTypeKeyword() {
		recv := p.next()
		return p.parseDottedBuiltin(recv)
	}
	name, err := p.expect(token.Identifier)
	if err != nil {
		return nil, err
	}
	if p.at(token.Dot) {
		return p.parseDottedBuiltin(name)
	}
	args, err := p.parseBracketArgs()
	if err != nil {
		return nil, err
	}
	return ast.NewCallExpr(pos(at), "", name.Lexeme, args), nil
}

// parseArrayLit parses a bracketed array literal `[e1, e2, ...]` in primary
// position.
func (p *Parser) parseArrayLit() (ast.Expr, error) {
	lb, _ := p.expect(token.LBracket)
	var elems []ast.Expr
	for !p.at(token.RBracket) {
		if len(elems) > 0 {
			if _, err := p.expect(token.Comma); err != nil {
				return nil, err
			}
		}
		e, err := p.parseExpression()
		if err != nil {
			return nil, err
		}
		elems = append(elems, e)
	}
	if _, err := p.expect(token.RBracket); err != nil {
		return nil, err
	}
	return ast.NewArrayLit(pos(lb), elems), nil
}

func (p *Parser) parseBracketArgs() ([]ast.Expr, error) {
	if _, err := p.expect(token.LBracket); err != nil {
		return nil, err
	}
	var args []ast.Expr
	for !p.at(token.RBracket) {
		if len(args) > 0 {
			if _, err := p.expect(token.Comma); err != nil {
				return nil, err
			}
		}
		a, err := p.parseExpression()
		if err != nil {
			return nil, err
		}
		args = append(args, a)
	}
	if _, err := p.expect(token.RBracket); err != nil {
		return nil, err
	}
	return args, nil
}

func (p *Parser) parseStructLit(name token.Token) (ast.Expr, error) {
	if _, err := p.expect(token.LBrace); err != nil {
		return nil, err
	}
	var fields []string
	var values []ast.Expr
	for !p.at(token.RBrace) {
		if len(fields) > 0 {
			if _, err := p.expect(token.Comma); err != nil {
				return nil, err
			}
		}
		fname, err := p.expect(token.Identifier)
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(token.Colon); err != nil {
			return nil, err
		}
		val, err := p.parseExpression()
		if err != nil {
			return nil, err
		}
		fields = append(fields, fname.Lexeme)
		values = append(values, val)
	}
	if _, err := p.expect(token.RBrace); err != nil {
		return nil, err
	}
	return ast.NewStructLit(pos(name), name.Lexeme, fields, values), nil
}

func (p *Parser) parseNumberLit(tok token.Token) (ast.Expr, error) {
	isInt := !strings.Contains(tok.Lexeme, ".")
	text := tok.Lexeme
	if !isInt {
		// Decimals lower to integers by truncation: drop everything from
		// the '.' onward.
		text = text[:strings.IndexByte(text, '.')]
	}
	v, err := strconv.ParseInt(text, 10, 64)
	if err != nil {
		return nil, p.errorf("invalid numeric literal %q", tok.Lexeme)
	}
	return ast.NewNumberLit(pos(tok), v, isInt), nil
}

func (p *Parser) parseCharLit(tok token.Token) (ast.Expr, error) {
	decoded := lexer.DecodeEscapes(tok.Lexeme)
	if len(decoded) != 1 {
		return nil, p.errorf("invalid character literal %q", tok.Lexeme)
	}
	return ast.NewCharLit(pos(tok), decoded[0]), nil
}

// parseTextLiteral re-scans a text token's raw lexeme for `$ident` and
// `${expr:fmt}` interpolation holes. When no `$` is present,
// the literal is returned as a plain ast.TextLit rather than a
// single-part InterpExpr.
func (p *Parser) parseTextLiteral(tok token.Token) (ast.Expr, error) {
	raw := tok.Lexeme
	if !strings.Contains(raw, "$") {
		return ast.NewTextLit(pos(tok), lexer.DecodeEscapes(raw)), nil
	}

	var parts []string
	var exprs []ast.Expr
	var formats []ast.FormatSpec
	var cur strings.Builder

	i := 0
	for i < len(raw) {
		if raw[i] == '$' && i+1 < len(raw) && raw[i+1] == '{' {
			parts = append(parts, lexer.DecodeEscapes(cur.String()))
			cur.Reset()
			j := i + 2
			start := j
			for j < len(raw) && raw[j] != '}' && raw[j] != ':' {
				j++
			}
			name := strings.TrimSpace(raw[start:j])
			format := ast.FmtNone
			if j < len(raw) && raw[j] == ':' {
				fstart := j + 1
				j = fstart
				for j < len(raw) && raw[j] != '}' {
					j++
				}
				format = ast.FormatSpec(":" + raw[fstart:j])
			}
			if j >= len(raw) {
				return nil, p.errorf("unterminated interpolation in %q", raw)
			}
			j++ // skip '}'
			exprs = append(exprs, ast.NewIdent(pos(tok), name))
			formats = append(formats, format)
			i = j
			continue
		}
		if raw[i] == '$' && i+1 < len(raw) && (isIdentStart(raw[i+1])) {
			parts = append(parts, lexer.DecodeEscapes(cur.String()))
			cur.Reset()
			j := i + 1
			for j < len(raw) && isIdentCont(raw[j]) {
				j++
			}
			exprs = append(exprs, ast.NewIdent(pos(tok), raw[i+1:j]))
			formats = append(formats, ast.FmtNone)
			i = j
			continue
		}
		if raw[i] == '\\' && i+1 < len(raw) {
			cur.WriteByte(raw[i])
			cur.WriteByte(raw[i+1])
			i += 2
			continue
		}
		cur.WriteByte(raw[i])
		i++
	}
	parts = append(parts, lexer.DecodeEscapes(cur.String()))

	return ast.NewInterpExpr(pos(tok), parts, exprs, formats), nil
}

func isIdentStart(ch byte) bool {
	return (ch >= 'a' && ch <= 'z') || (ch >= 'A' && ch <= 'Z') || ch == '_'
}

func isIdentCont(ch byte) bool {
	return isIdentStart(ch) || (ch >= '0' && ch <= '9')
}
