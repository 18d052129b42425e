package parser

import (
	"strings"

	"github.com/antibyte/retrobasic/pkg/ast"
	"github.com/antibyte/retrobasic/pkg/basicerr"
)

// splitName separates a trailing type character from an identifier.
func splitName(text string) (string, byte) {
	if n := len(text); n > 1 && isSuffix(text[n-1]) {
		return text[:n-1], text[n-1]
	}
	return text, 0
}

// Operator precedence, loosest first:
// IMP, EQV, XOR, OR, AND, NOT, relational, + -, MOD, \, * /, unary -, ^.

func (p *Parser) parseExpr() (ast.Expr, error) {
	return p.parseBinaryKeyword(0)
}

var logicalLevels = []string{"IMP", "EQV", "XOR", "OR", "AND"}

func (p *Parser) parseBinaryKeyword(level int) (ast.Expr, error) {
	if level == len(logicalLevels) {
		return p.parseNot()
	}
	op := logicalLevels[level]
	left, err := p.parseBinaryKeyword(level + 1)
	if err != nil {
		return nil, err
	}
	for p.isKeyword(op) {
		p.next()
		right, err := p.parseBinaryKeyword(level + 1)
		if err != nil {
			return nil, err
		}
		left = binary(op, left, right)
	}
	return left, nil
}

func binary(op string, l, r ast.Expr) ast.Expr {
	return &ast.Binary{Span: ast.Span{Start: l.Pos().Start, Stop: r.Pos().Stop}, Op: op, L: l, R: r}
}

func (p *Parser) parseNot() (ast.Expr, error) {
	if p.isKeyword("NOT") {
		start := p.next().Start
		x, err := p.parseNot()
		if err != nil {
			return nil, err
		}
		return &ast.Unary{Span: ast.Span{Start: start, Stop: x.Pos().Stop}, Op: "NOT", X: x}, nil
	}
	return p.parseRelational()
}

var relationalOps = map[TokenType]string{
	TOKEN_EQ: "=",
	TOKEN_NE: "<>",
	TOKEN_LT: "<",
	TOKEN_LE: "<=",
	TOKEN_GT: ">",
	TOKEN_GE: ">=",
}

func (p *Parser) parseRelational() (ast.Expr, error) {
	left, err := p.parseAdditive()
	if err != nil {
		return nil, err
	}
	for {
		op, ok := relationalOps[p.cur().Type]
		if !ok {
			return left, nil
		}
		p.next()
		right, err := p.parseAdditive()
		if err != nil {
			return nil, err
		}
		left = binary(op, left, right)
	}
}

func (p *Parser) parseAdditive() (ast.Expr, error) {
	left, err := p.parseMod()
	if err != nil {
		return nil, err
	}
	for p.is(TOKEN_PLUS) || p.is(TOKEN_MINUS) {
		op := p.next().Text
		right, err := p.parseMod()
		if err != nil {
			return nil, err
		}
		left = binary(op, left, right)
	}
	return left, nil
}

func (p *Parser) parseMod() (ast.Expr, error) {
	left, err := p.parseIntDiv()
	if err != nil {
		return nil, err
	}
	for p.isKeyword("MOD") {
		p.next()
		right, err := p.parseIntDiv()
		if err != nil {
			return nil, err
		}
		left = binary("MOD", left, right)
	}
	return left, nil
}

func (p *Parser) parseIntDiv() (ast.Expr, error) {
	left, err := p.parseTerm()
	if err != nil {
		return nil, err
	}
	for p.is(TOKEN_INTDIV) {
		p.next()
		right, err := p.parseTerm()
		if err != nil {
			return nil, err
		}
		left = binary("\\", left, right)
	}
	return left, nil
}

func (p *Parser) parseTerm() (ast.Expr, error) {
	left, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	for p.is(TOKEN_MULTIPLY) || p.is(TOKEN_DIVIDE) {
		op := p.next().Text
		right, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		left = binary(op, left, right)
	}
	return left, nil
}

func (p *Parser) parseUnary() (ast.Expr, error) {
	if p.is(TOKEN_MINUS) || p.is(TOKEN_PLUS) {
		tok := p.next()
		x, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		if tok.Text == "+" {
			return x, nil
		}
		return &ast.Unary{Span: ast.Span{Start: tok.Start, Stop: x.Pos().Stop}, Op: "-", X: x}, nil
	}
	return p.parsePower()
}

// parsePower is left-associative: 2^3^2 = 64. The exponent may carry a sign.
func (p *Parser) parsePower() (ast.Expr, error) {
	left, err := p.parsePrimary()
	if err != nil {
		return nil, err
	}
	for p.is(TOKEN_POWER) {
		p.next()
		var right ast.Expr
		if p.is(TOKEN_MINUS) || p.is(TOKEN_PLUS) {
			tok := p.next()
			x, err := p.parsePrimary()
			if err != nil {
				return nil, err
			}
			right = x
			if tok.Text == "-" {
				right = &ast.Unary{Span: ast.Span{Start: tok.Start, Stop: x.Pos().Stop}, Op: "-", X: x}
			}
		} else if right, err = p.parsePrimary(); err != nil {
			return nil, err
		}
		left = binary("^", left, right)
	}
	return left, nil
}

func (p *Parser) parsePrimary() (ast.Expr, error) {
	tok := p.cur()
	switch tok.Type {
	case TOKEN_NUMBER:
		p.next()
		return &ast.NumberLit{Span: ast.Span{Start: tok.Start, Stop: tok.Stop}, Text: tok.Text}, nil
	case TOKEN_STRING:
		p.next()
		return &ast.StringLit{Span: ast.Span{Start: tok.Start, Stop: tok.Stop}, Value: tok.Text}, nil
	case TOKEN_LPAREN:
		p.next()
		x, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(TOKEN_RPAREN, ")"); err != nil {
			return nil, err
		}
		return x, nil
	case TOKEN_IDENTIFIER:
		if ar, ok := builtins[tok.Text]; ok {
			return p.parseBuiltin(ar)
		}
		if strings.HasPrefix(tok.Text, "FN") && len(tok.Text) > 2 {
			return p.parseFnCall()
		}
		return p.parseVarRef()
	}
	return nil, p.unexpected("expression")
}

func (p *Parser) parseArgs(fileArg int) ([]ast.Expr, error) {
	var args []ast.Expr
	if !p.accept(TOKEN_LPAREN) {
		return nil, nil
	}
	for {
		if len(args) == fileArg {
			p.accept(TOKEN_HASH)
		}
		x, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		args = append(args, x)
		if !p.accept(TOKEN_COMMA) {
			break
		}
	}
	if _, err := p.expect(TOKEN_RPAREN, ")"); err != nil {
		return nil, err
	}
	return args, nil
}

func (p *Parser) parseBuiltin(ar arity) (ast.Expr, error) {
	tok := p.next()
	var args []ast.Expr
	if ar.max > 0 {
		var err error
		if args, err = p.parseArgs(ar.fileArg); err != nil {
			return nil, err
		}
	}
	if len(args) < ar.min || len(args) > ar.max {
		return nil, p.errorf(basicerr.WrongArgumentCount, "%s takes %d to %d arguments, got %d",
			tok.Text, ar.min, ar.max, len(args))
	}
	return &ast.BuiltinCall{Span: p.span(tok.Start), Name: tok.Text, Args: args}, nil
}

func (p *Parser) parseFnCall() (ast.Expr, error) {
	tok := p.next()
	name, suffix := splitName(tok.Text)
	args, err := p.parseArgs(-1)
	if err != nil {
		return nil, err
	}
	return &ast.FnCall{Span: p.span(tok.Start), Name: name, Suffix: suffix, Args: args}, nil
}

// parseVarRef parses a variable name with optional array indices.
func (p *Parser) parseVarRef() (*ast.VarRef, error) {
	tok, err := p.expect(TOKEN_IDENTIFIER, "variable")
	if err != nil {
		return nil, err
	}
	if IsBuiltin(tok.Text) {
		return nil, p.errorf(basicerr.SyntaxError, "%s is a function name", tok.Text)
	}
	name, suffix := splitName(tok.Text)
	v := &ast.VarRef{Name: name, Suffix: suffix}
	if p.accept(TOKEN_LPAREN) {
		for {
			x, err := p.parseExpr()
			if err != nil {
				return nil, err
			}
			v.Indices = append(v.Indices, x)
			if !p.accept(TOKEN_COMMA) {
				break
			}
		}
		if _, err := p.expect(TOKEN_RPAREN, ")"); err != nil {
			return nil, err
		}
		v.Array = true
	}
	v.Span = p.span(tok.Start)
	return v, nil
}
