// Package parser turns numbered source lines into the syntax tree consumed by
// the lowering pass.
package parser

import (
	"strconv"
	"strings"

	"github.com/antibyte/retrobasic/pkg/ast"
	"github.com/antibyte/retrobasic/pkg/basicerr"
	"github.com/antibyte/retrobasic/pkg/source"
	"github.com/antibyte/retrobasic/pkg/value"
)

// Parser parses one line at a time.
type Parser struct {
	line   source.Line
	tokens []Token
	pos    int
}

// Parse parses an ordered listing.
func Parse(lines []source.Line) (*ast.Program, error) {
	prog := &ast.Program{Lines: make([]*ast.Line, 0, len(lines))}
	for _, l := range lines {
		parsed, err := ParseLine(l)
		if err != nil {
			return nil, err
		}
		prog.Lines = append(prog.Lines, parsed)
	}
	return prog, nil
}

// ParseLine parses the statements of a single numbered line.
func ParseLine(l source.Line) (*ast.Line, error) {
	p := &Parser{line: l, tokens: NewLexer(l.Text).Tokenize()}

	num := p.cur()
	if num.Type != TOKEN_NUMBER {
		return nil, p.errorf(basicerr.MissingLineNum, "")
	}
	n, err := strconv.Atoi(num.Text)
	if err != nil {
		return nil, p.errorf(basicerr.MissingLineNum, "%s", num.Text)
	}
	p.line.Number = n
	p.next()

	stmts, err := p.parseStatements(false)
	if err != nil {
		return nil, err
	}
	return &ast.Line{Number: n, Text: l.Text, Stmts: stmts}, nil
}

// token helpers

func (p *Parser) cur() Token { return p.tokens[p.pos] }

func (p *Parser) peek(off int) Token {
	if p.pos+off < len(p.tokens) {
		return p.tokens[p.pos+off]
	}
	return p.tokens[len(p.tokens)-1]
}

func (p *Parser) next() Token {
	t := p.tokens[p.pos]
	if t.Type != TOKEN_EOF {
		p.pos++
	}
	return t
}

func (p *Parser) is(t TokenType) bool { return p.cur().Type == t }

func (p *Parser) isKeyword(kw string) bool {
	c := p.cur()
	return c.Type == TOKEN_KEYWORD && c.Text == kw
}

func (p *Parser) accept(t TokenType) bool {
	if p.is(t) {
		p.next()
		return true
	}
	return false
}

func (p *Parser) acceptKeyword(kw string) bool {
	if p.isKeyword(kw) {
		p.next()
		return true
	}
	return false
}

func (p *Parser) expect(t TokenType, what string) (Token, error) {
	if !p.is(t) {
		return Token{}, p.unexpected(what)
	}
	return p.next(), nil
}

func (p *Parser) expectKeyword(kw string) error {
	if !p.acceptKeyword(kw) {
		return p.unexpected(kw)
	}
	return nil
}

func (p *Parser) errorf(code basicerr.Code, format string, args ...interface{}) error {
	return basicerr.Syntax(code, p.line.Number, p.line.Text, format, args...)
}

func (p *Parser) unexpected(want string) error {
	c := p.cur()
	got := c.Text
	if c.Type == TOKEN_EOF {
		got = "end of line"
	}
	if c.Type == TOKEN_ILLEGAL {
		return p.errorf(basicerr.SyntaxError, "illegal character %q", got)
	}
	return p.errorf(basicerr.UnexpectedToken, "%s expected, found %s", want, got)
}

// atStatementEnd reports whether the current token ends a statement.
func (p *Parser) atStatementEnd() bool {
	switch p.cur().Type {
	case TOKEN_EOF, TOKEN_COLON, TOKEN_REM:
		return true
	}
	return p.isKeyword("ELSE")
}

func (p *Parser) span(start int) ast.Span {
	stop := start
	if p.pos > 0 {
		stop = p.tokens[p.pos-1].Stop
	}
	if stop < start {
		stop = start
	}
	return ast.Span{Start: start, Stop: stop}
}

// parseStatements parses ':'-separated statements up to the end of the line,
// or up to ELSE when parsing an IF branch.
func (p *Parser) parseStatements(inIf bool) ([]ast.Stmt, error) {
	var stmts []ast.Stmt
	for {
		for p.accept(TOKEN_COLON) {
		}
		if p.is(TOKEN_EOF) {
			return stmts, nil
		}
		if p.accept(TOKEN_REM) {
			return stmts, nil
		}
		if p.isKeyword("ELSE") {
			if inIf {
				return stmts, nil
			}
			return nil, p.unexpected("statement")
		}

		st, err := p.parseStatement()
		if err != nil {
			return nil, err
		}
		if st != nil {
			stmts = append(stmts, st)
		}

		switch {
		case p.accept(TOKEN_COLON):
		case p.is(TOKEN_EOF):
			return stmts, nil
		case p.accept(TOKEN_REM):
			return stmts, nil
		case p.isKeyword("ELSE") && inIf:
			return stmts, nil
		default:
			return nil, p.unexpected("end of statement")
		}
	}
}

func (p *Parser) parseStatement() (ast.Stmt, error) {
	tok := p.cur()
	start := tok.Start

	if tok.Type == TOKEN_IDENTIFIER {
		return p.parseAssignment(start)
	}
	if tok.Type != TOKEN_KEYWORD {
		return nil, p.errorf(basicerr.UnknownStatement, "%s", tok.Text)
	}
	p.next()

	switch tok.Text {
	case "REM":
		p.accept(TOKEN_REM)
		return nil, nil
	case "LET":
		return p.parseAssignment(start)
	case "PRINT":
		return p.parsePrint(start)
	case "WRITE":
		return p.parseWrite(start)
	case "INPUT":
		return p.parseInput(start)
	case "LINE":
		if p.acceptKeyword("INPUT") {
			return p.parseLineInput(start)
		}
		return p.parseLineDraw(start)
	case "IF":
		return p.parseIf(start)
	case "GOTO":
		n, err := p.parseLineNumber()
		return &ast.Goto{Span: p.span(start), Line: n}, err
	case "GOSUB":
		n, err := p.parseLineNumber()
		return &ast.Gosub{Span: p.span(start), Line: n}, err
	case "RETURN":
		r := &ast.Return{}
		if p.is(TOKEN_NUMBER) {
			n, err := p.parseLineNumber()
			if err != nil {
				return nil, err
			}
			r.Line = n
		}
		r.Span = p.span(start)
		return r, nil
	case "ON":
		return p.parseOn(start)
	case "FOR":
		return p.parseFor(start)
	case "NEXT":
		n := &ast.Next{}
		for !p.atStatementEnd() {
			v, err := p.parseVarRef()
			if err != nil {
				return nil, err
			}
			n.Vars = append(n.Vars, v)
			if !p.accept(TOKEN_COMMA) {
				break
			}
		}
		n.Span = p.span(start)
		return n, nil
	case "WHILE":
		cond, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		return &ast.While{Span: p.span(start), Cond: cond}, nil
	case "WEND":
		return &ast.Wend{Span: p.span(start)}, nil
	case "END", "STOP":
		return &ast.End{Span: p.span(start)}, nil
	case "DIM":
		return p.parseDim(start)
	case "ERASE":
		return p.parseErase(start)
	case "DEF":
		return p.parseDefFn(start)
	case "DEFINT", "DEFLNG", "DEFSNG", "DEFDBL", "DEFSTR":
		return p.parseDefType(start, tok.Text)
	case "DATA":
		text := ""
		if p.is(TOKEN_DATA_TEXT) {
			text = p.next().Text
		}
		return &ast.Data{Span: p.span(start), Items: SplitData(text)}, nil
	case "READ":
		vars, err := p.parseVarList()
		if err != nil {
			return nil, err
		}
		return &ast.Read{Span: p.span(start), Vars: vars}, nil
	case "RESTORE":
		r := &ast.Restore{}
		if p.is(TOKEN_NUMBER) {
			n, err := p.parseLineNumber()
			if err != nil {
				return nil, err
			}
			r.Line = n
		}
		r.Span = p.span(start)
		return r, nil
	case "RANDOMIZE":
		return p.parseRandomize(start)
	case "SWAP":
		a, err := p.parseVarRef()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(TOKEN_COMMA, ","); err != nil {
			return nil, err
		}
		b, err := p.parseVarRef()
		if err != nil {
			return nil, err
		}
		return &ast.Swap{Span: p.span(start), A: a, B: b}, nil
	case "OPEN":
		return p.parseOpen(start)
	case "CLOSE":
		c := &ast.Close{}
		for !p.atStatementEnd() {
			p.accept(TOKEN_HASH)
			f, err := p.parseExpr()
			if err != nil {
				return nil, err
			}
			c.Files = append(c.Files, f)
			if !p.accept(TOKEN_COMMA) {
				break
			}
		}
		c.Span = p.span(start)
		return c, nil
	case "FIELD":
		return p.parseField(start)
	case "GET":
		if p.is(TOKEN_LPAREN) {
			return p.parseGetImage(start)
		}
		f, rec, err := p.parseRecordAccess()
		return &ast.GetRecord{Span: p.span(start), File: f, Record: rec}, err
	case "PUT":
		if p.is(TOKEN_LPAREN) {
			return p.parsePutImage(start)
		}
		f, rec, err := p.parseRecordAccess()
		return &ast.PutRecord{Span: p.span(start), File: f, Record: rec}, err
	case "LSET", "RSET":
		target, err := p.parseVarRef()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(TOKEN_EQ, "="); err != nil {
			return nil, err
		}
		val, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		if tok.Text == "LSET" {
			return &ast.Lset{Span: p.span(start), Target: target, Value: val}, nil
		}
		return &ast.Rset{Span: p.span(start), Target: target, Value: val}, nil
	case "ENVIRON":
		x, err := p.parseExpr()
		return &ast.Environ{Span: p.span(start), X: x}, err
	case "CLS":
		return &ast.Cls{Span: p.span(start)}, nil
	case "SCREEN":
		mode, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		// extra SCREEN arguments (color switch, pages) are accepted and ignored
		for p.accept(TOKEN_COMMA) {
			if p.is(TOKEN_COMMA) || p.atStatementEnd() {
				continue
			}
			if _, err := p.parseExpr(); err != nil {
				return nil, err
			}
		}
		return &ast.Screen{Span: p.span(start), Mode: mode}, nil
	case "COLOR":
		return p.parseColor(start)
	case "PSET", "PRESET":
		x, y, err := p.parseCoord()
		if err != nil {
			return nil, err
		}
		ps := &ast.Pset{X: x, Y: y, Preset: tok.Text == "PRESET"}
		if p.accept(TOKEN_COMMA) {
			if ps.Color, err = p.parseExpr(); err != nil {
				return nil, err
			}
		}
		ps.Span = p.span(start)
		return ps, nil
	case "CIRCLE":
		return p.parseCircle(start)
	case "PAINT":
		return p.parsePaint(start)
	case "DRAW":
		x, err := p.parseExpr()
		return &ast.Draw{Span: p.span(start), Commands: x}, err
	case "FONT":
		x, err := p.parseExpr()
		return &ast.Font{Span: p.span(start), N: x}, err
	case "BEEP":
		return &ast.Beep{Span: p.span(start)}, nil
	case "LOADWAV":
		name, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(TOKEN_COMMA, ","); err != nil {
			return nil, err
		}
		clip, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		return &ast.LoadWav{Span: p.span(start), Name: name, Clip: clip}, nil
	case "PLAYWAV", "STOPWAV", "LOOPWAV":
		clip, err := p.parseExpr()
		return &ast.WavControl{Span: p.span(start), Command: tok.Text, Clip: clip}, err
	}
	return nil, p.errorf(basicerr.UnknownStatement, "%s", tok.Text)
}

func (p *Parser) parseLineNumber() (int, error) {
	tok, err := p.expect(TOKEN_NUMBER, "line number")
	if err != nil {
		return 0, err
	}
	n, convErr := strconv.Atoi(tok.Text)
	if convErr != nil || n < 0 || n > source.MaxLineNumber {
		return 0, p.errorf(basicerr.SyntaxError, "bad line number %s", tok.Text)
	}
	return n, nil
}

func (p *Parser) parseAssignment(start int) (ast.Stmt, error) {
	target, err := p.parseVarRef()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(TOKEN_EQ, "="); err != nil {
		return nil, err
	}
	val, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	return &ast.Let{Span: p.span(start), Target: target, Value: val}, nil
}

func (p *Parser) parseIf(start int) (ast.Stmt, error) {
	cond, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	st := &ast.If{Cond: cond}

	branch := func() ([]ast.Stmt, error) {
		if p.is(TOKEN_NUMBER) {
			s := p.cur().Start
			n, err := p.parseLineNumber()
			if err != nil {
				return nil, err
			}
			return []ast.Stmt{&ast.Goto{Span: p.span(s), Line: n}}, nil
		}
		return p.parseStatements(true)
	}

	switch {
	case p.acceptKeyword("THEN"):
		if st.Then, err = branch(); err != nil {
			return nil, err
		}
	case p.isKeyword("GOTO"):
		s := p.next().Start
		n, err := p.parseLineNumber()
		if err != nil {
			return nil, err
		}
		st.Then = []ast.Stmt{&ast.Goto{Span: p.span(s), Line: n}}
	default:
		return nil, p.unexpected("THEN")
	}

	if p.acceptKeyword("ELSE") {
		if st.Else, err = branch(); err != nil {
			return nil, err
		}
	}
	st.Span = p.span(start)
	return st, nil
}

func (p *Parser) parseOn(start int) (ast.Stmt, error) {
	x, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	st := &ast.OnGoto{X: x}
	switch {
	case p.acceptKeyword("GOTO"):
	case p.acceptKeyword("GOSUB"):
		st.Gosub = true
	default:
		return nil, p.unexpected("GOTO or GOSUB")
	}
	for {
		n, err := p.parseLineNumber()
		if err != nil {
			return nil, err
		}
		st.Lines = append(st.Lines, n)
		if !p.accept(TOKEN_COMMA) {
			break
		}
	}
	st.Span = p.span(start)
	return st, nil
}

func (p *Parser) parseFor(start int) (ast.Stmt, error) {
	v, err := p.parseVarRef()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(TOKEN_EQ, "="); err != nil {
		return nil, err
	}
	st := &ast.For{Var: v}
	if st.From, err = p.parseExpr(); err != nil {
		return nil, err
	}
	if err := p.expectKeyword("TO"); err != nil {
		return nil, err
	}
	if st.To, err = p.parseExpr(); err != nil {
		return nil, err
	}
	if p.acceptKeyword("STEP") {
		if st.Step, err = p.parseExpr(); err != nil {
			return nil, err
		}
	}
	st.Span = p.span(start)
	return st, nil
}

func (p *Parser) parsePrint(start int) (ast.Stmt, error) {
	st := &ast.Print{}
	if p.accept(TOKEN_HASH) {
		f, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		st.File = f
		if !p.atStatementEnd() {
			if _, err := p.expect(TOKEN_COMMA, ","); err != nil {
				return nil, err
			}
		}
	}

	for !p.atStatementEnd() {
		switch {
		case p.accept(TOKEN_COMMA):
			st.Items = append(st.Items, ast.PrintItem{Kind: ast.PrintComma})
		case p.accept(TOKEN_SEMICOLON):
			st.Items = append(st.Items, ast.PrintItem{Kind: ast.PrintSemicolon})
		case p.is(TOKEN_IDENTIFIER) && (p.cur().Text == "TAB" || p.cur().Text == "SPC") && p.peek(1).Type == TOKEN_LPAREN:
			kind := ast.PrintTab
			if p.next().Text == "SPC" {
				kind = ast.PrintSpc
			}
			p.next() // (
			x, err := p.parseExpr()
			if err != nil {
				return nil, err
			}
			if _, err := p.expect(TOKEN_RPAREN, ")"); err != nil {
				return nil, err
			}
			st.Items = append(st.Items, ast.PrintItem{Kind: kind, X: x})
		default:
			x, err := p.parseExpr()
			if err != nil {
				return nil, err
			}
			st.Items = append(st.Items, ast.PrintItem{Kind: ast.PrintExpr, X: x})
		}
	}
	st.Span = p.span(start)
	return st, nil
}

func (p *Parser) parseWrite(start int) (ast.Stmt, error) {
	st := &ast.Write{}
	if p.accept(TOKEN_HASH) {
		f, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		st.File = f
		if !p.atStatementEnd() {
			if _, err := p.expect(TOKEN_COMMA, ","); err != nil {
				return nil, err
			}
		}
	}
	for !p.atStatementEnd() {
		x, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		st.Exprs = append(st.Exprs, x)
		if !p.accept(TOKEN_COMMA) {
			break
		}
	}
	st.Span = p.span(start)
	return st, nil
}

func (p *Parser) parseInput(start int) (ast.Stmt, error) {
	st := &ast.Input{}
	if p.accept(TOKEN_HASH) {
		f, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		st.File = f
		if _, err := p.expect(TOKEN_COMMA, ","); err != nil {
			return nil, err
		}
	} else {
		p.accept(TOKEN_SEMICOLON)
		st.Prompt = "? "
		if p.is(TOKEN_STRING) {
			st.Prompt = p.next().Text
			switch {
			case p.accept(TOKEN_SEMICOLON):
				st.Prompt += "? "
			case p.accept(TOKEN_COMMA):
			default:
				return nil, p.unexpected("; or ,")
			}
		}
	}
	vars, err := p.parseVarList()
	if err != nil {
		return nil, err
	}
	st.Vars = vars
	st.Span = p.span(start)
	return st, nil
}

func (p *Parser) parseLineInput(start int) (ast.Stmt, error) {
	st := &ast.LineInput{}
	p.accept(TOKEN_SEMICOLON)
	if p.accept(TOKEN_HASH) {
		f, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		st.File = f
		if _, err := p.expect(TOKEN_COMMA, ","); err != nil {
			return nil, err
		}
	} else if p.is(TOKEN_STRING) {
		st.Prompt = p.next().Text
		if !p.accept(TOKEN_SEMICOLON) && !p.accept(TOKEN_COMMA) {
			return nil, p.unexpected(";")
		}
	}
	v, err := p.parseVarRef()
	if err != nil {
		return nil, err
	}
	st.Var = v
	st.Span = p.span(start)
	return st, nil
}

func (p *Parser) parseVarList() ([]*ast.VarRef, error) {
	var vars []*ast.VarRef
	for {
		v, err := p.parseVarRef()
		if err != nil {
			return nil, err
		}
		vars = append(vars, v)
		if !p.accept(TOKEN_COMMA) {
			return vars, nil
		}
	}
}

func (p *Parser) parseDim(start int) (ast.Stmt, error) {
	st := &ast.Dim{}
	for {
		v, err := p.parseVarRef()
		if err != nil {
			return nil, err
		}
		if len(v.Indices) == 0 {
			return nil, p.errorf(basicerr.SyntaxError, "DIM %s needs bounds", v.Name)
		}
		v.Array = true
		st.Arrays = append(st.Arrays, v)
		if !p.accept(TOKEN_COMMA) {
			break
		}
	}
	st.Span = p.span(start)
	return st, nil
}

func (p *Parser) parseErase(start int) (ast.Stmt, error) {
	st := &ast.Erase{}
	for {
		tok, err := p.expect(TOKEN_IDENTIFIER, "array name")
		if err != nil {
			return nil, err
		}
		name, suffix := splitName(tok.Text)
		st.Arrays = append(st.Arrays, &ast.VarRef{
			Span: ast.Span{Start: tok.Start, Stop: tok.Stop}, Name: name, Suffix: suffix, Array: true,
		})
		if !p.accept(TOKEN_COMMA) {
			break
		}
	}
	st.Span = p.span(start)
	return st, nil
}

func (p *Parser) parseDefFn(start int) (ast.Stmt, error) {
	tok, err := p.expect(TOKEN_IDENTIFIER, "FN name")
	if err != nil {
		return nil, err
	}
	name, suffix := splitName(tok.Text)
	if !strings.HasPrefix(name, "FN") || len(name) <= 2 {
		return nil, p.errorf(basicerr.SyntaxError, "DEF needs an FN name, found %s", tok.Text)
	}
	st := &ast.DefFn{Name: name, Suffix: suffix}
	if p.accept(TOKEN_LPAREN) {
		for {
			ptok, err := p.expect(TOKEN_IDENTIFIER, "parameter")
			if err != nil {
				return nil, err
			}
			pname, psuffix := splitName(ptok.Text)
			st.Params = append(st.Params, &ast.VarRef{
				Span: ast.Span{Start: ptok.Start, Stop: ptok.Stop}, Name: pname, Suffix: psuffix,
			})
			if !p.accept(TOKEN_COMMA) {
				break
			}
		}
		if _, err := p.expect(TOKEN_RPAREN, ")"); err != nil {
			return nil, err
		}
	}
	if _, err := p.expect(TOKEN_EQ, "="); err != nil {
		return nil, err
	}
	if st.Body, err = p.parseExpr(); err != nil {
		return nil, err
	}
	st.Span = p.span(start)
	return st, nil
}

var defTypes = map[string]value.DataType{
	"DEFINT": value.INT32,
	"DEFLNG": value.INT64,
	"DEFSNG": value.FLOAT,
	"DEFDBL": value.DOUBLE,
	"DEFSTR": value.STRING,
}

func (p *Parser) parseDefType(start int, kw string) (ast.Stmt, error) {
	st := &ast.DefType{Type: defTypes[kw]}
	letter := func() (byte, error) {
		tok, err := p.expect(TOKEN_IDENTIFIER, "letter")
		if err != nil {
			return 0, err
		}
		if len(tok.Text) != 1 {
			return 0, p.errorf(basicerr.SyntaxError, "%s is not a letter", tok.Text)
		}
		return tok.Text[0], nil
	}
	for {
		from, err := letter()
		if err != nil {
			return nil, err
		}
		r := ast.LetterRange{From: from, To: from}
		if p.accept(TOKEN_MINUS) {
			if r.To, err = letter(); err != nil {
				return nil, err
			}
		}
		st.Ranges = append(st.Ranges, r)
		if !p.accept(TOKEN_COMMA) {
			break
		}
	}
	st.Span = p.span(start)
	return st, nil
}

func (p *Parser) parseRandomize(start int) (ast.Stmt, error) {
	st := &ast.Randomize{}
	switch {
	case p.is(TOKEN_IDENTIFIER) && p.cur().Text == "TIMER":
		p.next()
		st.Timer = true
	case p.atStatementEnd():
		st.Timer = true
	default:
		seed, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		st.Seed = seed
	}
	st.Span = p.span(start)
	return st, nil
}

var openModes = map[string]string{
	"INPUT":  "I",
	"OUTPUT": "O",
	"APPEND": "A",
	"RANDOM": "R",
}

func (p *Parser) parseOpen(start int) (ast.Stmt, error) {
	first, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	st := &ast.Open{}

	if p.accept(TOKEN_COMMA) {
		// OPEN mode, [#]n, name [, reclen]
		st.Mode = first
		p.accept(TOKEN_HASH)
		if st.File, err = p.parseExpr(); err != nil {
			return nil, err
		}
		if _, err := p.expect(TOKEN_COMMA, ","); err != nil {
			return nil, err
		}
		if st.Name, err = p.parseExpr(); err != nil {
			return nil, err
		}
		if p.accept(TOKEN_COMMA) {
			if st.RecLen, err = p.parseExpr(); err != nil {
				return nil, err
			}
		}
		st.Span = p.span(start)
		return st, nil
	}

	// OPEN name FOR mode AS [#]n [LEN = reclen]
	st.Name = first
	if err := p.expectKeyword("FOR"); err != nil {
		return nil, err
	}
	modeTok := p.cur()
	mode, ok := openModes[modeTok.Text]
	if modeTok.Type != TOKEN_KEYWORD || !ok {
		return nil, p.unexpected("INPUT, OUTPUT, APPEND or RANDOM")
	}
	p.next()
	st.Mode = &ast.StringLit{Span: ast.Span{Start: modeTok.Start, Stop: modeTok.Stop}, Value: mode}
	if err := p.expectKeyword("AS"); err != nil {
		return nil, err
	}
	p.accept(TOKEN_HASH)
	if st.File, err = p.parseExpr(); err != nil {
		return nil, err
	}
	if p.is(TOKEN_IDENTIFIER) && p.cur().Text == "LEN" {
		p.next()
		if _, err := p.expect(TOKEN_EQ, "="); err != nil {
			return nil, err
		}
		if st.RecLen, err = p.parseExpr(); err != nil {
			return nil, err
		}
	}
	st.Span = p.span(start)
	return st, nil
}

func (p *Parser) parseField(start int) (ast.Stmt, error) {
	p.accept(TOKEN_HASH)
	f, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	st := &ast.Field{File: f}
	for p.accept(TOKEN_COMMA) {
		w, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		if err := p.expectKeyword("AS"); err != nil {
			return nil, err
		}
		v, err := p.parseVarRef()
		if err != nil {
			return nil, err
		}
		st.Fields = append(st.Fields, ast.FieldSpec{Width: w, Var: v})
	}
	st.Span = p.span(start)
	return st, nil
}

func (p *Parser) parseRecordAccess() (ast.Expr, ast.Expr, error) {
	p.accept(TOKEN_HASH)
	f, err := p.parseExpr()
	if err != nil {
		return nil, nil, err
	}
	var rec ast.Expr
	if p.accept(TOKEN_COMMA) {
		if rec, err = p.parseExpr(); err != nil {
			return nil, nil, err
		}
	}
	return f, rec, nil
}

// parseCoord parses "(x, y)".
func (p *Parser) parseCoord() (ast.Expr, ast.Expr, error) {
	if _, err := p.expect(TOKEN_LPAREN, "("); err != nil {
		return nil, nil, err
	}
	x, err := p.parseExpr()
	if err != nil {
		return nil, nil, err
	}
	if _, err := p.expect(TOKEN_COMMA, ","); err != nil {
		return nil, nil, err
	}
	y, err := p.parseExpr()
	if err != nil {
		return nil, nil, err
	}
	if _, err := p.expect(TOKEN_RPAREN, ")"); err != nil {
		return nil, nil, err
	}
	return x, y, nil
}

func (p *Parser) parseLineDraw(start int) (ast.Stmt, error) {
	st := &ast.LineDraw{}
	var err error
	if st.X1, st.Y1, err = p.parseCoord(); err != nil {
		return nil, err
	}
	if _, err := p.expect(TOKEN_MINUS, "-"); err != nil {
		return nil, err
	}
	if st.X2, st.Y2, err = p.parseCoord(); err != nil {
		return nil, err
	}
	if p.accept(TOKEN_COMMA) {
		if !p.is(TOKEN_COMMA) && !p.atStatementEnd() {
			if st.Color, err = p.parseExpr(); err != nil {
				return nil, err
			}
		}
		if p.accept(TOKEN_COMMA) {
			tok, err := p.expect(TOKEN_IDENTIFIER, "B or BF")
			if err != nil {
				return nil, err
			}
			if tok.Text != "B" && tok.Text != "BF" {
				return nil, p.errorf(basicerr.SyntaxError, "B or BF expected, found %s", tok.Text)
			}
			st.Style = tok.Text
		}
	}
	st.Span = p.span(start)
	return st, nil
}

func (p *Parser) parseColor(start int) (ast.Stmt, error) {
	st := &ast.Color{}
	var err error
	if !p.is(TOKEN_COMMA) && !p.atStatementEnd() {
		if st.Fg, err = p.parseExpr(); err != nil {
			return nil, err
		}
	}
	if p.accept(TOKEN_COMMA) {
		if st.Bg, err = p.parseExpr(); err != nil {
			return nil, err
		}
	}
	st.Span = p.span(start)
	return st, nil
}

func (p *Parser) parseCircle(start int) (ast.Stmt, error) {
	st := &ast.Circle{}
	var err error
	if st.X, st.Y, err = p.parseCoord(); err != nil {
		return nil, err
	}
	if _, err := p.expect(TOKEN_COMMA, ","); err != nil {
		return nil, err
	}
	if st.R, err = p.parseExpr(); err != nil {
		return nil, err
	}
	if p.accept(TOKEN_COMMA) {
		if st.Color, err = p.parseExpr(); err != nil {
			return nil, err
		}
	}
	st.Span = p.span(start)
	return st, nil
}

func (p *Parser) parsePaint(start int) (ast.Stmt, error) {
	st := &ast.Paint{}
	var err error
	if st.X, st.Y, err = p.parseCoord(); err != nil {
		return nil, err
	}
	if p.accept(TOKEN_COMMA) {
		if !p.is(TOKEN_COMMA) {
			if st.Paint, err = p.parseExpr(); err != nil {
				return nil, err
			}
		}
		if p.accept(TOKEN_COMMA) {
			if st.Border, err = p.parseExpr(); err != nil {
				return nil, err
			}
		}
	}
	st.Span = p.span(start)
	return st, nil
}

func (p *Parser) parseImageArray() (*ast.VarRef, error) {
	tok, err := p.expect(TOKEN_IDENTIFIER, "array name")
	if err != nil {
		return nil, err
	}
	name, suffix := splitName(tok.Text)
	return &ast.VarRef{Span: ast.Span{Start: tok.Start, Stop: tok.Stop}, Name: name, Suffix: suffix, Array: true}, nil
}

func (p *Parser) parseGetImage(start int) (ast.Stmt, error) {
	st := &ast.GetImage{}
	var err error
	if st.X1, st.Y1, err = p.parseCoord(); err != nil {
		return nil, err
	}
	if _, err := p.expect(TOKEN_MINUS, "-"); err != nil {
		return nil, err
	}
	if st.X2, st.Y2, err = p.parseCoord(); err != nil {
		return nil, err
	}
	if _, err := p.expect(TOKEN_COMMA, ","); err != nil {
		return nil, err
	}
	if st.Array, err = p.parseImageArray(); err != nil {
		return nil, err
	}
	st.Span = p.span(start)
	return st, nil
}

func (p *Parser) parsePutImage(start int) (ast.Stmt, error) {
	st := &ast.PutImage{}
	var err error
	if st.X, st.Y, err = p.parseCoord(); err != nil {
		return nil, err
	}
	if _, err := p.expect(TOKEN_COMMA, ","); err != nil {
		return nil, err
	}
	if st.Array, err = p.parseImageArray(); err != nil {
		return nil, err
	}
	if p.accept(TOKEN_COMMA) {
		tok := p.next()
		switch tok.Text {
		case "PSET", "PRESET", "AND", "OR", "XOR":
			st.Action = tok.Text
		default:
			return nil, p.errorf(basicerr.SyntaxError, "bad PUT action %s", tok.Text)
		}
	}
	st.Span = p.span(start)
	return st, nil
}

// SplitData splits the text of a DATA statement into its constants.
func SplitData(text string) []ast.DataConst {
	var items []ast.DataConst
	i := 0
	for {
		for i < len(text) && (text[i] == ' ' || text[i] == '\t') {
			i++
		}
		if i < len(text) && text[i] == '"' {
			end := strings.IndexByte(text[i+1:], '"')
			var item string
			if end < 0 {
				item = text[i+1:]
				i = len(text)
			} else {
				item = text[i+1 : i+1+end]
				i += end + 2
			}
			items = append(items, ast.DataConst{Text: item, Quoted: true})
			// skip anything between the closing quote and the comma
			for i < len(text) && text[i] != ',' {
				i++
			}
		} else {
			end := strings.IndexByte(text[i:], ',')
			if end < 0 {
				end = len(text) - i
			}
			items = append(items, ast.DataConst{Text: strings.TrimSpace(text[i : i+end])})
			i += end
		}
		if i >= len(text) {
			return items
		}
		i++ // comma
	}
}
