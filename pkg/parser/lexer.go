package parser

import (
	"strings"
)

// TokenType classifies a lexical token.
type TokenType int

const (
	TOKEN_EOF TokenType = iota
	TOKEN_NUMBER
	TOKEN_STRING
	TOKEN_IDENTIFIER
	TOKEN_KEYWORD
	TOKEN_PLUS
	TOKEN_MINUS
	TOKEN_MULTIPLY
	TOKEN_DIVIDE
	TOKEN_INTDIV
	TOKEN_POWER
	TOKEN_LPAREN
	TOKEN_RPAREN
	TOKEN_COMMA
	TOKEN_SEMICOLON
	TOKEN_COLON
	TOKEN_HASH
	TOKEN_EQ
	TOKEN_NE
	TOKEN_LT
	TOKEN_LE
	TOKEN_GT
	TOKEN_GE
	TOKEN_REM       // comment text up to the end of the line
	TOKEN_DATA_TEXT // raw DATA constants up to the next ':'
	TOKEN_ILLEGAL
)

// Token is one lexeme with its byte range in the line.
type Token struct {
	Type  TokenType
	Text  string // upper-cased for identifiers and keywords
	Start int
	Stop  int
}

var keywords = map[string]bool{
	"AND": true, "APPEND": true, "AS": true, "BEEP": true, "CIRCLE": true,
	"CLOSE": true, "CLS": true, "COLOR": true, "DATA": true, "DEF": true,
	"DEFDBL": true, "DEFINT": true, "DEFLNG": true, "DEFSNG": true, "DEFSTR": true,
	"DIM": true, "DRAW": true, "ELSE": true, "END": true, "ENVIRON": true,
	"EQV": true, "ERASE": true, "FIELD": true, "FONT": true, "FOR": true,
	"GET": true, "GOSUB": true, "GOTO": true, "IF": true, "IMP": true,
	"INPUT": true, "LET": true, "LINE": true, "LOADWAV": true, "LOOPWAV": true,
	"LSET": true, "MOD": true, "NEXT": true, "NOT": true, "ON": true,
	"OPEN": true, "OR": true, "OUTPUT": true, "PAINT": true, "PLAYWAV": true,
	"PRESET": true, "PRINT": true, "PSET": true, "PUT": true, "RANDOM": true,
	"RANDOMIZE": true, "READ": true, "REM": true, "RESTORE": true, "RETURN": true,
	"RSET": true, "SCREEN": true, "STEP": true, "STOP": true, "STOPWAV": true,
	"SWAP": true, "THEN": true, "TO": true, "WEND": true, "WHILE": true,
	"WRITE": true, "XOR": true,
}

// Lexer tokenizes one source line.
type Lexer struct {
	input string
	pos   int
	prev  Token
}

// NewLexer returns a lexer over one line of text.
func NewLexer(input string) *Lexer {
	return &Lexer{input: input}
}

func isSpace(ch byte) bool  { return ch == ' ' || ch == '\t' || ch == '\r' }
func isDigit(ch byte) bool  { return ch >= '0' && ch <= '9' }
func isLetter(ch byte) bool { return (ch >= 'A' && ch <= 'Z') || (ch >= 'a' && ch <= 'z') }
func isSuffix(ch byte) bool { return strings.IndexByte("%&!#$", ch) >= 0 }

func (l *Lexer) peekByte(off int) byte {
	if l.pos+off < len(l.input) {
		return l.input[l.pos+off]
	}
	return 0
}

// Tokenize returns every token of the line, ending with TOKEN_EOF.
func (l *Lexer) Tokenize() []Token {
	var tokens []Token
	for {
		tok := l.NextToken()
		tokens = append(tokens, tok)
		if tok.Type == TOKEN_EOF {
			return tokens
		}
	}
}

// NextToken scans the next token.
func (l *Lexer) NextToken() Token {
	tok := l.scan()
	l.prev = tok
	return tok
}

func (l *Lexer) scan() Token {
	// the rest of a REM line and DATA constants are taken verbatim
	if l.prev.Type == TOKEN_KEYWORD && l.prev.Text == "REM" {
		return l.rest(TOKEN_REM)
	}
	if l.prev.Type == TOKEN_KEYWORD && l.prev.Text == "DATA" {
		return l.dataText()
	}

	for l.pos < len(l.input) && isSpace(l.input[l.pos]) {
		l.pos++
	}
	start := l.pos
	if l.pos >= len(l.input) {
		return Token{Type: TOKEN_EOF, Start: start, Stop: start}
	}

	ch := l.input[l.pos]
	switch {
	case ch == '\'':
		l.pos++
		return l.rest(TOKEN_REM)
	case ch == '"':
		return l.readString()
	case isDigit(ch) || (ch == '.' && isDigit(l.peekByte(1))):
		return l.readNumber()
	case ch == '&':
		return l.readRadix()
	case isLetter(ch):
		return l.readIdentifier()
	}

	l.pos++
	simple := func(t TokenType) Token {
		return Token{Type: t, Text: l.input[start:l.pos], Start: start, Stop: l.pos}
	}
	switch ch {
	case '+':
		return simple(TOKEN_PLUS)
	case '-':
		return simple(TOKEN_MINUS)
	case '*':
		return simple(TOKEN_MULTIPLY)
	case '/':
		return simple(TOKEN_DIVIDE)
	case '\\':
		return simple(TOKEN_INTDIV)
	case '^':
		return simple(TOKEN_POWER)
	case '(':
		return simple(TOKEN_LPAREN)
	case ')':
		return simple(TOKEN_RPAREN)
	case ',':
		return simple(TOKEN_COMMA)
	case ';':
		return simple(TOKEN_SEMICOLON)
	case ':':
		return simple(TOKEN_COLON)
	case '#':
		return simple(TOKEN_HASH)
	case '?':
		return Token{Type: TOKEN_KEYWORD, Text: "PRINT", Start: start, Stop: l.pos}
	case '=':
		if c := l.peekByte(0); c == '<' || c == '>' {
			l.pos++
			if c == '<' {
				return simple(TOKEN_LE)
			}
			return simple(TOKEN_GE)
		}
		return simple(TOKEN_EQ)
	case '<':
		switch l.peekByte(0) {
		case '>':
			l.pos++
			return simple(TOKEN_NE)
		case '=':
			l.pos++
			return simple(TOKEN_LE)
		}
		return simple(TOKEN_LT)
	case '>':
		switch l.peekByte(0) {
		case '<':
			l.pos++
			return simple(TOKEN_NE)
		case '=':
			l.pos++
			return simple(TOKEN_GE)
		}
		return simple(TOKEN_GT)
	}
	return simple(TOKEN_ILLEGAL)
}

func (l *Lexer) rest(t TokenType) Token {
	start := l.pos
	l.pos = len(l.input)
	return Token{Type: t, Text: l.input[start:], Start: start, Stop: l.pos}
}

// dataText reads up to the first ':' outside quotes.
func (l *Lexer) dataText() Token {
	start := l.pos
	quoted := false
	for l.pos < len(l.input) {
		c := l.input[l.pos]
		if c == '"' {
			quoted = !quoted
		} else if c == ':' && !quoted {
			break
		}
		l.pos++
	}
	return Token{Type: TOKEN_DATA_TEXT, Text: l.input[start:l.pos], Start: start, Stop: l.pos}
}

func (l *Lexer) readString() Token {
	start := l.pos
	l.pos++ // opening quote
	for l.pos < len(l.input) && l.input[l.pos] != '"' {
		l.pos++
	}
	if l.pos >= len(l.input) {
		// an unterminated string runs to the end of the line
		return Token{Type: TOKEN_STRING, Text: l.input[start+1:], Start: start, Stop: l.pos}
	}
	l.pos++
	return Token{Type: TOKEN_STRING, Text: l.input[start+1 : l.pos-1], Start: start, Stop: l.pos}
}

func (l *Lexer) readNumber() Token {
	start := l.pos
	for l.pos < len(l.input) && isDigit(l.input[l.pos]) {
		l.pos++
	}
	if l.peekByte(0) == '.' {
		l.pos++
		for l.pos < len(l.input) && isDigit(l.input[l.pos]) {
			l.pos++
		}
	}
	if c := l.peekByte(0); c == 'E' || c == 'e' || c == 'D' || c == 'd' {
		off := 1
		if s := l.peekByte(1); s == '+' || s == '-' {
			off = 2
		}
		if isDigit(l.peekByte(off)) {
			l.pos += off
			for l.pos < len(l.input) && isDigit(l.input[l.pos]) {
				l.pos++
			}
		}
	}
	if c := l.peekByte(0); c == '%' || c == '&' || c == '!' || c == '#' {
		l.pos++
	}
	return Token{Type: TOKEN_NUMBER, Text: strings.ToUpper(l.input[start:l.pos]), Start: start, Stop: l.pos}
}

func (l *Lexer) readRadix() Token {
	start := l.pos
	l.pos++ // &
	if c := l.peekByte(0); c == 'H' || c == 'h' || c == 'O' || c == 'o' {
		l.pos++
	}
	for l.pos < len(l.input) {
		c := l.input[l.pos]
		if isDigit(c) || (c >= 'A' && c <= 'F') || (c >= 'a' && c <= 'f') {
			l.pos++
			continue
		}
		break
	}
	if c := l.peekByte(0); c == '%' || c == '&' {
		l.pos++
	}
	return Token{Type: TOKEN_NUMBER, Text: strings.ToUpper(l.input[start:l.pos]), Start: start, Stop: l.pos}
}

func (l *Lexer) readIdentifier() Token {
	start := l.pos
	for l.pos < len(l.input) {
		c := l.input[l.pos]
		if isLetter(c) || isDigit(c) || c == '.' {
			l.pos++
			continue
		}
		break
	}
	word := strings.ToUpper(l.input[start:l.pos])

	if isSuffix(l.peekByte(0)) {
		withSuffix := word + string(l.peekByte(0))
		if _, ok := builtins[withSuffix]; ok || !keywords[word] {
			l.pos++
			return Token{Type: TOKEN_IDENTIFIER, Text: withSuffix, Start: start, Stop: l.pos}
		}
	}
	if keywords[word] {
		return Token{Type: TOKEN_KEYWORD, Text: word, Start: start, Stop: l.pos}
	}
	return Token{Type: TOKEN_IDENTIFIER, Text: word, Start: start, Stop: l.pos}
}
