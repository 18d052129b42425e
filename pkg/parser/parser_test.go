package parser

import (
	"testing"

	"github.com/antibyte/retrobasic/pkg/ast"
	"github.com/antibyte/retrobasic/pkg/basicerr"
	"github.com/antibyte/retrobasic/pkg/source"
)

func parseOne(t *testing.T, text string) *ast.Line {
	t.Helper()
	line, err := ParseLine(source.Line{Text: text})
	if err != nil {
		t.Fatalf("ParseLine(%q): %v", text, err)
	}
	return line
}

func TestLexer(t *testing.T) {
	tests := []struct {
		input string
		types []TokenType
		texts []string
	}{
		{"A%=1", []TokenType{TOKEN_IDENTIFIER, TOKEN_EQ, TOKEN_NUMBER, TOKEN_EOF}, []string{"A%", "=", "1", ""}},
		{"print#1,x", []TokenType{TOKEN_KEYWORD, TOKEN_HASH, TOKEN_NUMBER, TOKEN_COMMA, TOKEN_IDENTIFIER, TOKEN_EOF}, []string{"PRINT", "#", "1", ",", "X", ""}},
		{"left$(a$,2)", []TokenType{TOKEN_IDENTIFIER, TOKEN_LPAREN, TOKEN_IDENTIFIER, TOKEN_COMMA, TOKEN_NUMBER, TOKEN_RPAREN, TOKEN_EOF}, []string{"LEFT$", "(", "A$", ",", "2", ")", ""}},
		{"1.5D-3 &HFF .5", []TokenType{TOKEN_NUMBER, TOKEN_NUMBER, TOKEN_NUMBER, TOKEN_EOF}, []string{"1.5D-3", "&HFF", ".5", ""}},
		{"a<>b >= c =< d", []TokenType{TOKEN_IDENTIFIER, TOKEN_NE, TOKEN_IDENTIFIER, TOKEN_GE, TOKEN_IDENTIFIER, TOKEN_LE, TOKEN_IDENTIFIER, TOKEN_EOF}, nil},
		{"REM : not a statement", []TokenType{TOKEN_KEYWORD, TOKEN_REM, TOKEN_EOF}, nil},
		{`DATA 1,"a:b",c : PRINT`, []TokenType{TOKEN_KEYWORD, TOKEN_DATA_TEXT, TOKEN_COLON, TOKEN_KEYWORD, TOKEN_EOF}, nil},
		{"? 1 ' note", []TokenType{TOKEN_KEYWORD, TOKEN_NUMBER, TOKEN_REM, TOKEN_EOF}, nil},
		{"input$(1)", []TokenType{TOKEN_IDENTIFIER, TOKEN_LPAREN, TOKEN_NUMBER, TOKEN_RPAREN, TOKEN_EOF}, []string{"INPUT$", "(", "1", ")", ""}},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			tokens := NewLexer(tt.input).Tokenize()
			if len(tokens) != len(tt.types) {
				t.Fatalf("got %d tokens %v, want %d", len(tokens), tokens, len(tt.types))
			}
			for i, tok := range tokens {
				if tok.Type != tt.types[i] {
					t.Errorf("token %d type = %d, want %d", i, tok.Type, tt.types[i])
				}
				if tt.texts != nil && tok.Text != tt.texts[i] {
					t.Errorf("token %d text = %q, want %q", i, tok.Text, tt.texts[i])
				}
			}
		})
	}
}

func TestNestedIfElseBinding(t *testing.T) {
	line := parseOne(t, `10 IF 1 THEN IF 0 THEN PRINT "A" ELSE PRINT "B" ELSE PRINT "C"`)
	if len(line.Stmts) != 1 {
		t.Fatalf("got %d statements, want 1", len(line.Stmts))
	}
	outer, ok := line.Stmts[0].(*ast.If)
	if !ok {
		t.Fatalf("statement is %T, want *ast.If", line.Stmts[0])
	}
	if len(outer.Then) != 1 || len(outer.Else) != 1 {
		t.Fatalf("outer IF has %d THEN and %d ELSE statements", len(outer.Then), len(outer.Else))
	}
	inner, ok := outer.Then[0].(*ast.If)
	if !ok {
		t.Fatalf("THEN branch is %T, want *ast.If", outer.Then[0])
	}
	if len(inner.Else) != 1 {
		t.Fatalf("inner IF has %d ELSE statements, want 1", len(inner.Else))
	}
	printB := inner.Else[0].(*ast.Print)
	if s := printB.Items[0].X.(*ast.StringLit).Value; s != "B" {
		t.Errorf("inner ELSE prints %q, want B", s)
	}
	printC := outer.Else[0].(*ast.Print)
	if s := printC.Items[0].X.(*ast.StringLit).Value; s != "C" {
		t.Errorf("outer ELSE prints %q, want C", s)
	}
}

func TestIfLineNumberBranches(t *testing.T) {
	line := parseOne(t, "10 IF X THEN 100 ELSE 200")
	st := line.Stmts[0].(*ast.If)
	if g := st.Then[0].(*ast.Goto); g.Line != 100 {
		t.Errorf("THEN goes to %d", g.Line)
	}
	if g := st.Else[0].(*ast.Goto); g.Line != 200 {
		t.Errorf("ELSE goes to %d", g.Line)
	}

	line = parseOne(t, "20 IF X GOTO 300")
	if g := line.Stmts[0].(*ast.If).Then[0].(*ast.Goto); g.Line != 300 {
		t.Errorf("IF GOTO goes to %d", g.Line)
	}
}

func TestThenBranchTakesRestOfLine(t *testing.T) {
	line := parseOne(t, "10 IF X THEN A=1: B=2")
	if len(line.Stmts) != 1 {
		t.Fatalf("got %d top-level statements, want 1", len(line.Stmts))
	}
	if n := len(line.Stmts[0].(*ast.If).Then); n != 2 {
		t.Errorf("THEN branch has %d statements, want 2", n)
	}
}

func TestPrecedence(t *testing.T) {
	tests := []struct {
		input string
		top   string
	}{
		{"10 X = -2^2", "-"},
		{"10 X = 1 + 2 * 3", "+"},
		{"10 X = A OR B AND C", "OR"},
		{"10 X = NOT A = B", "NOT"},
		{"10 X = 7 MOD 3 + 1", "+"},
		{"10 X = 7 \\ 2 MOD 3", "MOD"},
		{"10 X = A < B EQV C", "EQV"},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			let := parseOne(t, tt.input).Stmts[0].(*ast.Let)
			var op string
			switch x := let.Value.(type) {
			case *ast.Binary:
				op = x.Op
			case *ast.Unary:
				op = x.Op
			}
			if op != tt.top {
				t.Errorf("top operator = %q, want %q", op, tt.top)
			}
		})
	}

	// left-associative power
	let := parseOne(t, "10 X = 2^3^2").Stmts[0].(*ast.Let)
	top := let.Value.(*ast.Binary)
	if _, ok := top.L.(*ast.Binary); !ok {
		t.Error("2^3^2 must group as (2^3)^2")
	}
}

func TestPrintItems(t *testing.T) {
	st := parseOne(t, `10 PRINT #2, "A"; TAB(5); X, SPC(2);`).Stmts[0].(*ast.Print)
	if st.File == nil {
		t.Fatal("file number missing")
	}
	kinds := []ast.PrintItemKind{
		ast.PrintExpr, ast.PrintSemicolon, ast.PrintTab, ast.PrintSemicolon,
		ast.PrintExpr, ast.PrintComma, ast.PrintSpc, ast.PrintSemicolon,
	}
	if len(st.Items) != len(kinds) {
		t.Fatalf("got %d items, want %d", len(st.Items), len(kinds))
	}
	for i, k := range kinds {
		if st.Items[i].Kind != k {
			t.Errorf("item %d kind = %d, want %d", i, st.Items[i].Kind, k)
		}
	}
}

func TestInputPrompts(t *testing.T) {
	tests := []struct {
		input  string
		prompt string
		vars   int
	}{
		{`10 INPUT A`, "? ", 1},
		{`10 INPUT "Name"; N$`, "Name? ", 1},
		{`10 INPUT "Age", A, B`, "Age", 2},
		{`10 INPUT ; "X"; X`, "X? ", 1},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			st := parseOne(t, tt.input).Stmts[0].(*ast.Input)
			if st.Prompt != tt.prompt {
				t.Errorf("prompt = %q, want %q", st.Prompt, tt.prompt)
			}
			if len(st.Vars) != tt.vars {
				t.Errorf("got %d variables, want %d", len(st.Vars), tt.vars)
			}
		})
	}

	li := parseOne(t, `10 LINE INPUT "Text: "; T$`).Stmts[0].(*ast.LineInput)
	if li.Prompt != "Text: " || li.Var.Name != "T" || li.Var.Suffix != '$' {
		t.Errorf("LINE INPUT parsed as %+v", li)
	}
}

func TestOpenForms(t *testing.T) {
	short := parseOne(t, `10 OPEN "O", #1, "OUT.TXT"`).Stmts[0].(*ast.Open)
	if short.Mode.(*ast.StringLit).Value != "O" || short.RecLen != nil {
		t.Errorf("short OPEN parsed as %+v", short)
	}
	long := parseOne(t, `10 OPEN "DATA.DAT" FOR RANDOM AS #2 LEN = 32`).Stmts[0].(*ast.Open)
	if long.Mode.(*ast.StringLit).Value != "R" || long.RecLen == nil {
		t.Errorf("long OPEN parsed as %+v", long)
	}
}

func TestSplitData(t *testing.T) {
	items := SplitData(` 1, "HELLO, WORLD" , abc ,,2.5`)
	want := []ast.DataConst{
		{Text: "1"},
		{Text: "HELLO, WORLD", Quoted: true},
		{Text: "abc"},
		{Text: ""},
		{Text: "2.5"},
	}
	if len(items) != len(want) {
		t.Fatalf("got %d items %v, want %d", len(items), items, len(want))
	}
	for i := range want {
		if items[i] != want[i] {
			t.Errorf("item %d = %+v, want %+v", i, items[i], want[i])
		}
	}
}

func TestStatementsParse(t *testing.T) {
	lines := []string{
		`10 FOR I = 1 TO 10 STEP 2: NEXT I`,
		`20 ON X GOSUB 100, 200, 300`,
		`30 DIM A(10), B$(2, 3)`,
		`40 DEF FNSQ(X) = X * X`,
		`50 DEFINT A-C, Z`,
		`60 WHILE X < 10: X = X + 1: WEND`,
		`70 FIELD #1, 10 AS N$, 20 AS A$`,
		`80 GET #1, 5: PUT #1`,
		`90 LINE (0,0)-(100,50), 2, BF`,
		`100 CIRCLE (50,50), 20, 3: PAINT (50,50), 4, 3`,
		`110 GET (0,0)-(10,10), IMG: PUT (20,20), IMG, XOR`,
		`120 SWAP A, B: RANDOMIZE TIMER: RESTORE 40`,
		`130 LOADWAV "beep.wav", 1: PLAYWAV 1: BEEP`,
		`140 WRITE #1, A, B$: CLOSE #1, 2`,
		`150 LSET N$ = "X": RSET A$ = "Y"`,
		`160 COLOR , 1: SCREEN 1: PSET (1,2): PRESET (3,4), 0`,
		`170 ENVIRON "PATH=X": ERASE A, B$`,
		`180 X = INSTR(2, A$, "B") + LEN(MID$(A$, 2)) + EOF(1) + RND`,
		`190 A$ = INPUT$(3, #1): RETURN 100`,
	}
	for _, text := range lines {
		t.Run(text, func(t *testing.T) {
			parseOne(t, text)
		})
	}
}

func TestSyntaxErrors(t *testing.T) {
	tests := []struct {
		input string
		code  basicerr.Code
	}{
		{"PRINT 1", basicerr.MissingLineNum},
		{"10 FOO BAR", basicerr.UnexpectedToken},
		{"10 PRINT (1", basicerr.UnexpectedToken},
		{"10 X = LEFT$(A$)", basicerr.WrongArgumentCount},
		{"10 ELSE", basicerr.UnexpectedToken},
		{"10 DEF X = 1", basicerr.SyntaxError},
		{"10 IF X PRINT", basicerr.UnexpectedToken},
		{"10 X = 1 @", basicerr.SyntaxError},
		{"10 NEXT 5", basicerr.UnexpectedToken},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			_, err := ParseLine(source.Line{Text: tt.input})
			if !basicerr.Is(err, tt.code) {
				t.Errorf("got %v, want %s", err, tt.code)
			}
		})
	}
}
