package parser

// arity of a built-in function; optional arguments lower the minimum.
type arity struct {
	min, max int
	fileArg  int // index of an argument that may be written as #n, -1 if none
}

var builtins = map[string]arity{
	"ABS":      {1, 1, -1},
	"ASC":      {1, 1, -1},
	"ATN":      {1, 1, -1},
	"CDBL":     {1, 1, -1},
	"CHR$":     {1, 1, -1},
	"CINT":     {1, 1, -1},
	"CLNG":     {1, 1, -1},
	"COS":      {1, 1, -1},
	"CSNG":     {1, 1, -1},
	"CVI":      {1, 1, -1},
	"CVL":      {1, 1, -1},
	"CVS":      {1, 1, -1},
	"CVD":      {1, 1, -1},
	"DATE$":    {0, 0, -1},
	"ENVIRON$": {1, 1, -1},
	"EOF":      {1, 1, 0},
	"EXP":      {1, 1, -1},
	"FIX":      {1, 1, -1},
	"HEX$":     {1, 1, -1},
	"INKEY$":   {0, 0, -1},
	"INPUT$":   {1, 2, 1},
	"INSTR":    {2, 3, -1},
	"INT":      {1, 1, -1},
	"LEFT$":    {2, 2, -1},
	"LEN":      {1, 1, -1},
	"LOC":      {1, 1, 0},
	"LOF":      {1, 1, 0},
	"LOG":      {1, 1, -1},
	"MID$":     {2, 3, -1},
	"MKI$":     {1, 1, -1},
	"MKL$":     {1, 1, -1},
	"MKS$":     {1, 1, -1},
	"MKD$":     {1, 1, -1},
	"OCT$":     {1, 1, -1},
	"RIGHT$":   {2, 2, -1},
	"RND":      {0, 1, -1},
	"SGN":      {1, 1, -1},
	"SIN":      {1, 1, -1},
	"SPACE$":   {1, 1, -1},
	"SQR":      {1, 1, -1},
	"STR$":     {1, 1, -1},
	"STRING$":  {2, 2, -1},
	"TAN":      {1, 1, -1},
	"TIME$":    {0, 0, -1},
	"TIMER":    {0, 0, -1},
	"VAL":      {1, 1, -1},
}

// IsBuiltin reports whether name is a built-in function.
func IsBuiltin(name string) bool {
	_, ok := builtins[name]
	return ok
}
