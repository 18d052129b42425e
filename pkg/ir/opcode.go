// Package ir defines the three-address instruction stream produced by the
// lowering pass and executed by the VM.
package ir

// OpCode is the operation tag of an Instruction.
type OpCode byte

const (
	// Storage
	OP_NOP      OpCode = iota
	OP_VALUE           // literal placeholder, result = literal temp
	OP_VARIABLE        // variable placeholder, result = variable
	OP_COPY            // result = op1

	// Arithmetic, result = op1 <op> op2
	OP_ADD
	OP_SUB
	OP_MUL
	OP_DIV
	OP_IDIV
	OP_MOD
	OP_POW
	OP_NEG    // result = -op1
	OP_CONCAT // string +

	// Relational, result = -1 or 0
	OP_EQ
	OP_NE
	OP_LT
	OP_LE
	OP_GT
	OP_GE

	// Logical, bitwise on integers
	OP_NOT
	OP_AND
	OP_OR
	OP_XOR
	OP_EQV
	OP_IMP

	// Control flow
	OP_LABEL              // op1 = label
	OP_GOTO_LABEL         // op1 = label
	OP_GOTO_LABEL_IF      // op1 = label, op2 = condition
	OP_GOTO_LINENUM       // op1 = line number
	OP_PUSH_RETLABEL      // op1 = label to resume at on RETURN
	OP_RETURN             // op1 = line number or NULL
	OP_PUSH_RUNTIME_SCOPE // op1 = function, op2 = label to resume at
	OP_GOTO_CALLER        // return from a user-defined function
	OP_ON_SELECT          // result = op1 rounded, 0..255
	OP_END

	// Arrays
	OP_ARRAY_RESET // op1 = array reference
	OP_ARRAY_DIM   // op1 = array reference, op2 = index
	OP_DIM_BEGIN   // op1 = array
	OP_DIM         // op1 = array, op2 = upper bound
	OP_DIM_END     // op1 = array
	OP_ERASE       // op1 = array

	// Argument staging for statements and functions with more than two operands
	OP_ARG // op1 = argument or NULL

	// Built-in functions, result = f(op1[, op2])
	OP_ABS
	OP_ASC
	OP_ATN
	OP_CDBL
	OP_CHR
	OP_CINT
	OP_CLNG
	OP_COS
	OP_CSNG
	OP_CVI
	OP_CVL
	OP_CVS
	OP_CVD
	OP_DATE
	OP_ENVIRON_FN
	OP_EOF
	OP_EXP
	OP_FIX
	OP_HEX
	OP_INKEY
	OP_INPUT_FN // INPUT$(n[, #f])
	OP_INSTR    // staged start position
	OP_INT
	OP_LEFT
	OP_LEN
	OP_LOC
	OP_LOF
	OP_LOG
	OP_MID // staged length
	OP_MKI
	OP_MKL
	OP_MKS
	OP_MKD
	OP_OCT
	OP_RIGHT
	OP_RND
	OP_SGN
	OP_SIN
	OP_SPACE
	OP_SQR
	OP_STR
	OP_STRING_FN
	OP_TAN
	OP_TIME
	OP_TIMER
	OP_VAL

	// Console and file output, op1 = file number or NULL for the console
	OP_PRINT         // op2 = value
	OP_PRINT_COMMA   // next print zone
	OP_PRINT_TAB     // op2 = column
	OP_PRINT_SPC     // op2 = count
	OP_PRINT_NEWLINE //
	OP_WRITE         // op2 = value
	OP_WRITE_SEP     //

	// Input
	OP_INPUT_BEGIN // op1 = file or NULL, op2 = prompt
	OP_INPUT_VAR   // result = target
	OP_INPUT_END
	OP_LINE_INPUT // op1 = file or NULL, op2 = prompt, result = target

	// Files
	OP_OPEN_MODE   // op1 = mode, op2 = record length or NULL
	OP_OPEN        // op1 = file number, op2 = file name
	OP_CLOSE       // op1 = file number
	OP_CLOSE_ALL   //
	OP_FIELD_BEGIN // op1 = file number
	OP_FIELD       // op1 = width, result = string variable
	OP_GET_RECORD  // op1 = file number, op2 = record or NULL
	OP_PUT_RECORD  // op1 = file number, op2 = record or NULL
	OP_LSET        // op1 = source, result = target
	OP_RSET        // op1 = source, result = target

	// DATA
	OP_READ    // result = target
	OP_RESTORE // op1 = line number or NULL

	// Misc statements
	OP_RANDOMIZE       // op1 = seed or NULL
	OP_RANDOMIZE_TIMER //
	OP_SWAP            // op1 <-> op2
	OP_ENVIRON         // op1 = "NAME=VALUE"

	// Graphics, coordinates staged with OP_ARG
	OP_CLS
	OP_SCREEN     // op1 = mode
	OP_COLOR      // op1 = foreground or NULL, op2 = background or NULL
	OP_PSET       // op1 = 1 for PRESET; staged x, y, color
	OP_LINE       // op1 = style ("", "B", "BF"); staged x1, y1, x2, y2, color
	OP_CIRCLE     // staged x, y, radius, color
	OP_PAINT      // staged x, y, paint, border
	OP_DRAW       // op1 = command string
	OP_GET_IMAGE  // op1 = array; staged x1, y1, x2, y2
	OP_PUT_IMAGE  // op1 = array, op2 = action or NULL; staged x, y
	OP_FONT       // op1 = font number

	// Sound
	OP_BEEP
	OP_LOADWAV // op1 = file name, op2 = clip number
	OP_PLAYWAV // op1 = clip number
	OP_STOPWAV // op1 = clip number
	OP_LOOPWAV // op1 = clip number

	opCount
)

var opNames = [...]string{
	OP_NOP:                "NOP",
	OP_VALUE:              "VALUE",
	OP_VARIABLE:           "VARIABLE",
	OP_COPY:               "COPY",
	OP_ADD:                "ADD",
	OP_SUB:                "SUB",
	OP_MUL:                "MUL",
	OP_DIV:                "DIV",
	OP_IDIV:               "IDIV",
	OP_MOD:                "MOD",
	OP_POW:                "POW",
	OP_NEG:                "NEG",
	OP_CONCAT:             "CONCAT",
	OP_EQ:                 "EQ",
	OP_NE:                 "NE",
	OP_LT:                 "LT",
	OP_LE:                 "LE",
	OP_GT:                 "GT",
	OP_GE:                 "GE",
	OP_NOT:                "NOT",
	OP_AND:                "AND",
	OP_OR:                 "OR",
	OP_XOR:                "XOR",
	OP_EQV:                "EQV",
	OP_IMP:                "IMP",
	OP_LABEL:              "LABEL",
	OP_GOTO_LABEL:         "GOTO_LABEL",
	OP_GOTO_LABEL_IF:      "GOTO_LABEL_IF",
	OP_GOTO_LINENUM:       "GOTO_LINENUM",
	OP_PUSH_RETLABEL:      "PUSH_RETLABEL",
	OP_RETURN:             "RETURN",
	OP_PUSH_RUNTIME_SCOPE: "PUSH_RUNTIME_SCOPE",
	OP_GOTO_CALLER:        "GOTO_CALLER",
	OP_ON_SELECT:          "ON_SELECT",
	OP_END:                "END",
	OP_ARRAY_RESET:        "ARRAY_RESET",
	OP_ARRAY_DIM:          "ARRAY_DIM",
	OP_DIM_BEGIN:          "DIM_BEGIN",
	OP_DIM:                "DIM",
	OP_DIM_END:            "DIM_END",
	OP_ERASE:              "ERASE",
	OP_ARG:                "ARG",
	OP_ABS:                "ABS",
	OP_ASC:                "ASC",
	OP_ATN:                "ATN",
	OP_CDBL:               "CDBL",
	OP_CHR:                "CHR$",
	OP_CINT:               "CINT",
	OP_CLNG:               "CLNG",
	OP_COS:                "COS",
	OP_CSNG:               "CSNG",
	OP_CVI:                "CVI",
	OP_CVL:                "CVL",
	OP_CVS:                "CVS",
	OP_CVD:                "CVD",
	OP_DATE:               "DATE$",
	OP_ENVIRON_FN:         "ENVIRON$",
	OP_EOF:                "EOF",
	OP_EXP:                "EXP",
	OP_FIX:                "FIX",
	OP_HEX:                "HEX$",
	OP_INKEY:              "INKEY$",
	OP_INPUT_FN:           "INPUT$",
	OP_INSTR:              "INSTR",
	OP_INT:                "INT",
	OP_LEFT:               "LEFT$",
	OP_LEN:                "LEN",
	OP_LOC:                "LOC",
	OP_LOF:                "LOF",
	OP_LOG:                "LOG",
	OP_MID:                "MID$",
	OP_MKI:                "MKI$",
	OP_MKL:                "MKL$",
	OP_MKS:                "MKS$",
	OP_MKD:                "MKD$",
	OP_OCT:                "OCT$",
	OP_RIGHT:              "RIGHT$",
	OP_RND:                "RND",
	OP_SGN:                "SGN",
	OP_SIN:                "SIN",
	OP_SPACE:              "SPACE$",
	OP_SQR:                "SQR",
	OP_STR:                "STR$",
	OP_STRING_FN:          "STRING$",
	OP_TAN:                "TAN",
	OP_TIME:               "TIME$",
	OP_TIMER:              "TIMER",
	OP_VAL:                "VAL",
	OP_PRINT:              "PRINT",
	OP_PRINT_COMMA:        "PRINT_COMMA",
	OP_PRINT_TAB:          "PRINT_TAB",
	OP_PRINT_SPC:          "PRINT_SPC",
	OP_PRINT_NEWLINE:      "PRINT_NEWLINE",
	OP_WRITE:              "WRITE",
	OP_WRITE_SEP:          "WRITE_SEP",
	OP_INPUT_BEGIN:        "INPUT_BEGIN",
	OP_INPUT_VAR:          "INPUT_VAR",
	OP_INPUT_END:          "INPUT_END",
	OP_LINE_INPUT:         "LINE_INPUT",
	OP_OPEN_MODE:          "OPEN_MODE",
	OP_OPEN:               "OPEN",
	OP_CLOSE:              "CLOSE",
	OP_CLOSE_ALL:          "CLOSE_ALL",
	OP_FIELD_BEGIN:        "FIELD_BEGIN",
	OP_FIELD:              "FIELD",
	OP_GET_RECORD:         "GET_RECORD",
	OP_PUT_RECORD:         "PUT_RECORD",
	OP_LSET:               "LSET",
	OP_RSET:               "RSET",
	OP_READ:               "READ",
	OP_RESTORE:            "RESTORE",
	OP_RANDOMIZE:          "RANDOMIZE",
	OP_RANDOMIZE_TIMER:    "RANDOMIZE_TIMER",
	OP_SWAP:               "SWAP",
	OP_ENVIRON:            "ENVIRON",
	OP_CLS:                "CLS",
	OP_SCREEN:             "SCREEN",
	OP_COLOR:              "COLOR",
	OP_PSET:               "PSET",
	OP_LINE:               "LINE",
	OP_CIRCLE:             "CIRCLE",
	OP_PAINT:              "PAINT",
	OP_DRAW:               "DRAW",
	OP_GET_IMAGE:          "GET_IMAGE",
	OP_PUT_IMAGE:          "PUT_IMAGE",
	OP_FONT:               "FONT",
	OP_BEEP:               "BEEP",
	OP_LOADWAV:            "LOADWAV",
	OP_PLAYWAV:            "PLAYWAV",
	OP_STOPWAV:            "STOPWAV",
	OP_LOOPWAV:            "LOOPWAV",
}

func (op OpCode) String() string {
	if int(op) < len(opNames) && opNames[op] != "" {
		return opNames[op]
	}
	return "UNKNOWN"
}

// Count is the number of defined opcodes.
const Count = int(opCount)

// IsJump reports whether op1 of an instruction with this opcode names a label.
func (op OpCode) IsJump() bool {
	switch op {
	case OP_GOTO_LABEL, OP_GOTO_LABEL_IF, OP_PUSH_RETLABEL:
		return true
	}
	return false
}

// labelInOp2 reports whether op2 names a label.
func (op OpCode) labelInOp2() bool { return op == OP_PUSH_RUNTIME_SCOPE }
