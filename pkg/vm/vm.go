// Package vm executes the instruction stream produced by the lowering pass.
package vm

import (
	"context"
	"errors"
	"io"
	"math/rand"
	"time"

	"github.com/google/uuid"

	"github.com/antibyte/retrobasic/pkg/basicerr"
	"github.com/antibyte/retrobasic/pkg/configuration"
	"github.com/antibyte/retrobasic/pkg/files"
	"github.com/antibyte/retrobasic/pkg/graphics"
	"github.com/antibyte/retrobasic/pkg/ir"
	"github.com/antibyte/retrobasic/pkg/logger"
	"github.com/antibyte/retrobasic/pkg/sound"
	"github.com/antibyte/retrobasic/pkg/symtab"
	"github.com/antibyte/retrobasic/pkg/value"
)

func vmDebugLog(format string, args ...interface{}) {
	logger.Debug(logger.AreaRuntime, "[VM] "+format, args...)
}

const (
	defaultGosubDepth = 1000
	defaultCallDepth  = 100
)

// Options are the execution limits of a run.
type Options struct {
	MaxGosubDepth int
	MaxCallDepth  int
	// Seed starts the RND sequence; 0 picks a seed from the clock.
	Seed int64
}

// OptionsFromConfig reads the [Interpreter] section.
func OptionsFromConfig() Options {
	return Options{
		MaxGosubDepth: configuration.GetInt("Interpreter", "max_gosub_depth", defaultGosubDepth),
		MaxCallDepth:  configuration.GetInt("Interpreter", "max_call_depth", defaultCallDepth),
		Seed:          configuration.GetInt64("Interpreter", "random_seed", 0),
	}
}

// Services are the collaborators statements call out to. Nil fields are
// replaced with quiet defaults by New.
type Services struct {
	Console *files.Console
	Files   *files.Table
	Env     Environment
	Canvas  graphics.Canvas
	Sound   *sound.Player
	Clock   func() time.Time
}

// inputState holds the reply of the INPUT statement being executed.
type inputState struct {
	fields []string
	pos    int
}

// openState carries OPEN_MODE operands over to the following OPEN.
type openState struct {
	mode   files.Mode
	recLen int
}

// VM runs one lowered program.
type VM struct {
	prog  *ir.Program
	st    *symtab.Table
	opts  Options
	svc   Services
	runID string

	pc      int
	next    int
	halted  bool
	labels  map[symtab.ID]int
	lines   map[int]int
	returns []int

	args    []symtab.ID
	data    []ir.DataItem
	dataPos int
	input   inputState
	open    openState
	field   *files.File
	keys    string

	rng     *rand.Rand
	lastRnd float64
}

// New prepares prog for execution. Label and line tables are built here,
// once, before the first instruction runs.
func New(prog *ir.Program, svc Services, opts Options) *VM {
	if opts.MaxGosubDepth <= 0 {
		opts.MaxGosubDepth = defaultGosubDepth
	}
	if opts.MaxCallDepth <= 0 {
		opts.MaxCallDepth = defaultCallDepth
	}
	if svc.Console == nil {
		svc.Console = files.NewConsole(io.Discard, nil)
	}
	if svc.Files == nil {
		svc.Files = files.NewTable(files.OSStorage{Dir: "."})
	}
	if svc.Env == nil {
		svc.Env = NewProcessEnv()
	}
	if svc.Canvas == nil {
		svc.Canvas = graphics.NewNullCanvas()
	}
	if svc.Sound == nil {
		svc.Sound = sound.NewPlayer(nil, nil, false)
	}
	if svc.Clock == nil {
		svc.Clock = time.Now
	}

	vm := &VM{
		prog:   prog,
		st:     prog.Symbols,
		opts:   opts,
		svc:    svc,
		labels: make(map[symtab.ID]int),
		lines:  make(map[int]int),
		data:   prog.Data(),
	}
	vm.seed(opts.Seed)
	vm.buildTables()
	return vm
}

func (vm *VM) seed(n int64) {
	if n == 0 {
		n = vm.svc.Clock().UnixNano()
	}
	vm.rng = rand.New(rand.NewSource(n))
}

// buildTables maps label ids and line numbers to instruction indices. The
// first instruction of a line wins.
func (vm *VM) buildTables() {
	for i := 0; i < vm.prog.Len(); i++ {
		in := vm.prog.At(i)
		if in.Op == ir.OP_LABEL {
			vm.labels[in.Op1] = i
			if cell, err := vm.st.Value(in.Op1); err == nil {
				cell.SetInt64(int64(i))
			}
		}
		if in.Loc.Line > 0 {
			if _, seen := vm.lines[in.Loc.Line]; !seen {
				vm.lines[in.Loc.Line] = i
			}
		}
	}
	vmDebugLog("%d labels, %d lines", len(vm.labels), len(vm.lines))
}

func (vm *VM) reset() {
	vm.pc = 0
	vm.halted = false
	vm.returns = vm.returns[:0]
	vm.args = vm.args[:0]
	vm.dataPos = 0
	vm.input = inputState{}
	vm.field = nil
	vm.keys = ""
	vm.st.ResetRuntime()
}

// Run executes the program until END, the last instruction or an error.
// Open files are closed and the canvas is flushed on every exit path.
func (vm *VM) Run(ctx context.Context) (err error) {
	vm.reset()
	vm.runID = uuid.NewString()
	started := time.Now()
	vmDebugLog("run %s started with %d instructions", vm.runID, vm.prog.Len())
	defer func() {
		if cerr := vm.shutdown(); err == nil {
			err = cerr
		}
		vmDebugLog("run %s finished after %v at pc=%d: %v", vm.runID, time.Since(started), vm.pc, err)
	}()

	for !vm.halted && vm.pc < vm.prog.Len() {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		in := vm.prog.At(vm.pc)
		vm.next = vm.pc + 1
		if err := vm.executeInstruction(&in); err != nil {
			return vm.locate(&in, err)
		}
		vm.pc = vm.next
	}
	return nil
}

// RunID identifies the current or last run in the log.
func (vm *VM) RunID() string { return vm.runID }

// locate attaches the failing instruction's line and text to BASIC errors.
func (vm *VM) locate(in *ir.Instruction, err error) error {
	var be *basicerr.BASICError
	if errors.As(err, &be) {
		return be.WithLocation(in.Loc.Line, in.Loc.Text)
	}
	return err
}

func (vm *VM) shutdown() error {
	vm.svc.Sound.StopAll()
	err := vm.svc.Files.CloseAll()
	if cerr := vm.svc.Canvas.Close(); err == nil && cerr != nil {
		err = basicerr.RuntimeWrap(basicerr.IOError, cerr)
	}
	vm.st.ResetRuntime()
	return err
}

// InstructionHandler executes one instruction. Jumps set vm.next.
type InstructionHandler func(*VM, *ir.Instruction) error

// instructionHandlers is the opcode jump table.
var instructionHandlers = [ir.Count]InstructionHandler{
	ir.OP_NOP:      (*VM).handleNop,
	ir.OP_VALUE:    (*VM).handleNop,
	ir.OP_VARIABLE: (*VM).handleNop,
	ir.OP_LABEL:    (*VM).handleNop,
	ir.OP_COPY:     (*VM).handleCopy,

	ir.OP_ADD:    (*VM).handleArithmetic,
	ir.OP_SUB:    (*VM).handleArithmetic,
	ir.OP_MUL:    (*VM).handleArithmetic,
	ir.OP_DIV:    (*VM).handleArithmetic,
	ir.OP_IDIV:   (*VM).handleArithmetic,
	ir.OP_MOD:    (*VM).handleArithmetic,
	ir.OP_POW:    (*VM).handleArithmetic,
	ir.OP_NEG:    (*VM).handleNeg,
	ir.OP_CONCAT: (*VM).handleConcat,

	ir.OP_EQ: (*VM).handleCompare,
	ir.OP_NE: (*VM).handleCompare,
	ir.OP_LT: (*VM).handleCompare,
	ir.OP_LE: (*VM).handleCompare,
	ir.OP_GT: (*VM).handleCompare,
	ir.OP_GE: (*VM).handleCompare,

	ir.OP_NOT: (*VM).handleNot,
	ir.OP_AND: (*VM).handleLogical,
	ir.OP_OR:  (*VM).handleLogical,
	ir.OP_XOR: (*VM).handleLogical,
	ir.OP_EQV: (*VM).handleLogical,
	ir.OP_IMP: (*VM).handleLogical,

	ir.OP_GOTO_LABEL:         (*VM).handleGotoLabel,
	ir.OP_GOTO_LABEL_IF:      (*VM).handleGotoLabelIf,
	ir.OP_GOTO_LINENUM:       (*VM).handleGotoLine,
	ir.OP_PUSH_RETLABEL:      (*VM).handlePushReturn,
	ir.OP_RETURN:             (*VM).handleReturn,
	ir.OP_PUSH_RUNTIME_SCOPE: (*VM).handlePushRuntimeScope,
	ir.OP_GOTO_CALLER:        (*VM).handleGotoCaller,
	ir.OP_ON_SELECT:          (*VM).handleOnSelect,
	ir.OP_END:                (*VM).handleEnd,

	ir.OP_ARRAY_RESET: (*VM).handleArrayReset,
	ir.OP_ARRAY_DIM:   (*VM).handleArrayDim,
	ir.OP_DIM_BEGIN:   (*VM).handleDimBegin,
	ir.OP_DIM:         (*VM).handleDim,
	ir.OP_DIM_END:     (*VM).handleDimEnd,
	ir.OP_ERASE:       (*VM).handleErase,
	ir.OP_ARG:         (*VM).handleArg,

	ir.OP_ABS:        (*VM).handleAbs,
	ir.OP_ASC:        (*VM).handleAsc,
	ir.OP_ATN:        (*VM).handleMath,
	ir.OP_CDBL:       (*VM).handleConvert,
	ir.OP_CHR:        (*VM).handleChr,
	ir.OP_CINT:       (*VM).handleConvert,
	ir.OP_CLNG:       (*VM).handleConvert,
	ir.OP_COS:        (*VM).handleMath,
	ir.OP_CSNG:       (*VM).handleConvert,
	ir.OP_CVI:        (*VM).handleDecode,
	ir.OP_CVL:        (*VM).handleDecode,
	ir.OP_CVS:        (*VM).handleDecode,
	ir.OP_CVD:        (*VM).handleDecode,
	ir.OP_DATE:       (*VM).handleDate,
	ir.OP_ENVIRON_FN: (*VM).handleEnvironFn,
	ir.OP_EOF:        (*VM).handleEOF,
	ir.OP_EXP:        (*VM).handleMath,
	ir.OP_FIX:        (*VM).handleFix,
	ir.OP_HEX:        (*VM).handleRadix,
	ir.OP_INKEY:      (*VM).handleInkey,
	ir.OP_INPUT_FN:   (*VM).handleInputFn,
	ir.OP_INSTR:      (*VM).handleInstr,
	ir.OP_INT:        (*VM).handleFix,
	ir.OP_LEFT:       (*VM).handleLeftRight,
	ir.OP_LEN:        (*VM).handleLen,
	ir.OP_LOC:        (*VM).handleLoc,
	ir.OP_LOF:        (*VM).handleLof,
	ir.OP_LOG:        (*VM).handleMath,
	ir.OP_MID:        (*VM).handleMid,
	ir.OP_MKI:        (*VM).handleEncode,
	ir.OP_MKL:        (*VM).handleEncode,
	ir.OP_MKS:        (*VM).handleEncode,
	ir.OP_MKD:        (*VM).handleEncode,
	ir.OP_OCT:        (*VM).handleRadix,
	ir.OP_RIGHT:      (*VM).handleLeftRight,
	ir.OP_RND:        (*VM).handleRnd,
	ir.OP_SGN:        (*VM).handleSgn,
	ir.OP_SIN:        (*VM).handleMath,
	ir.OP_SPACE:      (*VM).handleSpace,
	ir.OP_SQR:        (*VM).handleMath,
	ir.OP_STR:        (*VM).handleStr,
	ir.OP_STRING_FN:  (*VM).handleStringFn,
	ir.OP_TAN:        (*VM).handleMath,
	ir.OP_TIME:       (*VM).handleTime,
	ir.OP_TIMER:      (*VM).handleTimer,
	ir.OP_VAL:        (*VM).handleVal,

	ir.OP_PRINT:         (*VM).handlePrint,
	ir.OP_PRINT_COMMA:   (*VM).handlePrintComma,
	ir.OP_PRINT_TAB:     (*VM).handlePrintTab,
	ir.OP_PRINT_SPC:     (*VM).handlePrintSpc,
	ir.OP_PRINT_NEWLINE: (*VM).handlePrintNewline,
	ir.OP_WRITE:         (*VM).handleWrite,
	ir.OP_WRITE_SEP:     (*VM).handleWriteSep,

	ir.OP_INPUT_BEGIN: (*VM).handleInputBegin,
	ir.OP_INPUT_VAR:   (*VM).handleInputVar,
	ir.OP_INPUT_END:   (*VM).handleInputEnd,
	ir.OP_LINE_INPUT:  (*VM).handleLineInput,

	ir.OP_OPEN_MODE:   (*VM).handleOpenMode,
	ir.OP_OPEN:        (*VM).handleOpen,
	ir.OP_CLOSE:       (*VM).handleClose,
	ir.OP_CLOSE_ALL:   (*VM).handleCloseAll,
	ir.OP_FIELD_BEGIN: (*VM).handleFieldBegin,
	ir.OP_FIELD:       (*VM).handleField,
	ir.OP_GET_RECORD:  (*VM).handleRecord,
	ir.OP_PUT_RECORD:  (*VM).handleRecord,
	ir.OP_LSET:        (*VM).handleJustify,
	ir.OP_RSET:        (*VM).handleJustify,

	ir.OP_READ:    (*VM).handleRead,
	ir.OP_RESTORE: (*VM).handleRestore,

	ir.OP_RANDOMIZE:       (*VM).handleRandomize,
	ir.OP_RANDOMIZE_TIMER: (*VM).handleRandomizeTimer,
	ir.OP_SWAP:            (*VM).handleSwap,
	ir.OP_ENVIRON:         (*VM).handleEnviron,

	ir.OP_CLS:       (*VM).handleCls,
	ir.OP_SCREEN:    (*VM).handleScreen,
	ir.OP_COLOR:     (*VM).handleColor,
	ir.OP_PSET:      (*VM).handlePset,
	ir.OP_LINE:      (*VM).handleLine,
	ir.OP_CIRCLE:    (*VM).handleCircle,
	ir.OP_PAINT:     (*VM).handlePaint,
	ir.OP_DRAW:      (*VM).handleDraw,
	ir.OP_GET_IMAGE: (*VM).handleGetImage,
	ir.OP_PUT_IMAGE: (*VM).handlePutImage,
	ir.OP_FONT:      (*VM).handleFont,

	ir.OP_BEEP:    (*VM).handleBeep,
	ir.OP_LOADWAV: (*VM).handleLoadWav,
	ir.OP_PLAYWAV: (*VM).handleWav,
	ir.OP_STOPWAV: (*VM).handleWav,
	ir.OP_LOOPWAV: (*VM).handleWav,
}

func (vm *VM) executeInstruction(in *ir.Instruction) error {
	if int(in.Op) >= len(instructionHandlers) || instructionHandlers[in.Op] == nil {
		return basicerr.Internal("no handler for opcode %s at %d", in.Op, vm.pc)
	}
	return instructionHandlers[in.Op](vm, in)
}

// operand access

func (vm *VM) cell(id symtab.ID) (*value.Value, error) {
	if id == symtab.NullID {
		return nil, basicerr.Internal("missing operand at %d", vm.pc)
	}
	return vm.st.Value(id)
}

func (vm *VM) number(id symtab.ID) (float64, error) {
	v, err := vm.cell(id)
	if err != nil {
		return 0, err
	}
	return v.Float64()
}

func (vm *VM) integer(id symtab.ID) (int64, error) {
	v, err := vm.cell(id)
	if err != nil {
		return 0, err
	}
	return v.Int64()
}

// smallInt reads an INT32-sized argument.
func (vm *VM) smallInt(id symtab.ID) (int, error) {
	v, err := vm.cell(id)
	if err != nil {
		return 0, err
	}
	n, err := v.Int32()
	return int(n), err
}

func (vm *VM) text(id symtab.ID) (string, error) {
	v, err := vm.cell(id)
	if err != nil {
		return "", err
	}
	return v.Str()
}

// optionalInt reads id, or returns def when the operand was left out.
func (vm *VM) optionalInt(id symtab.ID, def int) (int, bool, error) {
	if id == symtab.NullID {
		return def, false, nil
	}
	n, err := vm.smallInt(id)
	return n, true, err
}

// takeArgs removes the n most recently staged OP_ARG operands.
func (vm *VM) takeArgs(n int) ([]symtab.ID, error) {
	if len(vm.args) < n {
		return nil, basicerr.Internal("%d staged arguments, need %d", len(vm.args), n)
	}
	start := len(vm.args) - n
	out := append([]symtab.ID(nil), vm.args[start:]...)
	vm.args = vm.args[:start]
	return out, nil
}

// control flow

func (vm *VM) labelIndex(id symtab.ID) (int, error) {
	idx, ok := vm.labels[id]
	if !ok {
		return 0, basicerr.Internal("label %d is not placed", id)
	}
	return idx, nil
}

func (vm *VM) lineIndex(id symtab.ID) (int, error) {
	n, err := vm.integer(id)
	if err != nil {
		return 0, err
	}
	idx, ok := vm.lines[int(n)]
	if !ok {
		return 0, basicerr.Runtime(basicerr.UndefinedLine, "%d", n)
	}
	return idx, nil
}

func (vm *VM) handleNop(in *ir.Instruction) error { return nil }

func (vm *VM) handleCopy(in *ir.Instruction) error {
	src, err := vm.cell(in.Op1)
	if err != nil {
		return err
	}
	dst, err := vm.cell(in.Result)
	if err != nil {
		return err
	}
	return dst.Assign(src)
}

func (vm *VM) handleGotoLabel(in *ir.Instruction) error {
	idx, err := vm.labelIndex(in.Op1)
	if err != nil {
		return err
	}
	vm.next = idx
	return nil
}

func (vm *VM) handleGotoLabelIf(in *ir.Instruction) error {
	cond, err := vm.cell(in.Op2)
	if err != nil {
		return err
	}
	ok, err := cond.Truthy()
	if err != nil || !ok {
		return err
	}
	return vm.handleGotoLabel(in)
}

func (vm *VM) handleGotoLine(in *ir.Instruction) error {
	idx, err := vm.lineIndex(in.Op1)
	if err != nil {
		return err
	}
	vm.next = idx
	return nil
}

func (vm *VM) handlePushReturn(in *ir.Instruction) error {
	if len(vm.returns) >= vm.opts.MaxGosubDepth {
		return basicerr.Runtime(basicerr.GosubDepthExceeded, "%d levels", len(vm.returns))
	}
	idx, err := vm.labelIndex(in.Op1)
	if err != nil {
		return err
	}
	vm.returns = append(vm.returns, idx)
	return nil
}

// handleReturn resumes after the matching GOSUB, or at the given line.
func (vm *VM) handleReturn(in *ir.Instruction) error {
	if len(vm.returns) == 0 {
		return basicerr.Runtime(basicerr.ReturnWithoutGosub, "")
	}
	idx := vm.returns[len(vm.returns)-1]
	vm.returns = vm.returns[:len(vm.returns)-1]
	if in.Op1 != symtab.NullID {
		var err error
		if idx, err = vm.lineIndex(in.Op1); err != nil {
			return err
		}
	}
	vm.next = idx
	return nil
}

func (vm *VM) handlePushRuntimeScope(in *ir.Instruction) error {
	if vm.st.CallDepth() >= vm.opts.MaxCallDepth {
		return basicerr.Runtime(basicerr.CallDepthExceeded, "%d levels", vm.st.CallDepth())
	}
	ret, err := vm.labelIndex(in.Op2)
	if err != nil {
		return err
	}
	return vm.st.PushRuntimeScope(in.Op1, ret)
}

func (vm *VM) handleGotoCaller(in *ir.Instruction) error {
	idx, err := vm.st.CallerIndex()
	if err != nil {
		return err
	}
	if err := vm.st.PopScope(); err != nil {
		return err
	}
	vm.next = idx
	return nil
}

// handleOnSelect checks the selector of ON ... GOTO/GOSUB. Values past the
// branch count fall through, values outside 0..255 are an error.
func (vm *VM) handleOnSelect(in *ir.Instruction) error {
	n, err := vm.integer(in.Op1)
	if err != nil {
		return err
	}
	if n < 0 || n > 255 {
		return basicerr.Runtime(basicerr.IllegalFunctionCall, "ON selector %d", n)
	}
	r, err := vm.cell(in.Result)
	if err != nil {
		return err
	}
	return r.SetInt64(n)
}

func (vm *VM) handleEnd(in *ir.Instruction) error {
	vm.halted = true
	return nil
}

// arrays

func (vm *VM) arrayRef(id symtab.ID) (*symtab.ArrayRef, *symtab.ArrayStore, error) {
	e, err := vm.st.Get(id)
	if err != nil {
		return nil, nil, err
	}
	if e.Ref == nil {
		return nil, nil, basicerr.Internal("entry %s is not an array reference", e)
	}
	arr, err := vm.st.Get(e.Ref.Array)
	if err != nil {
		return nil, nil, err
	}
	return e.Ref, arr.Array, nil
}

func (vm *VM) array(id symtab.ID) (*symtab.ArrayStore, error) {
	e, err := vm.st.Get(id)
	if err != nil {
		return nil, err
	}
	if !e.IsArray() {
		return nil, basicerr.Internal("entry %s is not an array", e)
	}
	return e.Array, nil
}

func (vm *VM) handleArrayReset(in *ir.Instruction) error {
	ref, _, err := vm.arrayRef(in.Op1)
	if err != nil {
		return err
	}
	ref.Reset()
	return nil
}

func (vm *VM) handleArrayDim(in *ir.Instruction) error {
	ref, arr, err := vm.arrayRef(in.Op1)
	if err != nil {
		return err
	}
	i, err := vm.integer(in.Op2)
	if err != nil {
		return err
	}
	return ref.AddIndex(arr, i)
}

func (vm *VM) handleDimBegin(in *ir.Instruction) error {
	arr, err := vm.array(in.Op1)
	if err != nil {
		return err
	}
	arr.BeginDim()
	return nil
}

func (vm *VM) handleDim(in *ir.Instruction) error {
	arr, err := vm.array(in.Op1)
	if err != nil {
		return err
	}
	bound, err := vm.integer(in.Op2)
	if err != nil {
		return err
	}
	return arr.AddExtent(bound)
}

func (vm *VM) handleDimEnd(in *ir.Instruction) error {
	arr, err := vm.array(in.Op1)
	if err != nil {
		return err
	}
	return arr.EndDim()
}

func (vm *VM) handleErase(in *ir.Instruction) error {
	arr, err := vm.array(in.Op1)
	if err != nil {
		return err
	}
	arr.Erase()
	return nil
}

func (vm *VM) handleArg(in *ir.Instruction) error {
	vm.args = append(vm.args, in.Op1)
	return nil
}
