// Package builder assembles a Maroon IR tree from an ordered stream of
// declaration events mirroring the lexical nesting of the source. The stream
// has no recovery path: the first violated invariant poisons the builder and
// every later event is ignored.
package builder

import (
	"fmt"
	"strings"

	"github.com/emirpasic/gods/stacks/arraystack"

	"github.com/piarun/maroon/pkg/ir"
)

const optionalSpelling = "OPTIONAL<"

// Builder is the single mutable construction context. Not safe for concurrent
// use; nothing is shared across instances.
type Builder struct {
	prog *ir.Program
	err  error

	curNamespace string
	curType      string
	curFiber     string
	curFunction  string

	nextPlaceholder uint32
	parents         *arraystack.Stack // parentSlot: where completed child blocks splice back
	blocks          *arraystack.Stack // *ir.Block under construction for the current function

	ifFrames    []*ifFrame
	matchFrames []*matchFrame

	// Per namespace, per inner type: the first line that required the
	// optional wrapper. Finalize synthesizes one OPTIONAL_<inner> decl each.
	optionals map[string]map[string]uint32

	finalized bool
}

type parentSlot struct {
	key uint32
	idx int
}

type ifFrame struct {
	cond        string
	line        uint32
	markThen    int
	markElse    int
	blocksDepth int
	elseSeen    bool
}

type matchFrame struct {
	stmt *ir.MatchEnum
	arm  *armFrame
}

type armFrame struct {
	key     *string
	capture *string
	line    uint32
	mark    int
}

// New returns an empty builder.
func New() *Builder {
	return &Builder{
		prog:      ir.NewProgram(),
		parents:   arraystack.New(),
		blocks:    arraystack.New(),
		optionals: make(map[string]map[string]uint32),
	}
}

// Err returns the first construction error, if any.
func (b *Builder) Err() error { return b.err }

func (b *Builder) fail(format string, args ...any) error {
	err := fmt.Errorf(format, args...)
	if b.err == nil {
		b.err = err
	}
	return err
}

func (b *Builder) inFunction() bool { return b.blocks.Size() > 0 }

func (b *Builder) currentBlock() *ir.Block {
	top, ok := b.blocks.Peek()
	if !ok {
		return nil
	}
	return top.(*ir.Block)
}

func (b *Builder) addToBlock(item ir.StmtOrBlock) int {
	blk := b.currentBlock()
	blk.Code = append(blk.Code, item)
	return len(blk.Code) - 1
}

func (b *Builder) extractLastItem() ir.StmtOrBlock {
	blk := b.currentBlock()
	item := blk.Code[len(blk.Code)-1]
	blk.Code = blk.Code[:len(blk.Code)-1]
	return item
}

// Source records the source-file tag of the program.
func (b *Builder) Source(src string) error {
	if b.err != nil {
		return b.err
	}
	b.prog.Src = src
	return nil
}

// BeginNamespace opens a top-level namespace scope.
func (b *Builder) BeginNamespace(name string, line uint32) error {
	if b.err != nil {
		return b.err
	}
	if b.curNamespace != "" {
		return b.fail("namespace %q opened while namespace %q is still open", name, b.curNamespace)
	}
	if _, ok := b.prog.Maroon[name]; ok {
		return b.fail("namespace %q is defined more than once", name)
	}
	b.curNamespace = name
	b.prog.Maroon[name] = ir.NewNamespace(line)
	return nil
}

// EndNamespace closes the active namespace.
func (b *Builder) EndNamespace() error {
	if b.err != nil {
		return b.err
	}
	if b.curNamespace == "" {
		return b.fail("no namespace is open")
	}
	if b.curFiber != "" || b.curType != "" {
		return b.fail("namespace %q closed with an open inner scope", b.curNamespace)
	}
	b.curNamespace = ""
	return nil
}

// BeginType opens a struct-kind type declaration.
func (b *Builder) BeginType(name string, line uint32) error {
	return b.beginTypeDecl(name, line, &ir.TypeDefStruct{})
}

// BeginEnum opens an enum-kind type declaration.
func (b *Builder) BeginEnum(name string, line uint32) error {
	return b.beginTypeDecl(name, line, &ir.TypeDefEnum{})
}

func (b *Builder) beginTypeDecl(name string, line uint32, def ir.TypeDef) error {
	if b.err != nil {
		return b.err
	}
	if b.curNamespace == "" {
		return b.fail("type %q must be declared within a namespace", name)
	}
	if b.curType != "" {
		return b.fail("type %q opened while type %q is still open", name, b.curType)
	}
	ns := b.prog.Maroon[b.curNamespace]
	if _, ok := ns.Types[name]; ok {
		return b.fail("type %q is defined more than once in namespace %q", name, b.curNamespace)
	}
	b.curType = name
	ns.Types[name] = &ir.TypeDecl{Line: line, Def: def}
	return nil
}

// EndType closes the active struct declaration.
func (b *Builder) EndType() error { return b.endTypeDecl() }

// EndEnum closes the active enum declaration.
func (b *Builder) EndEnum() error { return b.endTypeDecl() }

func (b *Builder) endTypeDecl() error {
	if b.err != nil {
		return b.err
	}
	if b.curType == "" {
		return b.fail("no type declaration is open")
	}
	b.curType = ""
	return nil
}

// Field appends a field to the active struct declaration.
func (b *Builder) Field(name, typeName string, line uint32) error {
	if b.err != nil {
		return b.err
	}
	if b.curType == "" {
		return b.fail("field %q is only legal inside a type declaration", name)
	}
	def, ok := b.prog.Maroon[b.curNamespace].Types[b.curType].Def.(*ir.TypeDefStruct)
	if !ok {
		return b.fail("field %q is only legal inside a struct-kind type", name)
	}
	def.Fields = append(def.Fields, ir.StructField{Name: name, Type: b.rewriteOptional(typeName, line)})
	return nil
}

// Case appends a case to the active enum declaration.
func (b *Builder) Case(key, typeName string, line uint32) error {
	if b.err != nil {
		return b.err
	}
	if b.curType == "" {
		return b.fail("case %q is only legal inside an enum declaration", key)
	}
	def, ok := b.prog.Maroon[b.curNamespace].Types[b.curType].Def.(*ir.TypeDefEnum)
	if !ok {
		return b.fail("case %q is only legal inside an enum-kind type", key)
	}
	def.Cases = append(def.Cases, ir.EnumCase{Key: key, Type: b.rewriteOptional(typeName, line)})
	return nil
}

// BeginFiber opens a fiber scope in the active namespace.
func (b *Builder) BeginFiber(name string, line uint32) error {
	if b.err != nil {
		return b.err
	}
	if b.curNamespace == "" {
		return b.fail("fiber %q must be declared within a namespace", name)
	}
	if b.curFiber != "" {
		return b.fail("fiber %q opened while fiber %q is still open", name, b.curFiber)
	}
	ns := b.prog.Maroon[b.curNamespace]
	if _, ok := ns.Fibers[name]; ok {
		return b.fail("fiber %q is defined more than once in namespace %q", name, b.curNamespace)
	}
	b.curFiber = name
	ns.Fibers[name] = ir.NewFiber(line)
	return nil
}

// EndFiber closes the active fiber.
func (b *Builder) EndFiber() error {
	if b.err != nil {
		return b.err
	}
	if b.curFiber == "" {
		return b.fail("no fiber is open")
	}
	if b.curFunction != "" {
		return b.fail("fiber %q closed while function %q is still open", b.curFiber, b.curFunction)
	}
	b.curFiber = ""
	return nil
}

// BeginFunction opens a function scope. A nil ret declares a unit function.
func (b *Builder) BeginFunction(name string, ret *string, line uint32) error {
	if b.err != nil {
		return b.err
	}
	if b.curFiber == "" {
		return b.fail("function %q must be declared within a fiber", name)
	}
	fib := b.prog.Maroon[b.curNamespace].Fibers[b.curFiber]
	if _, ok := fib.Functions[name]; ok {
		return b.fail("function %q is defined more than once in fiber %q of namespace %q",
			name, b.curFiber, b.curNamespace)
	}
	if b.inFunction() {
		return b.fail("function %q opened while another function body is under construction", name)
	}
	fib.Functions[name] = &ir.Function{Line: line, Ret: ret}
	b.curFunction = name
	b.blocks.Push(ir.NewBlock(line))
	return nil
}

// EndFunction closes the active function, installing its completed body.
func (b *Builder) EndFunction() error {
	if b.err != nil {
		return b.err
	}
	if b.curFunction == "" {
		return b.fail("no function is open")
	}
	if b.blocks.Size() != 1 {
		return b.fail("internal invariant failed: function %q ends at block depth %d, want 1",
			b.curFunction, b.blocks.Size())
	}
	if len(b.ifFrames) != 0 || len(b.matchFrames) != 0 {
		return b.fail("function %q closed with an unclosed if or match", b.curFunction)
	}
	top, _ := b.blocks.Pop()
	body := top.(*ir.Block)
	b.prog.Maroon[b.curNamespace].Fibers[b.curFiber].Functions[b.curFunction].Body = *body
	b.curFunction = ""
	return nil
}

// Arg declares the next function argument. Arguments also join the body
// block's var list, ahead of any regular vars.
func (b *Builder) Arg(name, typeName string, line uint32) error {
	if b.err != nil {
		return b.err
	}
	if !b.inFunction() {
		return b.fail("argument %q is only legal inside a function", name)
	}
	fn := b.prog.Maroon[b.curNamespace].Fibers[b.curFiber].Functions[b.curFunction]
	fn.Args = append(fn.Args, typeName)
	blk := b.currentBlock()
	blk.Vars = append(blk.Vars, &ir.VarFunctionArg{Line: line, Name: name, Type: typeName})
	return nil
}

// Var declares a regular variable in the current block. An initializer spelled
// with outer parentheses loses exactly that pair.
func (b *Builder) Var(name, typeName, init string, line uint32) error {
	if b.err != nil {
		return b.err
	}
	if !b.inFunction() {
		return b.fail("variable %q is only legal inside a function", name)
	}
	if strings.HasPrefix(init, "(") && strings.HasSuffix(init, ")") {
		init = init[1 : len(init)-1]
	}
	blk := b.currentBlock()
	blk.Vars = append(blk.Vars, &ir.VarRegular{
		Line: line,
		Name: name,
		Type: b.rewriteOptional(typeName, line),
		Init: init,
	})
	return nil
}

// Stmt appends one opaque statement to the current block.
func (b *Builder) Stmt(stmt string, line uint32) error {
	if b.err != nil {
		return b.err
	}
	if !b.inFunction() {
		return b.fail("a statement is only legal inside a function")
	}
	b.addToBlock(&ir.Stmt{Line: line, Stmt: stmt})
	return nil
}

// BeginBlock opens a nested block. A placeholder marks the parent slot the
// completed block will be spliced into.
func (b *Builder) BeginBlock(line uint32) error {
	if b.err != nil {
		return b.err
	}
	if !b.inFunction() {
		return b.fail("a block is only legal inside a function")
	}
	b.nextPlaceholder++
	key := b.nextPlaceholder
	idx := b.addToBlock(&ir.BlockPlaceholder{Line: line, Idx: key})
	b.parents.Push(parentSlot{key: key, idx: idx})
	b.blocks.Push(ir.NewBlock(0))
	return nil
}

// EndBlock completes the innermost nested block and splices it over its
// placeholder, copying the opening line from the placeholder.
func (b *Builder) EndBlock() error {
	if b.err != nil {
		return b.err
	}
	top, ok := b.parents.Pop()
	if !ok {
		return b.fail("internal invariant failed: block closed with no open placeholder")
	}
	slot := top.(parentSlot)
	if b.blocks.Size() < 2 {
		return b.fail("internal invariant failed: block close underflows the construction stack")
	}
	popped, _ := b.blocks.Pop()
	completed := popped.(*ir.Block)
	parent := b.currentBlock()
	if len(parent.Code) == 0 || slot.idx >= len(parent.Code) {
		return b.fail("internal invariant failed: parent slot %d is out of range", slot.idx)
	}
	ph, ok := parent.Code[slot.idx].(*ir.BlockPlaceholder)
	if !ok {
		return b.fail("internal invariant failed: parent slot %d does not hold a placeholder", slot.idx)
	}
	if ph.Idx != slot.key {
		return b.fail("internal invariant failed: placeholder id %d does not match block key %d", ph.Idx, slot.key)
	}
	completed.Line = ph.Line
	parent.Code[slot.idx] = completed
	return nil
}

// BeginIf opens a conditional. The then-branch events follow, delimited by
// Else, then the else-branch events, then EndIf. Each branch must contribute
// exactly one statement-like unit to the surrounding block.
func (b *Builder) BeginIf(cond string, line uint32) error {
	if b.err != nil {
		return b.err
	}
	if !b.inFunction() {
		return b.fail("a conditional is only legal inside a function")
	}
	b.ifFrames = append(b.ifFrames, &ifFrame{
		cond:        cond,
		line:        line,
		markThen:    len(b.currentBlock().Code),
		blocksDepth: b.blocks.Size(),
	})
	return nil
}

// Else delimits the branches of the innermost open conditional.
func (b *Builder) Else() error {
	if b.err != nil {
		return b.err
	}
	if len(b.ifFrames) == 0 {
		return b.fail("else outside a conditional")
	}
	fr := b.ifFrames[len(b.ifFrames)-1]
	if fr.elseSeen {
		return b.fail("conditional has more than one else delimiter")
	}
	if b.blocks.Size() != fr.blocksDepth {
		return b.fail("internal invariant failed: block depth changed across a then-branch")
	}
	if got := len(b.currentBlock().Code) - fr.markThen; got != 1 {
		return b.fail("then-branch must contribute exactly one unit, got %d", got)
	}
	fr.elseSeen = true
	fr.markElse = len(b.currentBlock().Code)
	return nil
}

// EndIf extracts the two branch units (else first) and emits the packaged
// conditional to the surrounding block.
func (b *Builder) EndIf() error {
	if b.err != nil {
		return b.err
	}
	if len(b.ifFrames) == 0 {
		return b.fail("no conditional is open")
	}
	fr := b.ifFrames[len(b.ifFrames)-1]
	b.ifFrames = b.ifFrames[:len(b.ifFrames)-1]
	if !fr.elseSeen {
		return b.fail("conditional closed without an else branch")
	}
	if b.blocks.Size() != fr.blocksDepth {
		return b.fail("internal invariant failed: block depth changed across an else-branch")
	}
	if got := len(b.currentBlock().Code) - fr.markElse; got != 1 {
		return b.fail("else-branch must contribute exactly one unit, got %d", got)
	}
	no := b.extractLastItem()
	yes := b.extractLastItem()
	b.addToBlock(&ir.If{Line: fr.line, Cond: fr.cond, Yes: yes, No: no})
	return nil
}

// BeginMatch opens a match over the named enum variable. Arm bodies build into
// a scratch block that must be drained by the arms themselves.
func (b *Builder) BeginMatch(varName string, line uint32) error {
	if b.err != nil {
		return b.err
	}
	if !b.inFunction() {
		return b.fail("a match is only legal inside a function")
	}
	b.matchFrames = append(b.matchFrames, &matchFrame{
		stmt: &ir.MatchEnum{Line: line, Var: varName},
	})
	b.blocks.Push(ir.NewBlock(line))
	return nil
}

// BeginArm opens a keyed arm; capture is empty when the payload is unused.
func (b *Builder) BeginArm(key, capture string, line uint32) error {
	var capturePtr *string
	if capture != "" {
		capturePtr = &capture
	}
	return b.beginArm(&key, capturePtr, line)
}

// BeginDefaultArm opens the default arm.
func (b *Builder) BeginDefaultArm(line uint32) error {
	return b.beginArm(nil, nil, line)
}

func (b *Builder) beginArm(key, capture *string, line uint32) error {
	if b.err != nil {
		return b.err
	}
	if len(b.matchFrames) == 0 {
		return b.fail("an arm is only legal inside a match")
	}
	fr := b.matchFrames[len(b.matchFrames)-1]
	if fr.arm != nil {
		return b.fail("an arm opened while another arm is still open")
	}
	if capture != nil && key == nil {
		return b.fail("the default arm cannot capture")
	}
	fr.arm = &armFrame{key: key, capture: capture, line: line, mark: len(b.currentBlock().Code)}
	return nil
}

// EndArm extracts the arm's single unit, wraps it as a block if needed, and
// appends the capture alias var when the arm captures.
func (b *Builder) EndArm() error {
	if b.err != nil {
		return b.err
	}
	if len(b.matchFrames) == 0 {
		return b.fail("no match is open")
	}
	fr := b.matchFrames[len(b.matchFrames)-1]
	if fr.arm == nil {
		return b.fail("no arm is open")
	}
	arm := fr.arm
	fr.arm = nil
	if got := len(b.currentBlock().Code) - arm.mark; got != 1 {
		return b.fail("an arm must contribute exactly one unit, got %d", got)
	}
	code := b.asBlock(arm, b.extractLastItem())
	fr.stmt.Arms = append(fr.stmt.Arms, &ir.Arm{
		Line:    arm.line,
		Key:     arm.key,
		Capture: arm.capture,
		Code:    *code,
	})
	return nil
}

func (b *Builder) asBlock(arm *armFrame, in ir.StmtOrBlock) *ir.Block {
	blk, ok := in.(*ir.Block)
	if !ok {
		blk = ir.NewBlock(arm.line)
		blk.Code = append(blk.Code, in)
	}
	if arm.capture != nil {
		blk.Vars = append(blk.Vars, &ir.VarEnumCaseCapture{
			Name: *arm.capture,
			Key:  *arm.key,
			// Src is filled from the discriminant when the match closes.
		})
	}
	return blk
}

// EndMatch pops the scratch block, points every capture alias at the
// discriminant, and emits the match to the surrounding block.
func (b *Builder) EndMatch() error {
	if b.err != nil {
		return b.err
	}
	if len(b.matchFrames) == 0 {
		return b.fail("no match is open")
	}
	fr := b.matchFrames[len(b.matchFrames)-1]
	b.matchFrames = b.matchFrames[:len(b.matchFrames)-1]
	if fr.arm != nil {
		return b.fail("match closed while an arm is still open")
	}
	popped, _ := b.blocks.Pop()
	scratch := popped.(*ir.Block)
	if len(scratch.Code) != 0 {
		return b.fail("internal invariant failed: match scratch block holds %d undrained units", len(scratch.Code))
	}
	for _, arm := range fr.stmt.Arms {
		if arm.Capture == nil {
			continue
		}
		if len(arm.Code.Vars) == 0 {
			return b.fail("internal invariant failed: capturing arm has no vars")
		}
		alias, ok := arm.Code.Vars[len(arm.Code.Vars)-1].(*ir.VarEnumCaseCapture)
		if !ok {
			return b.fail("internal invariant failed: capturing arm's last var is not a capture alias")
		}
		alias.Src = fr.stmt.Var
	}
	b.addToBlock(fr.stmt)
	return nil
}

// TestFiber registers a run-fiber expectation.
func (b *Builder) TestFiber(namespace, fiber string, golden []string, line uint32) error {
	if b.err != nil {
		return b.err
	}
	b.prog.Tests = append(b.prog.Tests, &ir.TestRunFiber{
		Line:         line,
		Maroon:       namespace,
		Fiber:        fiber,
		GoldenOutput: golden,
	})
	return nil
}

// TestFiberShouldThrow registers a failure expectation.
func (b *Builder) TestFiberShouldThrow(namespace, fiber, errMsg string, line uint32) error {
	if b.err != nil {
		return b.err
	}
	b.prog.Tests = append(b.prog.Tests, &ir.TestFiberShouldThrow{
		Line:   line,
		Maroon: namespace,
		Fiber:  fiber,
		Error:  errMsg,
	})
	return nil
}

// rewriteOptional turns the spelled OPTIONAL<T> into the derived name
// OPTIONAL_T and records the first line requiring the wrapper.
func (b *Builder) rewriteOptional(typeName string, line uint32) string {
	if !strings.HasPrefix(typeName, optionalSpelling) || !strings.HasSuffix(typeName, ">") {
		return typeName
	}
	inner := typeName[len(optionalSpelling) : len(typeName)-1]
	perNS := b.optionals[b.curNamespace]
	if perNS == nil {
		perNS = make(map[string]uint32)
		b.optionals[b.curNamespace] = perNS
	}
	if _, ok := perNS[inner]; !ok {
		perNS[inner] = line
	}
	return ir.OptionalPrefix + inner
}

// Finalize installs the derived optional type declarations and returns the
// program. It may be called at most once; a second call is fatal. Events sent
// after Finalize are not rejected and still modify the returned program.
func (b *Builder) Finalize() (*ir.Program, error) {
	if b.err != nil {
		return nil, b.err
	}
	if b.finalized {
		return nil, b.fail("Finalize called more than once")
	}
	b.finalized = true
	if b.curNamespace != "" || b.curFiber != "" || b.curType != "" || b.curFunction != "" {
		return nil, b.fail("Finalize called with an open scope")
	}
	for nsName, perNS := range b.optionals {
		ns := b.prog.Maroon[nsName]
		for inner, line := range perNS {
			name := ir.OptionalPrefix + inner
			if _, ok := ns.Types[name]; ok {
				return nil, b.fail("type %q must not be defined explicitly", name)
			}
			ns.Types[name] = &ir.TypeDecl{Line: line, Def: &ir.TypeDefOptional{Type: inner}}
		}
	}
	return b.prog, nil
}
