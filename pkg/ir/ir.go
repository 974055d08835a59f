// Package ir defines the Maroon intermediate representation: the tagged-variant
// node tree produced by the builder and consumed by the interpreter, the diff
// tool and the schema describers.
package ir

// NodeKind names a variant case. The values double as the wire tags used by
// the canonical JSON form.
type NodeKind string

const (
	KindVarRegular         NodeKind = "MaroonIRVarRegular"
	KindVarFunctionArg     NodeKind = "MaroonIRVarFunctionArg"
	KindVarEnumCaseCapture NodeKind = "MaroonIRVarEnumCaseCapture"

	KindStmt             NodeKind = "MaroonIRStmt"
	KindIf               NodeKind = "MaroonIRIf"
	KindBlock            NodeKind = "MaroonIRBlock"
	KindMatchEnum        NodeKind = "MaroonIRMatchEnumStmt"
	KindBlockPlaceholder NodeKind = "MaroonIRBlockPlaceholder"

	KindTypeDefStruct   NodeKind = "MaroonIRTypeDefStruct"
	KindTypeDefEnum     NodeKind = "MaroonIRTypeDefEnum"
	KindTypeDefOptional NodeKind = "MaroonIRTypeDefOptional"

	KindTestRunFiber         NodeKind = "MaroonTestCaseRunFiber"
	KindTestFiberShouldThrow NodeKind = "MaroonTestCaseFiberShouldThrow"
)

// Base type names of the runtime value universe.
const (
	BaseU64  = "U64"
	BaseBool = "BOOL"
)

// OptionalPrefix prefixes the name of every derived optional type.
const OptionalPrefix = "OPTIONAL_"

// GlobalFiber is the one fiber every namespace must define.
const GlobalFiber = "global"

// IsBaseType reports whether name is one of the built-in value types.
func IsBaseType(name string) bool {
	return name == BaseU64 || name == BaseBool
}

// Var is a variable declaration inside a block's var list.
type Var interface {
	VarKind() NodeKind
	varNode()
}

// VarRegular is a local variable with an initializer expression.
type VarRegular struct {
	Line uint32 `json:"line,omitempty"`
	Name string `json:"name"`
	Type string `json:"type"`
	Init string `json:"init"`
}

func (*VarRegular) VarKind() NodeKind { return KindVarRegular }
func (*VarRegular) varNode()          {}

// VarFunctionArg binds the next packed argument of the enclosing call.
type VarFunctionArg struct {
	Line uint32 `json:"line,omitempty"`
	Name string `json:"name"`
	Type string `json:"type"`
}

func (*VarFunctionArg) VarKind() NodeKind { return KindVarFunctionArg }
func (*VarFunctionArg) varNode()          {}

// VarEnumCaseCapture aliases the payload of a matched enum case. Src is the
// discriminant variable of the enclosing match.
type VarEnumCaseCapture struct {
	Name string `json:"name"`
	Key  string `json:"key"`
	Src  string `json:"src"`
}

func (*VarEnumCaseCapture) VarKind() NodeKind { return KindVarEnumCaseCapture }
func (*VarEnumCaseCapture) varNode()          {}

// StmtOrBlock is one item of a block's code list.
type StmtOrBlock interface {
	CodeKind() NodeKind
	codeNode()
}

// Stmt is one opaque O(1) unit of execution.
type Stmt struct {
	Line uint32 `json:"line,omitempty"`
	Stmt string `json:"stmt"`
}

func (*Stmt) CodeKind() NodeKind { return KindStmt }
func (*Stmt) codeNode()          {}

// If holds a condition string and exactly one statement-like unit per branch.
type If struct {
	Line uint32      `json:"line,omitempty"`
	Cond string      `json:"cond"`
	Yes  StmtOrBlock `json:"yes"`
	No   StmtOrBlock `json:"no"`
}

func (*If) CodeKind() NodeKind { return KindIf }
func (*If) codeNode()          {}

// Block is a lexical scope: an ordered var list plus an ordered code list.
type Block struct {
	Line uint32   `json:"line,omitempty"`
	Vars VarList  `json:"vars"`
	Code CodeList `json:"code"`
}

func (*Block) CodeKind() NodeKind { return KindBlock }
func (*Block) codeNode()          {}

// MatchEnum dispatches on the case of the enum-typed variable Var.
type MatchEnum struct {
	Line uint32 `json:"line,omitempty"`
	Var  string `json:"var"`
	Arms []*Arm `json:"arms"`
}

func (*MatchEnum) CodeKind() NodeKind { return KindMatchEnum }
func (*MatchEnum) codeNode()          {}

// Arm is one case of a MatchEnum. A nil Key marks the default arm; Capture may
// only be set alongside Key.
type Arm struct {
	Line    uint32  `json:"line,omitempty"`
	Key     *string `json:"key,omitempty"`
	Capture *string `json:"capture,omitempty"`
	Code    Block   `json:"code"`
}

// BlockPlaceholder marks the parent-slot of a nested block still under
// construction. It never survives into a finalized program.
type BlockPlaceholder struct {
	Line uint32 `json:"line,omitempty"`
	Idx  uint32 `json:"_idx"`
}

func (*BlockPlaceholder) CodeKind() NodeKind { return KindBlockPlaceholder }
func (*BlockPlaceholder) codeNode()          {}

// TypeDef is the definition part of a type declaration.
type TypeDef interface {
	TypeDefKind() NodeKind
	typeDefNode()
}

// StructField is one named, typed field of a struct definition.
type StructField struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

// TypeDefStruct is an ordered list of fields.
type TypeDefStruct struct {
	Fields []StructField `json:"fields"`
}

func (*TypeDefStruct) TypeDefKind() NodeKind { return KindTypeDefStruct }
func (*TypeDefStruct) typeDefNode()          {}

// EnumCase is one keyed, typed case of an enum definition.
type EnumCase struct {
	Key  string `json:"key"`
	Type string `json:"type"`
}

// TypeDefEnum is an ordered list of cases.
type TypeDefEnum struct {
	Cases []EnumCase `json:"cases"`
}

func (*TypeDefEnum) TypeDefKind() NodeKind { return KindTypeDefEnum }
func (*TypeDefEnum) typeDefNode()          {}

// TypeDefOptional is the derived "none or inner" wrapper. These declarations
// are synthesized by the builder, never written by hand.
type TypeDefOptional struct {
	Type string `json:"type"`
}

func (*TypeDefOptional) TypeDefKind() NodeKind { return KindTypeDefOptional }
func (*TypeDefOptional) typeDefNode()          {}

// TypeDecl is a named type declaration within a namespace.
type TypeDecl struct {
	Line uint32  `json:"line,omitempty"`
	Def  TypeDef `json:"def"`
}

// Function is a named unit of code: optional return type (nil means unit),
// ordered argument type names, and a body block whose leading vars are the
// arguments.
type Function struct {
	Line uint32   `json:"line,omitempty"`
	Ret  *string  `json:"ret,omitempty"`
	Args []string `json:"args"`
	Body Block    `json:"body"`
}

// Fiber is a named container of functions.
type Fiber struct {
	Line      uint32               `json:"line,omitempty"`
	Functions map[string]*Function `json:"functions"`
}

// Namespace holds the fibers and types declared under one top-level name.
type Namespace struct {
	Line   uint32               `json:"line,omitempty"`
	Fibers map[string]*Fiber    `json:"fibers"`
	Types  map[string]*TypeDecl `json:"types"`
}

// TestCase is a declarative expectation registered alongside the program.
type TestCase interface {
	TestCaseKind() NodeKind
	testCaseNode()
}

// TestRunFiber expects running the fiber to produce exactly these lines.
type TestRunFiber struct {
	Line         uint32   `json:"line,omitempty"`
	Maroon       string   `json:"maroon"`
	Fiber        string   `json:"fiber"`
	GoldenOutput []string `json:"golden_output"`
}

func (*TestRunFiber) TestCaseKind() NodeKind { return KindTestRunFiber }
func (*TestRunFiber) testCaseNode()          {}

// TestFiberShouldThrow expects the run to fail with exactly this error.
type TestFiberShouldThrow struct {
	Line   uint32 `json:"line,omitempty"`
	Maroon string `json:"maroon"`
	Fiber  string `json:"fiber"`
	Error  string `json:"error"`
}

func (*TestFiberShouldThrow) TestCaseKind() NodeKind { return KindTestFiberShouldThrow }
func (*TestFiberShouldThrow) testCaseNode()          {}

// Program is the top-level IR record.
type Program struct {
	Src    string                `json:"src"`
	Maroon map[string]*Namespace `json:"maroon"`
	Tests  TestList              `json:"tests"`
}

// NewProgram returns an empty program with allocated maps.
func NewProgram() *Program {
	return &Program{Maroon: make(map[string]*Namespace)}
}

// NewNamespace returns an empty namespace with allocated maps.
func NewNamespace(line uint32) *Namespace {
	return &Namespace{
		Line:   line,
		Fibers: make(map[string]*Fiber),
		Types:  make(map[string]*TypeDecl),
	}
}

// NewFiber returns an empty fiber with an allocated function map.
func NewFiber(line uint32) *Fiber {
	return &Fiber{Line: line, Functions: make(map[string]*Function)}
}

// NewBlock returns an empty block with allocated lists.
func NewBlock(line uint32) *Block {
	return &Block{Line: line, Vars: VarList{}, Code: CodeList{}}
}
