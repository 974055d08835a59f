package ir

import (
	"encoding/json"
	"fmt"
)

// The canonical JSON form represents every variant as a single-key object
// keyed by its wire tag, with sorted map keys and optional fields encoded as
// presence/absence. The named list types below apply the tagging at the
// variant position, so that a Block serializes untagged where the schema holds
// a concrete Block (function bodies, arm code) and tagged inside code lists.

// VarList is an ordered list of Var variants.
type VarList []Var

// CodeList is an ordered list of StmtOrBlock variants.
type CodeList []StmtOrBlock

// TestList is an ordered list of TestCase variants.
type TestList []TestCase

func tagged(kind NodeKind, payload any) ([]byte, error) {
	return json.Marshal(map[string]any{string(kind): payload})
}

func (l VarList) MarshalJSON() ([]byte, error) {
	out := make([]json.RawMessage, 0, len(l))
	for _, v := range l {
		raw, err := tagged(v.VarKind(), v)
		if err != nil {
			return nil, err
		}
		out = append(out, raw)
	}
	return json.Marshal(out)
}

func (l CodeList) MarshalJSON() ([]byte, error) {
	out := make([]json.RawMessage, 0, len(l))
	for _, c := range l {
		raw, err := tagged(c.CodeKind(), c)
		if err != nil {
			return nil, err
		}
		out = append(out, raw)
	}
	return json.Marshal(out)
}

func (l TestList) MarshalJSON() ([]byte, error) {
	out := make([]json.RawMessage, 0, len(l))
	for _, t := range l {
		raw, err := tagged(t.TestCaseKind(), t)
		if err != nil {
			return nil, err
		}
		out = append(out, raw)
	}
	return json.Marshal(out)
}

func splitTagged(data []byte) (string, json.RawMessage, error) {
	var m map[string]json.RawMessage
	if err := json.Unmarshal(data, &m); err != nil {
		return "", nil, err
	}
	if len(m) != 1 {
		return "", nil, fmt.Errorf("ir: variant object must have exactly one key, got %d", len(m))
	}
	for tag, payload := range m {
		return tag, payload, nil
	}
	return "", nil, fmt.Errorf("ir: empty variant object")
}

func decodeVar(data []byte) (Var, error) {
	tag, payload, err := splitTagged(data)
	if err != nil {
		return nil, err
	}
	switch NodeKind(tag) {
	case KindVarRegular:
		v := &VarRegular{}
		return v, json.Unmarshal(payload, v)
	case KindVarFunctionArg:
		v := &VarFunctionArg{}
		return v, json.Unmarshal(payload, v)
	case KindVarEnumCaseCapture:
		v := &VarEnumCaseCapture{}
		return v, json.Unmarshal(payload, v)
	}
	return nil, fmt.Errorf("ir: unknown var kind %q", tag)
}

func decodeStmtOrBlock(data []byte) (StmtOrBlock, error) {
	tag, payload, err := splitTagged(data)
	if err != nil {
		return nil, err
	}
	switch NodeKind(tag) {
	case KindStmt:
		s := &Stmt{}
		return s, json.Unmarshal(payload, s)
	case KindIf:
		s := &If{}
		return s, json.Unmarshal(payload, s)
	case KindBlock:
		s := &Block{}
		return s, json.Unmarshal(payload, s)
	case KindMatchEnum:
		s := &MatchEnum{}
		return s, json.Unmarshal(payload, s)
	case KindBlockPlaceholder:
		s := &BlockPlaceholder{}
		return s, json.Unmarshal(payload, s)
	}
	return nil, fmt.Errorf("ir: unknown statement kind %q", tag)
}

func decodeTypeDef(data []byte) (TypeDef, error) {
	tag, payload, err := splitTagged(data)
	if err != nil {
		return nil, err
	}
	switch NodeKind(tag) {
	case KindTypeDefStruct:
		d := &TypeDefStruct{}
		return d, json.Unmarshal(payload, d)
	case KindTypeDefEnum:
		d := &TypeDefEnum{}
		return d, json.Unmarshal(payload, d)
	case KindTypeDefOptional:
		d := &TypeDefOptional{}
		return d, json.Unmarshal(payload, d)
	}
	return nil, fmt.Errorf("ir: unknown type definition kind %q", tag)
}

func decodeTestCase(data []byte) (TestCase, error) {
	tag, payload, err := splitTagged(data)
	if err != nil {
		return nil, err
	}
	switch NodeKind(tag) {
	case KindTestRunFiber:
		t := &TestRunFiber{}
		return t, json.Unmarshal(payload, t)
	case KindTestFiberShouldThrow:
		t := &TestFiberShouldThrow{}
		return t, json.Unmarshal(payload, t)
	}
	return nil, fmt.Errorf("ir: unknown test case kind %q", tag)
}

func (l *VarList) UnmarshalJSON(data []byte) error {
	var raws []json.RawMessage
	if err := json.Unmarshal(data, &raws); err != nil {
		return err
	}
	out := make(VarList, 0, len(raws))
	for _, raw := range raws {
		v, err := decodeVar(raw)
		if err != nil {
			return err
		}
		out = append(out, v)
	}
	*l = out
	return nil
}

func (l *CodeList) UnmarshalJSON(data []byte) error {
	var raws []json.RawMessage
	if err := json.Unmarshal(data, &raws); err != nil {
		return err
	}
	out := make(CodeList, 0, len(raws))
	for _, raw := range raws {
		c, err := decodeStmtOrBlock(raw)
		if err != nil {
			return err
		}
		out = append(out, c)
	}
	*l = out
	return nil
}

func (l *TestList) UnmarshalJSON(data []byte) error {
	var raws []json.RawMessage
	if err := json.Unmarshal(data, &raws); err != nil {
		return err
	}
	out := make(TestList, 0, len(raws))
	for _, raw := range raws {
		t, err := decodeTestCase(raw)
		if err != nil {
			return err
		}
		out = append(out, t)
	}
	*l = out
	return nil
}

type ifWire struct {
	Line uint32          `json:"line,omitempty"`
	Cond string          `json:"cond"`
	Yes  json.RawMessage `json:"yes"`
	No   json.RawMessage `json:"no"`
}

func (s *If) MarshalJSON() ([]byte, error) {
	yes, err := tagged(s.Yes.CodeKind(), s.Yes)
	if err != nil {
		return nil, err
	}
	no, err := tagged(s.No.CodeKind(), s.No)
	if err != nil {
		return nil, err
	}
	return json.Marshal(ifWire{Line: s.Line, Cond: s.Cond, Yes: yes, No: no})
}

func (s *If) UnmarshalJSON(data []byte) error {
	var w ifWire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	yes, err := decodeStmtOrBlock(w.Yes)
	if err != nil {
		return err
	}
	no, err := decodeStmtOrBlock(w.No)
	if err != nil {
		return err
	}
	s.Line = w.Line
	s.Cond = w.Cond
	s.Yes = yes
	s.No = no
	return nil
}

type typeDeclWire struct {
	Line uint32          `json:"line,omitempty"`
	Def  json.RawMessage `json:"def"`
}

func (t *TypeDecl) MarshalJSON() ([]byte, error) {
	def, err := tagged(t.Def.TypeDefKind(), t.Def)
	if err != nil {
		return nil, err
	}
	return json.Marshal(typeDeclWire{Line: t.Line, Def: def})
}

func (t *TypeDecl) UnmarshalJSON(data []byte) error {
	var w typeDeclWire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	def, err := decodeTypeDef(w.Def)
	if err != nil {
		return err
	}
	t.Line = w.Line
	t.Def = def
	return nil
}

// Encode renders the program in its canonical JSON form.
func Encode(p *Program) ([]byte, error) {
	return json.Marshal(p)
}

// Decode parses a canonical JSON program.
func Decode(data []byte) (*Program, error) {
	p := &Program{}
	if err := json.Unmarshal(data, p); err != nil {
		return nil, err
	}
	return p, nil
}
