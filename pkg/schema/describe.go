// Package schema describes the IR node schema itself: a reflection walk over
// the ir package's types producing either a human-readable Markdown document
// or Rust source mirroring the wire format. Both emitters are pure functions
// of the schema.
package schema

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/cnf/structhash"

	"github.com/piarun/maroon/pkg/ir"
)

// Field is one named, typed field of a schema struct.
type Field struct {
	Name string
	Type string
}

// Struct is one concrete node type.
type Struct struct {
	Name   string
	Fields []Field
}

// Variant is one tagged union over concrete node types.
type Variant struct {
	Name  string
	Cases []string
}

// Model is the walked schema: every struct and variant reachable from the
// top-level program node, dependencies first.
type Model struct {
	Root     string
	Structs  []Struct
	Variants []Variant
}

// Wire names of the schema types the walker can encounter.
var wireNames = map[reflect.Type]string{
	reflect.TypeOf(ir.Program{}):              "MaroonIRScenarios",
	reflect.TypeOf(ir.Namespace{}):            "MaroonIRNamespace",
	reflect.TypeOf(ir.Fiber{}):                "MaroonIRFiber",
	reflect.TypeOf(ir.Function{}):             "MaroonIRFunction",
	reflect.TypeOf(ir.TypeDecl{}):             "MaroonIRType",
	reflect.TypeOf(ir.TypeDefStruct{}):        "MaroonIRTypeDefStruct",
	reflect.TypeOf(ir.StructField{}):          "MaroonIRTypeDefStructField",
	reflect.TypeOf(ir.TypeDefEnum{}):          "MaroonIRTypeDefEnum",
	reflect.TypeOf(ir.EnumCase{}):             "MaroonIRTypeDefEnumCase",
	reflect.TypeOf(ir.TypeDefOptional{}):      "MaroonIRTypeDefOptional",
	reflect.TypeOf(ir.Block{}):                "MaroonIRBlock",
	reflect.TypeOf(ir.Stmt{}):                 "MaroonIRStmt",
	reflect.TypeOf(ir.If{}):                   "MaroonIRIf",
	reflect.TypeOf(ir.MatchEnum{}):            "MaroonIRMatchEnumStmt",
	reflect.TypeOf(ir.Arm{}):                  "MaroonIRMatchEnumStmtArm",
	reflect.TypeOf(ir.BlockPlaceholder{}):     "MaroonIRBlockPlaceholder",
	reflect.TypeOf(ir.VarRegular{}):           "MaroonIRVarRegular",
	reflect.TypeOf(ir.VarFunctionArg{}):       "MaroonIRVarFunctionArg",
	reflect.TypeOf(ir.VarEnumCaseCapture{}):   "MaroonIRVarEnumCaseCapture",
	reflect.TypeOf(ir.TestRunFiber{}):         "MaroonTestCaseRunFiber",
	reflect.TypeOf(ir.TestFiberShouldThrow{}): "MaroonTestCaseFiberShouldThrow",
}

var variantDefs = []struct {
	iface reflect.Type
	name  string
	cases []reflect.Type
}{
	{
		iface: reflect.TypeOf((*ir.Var)(nil)).Elem(),
		name:  "MaroonIRVar",
		cases: []reflect.Type{
			reflect.TypeOf(ir.VarRegular{}),
			reflect.TypeOf(ir.VarFunctionArg{}),
			reflect.TypeOf(ir.VarEnumCaseCapture{}),
		},
	},
	{
		iface: reflect.TypeOf((*ir.StmtOrBlock)(nil)).Elem(),
		name:  "MaroonIRStmtOrBlock",
		cases: []reflect.Type{
			reflect.TypeOf(ir.Stmt{}),
			reflect.TypeOf(ir.If{}),
			reflect.TypeOf(ir.Block{}),
			reflect.TypeOf(ir.MatchEnum{}),
			reflect.TypeOf(ir.BlockPlaceholder{}),
		},
	},
	{
		iface: reflect.TypeOf((*ir.TypeDef)(nil)).Elem(),
		name:  "MaroonIRTypeDef",
		cases: []reflect.Type{
			reflect.TypeOf(ir.TypeDefStruct{}),
			reflect.TypeOf(ir.TypeDefEnum{}),
			reflect.TypeOf(ir.TypeDefOptional{}),
		},
	},
	{
		iface: reflect.TypeOf((*ir.TestCase)(nil)).Elem(),
		name:  "MaroonTestCase",
		cases: []reflect.Type{
			reflect.TypeOf(ir.TestRunFiber{}),
			reflect.TypeOf(ir.TestFiberShouldThrow{}),
		},
	},
}

// Fields that box their payload in the Rust mirror, keyed by struct wire name
// and field name.
var boxedFields = map[string]map[string]bool{
	"MaroonIRIf":   {"yes": true, "no": true},
	"MaroonIRType": {"def": true},
}

// Walk builds the schema model rooted at the top-level program node.
func Walk() *Model {
	w := &walker{
		model:   &Model{Root: "MaroonIRScenarios"},
		visited: make(map[reflect.Type]bool),
	}
	w.visit(reflect.TypeOf(ir.Program{}))
	return w.model
}

type walker struct {
	model   *Model
	visited map[reflect.Type]bool
}

func (w *walker) visit(t reflect.Type) {
	if w.visited[t] {
		return
	}
	w.visited[t] = true

	if t.Kind() == reflect.Interface {
		for _, def := range variantDefs {
			if def.iface != t {
				continue
			}
			cases := make([]string, 0, len(def.cases))
			for _, caseType := range def.cases {
				w.visit(caseType)
				cases = append(cases, wireNames[caseType])
			}
			w.model.Variants = append(w.model.Variants, Variant{Name: def.name, Cases: cases})
			return
		}
		return
	}
	if t.Kind() != reflect.Struct {
		return
	}

	s := Struct{Name: wireNames[t]}
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		name := jsonName(f)
		if name == "" {
			continue
		}
		s.Fields = append(s.Fields, Field{Name: name, Type: w.typeName(f.Type)})
	}
	w.model.Structs = append(w.model.Structs, s)
}

func jsonName(f reflect.StructField) string {
	tag := f.Tag.Get("json")
	if tag == "" || tag == "-" {
		return ""
	}
	if idx := strings.Index(tag, ","); idx >= 0 {
		tag = tag[:idx]
	}
	return tag
}

func (w *walker) typeName(t reflect.Type) string {
	switch t.Kind() {
	case reflect.String:
		return "String"
	case reflect.Uint32:
		return "u32"
	case reflect.Uint64:
		return "u64"
	case reflect.Bool:
		return "bool"
	case reflect.Pointer:
		inner := w.typeName(t.Elem())
		if t.Elem().Kind() == reflect.Struct {
			// Pointers to schema structs are plain nesting, not optionality.
			return inner
		}
		return "Option<" + inner + ">"
	case reflect.Slice:
		return "Vec<" + w.typeName(t.Elem()) + ">"
	case reflect.Map:
		return "BTreeMap<" + w.typeName(t.Key()) + ", " + w.typeName(t.Elem()) + ">"
	case reflect.Interface:
		w.visit(t)
		for _, def := range variantDefs {
			if def.iface == t {
				return def.name
			}
		}
		return t.String()
	case reflect.Struct:
		w.visit(t)
		if name, ok := wireNames[t]; ok {
			return name
		}
		return t.String()
	}
	return t.String()
}

// Fingerprint is a version-stable hash of the walked schema; emitted into the
// Markdown description so schema drift is visible in review.
func Fingerprint(m *Model) string {
	h, err := structhash.Hash(m, 1)
	if err != nil {
		return "unavailable"
	}
	return h
}

// Markdown renders the human-readable description of the schema.
func Markdown(m *Model) string {
	var b strings.Builder
	b.WriteString("# Maroon IR schema\n\n")
	fmt.Fprintf(&b, "Top-level node: `%s`.\n\n", m.Root)
	fmt.Fprintf(&b, "Schema fingerprint: `%s`.\n", Fingerprint(m))
	for _, v := range m.Variants {
		fmt.Fprintf(&b, "\n## `%s` (one of)\n\n", v.Name)
		for _, c := range v.Cases {
			fmt.Fprintf(&b, "- `%s`\n", c)
		}
	}
	for _, s := range m.Structs {
		fmt.Fprintf(&b, "\n## `%s`\n\n", s.Name)
		if len(s.Fields) == 0 {
			b.WriteString("(no fields)\n")
			continue
		}
		b.WriteString("| Field | Type |\n|---|---|\n")
		for _, f := range s.Fields {
			fmt.Fprintf(&b, "| `%s` | `%s` |\n", f.Name, f.Type)
		}
	}
	return b.String()
}

// Rust renders the schema as Rust source mirroring the canonical JSON layout.
func Rust(m *Model) string {
	var b strings.Builder
	b.WriteString("#![allow(unused_imports)]\n")
	b.WriteString("use serde::{Deserialize, Serialize};\n")
	b.WriteString("use std::collections::{BTreeMap, BTreeSet, HashMap, HashSet};\n")
	for _, s := range m.Structs {
		b.WriteString("\n#[derive(Debug, Serialize, Deserialize)]\n")
		fmt.Fprintf(&b, "pub struct %s {\n", s.Name)
		for _, f := range s.Fields {
			fieldType := f.Type
			if boxedFields[s.Name][f.Name] {
				fieldType = "Box<" + fieldType + ">"
			}
			fmt.Fprintf(&b, "  pub %s: %s,\n", rustFieldName(f.Name), fieldType)
		}
		b.WriteString("}\n")
	}
	for _, v := range m.Variants {
		b.WriteString("\n#[derive(Debug, Serialize, Deserialize)]\n")
		fmt.Fprintf(&b, "pub enum %s {\n", v.Name)
		for _, c := range v.Cases {
			fmt.Fprintf(&b, "  %s(%s),\n", c, c)
		}
		b.WriteString("}\n")
	}
	return b.String()
}

func rustFieldName(name string) string {
	if name == "type" {
		return "r#type"
	}
	return name
}
