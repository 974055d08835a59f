package value

import "testing"

func TestDisplayForms(t *testing.T) {
	cases := []struct {
		val  Value
		want string
	}{
		{U64{Val: 42}, "42"},
		{U64{}, "0"},
		{Bool{Val: true}, "true"},
		{Bool{}, "false"},
		{None("U64"), "None"},
		{Some(U64{Val: 7}), "Some(7)"},
		{Some(Bool{Val: false}), "Some(false)"},
	}
	for _, c := range cases {
		if got := c.val.Display(); got != c.want {
			t.Errorf("Display of %#v = %q, want %q", c.val, got, c.want)
		}
	}
}

func TestTypeNames(t *testing.T) {
	if got := (U64{}).TypeName(); got != "U64" {
		t.Fatalf("U64 type name %q", got)
	}
	if got := (Bool{}).TypeName(); got != "BOOL" {
		t.Fatalf("BOOL type name %q", got)
	}
	if got := Some(U64{Val: 1}).TypeName(); got != "OPTIONAL_U64" {
		t.Fatalf("optional type name %q", got)
	}
}

func TestIsOptionalName(t *testing.T) {
	inner, ok := IsOptionalName("OPTIONAL_U64")
	if !ok || inner != "U64" {
		t.Fatalf("IsOptionalName(OPTIONAL_U64) = %q, %v", inner, ok)
	}
	if _, ok := IsOptionalName("U64"); ok {
		t.Fatalf("U64 misread as optional")
	}
}

func TestZero(t *testing.T) {
	u, err := Zero("U64")
	if err != nil || u.Display() != "0" {
		t.Fatalf("Zero(U64) = %v, %v", u, err)
	}
	o, err := Zero("OPTIONAL_BOOL")
	if err != nil || o.Display() != "None" {
		t.Fatalf("Zero(OPTIONAL_BOOL) = %v, %v", o, err)
	}
	if _, err := Zero("POINT"); err == nil {
		t.Fatalf("Zero(POINT) should fail")
	}
}

func TestArithmetic(t *testing.T) {
	a, b := U64{Val: 10}, U64{Val: 3}
	if got := Add(a, b).Val; got != 13 {
		t.Errorf("Add = %d", got)
	}
	if got := Sub(a, b).Val; got != 7 {
		t.Errorf("Sub = %d", got)
	}
	if got := Mul(a, b).Val; got != 30 {
		t.Errorf("Mul = %d", got)
	}
}

func TestCompare(t *testing.T) {
	a, b := U64{Val: 2}, U64{Val: 3}
	cases := map[string]bool{
		"==": false, "!=": true, "<": true, "<=": true, ">": false, ">=": false,
	}
	for op, want := range cases {
		got, err := Compare(op, a, b)
		if err != nil {
			t.Fatalf("Compare(%q) error: %v", op, err)
		}
		if got.Val != want {
			t.Errorf("2 %s 3 = %v, want %v", op, got.Val, want)
		}
	}
	if _, err := Compare("<=>", a, b); err == nil {
		t.Fatalf("unknown operator accepted")
	}
}

func TestCloneIsDeep(t *testing.T) {
	orig := Some(U64{Val: 5})
	clone := orig.Clone().(Optional)
	if clone.Display() != "Some(5)" {
		t.Fatalf("clone display %q", clone.Display())
	}
	clone.Val = U64{Val: 9}
	if orig.Display() != "Some(5)" {
		t.Fatalf("mutating the clone leaked into the original: %q", orig.Display())
	}
}
