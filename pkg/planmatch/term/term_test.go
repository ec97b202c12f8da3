package term

import (
	"errors"
	"testing"

	"github.com/cognicore/planmatch/pkg/planmatch/internalerr"
)

func TestIsVarName(t *testing.T) {
	cases := map[string]bool{
		"?x":   true,
		"?":    true,
		"x":    false,
		"":     false,
		"x?":   false,
		"?abc": true,
	}
	for in, want := range cases {
		if got := IsVarName(in); got != want {
			t.Errorf("IsVarName(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestIsVariable(t *testing.T) {
	if !IsVariable(Var("?x")) {
		t.Error("Var should be a variable")
	}
	if IsVariable(Const("x")) {
		t.Error("Const should not be a variable")
	}
	if IsVariable(MustTuple("on", "?x")) {
		t.Error("Compound should not be a variable")
	}
}

func TestApply(t *testing.T) {
	s := Subst{"?x": Num(42), "?y": Num(0)}
	got := Apply(s, MustTuple("+", []any{"F", "?x"}, "?y"))
	want := MustTuple("+", []any{"F", 42}, 0)
	if !Equal(got, want) {
		t.Errorf("Apply = %s, want %s", got, want)
	}
}

func TestApplyFollowsChains(t *testing.T) {
	s := Subst{"?x": Var("?y"), "?y": Const("A")}
	if got := Apply(s, Var("?x")); !Equal(got, Const("A")) {
		t.Errorf("Apply(?x) = %s, want A", got)
	}
}

func TestApplyTerminatesOnCycle(t *testing.T) {
	s := Subst{"?x": MustTuple("f", "?x")}
	got := Apply(s, Var("?x"))
	if !Equal(got, MustTuple("f", "?x")) {
		t.Errorf("Apply(?x) = %s, want (f ?x)", got)
	}
}

func TestApplyIdempotent(t *testing.T) {
	s := Subst{
		"?a": Var("?b"),
		"?b": MustTuple("pos", "?c", 3),
		"?c": Const("Block1"),
		"?d": Var("?free"),
	}
	terms := []Term{
		Var("?a"),
		MustTuple("on", "?a", "?d", "?z"),
		MustTuple("nested", []any{"?c", []any{"?b"}}, 7.5),
		Const("plain"),
	}
	for _, tm := range terms {
		once := Apply(s, tm)
		twice := Apply(s, once)
		if !Equal(once, twice) {
			t.Errorf("Apply not idempotent for %s: %s then %s", tm, once, twice)
		}
	}
}

func TestApplyDoesNotMutate(t *testing.T) {
	orig := MustTuple("on", "?x", "B")
	_ = Apply(Subst{"?x": Const("A")}, orig)
	if !Equal(orig, MustTuple("on", "?x", "B")) {
		t.Errorf("input term changed to %s", orig)
	}
}

func TestExtendCopies(t *testing.T) {
	base := Subst{"?x": Const("A")}
	ext := base.Extend("?y", Const("B"))
	if _, ok := base["?y"]; ok {
		t.Error("Extend modified the receiver")
	}
	if len(ext) != 2 {
		t.Errorf("expected 2 bindings, got %d", len(ext))
	}

	var empty Subst
	if got := empty.Extend("?z", Num(1)); len(got) != 1 {
		t.Errorf("Extend on nil subst: got %v", got)
	}
}

func TestSubstString(t *testing.T) {
	s := Subst{"?y": Const("B"), "?x": Const("A")}
	if got := s.String(); got != "{?x: A, ?y: B}" {
		t.Errorf("String() = %q", got)
	}
}

func TestEqual(t *testing.T) {
	if !Equal(MustTuple("on", "A", 1), MustTuple("on", "A", 1.0)) {
		t.Error("1 and 1.0 should be equal numbers")
	}
	if Equal(Const("1"), Num(1)) {
		t.Error("constant \"1\" should differ from number 1")
	}
	if Equal(MustTuple("on", "A"), MustTuple("on", "A", "B")) {
		t.Error("arity mismatch should not be equal")
	}
}

func TestVarsAndGround(t *testing.T) {
	tm := MustTuple("on", "?x", []any{"pos", "?y", "?x"}, "C")
	vars := Vars(tm)
	if len(vars) != 2 || vars[0] != "?x" || vars[1] != "?y" {
		t.Errorf("Vars = %v, want [?x ?y]", vars)
	}
	if IsGround(tm) {
		t.Error("term with variables reported ground")
	}
	if !IsGround(MustTuple("on", "A", 3)) {
		t.Error("ground term reported non-ground")
	}
}

func TestFromRejectsUnknown(t *testing.T) {
	if _, err := From(struct{}{}); err == nil {
		t.Error("expected error for struct value")
	}
	if _, err := Tuple("on", map[string]int{}); err == nil {
		t.Error("expected error for map element")
	}
}

func TestParseNotations(t *testing.T) {
	want := MustTuple("on", "?x", []any{"pos", "B", 3})
	for _, src := range []string{
		"(on ?x (pos B 3))",
		"on(?x, pos(B, 3))",
		"on(?x, (pos B 3)).",
		"  (on ?x pos(B,3))  ; trailing comment",
	} {
		got, err := Parse(src)
		if err != nil {
			t.Errorf("Parse(%q): %v", src, err)
			continue
		}
		if !Equal(got, want) {
			t.Errorf("Parse(%q) = %s, want %s", src, got, want)
		}
	}
}

func TestParseAllFactsFile(t *testing.T) {
	src := `
# blocks world
on(A, B).
on(B, C).
% functor and s-expression forms mix freely
(on C D)
(at P1 "San Francisco" -12.5)
`
	terms, err := ParseAll(src)
	if err != nil {
		t.Fatal(err)
	}
	if len(terms) != 4 {
		t.Fatalf("expected 4 terms, got %d: %v", len(terms), terms)
	}
	last := terms[3].(Compound)
	if !Equal(last[2], Const("San Francisco")) {
		t.Errorf("quoted constant = %s", last[2])
	}
	if !Equal(last[3], Num(-12.5)) {
		t.Errorf("number = %s", last[3])
	}
}

func TestParseKeepsSymbolsThatLookNumeric(t *testing.T) {
	for _, src := range []string{"inf", "nan", "Infinity"} {
		got, err := Parse(src)
		if err != nil {
			t.Fatal(err)
		}
		if _, ok := got.(Const); !ok {
			t.Errorf("Parse(%q) = %T, want Const", src, got)
		}
	}
}

func TestStringRoundTrip(t *testing.T) {
	terms := []Term{
		MustTuple("on", "?x", "B"),
		MustTuple("at", "P1", 12.5, -3),
		MustTuple("name", Const("two words"), Const("?not-a-var"), Const("42"), Const("#NUM")),
		MustTuple("not", []any{"on", "?y", "C"}),
		Compound{},
	}
	for _, tm := range terms {
		back, err := Parse(tm.String())
		if err != nil {
			t.Errorf("Parse(%q): %v", tm.String(), err)
			continue
		}
		if !Equal(back, tm) {
			t.Errorf("round trip %s -> %s", tm, back)
		}
	}
}

// Multi-byte runes whose continuation bytes are 0x85 or 0xA0 must not be
// split as if those bytes were whitespace.
func TestStringRoundTripNonASCII(t *testing.T) {
	for _, c := range []Const{"à", "Å", "Vilà", "東京", "Zürich", "a\u00a0b", "x\u2028y", "\u0085"} {
		tm := Compound{Const("city"), c}
		back, err := Parse(tm.String())
		if err != nil {
			t.Errorf("Parse(%q): %v", tm.String(), err)
			continue
		}
		if !Equal(back, tm) {
			t.Errorf("round trip %q -> %#v", string(c), back)
		}
	}
}

func TestConstQuotesUnicodeSpace(t *testing.T) {
	if got := Const("a\u00a0b").String(); got[0] != '"' {
		t.Errorf("Const with NBSP printed bare: %q", got)
	}
	if got := Const("à").String(); got != "à" {
		t.Errorf("Const(à).String() = %q, want bare", got)
	}
}

func TestParseUnicodeSpaceSeparates(t *testing.T) {
	got, err := Parse("(on\u00a0A\u2003B)")
	if err != nil {
		t.Fatal(err)
	}
	if want := MustTuple("on", "A", "B"); !Equal(got, want) {
		t.Errorf("Parse = %s, want %s", got, want)
	}
}

func TestFromStrings(t *testing.T) {
	got, err := From([]string{"on", "?x", "B"})
	if err != nil {
		t.Fatal(err)
	}
	if want := (Compound{Const("on"), Var("?x"), Const("B")}); !Equal(got, want) {
		t.Errorf("From = %s, want %s", got, want)
	}
}

func TestParseErrors(t *testing.T) {
	for _, src := range []string{
		"(on A B",
		"on(A B)",
		"(on \"unterminated)",
		")",
		"",
		"(a) (b)",
	} {
		_, err := Parse(src)
		if err == nil {
			t.Errorf("Parse(%q) should fail", src)
			continue
		}
		if !errors.Is(err, internalerr.ErrInvalidInput) {
			t.Errorf("Parse(%q) error %v does not wrap ErrInvalidInput", src, err)
		}
	}
}
