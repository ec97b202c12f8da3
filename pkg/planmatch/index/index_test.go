package index

import (
	"errors"
	"math"
	"testing"

	"github.com/cognicore/planmatch/pkg/planmatch/internalerr"
	"github.com/cognicore/planmatch/pkg/planmatch/term"
	"github.com/cognicore/planmatch/pkg/planmatch/unification"
)

func tup(elems ...any) term.Compound { return term.MustTuple(elems...) }

func keySet(keys []Key) map[Key]bool {
	out := make(map[Key]bool, len(keys))
	for _, k := range keys {
		out[k] = true
	}
	return out
}

func TestKeyOf(t *testing.T) {
	cases := []struct {
		in   term.Term
		want Key
	}{
		{term.Const("cell"), "cell"},
		{tup("cell"), "(cell)"},
		{tup("cell", "5"), `(cell "5")`},
		{tup([]any{"value", "?x"}, "5"), `((value ?) "5")`},
		{tup([]any{"X", []any{"Position", "Block1"}}, 10), "((X (Position Block1)) #NUM)"},
		{tup("value", []any{"Add", []any{"value", "?x"}, []any{"value", "?y"}}, "5"),
			`(value (Add (value ?) (value ?)) "5")`},
		{term.Var("?q"), Wildcard},
	}
	for _, tc := range cases {
		if got := KeyOf(tc.in); got != tc.want {
			t.Errorf("KeyOf(%s) = %s, want %s", tc.in, got, tc.want)
		}
	}
}

func TestKeyOfKeepsMarkerLikeConstantsDistinct(t *testing.T) {
	if KeyOf(term.Const("?")) == Wildcard {
		t.Error("constant \"?\" collides with the wildcard")
	}
	if KeyOf(term.Const("#NUM")) == NumClass {
		t.Error("constant \"#NUM\" collides with the number class")
	}
	if KeyOf(term.Const("5")) == KeyOf(term.Num(5)) {
		t.Error("constant \"5\" collides with number 5")
	}
}

func TestGeneralizationsFlat(t *testing.T) {
	got := Generalizations(tup("value", "cell", "five"))
	want := []Key{
		"(value cell five)",
		"(value cell ?)",
		"(value ? five)",
		"(value ? ?)",
		"(? cell five)",
		"(? cell ?)",
		"(? ? five)",
		"(? ? ?)",
		"?",
	}
	if len(got) != len(want) {
		t.Fatalf("got %d keys %v, want %d", len(got), got, len(want))
	}
	gs := keySet(got)
	for _, k := range want {
		if !gs[k] {
			t.Errorf("missing generalization %s", k)
		}
	}
	if got[0] != want[0] {
		t.Errorf("first key = %s, want the fact's own key", got[0])
	}
	if got[len(got)-1] != Wildcard {
		t.Errorf("last key = %s, want the wildcard", got[len(got)-1])
	}
}

func TestGeneralizationsCollapseWholeSubterms(t *testing.T) {
	got := keySet(Generalizations(tup("value", []any{"Add", "T1", "T2"}, "5")))
	for _, k := range []Key{
		`(value (Add T1 T2) "5")`,
		`(value (Add ? T2) "5")`,
		`(value ? "5")`,
		`(value ? ?)`,
		`(? ? ?)`,
		`?`,
	} {
		if !got[k] {
			t.Errorf("missing generalization %s", k)
		}
	}
	// head: 2 options; (Add T1 T2): 8 shapes + collapsed = 9; "5": 2; plus "?"
	if want := 2*9*2 + 1; len(got) != want {
		t.Errorf("got %d generalizations, want %d", len(got), want)
	}
}

func TestGeneralizationsDistinct(t *testing.T) {
	keys := Generalizations(tup("at", []any{"pos", 1, 2}, "?x", "SFO"))
	if len(keySet(keys)) != len(keys) {
		t.Errorf("duplicate generalizations in %v", keys)
	}
}

func TestBuildAndLookup(t *testing.T) {
	idx, err := Build([]term.Term{
		tup("on", "A", "B"),
		tup("on", "B", "C"),
		tup("on", "C", "D"),
		tup("clear", "A"),
	})
	if err != nil {
		t.Fatal(err)
	}

	if n := len(idx.Lookup(tup("on", "?x", "?y"))); n != 3 {
		t.Errorf("(on ?x ?y) bucket = %d, want 3", n)
	}
	if n := len(idx.Lookup(tup("on", "B", "?y"))); n != 1 {
		t.Errorf("(on B ?y) bucket = %d, want 1", n)
	}
	if n := idx.Count(tup("on", "?y", "A")); n != 0 {
		t.Errorf("(on ?y A) bucket = %d, want 0", n)
	}
	if n := idx.Count(term.Var("?any")); n != 4 {
		t.Errorf("wildcard bucket = %d, want 4", n)
	}
	if n := idx.Count(tup("?rel", "A")); n != 1 {
		t.Errorf("(?rel A) bucket = %d, want 1", n)
	}
	if idx.Len() != 4 {
		t.Errorf("Len = %d, want 4", idx.Len())
	}
}

func TestBuildDeduplicates(t *testing.T) {
	idx, err := Build([]term.Term{tup("on", "A", "B"), tup("on", "A", "B"), tup("on", "A", 1), tup("on", "A", 1.0)})
	if err != nil {
		t.Fatal(err)
	}
	if idx.Len() != 2 {
		t.Errorf("Len = %d, want 2", idx.Len())
	}
	if n := idx.Count(tup("on", "A", "B")); n != 1 {
		t.Errorf("bucket = %d, want 1", n)
	}
}

func TestLookupReturnsCopy(t *testing.T) {
	idx, err := Build([]term.Term{tup("on", "A", "B"), tup("on", "B", "C")})
	if err != nil {
		t.Fatal(err)
	}
	b := idx.Lookup(tup("on", "?x", "?y"))
	b[0] = tup("bogus")
	for _, f := range idx.Lookup(tup("on", "?x", "?y")) {
		if term.Equal(f, tup("bogus")) {
			t.Fatal("Lookup exposed the internal bucket")
		}
	}
}

func TestBuildRejectsInvalidFacts(t *testing.T) {
	cases := [][]term.Term{
		{tup("on", "?x", "B")},
		{term.Const("on")},
		{term.Compound{}},
		{tup("on", []any{"pos", "?y"})},
		{tup("alt", "P1", math.Inf(1))},
		{tup("alt", []any{"pos", math.Inf(-1)})},
		{tup("alt", "P1", math.NaN())},
	}
	for _, facts := range cases {
		_, err := Build(facts)
		if !errors.Is(err, internalerr.ErrInvalidInput) {
			t.Errorf("Build(%v) error = %v, want ErrInvalidInput", facts, err)
		}
	}
}

func TestNumbersShareAClass(t *testing.T) {
	idx, err := Build([]term.Term{tup("at", "P1", 12.5), tup("at", "P2", 3)})
	if err != nil {
		t.Fatal(err)
	}
	if n := idx.Count(tup("at", "P1", 12.49)); n != 1 {
		t.Errorf("(at P1 12.49) bucket = %d, want 1", n)
	}
	if n := idx.Count(tup("at", "?p", 0)); n != 2 {
		t.Errorf("(at ?p 0) bucket = %d, want 2", n)
	}
}

// Every fact that unifies with a query term must be in the query's bucket.
func TestIndexSoundness(t *testing.T) {
	facts := []term.Term{
		tup("on", "A", "B"),
		tup("on", "B", "C"),
		tup("at", "P1", "SFO", 12.5),
		tup("at", "P2", "JFK", 3),
		tup("value", []any{"Add", []any{"value", "T1"}, []any{"value", "T2"}}, "5"),
		tup("pair", "A", "A"),
		tup("nested", []any{[]any{"deep", "X"}}, "Y"),
	}
	queries := []term.Term{
		term.Var("?f"),
		tup("on", "?x", "?y"),
		tup("on", "?x", "?x"),
		tup("?r", "A", "?y"),
		tup("?r", "?a", "?b"),
		tup("?r", "?a", "?b", "?c"),
		tup("at", "?p", "?w", 12.5),
		tup("at", "?p", "?w", 12.6),
		tup("value", "?v", "5"),
		tup("value", []any{"Add", "?l", "?r"}, "?v"),
		tup("value", []any{"?op", []any{"value", "?a"}, "?r"}, "5"),
		tup("nested", "?n", "Y"),
		tup("nested", []any{"?n"}, "Y"),
		tup("nested", []any{[]any{"deep", "?d"}}, "?y"),
	}

	idx, err := Build(facts)
	if err != nil {
		t.Fatal(err)
	}
	for _, eps := range []float64{0, 0.5} {
		for _, q := range queries {
			bucket := idx.Lookup(q)
			for _, f := range facts {
				if _, ok := unification.Unify(q, f, nil, unification.WithEpsilon(eps)); !ok {
					continue
				}
				found := false
				for _, b := range bucket {
					if term.Equal(b, f) {
						found = true
						break
					}
				}
				if !found {
					t.Errorf("eps=%v: %s unifies with %s but is missing from bucket %s", eps, q, f, KeyOf(q))
				}
			}
		}
	}
}

func TestKeysSorted(t *testing.T) {
	idx, err := Build([]term.Term{tup("b", "x"), tup("a", "y")})
	if err != nil {
		t.Fatal(err)
	}
	keys := idx.Keys()
	for i := 1; i < len(keys); i++ {
		if keys[i-1] >= keys[i] {
			t.Fatalf("keys not sorted: %v", keys)
		}
	}
	if len(idx.Bucket(Wildcard)) != 2 {
		t.Errorf("wildcard bucket = %v", idx.Bucket(Wildcard))
	}
}
