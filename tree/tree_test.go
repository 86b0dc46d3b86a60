package tree

import (
	"bytes"
	"strings"
	"testing"
)

const (
	tree1 = "((a,b)3[&&NHX:event=duplication],c)1[&&NHX:event=speciation];"
	tree2 = "(\"x 1\",(y,z)[&&NHX:event=loss])[&&NHX:event=none];"
)

func TestParseSimple(tst *testing.T) {
	t, err := ParseNHX(bytes.NewBufferString(tree1))
	if err != nil {
		tst.Fatal("Error parsing tree", err)
	}
	tst.Log("Got tree:", t.FullString())

	if t.NNodes() != 5 {
		tst.Error("Wrong number of nodes, got:", t.NNodes())
	}
	if t.NLeaves() != 3 {
		tst.Error("Wrong number of leaves, got:", t.NLeaves())
	}
	if t.Name != "1" || t.Event != EventSpeciation {
		tst.Error("Wrong root label, got:", t.LongString())
	}

	inner := t.ChildNodes()[0]
	if inner.Name != "3" || inner.Event != EventDuplication {
		tst.Error("Wrong internal label, got:", inner.LongString())
	}
	if inner.ChildNodes()[0].Name != "a" || inner.ChildNodes()[1].Name != "b" {
		tst.Error("Wrong leaf names")
	}
	if inner.ChildNodes()[0].Event != EventNone {
		tst.Error("Leaf should have no event")
	}
}

func TestParseQuoted(tst *testing.T) {
	t, err := ParseNHX(bytes.NewBufferString(tree2))
	if err != nil {
		tst.Fatal("Error parsing tree", err)
	}
	if t.ChildNodes()[0].Name != "x 1" {
		tst.Error("Wrong quoted name, got:", t.ChildNodes()[0].Name)
	}
	if t.Event != EventNone {
		tst.Error("Explicit event=none should parse as no event")
	}
}

func TestQuoteEscape(tst *testing.T) {
	in := `("say ""hi""",b);`
	t, err := ParseNHX(bytes.NewBufferString(in))
	if err != nil {
		tst.Fatal("Error parsing tree", err)
	}
	if t.ChildNodes()[0].Name != `say "hi"` {
		tst.Error("Wrong unescaped name, got:", t.ChildNodes()[0].Name)
	}

	out := t.String()
	if !strings.Contains(out, `"say ""hi"""`) {
		tst.Error("Escaping lost on encode, got:", out)
	}
}

func TestRoundTrip(tst *testing.T) {
	for _, in := range []string{tree1, tree2} {
		t, err := ParseNHX(bytes.NewBufferString(in))
		if err != nil {
			tst.Fatal("Error parsing tree", err)
		}
		first := t.String()
		t2, err := ParseNHX(bytes.NewBufferString(first))
		if err != nil {
			tst.Fatal("Error reparsing encoded tree", err)
		}
		if t2.String() != first {
			tst.Error("Encoding not stable:", first, "vs", t2.String())
		}
	}
}

func TestRootTagAlwaysEmitted(tst *testing.T) {
	t, err := ParseNHX(bytes.NewBufferString("(a,b);"))
	if err != nil {
		tst.Fatal("Error parsing tree", err)
	}
	if !strings.HasSuffix(t.String(), "[&&NHX:event=none];") {
		tst.Error("Root tag missing, got:", t.String())
	}
}

func TestBranchLength(tst *testing.T) {
	t, err := ParseNHX(bytes.NewBufferString("(a:1.5,b:2)r:0.25[&&NHX:event=duplication];"))
	if err != nil {
		tst.Fatal("Error parsing tree", err)
	}
	if t.BranchLength != 0.25 {
		tst.Error("Wrong root branch length, got:", t.BranchLength)
	}
	if t.ChildNodes()[0].BranchLength != 1.5 {
		tst.Error("Wrong leaf branch length, got:", t.ChildNodes()[0].BranchLength)
	}
	if t.String() != "(a:1.5,b:2)r:0.25[&&NHX:event=duplication];" {
		tst.Error("Encoding mismatch, got:", t.String())
	}
}

func TestComment(tst *testing.T) {
	t, err := ParseNHX(bytes.NewBufferString("(a[this is ignored],b);"))
	if err != nil {
		tst.Fatal("Error parsing tree", err)
	}
	if t.NLeaves() != 2 {
		tst.Error("Wrong number of leaves, got:", t.NLeaves())
	}
}

func TestParseErrors(tst *testing.T) {
	for _, in := range []string{
		"((a,b);",
		"(a,b));",
		"(a,b)",
		"a,b;",
		"(a,b)[&&NHX:event=explosion];",
		"(a:x,b);",
		"(a,b)x y;",
		`("a,b);`,
		"",
	} {
		_, err := ParseNHX(bytes.NewBufferString(in))
		if err == nil {
			tst.Error("Expected parse error for:", in)
		} else if _, ok := err.(*ParseError); !ok {
			tst.Error("Expected *ParseError for:", in, "got:", err)
		}
	}
}

func TestClearCache(tst *testing.T) {
	t, err := ParseNHX(bytes.NewBufferString(tree1))
	if err != nil {
		tst.Fatal("Error parsing tree", err)
	}
	if t.NNodes() != 5 {
		tst.Fatal("Wrong number of nodes, got:", t.NNodes())
	}

	// Node counts are cached; mutation requires an explicit reset.
	t.ChildNodes()[1].AddChild(NewNode(nil, 5))
	t.ClearCache()
	if t.NNodes() != 6 {
		tst.Error("Stale node count after mutation, got:", t.NNodes())
	}
	if len(t.Nodes()) != 6 {
		tst.Error("Stale node list after mutation, got:", len(t.Nodes()))
	}
}

func TestCopy(tst *testing.T) {
	t, err := ParseNHX(bytes.NewBufferString(tree1))
	if err != nil {
		tst.Fatal("Error parsing tree", err)
	}
	nt := t.Copy()
	if nt.String() != t.String() {
		tst.Error("Copy mismatch:", nt.String(), "vs", t.String())
	}

	nt.ChildNodes()[0].Event = EventLoss
	if t.ChildNodes()[0].Event == EventLoss {
		tst.Error("Copy is not independent")
	}
}
