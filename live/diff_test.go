package live

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"golang.org/x/net/html"
)

type diffTest struct {
	root     string
	proposed string
	patches  []Patch
}

func TestSingleTextChange(t *testing.T) {
	runDiffTest(diffTest{
		root:     "<div>Hello</div>",
		proposed: "<div>World</div>",
		patches: []Patch{
			{Anchor: "_l_0_1_0", Action: Replace, HTML: `<div _l_0_1_0="">World</div>`},
		},
	}, t)
}

func TestMultipleTextChange(t *testing.T) {
	runDiffTest(diffTest{
		root:     `<div>Hello</div><div>World</div>`,
		proposed: `<div>World</div><div>Hello</div>`,
		patches: []Patch{
			{Anchor: "_l_0_1_0", Action: Replace, HTML: `<div _l_0_1_0="">World</div>`},
			{Anchor: "_l_0_1_1", Action: Replace, HTML: `<div _l_0_1_1="">Hello</div>`},
		},
	}, t)
}

func TestNoChange(t *testing.T) {
	runDiffTest(diffTest{
		root:     `<div class="card"><button>count is 1</button></div>`,
		proposed: `<div class="card"><button>count is 1</button></div>`,
		patches:  []Patch{},
	}, t)
}

func TestNestedTextChange(t *testing.T) {
	runDiffTest(diffTest{
		root:     `<div class="card"><button>count is 1</button><p>help</p></div>`,
		proposed: `<div class="card"><button>count is 2</button><p>help</p></div>`,
		patches: []Patch{
			{Anchor: "_l_0_1_0_0", Action: Replace, HTML: `<button _l_0_1_0_0="">count is 2</button>`},
		},
	}, t)
}

func TestNodeAppend(t *testing.T) {
	runDiffTest(diffTest{
		root:     `<div>World</div>`,
		proposed: `<div>Hello</div><div>World</div>`,
		patches: []Patch{
			{Anchor: "_l_0_1_0", Action: Replace, HTML: `<div _l_0_1_0="">Hello</div>`},
			{Anchor: "_l_0_1", Action: Append, HTML: `<div _l_0_1_1="">World</div>`},
		},
	}, t)
	runDiffTest(diffTest{
		root:     `<div>Hello</div>`,
		proposed: `<div>Hello</div><div>World</div>`,
		patches: []Patch{
			{Anchor: "_l_0_1", Action: Append, HTML: `<div _l_0_1_1="">World</div>`},
		},
	}, t)
}

func TestNodeDeletion(t *testing.T) {
	runDiffTest(diffTest{
		root:     `<div>Hello</div><div>World</div>`,
		proposed: `<div>World</div>`,
		patches: []Patch{
			{Anchor: "_l_0_1_0", Action: Replace, HTML: `<div _l_0_1_0="">World</div>`},
			{Anchor: "_l_0_1_1", Action: Replace, HTML: ""},
		},
	}, t)
	runDiffTest(diffTest{
		root:     `<div>Hello</div><div>World</div>`,
		proposed: `<div>Hello</div>`,
		patches: []Patch{
			{Anchor: "_l_0_1_1", Action: Replace, HTML: ""},
		},
	}, t)
}

func TestAttributeValueChange(t *testing.T) {
	runDiffTest(diffTest{
		root:     `<div place="World">Hello</div>`,
		proposed: `<div place="Change">Hello</div>`,
		patches: []Patch{
			{Anchor: "_l_0_1_0", Action: Replace, HTML: `<div place="Change" _l_0_1_0="">Hello</div>`},
		},
	}, t)
}

func TestTextBeforeElementChange(t *testing.T) {
	runDiffTest(diffTest{
		root:     `<p>Edit <code>a.go</code> and save</p>`,
		proposed: `<p><code>a.go</code> and save</p>`,
		patches: []Patch{
			{Anchor: "_l_0_1_0", Action: Replace, HTML: `<p _l_0_1_0=""><code _l_0_1_0_0="">a.go</code> and save</p>`},
		},
	}, t)
}

func TestShapeTree(t *testing.T) {
	node, err := html.Parse(strings.NewReader("<div>\n    <p>  hi  </p>\n</div>"))
	if err != nil {
		t.Fatal(err)
	}
	shapeTree(node)
	out, err := renderNode(node)
	if err != nil {
		t.Fatal(err)
	}
	want := `<html><head></head><body><div><p>  hi  </p></div></body></html>`
	if out != want {
		t.Errorf("shaped tree: got %q want %q", out, want)
	}
}

func TestAnchorTreeIsStable(t *testing.T) {
	node, err := html.Parse(strings.NewReader(`<div><span>a</span></div>`))
	if err != nil {
		t.Fatal(err)
	}
	anchorTree(node)
	first, _ := renderNode(node)
	anchorTree(node)
	second, _ := renderNode(node)
	if diff := cmp.Diff(first, second); diff != "" {
		t.Errorf("anchoring twice changed the tree (-first +second):\n%s", diff)
	}
}

func runDiffTest(tt diffTest, t *testing.T) {
	t.Helper()
	rootNode, err := html.Parse(strings.NewReader(tt.root))
	if err != nil {
		t.Error(err)
		return
	}
	shapeTree(rootNode)
	proposedNode, err := html.Parse(strings.NewReader(tt.proposed))
	if err != nil {
		t.Error(err)
		return
	}
	shapeTree(proposedNode)
	patches, err := Diff(rootNode, proposedNode)
	if err != nil {
		t.Error(err)
		return
	}

	t.Log("Patches ", patches)
	t.Log("Expected", tt.patches)

	if diff := cmp.Diff(tt.patches, patches); diff != "" {
		t.Errorf("patches mismatch (-want +got):\n%s", diff)
	}
}
