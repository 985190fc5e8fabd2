package ui

import (
	"testing"
)

const sampleDump = `<?xml version='1.0' encoding='UTF-8' standalone='yes' ?>
<hierarchy rotation="0">
  <node text="" content-desc="" class="android.widget.FrameLayout" clickable="false" focusable="false" bounds="[0,0][1080,1920]">
    <node text="" content-desc="Search bar" class="android.widget.LinearLayout" clickable="true" focusable="true" bounds="[40,80][1040,200]">
      <node text="Search" content-desc="" class="android.widget.TextView" clickable="false" focusable="false" bounds="[100,100][400,180]"/>
    </node>
    <node text="Settings" content-desc="" class="android.widget.TextView" clickable="true" focusable="true" bounds="[40,300][1040,420]"/>
  </node>
</hierarchy>`

func TestParseDump(t *testing.T) {
	root, err := Parse([]byte(sampleDump))
	if err != nil {
		t.Fatal(err)
	}
	if root.Class != "android.widget.FrameLayout" {
		t.Errorf("unexpected root class %q", root.Class)
	}
	if len(root.Children()) != 2 {
		t.Fatalf("expected 2 children, got %d", len(root.Children()))
	}
	if root.Bounds.Dx() != 1080 || root.Bounds.Dy() != 1920 {
		t.Errorf("unexpected root bounds %v", root.Bounds)
	}
	if root.Children()[0].Parent() != root {
		t.Error("child not linked to parent")
	}
}

func TestParseEmptyHierarchy(t *testing.T) {
	if _, err := Parse([]byte(`<hierarchy rotation="0"></hierarchy>`)); err == nil {
		t.Fatal("expected error for empty hierarchy")
	}
	if _, err := Parse([]byte(`not xml at all`)); err == nil {
		t.Fatal("expected error for invalid xml")
	}
}

func TestFindByText(t *testing.T) {
	root, err := Parse([]byte(sampleDump))
	if err != nil {
		t.Fatal(err)
	}

	n := FindByText(root, "Settings")
	if n == nil || n.Text != "Settings" {
		t.Fatalf("expected Settings node, got %+v", n)
	}

	// Content-desc matches too.
	n = FindByText(root, "Search bar")
	if n == nil || n.Desc != "Search bar" {
		t.Fatalf("expected node by content-desc, got %+v", n)
	}

	// Substring fallback.
	n = FindByText(root, "Sett")
	if n == nil || n.Text != "Settings" {
		t.Fatalf("expected substring match, got %+v", n)
	}

	if FindByText(root, "Nonexistent") != nil {
		t.Error("expected nil for missing text")
	}
}

func TestClimbClickableThreeLevelChain(t *testing.T) {
	// Only the root of a 3-level chain is clickable.
	root := &Node{Clickable: true}
	mid := &Node{parent: root}
	leaf := &Node{parent: mid}
	root.children = []*Node{mid}
	mid.children = []*Node{leaf}

	got := ClimbClickable(leaf)
	if got != root {
		t.Fatalf("expected climb to reach root, got %+v", got)
	}
	if !leaf.Released() || !mid.Released() {
		t.Error("intermediate nodes must be released during the climb")
	}
	if root.Released() {
		t.Error("the returned node must not be released")
	}
}

func TestClimbClickableExhausted(t *testing.T) {
	root := &Node{}
	leaf := &Node{parent: root}
	root.children = []*Node{leaf}

	if got := ClimbClickable(leaf); got != nil {
		t.Fatalf("expected nil for chain with no clickable ancestor, got %+v", got)
	}
	if !leaf.Released() || !root.Released() {
		t.Error("all inspected nodes must be released when the climb fails")
	}
}

func TestCenter(t *testing.T) {
	root, err := Parse([]byte(sampleDump))
	if err != nil {
		t.Fatal(err)
	}
	n := FindByText(root, "Settings")
	x, y := n.Center()
	if x != 540 || y != 360 {
		t.Errorf("expected center (540,360), got (%d,%d)", x, y)
	}
}
