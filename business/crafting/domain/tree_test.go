package domain

import "testing"

func sampleTree() *RecipeTree {
	return &RecipeTree{
		RecipeID: "r0",
		Roots: []*IngredientNode{
			craftable(1, 2, "10", Expanded,
				craftable(11, 1, "3", Collapsed, leaf(111, 2, "1")),
				leaf(12, 4, "0.5"),
			),
			leaf(2, 1, "7"),
			craftable(3, 1, "20", Unloaded),
		},
	}
}

func toExpanded(n *IngredientNode) *IngredientNode { return n.WithState(Expanded) }

func TestUpdateAtPath_UnresolvablePathReturnsSameTree(t *testing.T) {
	tree := sampleTree()

	paths := map[string]Path{
		"empty":             nil,
		"unknown_root":      {99},
		"unknown_child":     {1, 99},
		"child_of_unloaded": {3, 30},
		"too_deep":          {2, 20, 200},
	}
	for name, p := range paths {
		t.Run(name, func(t *testing.T) {
			if got := UpdateAtPath(tree, p, toExpanded); got != tree {
				t.Errorf("UpdateAtPath(%v) returned a new tree", p)
			}
		})
	}

	if got := UpdateAtPath(nil, Path{1}, toExpanded); got != nil {
		t.Error("nil tree should stay nil")
	}
}

func TestUpdateAtPath_IdentityTransformIsNoop(t *testing.T) {
	tree := sampleTree()
	same := func(n *IngredientNode) *IngredientNode { return n }
	if got := UpdateAtPath(tree, Path{1, 11}, same); got != tree {
		t.Error("identity transform should return the input tree")
	}
}

func TestUpdateAtPath_PreservesSiblingIdentity(t *testing.T) {
	tree := sampleTree()
	oldRoot1 := tree.Roots[0]
	oldChild11 := oldRoot1.Children[0]
	oldChild12 := oldRoot1.Children[1]

	got := UpdateAtPath(tree, Path{1, 11}, toExpanded)

	if got == tree {
		t.Fatal("expected a new tree")
	}
	if got.Roots[1] != tree.Roots[1] || got.Roots[2] != tree.Roots[2] {
		t.Error("off-path roots must keep identity")
	}
	if got.Roots[0] == oldRoot1 {
		t.Error("ancestor on the path must be rebuilt")
	}
	if got.Roots[0].Children[1] != oldChild12 {
		t.Error("off-path child must keep identity")
	}
	if got.Roots[0].Children[0] == oldChild11 {
		t.Error("target must be a new node")
	}
	if got.Roots[0].Children[0].Children[0] != oldChild11.Children[0] {
		t.Error("the target's own children are untouched by a state change")
	}
	if oldChild11.State != Collapsed {
		t.Error("the original node must not be mutated")
	}
	if n, _ := NodeAt(got, Path{1, 11}); n.State != Expanded {
		t.Errorf("state = %v, want expanded", n.State)
	}
}

func TestNodeAt(t *testing.T) {
	tree := sampleTree()

	n, ok := NodeAt(tree, Path{1, 11, 111})
	if !ok || n.ItemID != 111 {
		t.Fatalf("NodeAt = %v, %v", n, ok)
	}
	if _, ok := NodeAt(tree, Path{1, 13}); ok {
		t.Error("unknown id must not resolve")
	}
	if _, ok := NodeAt(tree, nil); ok {
		t.Error("empty path must not resolve")
	}
}

func TestWalk_VisitsLoadedChildrenAndHonoursSkip(t *testing.T) {
	tree := sampleTree()

	var visited []string
	Walk(tree, func(p Path, n *IngredientNode) bool {
		visited = append(visited, p.String())
		return n.ItemID != 11
	})

	want := []string{"1", "1/11", "1/12", "2", "3"}
	if len(visited) != len(want) {
		t.Fatalf("visited = %v, want %v", visited, want)
	}
	for i := range want {
		if visited[i] != want[i] {
			t.Errorf("visited[%d] = %s, want %s", i, visited[i], want[i])
		}
	}
}

func TestMapNodes_KeepsUntouchedSubtrees(t *testing.T) {
	tree := sampleTree()

	got := MapNodes(tree, func(n *IngredientNode) *IngredientNode {
		if n.ItemID == 111 {
			return n.WithOwned(5)
		}
		return n
	})

	if got == tree {
		t.Fatal("expected a new tree")
	}
	if got.Roots[1] != tree.Roots[1] || got.Roots[2] != tree.Roots[2] {
		t.Error("untouched roots must keep identity")
	}
	if got.Roots[0].Children[1] != tree.Roots[0].Children[1] {
		t.Error("untouched sibling must keep identity")
	}
	if n, _ := NodeAt(got, Path{1, 11, 111}); n.OwnedQuantity != 5 {
		t.Errorf("owned = %d, want 5", n.OwnedQuantity)
	}

	if MapNodes(tree, func(n *IngredientNode) *IngredientNode { return n }) != tree {
		t.Error("no-op map should return the input tree")
	}
}

func TestPathRoundTrip(t *testing.T) {
	p := Path{4, 55, 666}
	got, ok := ParsePath(p.String())
	if !ok || !got.Equal(p) {
		t.Errorf("ParsePath(%q) = %v, %v", p.String(), got, ok)
	}
	for _, bad := range []string{"", "/", "1/x", "1//2"} {
		if _, ok := ParsePath(bad); ok {
			t.Errorf("ParsePath(%q) should fail", bad)
		}
	}
}

func TestPathChildDoesNotAlias(t *testing.T) {
	base := make(Path, 1, 4)
	base[0] = 1
	a := base.Child(2)
	b := base.Child(3)
	if a[1] != 2 || b[1] != 3 {
		t.Errorf("a=%v b=%v", a, b)
	}
}
