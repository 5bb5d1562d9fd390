package rbtree

// Tree is a left-leaning red-black tree ordered by Item.Less. The zero
// value is an empty, ready-to-use tree. Tree is not safe for concurrent
// use; callers serialize access with their own mutex (the chunk cache,
// huge registry, and arena directory each hold one).
type Tree struct {
	root  *node
	count int64
}

// Len returns the number of items in the tree.
func (t *Tree) Len() int64 { return t.count }

// Get returns the item equal to key under Less, if any.
func (t *Tree) Get(key Item) (Item, bool) {
	nd := t.root
	for nd != nil {
		switch {
		case key.Less(nd.item):
			nd = nd.left
		case nd.item.Less(key):
			nd = nd.right
		default:
			return nd.item, true
		}
	}
	return nil, false
}

// Ceil returns the smallest item that is not less than key — the
// best-fit search an arena's available-run tree uses to find a free run
// at least as large as a request.
func (t *Tree) Ceil(key Item) (Item, bool) {
	nd := t.root
	var best *node
	for nd != nil {
		if nd.item.Less(key) {
			nd = nd.right
		} else {
			best = nd
			nd = nd.left
		}
	}
	if best == nil {
		return nil, false
	}
	return best.item, true
}

// Floor returns the largest item strictly less than key — the chunk
// cache's backward-coalescing search (whether the region immediately
// preceding key is adjacent and mergeable). Being strict means a
// just-inserted item equal to key is never returned as its own floor.
func (t *Tree) Floor(key Item) (Item, bool) {
	nd := t.root
	var best *node
	for nd != nil {
		switch {
		case key.Less(nd.item):
			nd = nd.left
		case nd.item.Less(key):
			best = nd
			nd = nd.right
		default:
			nd = nd.left
		}
	}
	if best == nil {
		return nil, false
	}
	return best.item, true
}

// Min returns the smallest item in the tree.
func (t *Tree) Min() (Item, bool) {
	nd := t.root
	if nd == nil {
		return nil, false
	}
	for nd.left != nil {
		nd = nd.left
	}
	return nd.item, true
}

// Max returns the largest item in the tree.
func (t *Tree) Max() (Item, bool) {
	nd := t.root
	if nd == nil {
		return nil, false
	}
	for nd.right != nil {
		nd = nd.right
	}
	return nd.item, true
}

// Walk visits every item in ascending order, stopping early if fn
// returns false.
func (t *Tree) Walk(fn func(Item) bool) {
	walk(t.root, fn)
}

func walk(nd *node, fn func(Item) bool) bool {
	if nd == nil {
		return true
	}
	if !walk(nd.left, fn) {
		return false
	}
	if !fn(nd.item) {
		return false
	}
	return walk(nd.right, fn)
}

// Upsert inserts item, or replaces the existing equal item and returns
// it with replaced=true.
func (t *Tree) Upsert(item Item) (old Item, replaced bool) {
	root, old, replaced := upsert(t.root, item)
	root.setblack()
	t.root = root
	if !replaced {
		t.count++
	}
	return old, replaced
}

func upsert(nd *node, item Item) (*node, Item, bool) {
	if nd == nil {
		return &node{item: item, red: true}, nil, false
	}

	var old Item
	var replaced bool

	switch {
	case item.Less(nd.item):
		nd.left, old, replaced = upsert(nd.left, item)
	case nd.item.Less(item):
		nd.right, old, replaced = upsert(nd.right, item)
	default:
		old, nd.item, replaced = nd.item, item, true
	}

	return fixup(nd), old, replaced
}

// DeleteMin removes and returns the smallest item.
func (t *Tree) DeleteMin() (Item, bool) {
	if t.root == nil {
		return nil, false
	}
	root, item, found := deletemin(t.root)
	if root != nil {
		root.setblack()
	}
	t.root = root
	if found {
		t.count--
	}
	return item, found
}

func deletemin(nd *node) (*node, Item, bool) {
	if nd.left == nil {
		return nil, nd.item, true
	}
	if nd.left.isblack() && nd.left.left.isblack() {
		nd = moveredleft(nd)
	}
	var item Item
	var found bool
	nd.left, item, found = deletemin(nd.left)
	return fixup(nd), item, found
}

// DeleteMax removes and returns the largest item.
func (t *Tree) DeleteMax() (Item, bool) {
	if t.root == nil {
		return nil, false
	}
	root, item, found := deletemax(t.root)
	if root != nil {
		root.setblack()
	}
	t.root = root
	if found {
		t.count--
	}
	return item, found
}

func deletemax(nd *node) (*node, Item, bool) {
	if nd.left.isred() {
		nd = rotateright(nd)
	}
	if nd.right == nil {
		return nil, nd.item, true
	}
	if nd.right.isblack() && nd.right.left.isblack() {
		nd = moveredright(nd)
	}
	var item Item
	var found bool
	nd.right, item, found = deletemax(nd.right)
	return fixup(nd), item, found
}

// Delete removes the item equal to key, if present.
func (t *Tree) Delete(key Item) (Item, bool) {
	if t.root == nil {
		return nil, false
	}
	root, item, found := deleteNode(t.root, key)
	if root != nil {
		root.setblack()
	}
	t.root = root
	if found {
		t.count--
	}
	return item, found
}

func deleteNode(nd *node, key Item) (*node, Item, bool) {
	if nd == nil {
		return nil, nil, false
	}

	var item Item
	var found bool

	if key.Less(nd.item) {
		if nd.left == nil {
			return nd, nil, false
		}
		if nd.left.isblack() && nd.left.left.isblack() {
			nd = moveredleft(nd)
		}
		nd.left, item, found = deleteNode(nd.left, key)
	} else {
		if nd.left.isred() {
			nd = rotateright(nd)
		}
		if !nd.item.Less(key) && nd.right == nil {
			return nil, nd.item, true
		}
		if nd.right != nil && nd.right.isblack() && nd.right.left.isblack() {
			nd = moveredright(nd)
		}
		if !nd.item.Less(key) {
			item = nd.item
			found = true
			var minItem Item
			nd.right, minItem, _ = deletemin(nd.right)
			nd.item = minItem
		} else {
			nd.right, item, found = deleteNode(nd.right, key)
		}
	}

	return fixup(nd), item, found
}
