package rbtree

import "math/rand"
import "sort"
import "testing"

type intItem int

func (x intItem) Less(than Item) bool { return x < than.(intItem) }

func TestUpsertGet(t *testing.T) {
	tree := &Tree{}
	for i := 0; i < 1000; i++ {
		if _, replaced := tree.Upsert(intItem(i)); replaced {
			t.Errorf("unexpected replace on first insert of %v", i)
		}
	}
	if tree.Len() != 1000 {
		t.Errorf("expected 1000, got %v", tree.Len())
	}
	for i := 0; i < 1000; i++ {
		if item, ok := tree.Get(intItem(i)); !ok || item.(intItem) != intItem(i) {
			t.Errorf("expected %v, got %v ok=%v", i, item, ok)
		}
	}
	if old, replaced := tree.Upsert(intItem(500)); !replaced || old.(intItem) != 500 {
		t.Errorf("expected replace of 500, got %v %v", old, replaced)
	}
	if tree.Len() != 1000 {
		t.Errorf("expected 1000 after replace, got %v", tree.Len())
	}
}

func TestWalkAscending(t *testing.T) {
	tree := &Tree{}
	vals := rand.Perm(500)
	for _, v := range vals {
		tree.Upsert(intItem(v))
	}
	var got []int
	tree.Walk(func(item Item) bool {
		got = append(got, int(item.(intItem)))
		return true
	})
	if !sort.IntsAreSorted(got) {
		t.Errorf("expected ascending walk, got %v", got)
	}
	if len(got) != 500 {
		t.Errorf("expected 500 items, got %v", len(got))
	}
}

func TestMinMax(t *testing.T) {
	tree := &Tree{}
	for _, v := range []int{5, 3, 8, 1, 9, 4} {
		tree.Upsert(intItem(v))
	}
	if item, ok := tree.Min(); !ok || item.(intItem) != 1 {
		t.Errorf("expected min 1, got %v", item)
	}
	if item, ok := tree.Max(); !ok || item.(intItem) != 9 {
		t.Errorf("expected max 9, got %v", item)
	}
}

func TestCeil(t *testing.T) {
	tree := &Tree{}
	for _, v := range []int{10, 20, 30, 40} {
		tree.Upsert(intItem(v))
	}
	cases := []struct{ key, want int }{
		{5, 10}, {10, 10}, {15, 20}, {40, 40},
	}
	for _, c := range cases {
		item, ok := tree.Ceil(intItem(c.key))
		if !ok || int(item.(intItem)) != c.want {
			t.Errorf("ceil(%v): expected %v, got %v", c.key, c.want, item)
		}
	}
	if _, ok := tree.Ceil(intItem(41)); ok {
		t.Errorf("expected no ceil above max")
	}
}

func TestFloor(t *testing.T) {
	tree := &Tree{}
	for _, v := range []int{10, 20, 30, 40} {
		tree.Upsert(intItem(v))
	}
	cases := []struct {
		key    int
		want   int
		wantOk bool
	}{
		{5, 0, false},
		{10, 0, false},
		{15, 10, true},
		{20, 10, true},
		{41, 40, true},
	}
	for _, c := range cases {
		item, ok := tree.Floor(intItem(c.key))
		if ok != c.wantOk {
			t.Errorf("floor(%v): expected ok=%v, got %v", c.key, c.wantOk, ok)
			continue
		}
		if ok && int(item.(intItem)) != c.want {
			t.Errorf("floor(%v): expected %v, got %v", c.key, c.want, item)
		}
	}
}

func TestDeleteMinMax(t *testing.T) {
	tree := &Tree{}
	for i := 0; i < 100; i++ {
		tree.Upsert(intItem(i))
	}
	for i := 0; i < 50; i++ {
		item, ok := tree.DeleteMin()
		if !ok || int(item.(intItem)) != i {
			t.Errorf("expected deletemin %v, got %v", i, item)
		}
	}
	for i := 99; i >= 90; i-- {
		item, ok := tree.DeleteMax()
		if !ok || int(item.(intItem)) != i {
			t.Errorf("expected deletemax %v, got %v", i, item)
		}
	}
	if tree.Len() != 40 {
		t.Errorf("expected 40 remaining, got %v", tree.Len())
	}
}

func TestDeleteRandom(t *testing.T) {
	tree := &Tree{}
	n := 2000
	perm := rand.Perm(n)
	for _, v := range perm {
		tree.Upsert(intItem(v))
	}
	delOrder := rand.Perm(n)
	for i, v := range delOrder {
		if _, found := tree.Delete(intItem(v)); !found {
			t.Errorf("expected to delete %v", v)
		}
		if want := int64(n - i - 1); tree.Len() != want {
			t.Errorf("expected len %v, got %v", want, tree.Len())
		}
	}
	if _, ok := tree.Min(); ok {
		t.Errorf("expected empty tree")
	}

	var prev int = -1
	tree2 := &Tree{}
	for _, v := range rand.Perm(500) {
		tree2.Upsert(intItem(v))
	}
	for i := 0; i < 250; i++ {
		tree2.DeleteMin()
	}
	tree2.Walk(func(item Item) bool {
		v := int(item.(intItem))
		if v <= prev {
			t.Errorf("walk out of order after deletes: %v after %v", v, prev)
		}
		prev = v
		return true
	})
}
