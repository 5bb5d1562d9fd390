package vm

import "testing"

import "github.com/bnclabs/memfit/api"

func TestMapAligned(t *testing.T) {
	v := New(api.StrategyDecommit)
	size := 4 * pageSize
	align := 16 * pageSize

	base, ok := v.Map(size, align)
	if !ok {
		t.Fatalf("map failed")
	}
	defer v.Unmap(base, size)

	if base%uintptr(align) != 0 {
		t.Errorf("expected alignment %v, got base %v", align, base)
	}
}

func TestCommitDecommit(t *testing.T) {
	v := New(api.StrategyDecommit)
	size := 2 * pageSize

	base, ok := v.Map(size, pageSize)
	if !ok {
		t.Fatalf("map failed")
	}
	defer v.Unmap(base, size)

	b := byteView(base, size)
	b[0] = 0xff
	if b[0] != 0xff {
		t.Errorf("expected write to succeed")
	}

	if !v.Decommit(base, size) {
		t.Errorf("expected decommit to succeed")
	}
	if !v.Commit(base, size) {
		t.Errorf("expected commit to succeed")
	}
	b = byteView(base, size)
	if b[0] != 0 {
		t.Errorf("expected zeroed page after commit, got %v", b[0])
	}
}

func TestPurgeStrategies(t *testing.T) {
	cases := []struct {
		strategy   api.Strategy
		wantZeroed bool
		forceZero  bool
	}{
		{api.StrategyDecommit, true, false},
		{api.StrategyMadviseDontneed, true, false},
		{api.StrategyMadviseFree, false, false},
		{api.StrategyMadviseFree, true, true},
	}
	for _, c := range cases {
		v := New(c.strategy)
		size := pageSize
		base, ok := v.Map(size, pageSize)
		if !ok {
			t.Fatalf("map failed")
		}
		zeroed := v.Purge(base, size, c.forceZero)
		if zeroed != c.wantZeroed {
			t.Errorf("strategy %v forceZero %v: expected zeroed=%v, got %v",
				c.strategy, c.forceZero, c.wantZeroed, zeroed)
		}
		v.Unmap(base, size)
	}
}

func TestCanRecycle(t *testing.T) {
	v := New(api.StrategyDecommit)
	if v.CanRecycle(0) {
		t.Errorf("expected zero-size region to be non-recyclable")
	}
	if !v.CanRecycle(pageSize) {
		t.Errorf("expected page-size region to be recyclable")
	}
}

func TestSystemInfo(t *testing.T) {
	info, err := GetSystemInfo()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if info.Total == 0 {
		t.Errorf("expected non-zero total memory")
	}
}
