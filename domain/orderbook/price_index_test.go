package orderbook

import (
	"math/rand"
	"sort"
	"testing"
)

func TestPriceIndexInsertFindDelete(t *testing.T) {
	idx := newPriceIndex()
	pl1 := idx.UpsertLevel(100)
	if pl1 == nil {
		t.Fatal("UpsertLevel failed")
	}
	if pl2 := idx.FindLevel(100); pl2 != pl1 {
		t.Error("FindLevel did not return same PriceLevel")
	}

	idx.UpsertLevel(200)
	if idx.MinLevel().Price != 100 {
		t.Error("expected min=100")
	}
	if idx.MaxLevel().Price != 200 {
		t.Error("expected max=200")
	}

	if !idx.DeleteLevel(100) {
		t.Error("DeleteLevel failed")
	}
	if idx.FindLevel(100) != nil {
		t.Error("expected level 100 to be gone")
	}
	if idx.MinLevel().Price != 200 {
		t.Error("expected min=200 after delete")
	}
}

func TestPriceIndexDeleteNonExistentLevel(t *testing.T) {
	idx := newPriceIndex()
	if idx.DeleteLevel(123) {
		t.Error("expected false when deleting non-existent level")
	}
	idx.UpsertLevel(100)
	if idx.DeleteLevel(99) || idx.DeleteLevel(101) {
		t.Error("expected false for near-miss prices")
	}
}

func TestPriceIndexEmptyMinMax(t *testing.T) {
	idx := newPriceIndex()
	if idx.MinLevel() != nil || idx.MaxLevel() != nil {
		t.Error("expected nil for min/max on empty index")
	}
}

func TestPriceIndexUpsertDuplicateLevel(t *testing.T) {
	idx := newPriceIndex()
	pl1 := idx.UpsertLevel(150)
	pl2 := idx.UpsertLevel(150)
	if pl1 != pl2 {
		t.Error("Upsert should return the same level for duplicate price")
	}
	if idx.Size() != 1 {
		t.Errorf("expected size 1, got %d", idx.Size())
	}
}

func TestPriceIndexOrderedIteration(t *testing.T) {
	idx := newPriceIndex()
	prices := []uint64{500, 100, 900, 300, 700, 200, 800, 400, 600}
	for _, p := range prices {
		idx.UpsertLevel(p)
	}
	if idx.Size() != len(prices) {
		t.Fatalf("expected size %d, got %d", len(prices), idx.Size())
	}

	var asc []uint64
	idx.ForEachAscending(func(pl *PriceLevel) bool {
		asc = append(asc, pl.Price)
		return true
	})
	for i := 1; i < len(asc); i++ {
		if asc[i-1] >= asc[i] {
			t.Fatalf("ascending walk out of order: %v", asc)
		}
	}

	var desc []uint64
	idx.ForEachDescending(func(pl *PriceLevel) bool {
		desc = append(desc, pl.Price)
		return true
	})
	for i := 1; i < len(desc); i++ {
		if desc[i-1] <= desc[i] {
			t.Fatalf("descending walk out of order: %v", desc)
		}
	}
}

// TestPriceIndexRandomChurn hammers the index with a random
// insert/delete mix and cross-checks contents, ends, and both walk
// directions against a sorted reference after every 100 operations.
func TestPriceIndexRandomChurn(t *testing.T) {
	rng := rand.New(rand.NewSource(17))
	idx := newPriceIndex()
	ref := make(map[uint64]bool)

	verify := func() {
		want := make([]uint64, 0, len(ref))
		for p := range ref {
			want = append(want, p)
		}
		sort.Slice(want, func(i, j int) bool { return want[i] < want[j] })

		if idx.Size() != len(want) {
			t.Fatalf("size %d, want %d", idx.Size(), len(want))
		}
		var got []uint64
		idx.ForEachAscending(func(pl *PriceLevel) bool {
			got = append(got, pl.Price)
			return true
		})
		if len(got) != len(want) {
			t.Fatalf("ascending walk has %d levels, want %d", len(got), len(want))
		}
		for i := range want {
			if got[i] != want[i] {
				t.Fatalf("ascending walk mismatch at %d: got %v want %v", i, got[i], want[i])
			}
		}
		var back []uint64
		idx.ForEachDescending(func(pl *PriceLevel) bool {
			back = append(back, pl.Price)
			return true
		})
		for i := range want {
			if back[len(back)-1-i] != want[i] {
				t.Fatalf("descending walk mismatch")
			}
		}
		if len(want) > 0 {
			if idx.MinLevel().Price != want[0] {
				t.Fatalf("min %d, want %d", idx.MinLevel().Price, want[0])
			}
			if idx.MaxLevel().Price != want[len(want)-1] {
				t.Fatalf("max %d, want %d", idx.MaxLevel().Price, want[len(want)-1])
			}
		} else if idx.MinLevel() != nil || idx.MaxLevel() != nil {
			t.Fatal("expected empty index")
		}
	}

	for op := 0; op < 10000; op++ {
		price := uint64(1 + rng.Intn(500))
		if ref[price] && rng.Intn(2) == 0 {
			if !idx.DeleteLevel(price) {
				t.Fatalf("delete of present price %d failed", price)
			}
			delete(ref, price)
		} else {
			idx.UpsertLevel(price)
			ref[price] = true
		}
		if op%100 == 0 {
			verify()
		}
	}
	verify()
}
