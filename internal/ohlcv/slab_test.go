package ohlcv

import (
	"math"
	"testing"
	"time"

	"github.com/kosquant/krxagent/pkg/models"
	"github.com/kosquant/krxagent/pkg/utils"
)

func day(s string) time.Time {
	t, err := utils.ParseDateKST(s)
	if err != nil {
		panic(err)
	}
	return t
}

func bar(date string, close float64, volume float64) models.Bar {
	b := models.EmptyBar(day(date))
	b.Open = close
	b.High = close
	b.Low = close
	b.Close = close
	b.AdjClose = close
	b.Volume = volume
	return b
}

func TestBuildSlabAlignment(t *testing.T) {
	slab := BuildSlab(map[string][]models.Bar{
		"A.KS": {bar("2025-06-10", 100, 10), bar("2025-06-11", 101, 10)},
		"B.KQ": {bar("2025-06-11", 50, 5), bar("2025-06-12", 51, 5)},
	})

	if slab.Len() != 3 {
		t.Fatalf("expected 3 dates, got %d", slab.Len())
	}

	// A has no bar on the 12th; the pad must be NaN, not zero.
	b, ok := slab.Bar("A.KS", day("2025-06-12"))
	if !ok {
		t.Fatal("expected padded bar for A.KS on 2025-06-12")
	}
	if !math.IsNaN(b.Close) {
		t.Errorf("padded close should be NaN, got %v", b.Close)
	}
	if b.Traded() {
		t.Error("padded bar must not count as traded")
	}

	b, _ = slab.Bar("B.KQ", day("2025-06-11"))
	if b.Close != 50 {
		t.Errorf("B.KQ close on the 11th = %v, want 50", b.Close)
	}
}

func TestSlabWindow(t *testing.T) {
	slab := BuildSlab(map[string][]models.Bar{
		"A.KS": {
			bar("2025-06-09", 1, 1),
			bar("2025-06-10", 2, 1),
			bar("2025-06-11", 3, 1),
			bar("2025-06-12", 4, 1),
		},
	})

	sub := slab.Window(day("2025-06-10"), day("2025-06-11"))
	if sub.Len() != 2 {
		t.Fatalf("window length = %d, want 2", sub.Len())
	}
	if sub.Series("A.KS")[0].Close != 2 || sub.Series("A.KS")[1].Close != 3 {
		t.Error("window sliced wrong rows")
	}
}

func TestSlabIndexLookups(t *testing.T) {
	slab := BuildSlab(map[string][]models.Bar{
		"A.KS": {bar("2025-06-10", 1, 1), bar("2025-06-12", 2, 1)},
	})

	if i := slab.IndexOf(day("2025-06-12")); i != 1 {
		t.Errorf("IndexOf = %d, want 1", i)
	}
	if i := slab.IndexOf(day("2025-06-13")); i != -1 {
		t.Errorf("IndexOf missing date = %d, want -1", i)
	}
	if i := slab.LastIndexOnOrBefore(day("2025-06-11")); i != 0 {
		t.Errorf("LastIndexOnOrBefore = %d, want 0", i)
	}
	if i := slab.LastIndexOnOrBefore(day("2025-06-09")); i != -1 {
		t.Errorf("LastIndexOnOrBefore before start = %d, want -1", i)
	}
}
