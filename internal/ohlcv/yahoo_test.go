package ohlcv

import (
	"context"
	"fmt"
	"math"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

// chartJSON builds a minimal v8 chart payload with one null cell.
func chartJSON(symbol string, ts []int64) string {
	var sb strings.Builder
	sb.WriteString(`{"chart":{"result":[{"meta":{"symbol":"` + symbol + `","currency":"KRW"},"timestamp":[`)
	for i, t := range ts {
		if i > 0 {
			sb.WriteString(",")
		}
		fmt.Fprintf(&sb, "%d", t)
	}
	sb.WriteString(`],"indicators":{"quote":[{"open":[100,null],"high":[110,111],"low":[90,91],"close":[105,106],"volume":[1000,0]}],"adjclose":[{"adjclose":[104,null]}]}}],"error":null}}`)
	return sb.String()
}

func TestYahooDaily(t *testing.T) {
	ts := []int64{
		time.Date(2025, 6, 10, 0, 0, 0, 0, time.UTC).Unix(),
		time.Date(2025, 6, 11, 0, 0, 0, 0, time.UTC).Unix(),
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.Contains(r.URL.Path, "/v8/finance/chart/005930.KS") {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, chartJSON("005930.KS", ts))
	}))
	defer srv.Close()

	y := NewYahoo(WithBaseURL(srv.URL))
	bars, err := y.Daily(context.Background(), "005930.KS", time.Unix(ts[0], 0), time.Unix(ts[1]+86400, 0))
	if err != nil {
		t.Fatalf("Daily: %v", err)
	}
	if len(bars) != 2 {
		t.Fatalf("expected 2 bars, got %d", len(bars))
	}
	if bars[0].Close != 105 || bars[0].AdjClose != 104 {
		t.Errorf("bar 0 = %+v", bars[0])
	}
	// Null open stays NaN; null adjclose falls back to close.
	if !math.IsNaN(bars[1].Open) {
		t.Errorf("null open should be NaN, got %v", bars[1].Open)
	}
	if bars[1].AdjClose != 106 {
		t.Errorf("adjclose fallback = %v, want 106", bars[1].AdjClose)
	}
}

func TestYahooSlabSkipsUnknownTicker(t *testing.T) {
	ts := []int64{time.Date(2025, 6, 10, 0, 0, 0, 0, time.UTC).Unix()}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.Contains(r.URL.Path, "GOOD.KS") {
			w.Header().Set("Content-Type", "application/json")
			fmt.Fprint(w, chartJSON("GOOD.KS", ts))
			return
		}
		http.NotFound(w, r)
	}))
	defer srv.Close()

	y := NewYahoo(WithBaseURL(srv.URL))
	slab, err := y.Slab(context.Background(), []string{"GOOD.KS", "BAD.KS"},
		time.Unix(ts[0], 0), time.Unix(ts[0]+86400, 0))
	if err != nil {
		t.Fatalf("Slab: %v", err)
	}
	if !slab.Has("GOOD.KS") {
		t.Error("GOOD.KS should be present")
	}
	if slab.Has("BAD.KS") {
		t.Error("BAD.KS should be skipped, not padded")
	}
}

func TestRateLimiterWait(t *testing.T) {
	rl := NewRateLimiter(2, 50*time.Millisecond)
	ctx := context.Background()

	start := time.Now()
	for i := 0; i < 3; i++ {
		if err := rl.Wait(ctx); err != nil {
			t.Fatalf("Wait: %v", err)
		}
	}
	if elapsed := time.Since(start); elapsed < 50*time.Millisecond {
		t.Errorf("third token should have waited for a refill, elapsed %v", elapsed)
	}
}

func TestCacheExpiry(t *testing.T) {
	c := NewCache(10 * time.Millisecond)
	c.Set("k", 42)
	if v, ok := c.Get("k"); !ok || v.(int) != 42 {
		t.Fatal("expected cache hit")
	}
	time.Sleep(20 * time.Millisecond)
	if _, ok := c.Get("k"); ok {
		t.Error("expected expiry")
	}
}
