package ohlcv

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"log"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/kosquant/krxagent/pkg/models"
	"github.com/kosquant/krxagent/pkg/utils"
)

// DiskStore is a per-ticker on-disk bar cache. Each ticker owns one CSV file
// (date,open,high,low,close,adj_close,volume) sorted by date; appends merge
// by date with the newer row winning.
type DiskStore struct {
	dir string
}

// NewDiskStore creates (if needed) the cache directory and returns a store.
func NewDiskStore(dir string) (*DiskStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create cache dir %s: %w", dir, err)
	}
	return &DiskStore{dir: dir}, nil
}

func (d *DiskStore) path(ticker string) string {
	// ^KS11 and friends are not filesystem-friendly.
	safe := strings.NewReplacer("^", "_", "/", "_").Replace(ticker)
	return filepath.Join(d.dir, safe+".csv")
}

// Load returns the cached bars for the ticker restricted to [start, end).
// With strict set, the cache must already cover the window's first and last
// trading days; otherwise ErrNoData is returned so the caller refetches.
func (d *DiskStore) Load(ticker string, start, end time.Time, strict bool) ([]models.Bar, error) {
	all, err := d.read(ticker)
	if err != nil {
		return nil, err
	}
	if len(all) == 0 {
		return nil, fmt.Errorf("%w: %s (empty cache)", ErrNoData, ticker)
	}

	if strict {
		firstNeed := utils.MostRecentTradingDay(start)
		lastNeed := utils.MostRecentTradingDay(end.AddDate(0, 0, -1))
		if all[0].Date.After(firstNeed) || all[len(all)-1].Date.Before(lastNeed) {
			return nil, fmt.Errorf("%w: %s cache window too narrow", ErrNoData, ticker)
		}
	}

	var out []models.Bar
	for _, b := range all {
		if !b.Date.Before(start) && b.Date.Before(end) {
			out = append(out, b)
		}
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoData, ticker)
	}
	return out, nil
}

// SaveOrAppend merges bars into the ticker's file, keyed by date.
func (d *DiskStore) SaveOrAppend(ticker string, bars []models.Bar) error {
	if len(bars) == 0 {
		return nil
	}
	existing, err := d.read(ticker)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}

	byDate := make(map[string]models.Bar, len(existing)+len(bars))
	for _, b := range existing {
		byDate[utils.FormatDateKST(b.Date)] = b
	}
	for _, b := range bars {
		byDate[utils.FormatDateKST(b.Date)] = b
	}

	merged := make([]models.Bar, 0, len(byDate))
	for _, b := range byDate {
		merged = append(merged, b)
	}
	sort.Slice(merged, func(i, j int) bool { return merged[i].Date.Before(merged[j].Date) })

	return d.write(ticker, merged)
}

func (d *DiskStore) read(ticker string) ([]models.Bar, error) {
	f, err := os.Open(d.path(ticker))
	if err != nil {
		return nil, err
	}
	defer f.Close()

	r := csv.NewReader(f)
	rows, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read cache %s: %w", ticker, err)
	}

	var bars []models.Bar
	for i, row := range rows {
		if i == 0 || len(row) < 7 {
			continue // header
		}
		date, err := utils.ParseDateKST(row[0])
		if err != nil {
			continue
		}
		b := models.EmptyBar(date)
		b.Open = parseCell(row[1])
		b.High = parseCell(row[2])
		b.Low = parseCell(row[3])
		b.Close = parseCell(row[4])
		b.AdjClose = parseCell(row[5])
		b.Volume = parseCell(row[6])
		bars = append(bars, b)
	}
	return bars, nil
}

func (d *DiskStore) write(ticker string, bars []models.Bar) error {
	tmp := d.path(ticker) + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("write cache %s: %w", ticker, err)
	}

	w := csv.NewWriter(f)
	_ = w.Write([]string{"date", "open", "high", "low", "close", "adj_close", "volume"})
	for _, b := range bars {
		_ = w.Write([]string{
			utils.FormatDateKST(b.Date),
			formatCell(b.Open),
			formatCell(b.High),
			formatCell(b.Low),
			formatCell(b.Close),
			formatCell(b.AdjClose),
			formatCell(b.Volume),
		})
	}
	w.Flush()
	if err := w.Error(); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	return os.Rename(tmp, d.path(ticker))
}

func parseCell(s string) float64 {
	if s == "" {
		return math.NaN()
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return math.NaN()
	}
	return v
}

func formatCell(v float64) string {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return ""
	}
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// --- Caching source ---

// CachedSource serves slabs from the disk store first and falls back to the
// remote source for tickers the cache cannot cover, appending what it fetched.
type CachedSource struct {
	Remote Source
	Store  *DiskStore
}

// NewCachedSource wraps remote with a disk store rooted at dir.
func NewCachedSource(remote Source, dir string) (*CachedSource, error) {
	store, err := NewDiskStore(dir)
	if err != nil {
		return nil, err
	}
	return &CachedSource{Remote: remote, Store: store}, nil
}

// Name returns the source name.
func (c *CachedSource) Name() string {
	return c.Remote.Name() + " (disk-cached)"
}

// Slab implements Source.
func (c *CachedSource) Slab(ctx context.Context, tickers []string, start, end time.Time) (*Slab, error) {
	perTicker := make(map[string][]models.Bar, len(tickers))
	var miss []string

	for _, ticker := range tickers {
		bars, err := c.Store.Load(ticker, start, end, true)
		if err != nil {
			miss = append(miss, ticker)
			continue
		}
		perTicker[ticker] = bars
	}

	if len(miss) > 0 {
		remote, err := c.Remote.Slab(ctx, miss, start, end)
		if err != nil {
			if len(perTicker) == 0 {
				return nil, err
			}
			log.Printf("ohlcv/cache: remote fetch failed for %d tickers: %v", len(miss), err)
		} else {
			for _, ticker := range remote.Tickers() {
				bars := remote.Series(ticker)
				perTicker[ticker] = bars
				if err := c.Store.SaveOrAppend(ticker, bars); err != nil {
					log.Printf("ohlcv/cache: append %s: %v", ticker, err)
				}
			}
		}
	}

	if len(perTicker) == 0 {
		return nil, ErrNoData
	}
	return BuildSlab(perTicker), nil
}
