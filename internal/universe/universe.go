// Package universe holds the static KRX listing catalog: per-market ticker
// lists, name↔code maps, and the user alias table. The catalog is loaded
// once at startup and is immutable afterwards.
package universe

import (
	"encoding/csv"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/kosquant/krxagent/pkg/models"
	"github.com/kosquant/krxagent/pkg/utils"
)

// ErrNotFound is returned when a name or code is not in the catalog.
var ErrNotFound = fmt.Errorf("universe: not found")

// Catalog is the immutable listing universe.
type Catalog struct {
	nameToCode map[string]string // display name (deduplicated) → suffixed code
	aliasTo    map[string]string // user alias → suffixed code
	codeToName map[string]string // suffixed code → display name
	kospi      []string
	kosdaq     []string
	names      []string // all display names, sorted
}

// Load reads the two listing CSVs (headers 종목코드,종목명; codes already
// suffixed .KS/.KQ) and an optional alias CSV (headers alias,ticker).
func Load(kospiPath, kosdaqPath, aliasPath string) (*Catalog, error) {
	c := &Catalog{
		nameToCode: make(map[string]string),
		aliasTo:    make(map[string]string),
		codeToName: make(map[string]string),
	}

	var err error
	if c.kospi, err = c.loadListing(kospiPath); err != nil {
		return nil, fmt.Errorf("load KOSPI listing: %w", err)
	}
	if c.kosdaq, err = c.loadListing(kosdaqPath); err != nil {
		return nil, fmt.Errorf("load KOSDAQ listing: %w", err)
	}

	if aliasPath != "" {
		if err := c.loadAliases(aliasPath); err != nil {
			return nil, fmt.Errorf("load aliases: %w", err)
		}
	}

	c.names = make([]string, 0, len(c.nameToCode))
	for name := range c.nameToCode {
		c.names = append(c.names, name)
	}
	sort.Strings(c.names)

	return c, nil
}

// loadListing parses one market CSV and registers its rows. Display-name
// collisions are disambiguated by appending the bare code fragment.
func (c *Catalog) loadListing(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	rows, err := csv.NewReader(f).ReadAll()
	if err != nil {
		return nil, err
	}

	var tickers []string
	for i, row := range rows {
		if i == 0 || len(row) < 2 {
			continue // header
		}
		code := strings.TrimSpace(row[0])
		name := strings.TrimSpace(row[1])
		if code == "" || name == "" {
			continue
		}

		if _, dup := c.nameToCode[name]; dup {
			name = fmt.Sprintf("%s(%s)", name, utils.CodeOf(code))
		}

		c.nameToCode[name] = code
		c.codeToName[code] = name
		tickers = append(tickers, code)
	}
	return tickers, nil
}

func (c *Catalog) loadAliases(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	rows, err := csv.NewReader(f).ReadAll()
	if err != nil {
		return err
	}
	for i, row := range rows {
		if i == 0 || len(row) < 2 {
			continue
		}
		alias := strings.TrimSpace(row[0])
		code := strings.TrimSpace(row[1])
		if alias != "" && code != "" {
			c.aliasTo[alias] = code
		}
	}
	return nil
}

// Lookup resolves user-typed text to a code: aliases take precedence over
// official names.
func (c *Catalog) Lookup(text string) (string, bool) {
	if code, ok := c.aliasTo[text]; ok {
		return code, true
	}
	code, ok := c.nameToCode[text]
	return code, ok
}

// NameOf returns the display name for a suffixed code. Index pseudo-tickers
// resolve to their market name.
func (c *Catalog) NameOf(code string) (string, error) {
	switch code {
	case models.KOSPIIndex:
		return "KOSPI", nil
	case models.KOSDAQIndex:
		return "KOSDAQ", nil
	}
	name, ok := c.codeToName[code]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrNotFound, code)
	}
	return name, nil
}

// Tickers returns the listing for one market, or the union when market is
// empty. The returned slice must not be mutated.
func (c *Catalog) Tickers(market models.Market) []string {
	switch market {
	case models.MarketKOSPI:
		return c.kospi
	case models.MarketKOSDAQ:
		return c.kosdaq
	default:
		union := make([]string, 0, len(c.kospi)+len(c.kosdaq))
		union = append(union, c.kospi...)
		union = append(union, c.kosdaq...)
		return union
	}
}

// Names returns every display name in sorted order; this is the corpus the
// embedding index is built over.
func (c *Catalog) Names() []string { return c.names }

// Keys returns every resolvable key (aliases plus display names); this is
// the corpus the fuzzy matcher scores against.
func (c *Catalog) Keys() []string {
	keys := make([]string, 0, len(c.aliasTo)+len(c.nameToCode))
	for a := range c.aliasTo {
		keys = append(keys, a)
	}
	for n := range c.nameToCode {
		keys = append(keys, n)
	}
	sort.Strings(keys)
	return keys
}

// Size returns the number of listed equities.
func (c *Catalog) Size() int { return len(c.codeToName) }
