package universe

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"log"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/text/encoding/korean"
	"golang.org/x/text/transform"

	"github.com/kosquant/krxagent/pkg/models"
	"github.com/kosquant/krxagent/pkg/utils"
)

// Exporter regenerates the listing CSVs by scraping the public Naver Finance
// market-cap tables (sosok=0 for KOSPI, sosok=1 for KOSDAQ).
type Exporter struct {
	BaseURL    string // defaults to https://finance.naver.com
	CommonOnly bool   // drop SPACs, REITs, preferred shares
	Client     *http.Client
	Throttle   time.Duration // pause between page fetches
}

// NewExporter returns an exporter with production defaults.
func NewExporter() *Exporter {
	return &Exporter{
		BaseURL:  "https://finance.naver.com",
		Client:   &http.Client{Timeout: 30 * time.Second},
		Throttle: 200 * time.Millisecond,
	}
}

var codeHrefPattern = regexp.MustCompile(`code=(\d{6})`)

// Export scrapes every listing page for the market and writes the catalog
// CSV (종목코드,종목명) to w. Codes are suffixed per board.
func (e *Exporter) Export(ctx context.Context, market models.Market, w io.Writer) error {
	sosok := 0
	if market == models.MarketKOSDAQ {
		sosok = 1
	}

	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"종목코드", "종목명"}); err != nil {
		return err
	}

	total := 0
	for page := 1; ; page++ {
		url := fmt.Sprintf("%s/sise/sise_market_sum.naver?sosok=%d&page=%d", e.BaseURL, sosok, page)
		rows, err := e.fetchPage(ctx, url)
		if err != nil {
			return fmt.Errorf("page %d: %w", page, err)
		}
		if len(rows) == 0 {
			break
		}

		for _, r := range rows {
			code := utils.WithSuffix(r.code, string(market))
			if e.CommonOnly && !IsCommonShare(r.name, code) {
				continue
			}
			if err := cw.Write([]string{code, r.name}); err != nil {
				return err
			}
			total++
		}

		if e.Throttle > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(e.Throttle):
			}
		}
	}

	cw.Flush()
	log.Printf("universe/export: %s wrote %d listings", market, total)
	return cw.Error()
}

type listingRow struct {
	code string
	name string
}

// fetchPage parses one market-sum page. Naver serves EUC-KR, so the body is
// decoded before goquery sees it.
func (e *Exporter) fetchPage(ctx context.Context, url string) ([]listingRow, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36")

	resp, err := e.Client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("HTTP %s", resp.Status)
	}

	reader := transform.NewReader(resp.Body, korean.EUCKR.NewDecoder())
	doc, err := goquery.NewDocumentFromReader(reader)
	if err != nil {
		return nil, err
	}

	var rows []listingRow
	doc.Find("table.type_2 tbody tr").Each(func(_ int, tr *goquery.Selection) {
		link := tr.Find("a.tltle").First()
		if link.Length() == 0 {
			return
		}
		href, _ := link.Attr("href")
		m := codeHrefPattern.FindStringSubmatch(href)
		if m == nil {
			return
		}
		name := strings.TrimSpace(link.Text())
		if name == "" {
			return
		}
		rows = append(rows, listingRow{code: m[1], name: name})
	})
	return rows, nil
}
