// Package scrape extracts auction, family, product, and price data from the
// semi-structured HTML table served by the price endpoint. The markup is not
// contractually stable, so every extraction degrades to a safe default
// instead of failing the run.
package scrape

import (
	"bytes"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/jpg486-ual/scrapping-tutorial/pkg/types"
)

// tableMarker identifies the products table in the raw response. Its absence,
// combined with an "ERROR" token, is what classifies a response as invalid.
const tableMarker = "tab_pre_pro"

var (
	productURLPattern = regexp.MustCompile(`window\.location\s*=\s*'([^']+)'`)
	tableDatePattern  = regexp.MustCompile(`(\d{2})-(\d{2})-(\d{4})`)
	nonDigits         = regexp.MustCompile(`[^0-9]`)
)

// IsErrorResponse reports whether the raw page is an error/empty response.
// Both conditions must hold: a page mentioning "error" in unrelated copy but
// still carrying the products table is treated as valid.
func IsErrorResponse(body []byte) bool {
	html := string(body)
	return strings.Contains(strings.ToUpper(html), "ERROR") && !strings.Contains(html, tableMarker)
}

// ParseDocument builds a queryable document from a raw HTML body.
func ParseDocument(body []byte) (*goquery.Document, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}
	return doc, nil
}

// AuctionName extracts the auction's display name from the page title cell,
// synthesising a placeholder from the numeric id when the cell is missing or blank.
func AuctionName(doc *goquery.Document, fallbackID int) string {
	name := cellText(doc.Find("table.tab_pre_sub td.titNombreizq").First())
	if name == "" {
		return fmt.Sprintf("Subasta %d", fallbackID)
	}
	return name
}

// TableDate extracts the as-of date shown in the page title cell. The page's
// stated date may differ from the requested one; when no date is found the
// fallback (the date actually requested) is returned, never an error.
func TableDate(doc *goquery.Document, fallback time.Time) time.Time {
	text := cellText(doc.Find("table.tab_pre_sub td.titNombreder").First())
	match := tableDatePattern.FindStringSubmatch(text)
	if match == nil {
		return fallback
	}
	day, _ := strconv.Atoi(match[1])
	month, _ := strconv.Atoi(match[2])
	year, _ := strconv.Atoi(match[3])
	return time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.Local)
}

// ParseRows walks the products table in document order and emits one row per
// product. Family header rows update the current family and contribute no
// product; product rows seen before any family header are skipped. A page
// without a products table yields no rows.
func ParseRows(doc *goquery.Document) []types.ParsedRow {
	table := doc.Find("table." + tableMarker).First()
	if table.Length() == 0 {
		return nil
	}

	var rows []types.ParsedRow
	currentFamily := ""

	table.Find("tr").Each(func(_ int, row *goquery.Selection) {
		if row.HasClass("familias_subasta") {
			if famCell := row.Find("td[class^='fam']").First(); famCell.Length() > 0 {
				currentFamily = cellText(famCell)
			}
			return
		}

		productCell := row.Find("td.pro").First()
		if productCell.Length() == 0 || currentFamily == "" {
			return
		}

		rows = append(rows, types.ParsedRow{
			FamilyName:  currentFamily,
			ProductName: cellText(productCell),
			ProductURL:  productURL(row),
			Cuts:        parseCuts(row),
		})
	})

	return rows
}

// productURL pulls the detail-page URL out of the row's navigation handler.
func productURL(row *goquery.Selection) string {
	onclick, ok := row.Attr("onclick")
	if !ok {
		return ""
	}
	match := productURLPattern.FindStringSubmatch(onclick)
	if match == nil {
		return ""
	}
	return match[1]
}

// parseCuts scans the row's price cells left to right. Position is the sole
// source of truth for which cut a price belongs to, so placeholder cells
// still occupy their slot as nil.
func parseCuts(row *goquery.Selection) []*int {
	var cuts []*int
	row.Find("td.txt").Each(func(_ int, cell *goquery.Selection) {
		text := strings.TrimSpace(cell.Text())
		if text == "" || text == "-" {
			cuts = append(cuts, nil)
			return
		}
		cleaned := nonDigits.ReplaceAllString(text, "")
		if cleaned == "" {
			cuts = append(cuts, nil)
			return
		}
		value, err := strconv.Atoi(cleaned)
		if err != nil {
			cuts = append(cuts, nil)
			return
		}
		cuts = append(cuts, &value)
	})
	return cuts
}

// cellText collapses a cell's text nodes into single-space-separated trimmed text.
func cellText(s *goquery.Selection) string {
	return strings.Join(strings.Fields(s.Text()), " ")
}
