package types

// JSON field names match the collections written by earlier versions of the
// scraper, so existing data directories keep loading.

// Auction is a trading session keyed by the externally assigned auction id.
// The id comes from the site's query parameter and is never generated locally.
type Auction struct {
	ID   int    `json:"id"`
	Name string `json:"nombre"`
}

// Family groups products on the price table (livestock type etc.).
type Family struct {
	ID   int    `json:"id"`
	Name string `json:"nombre"`
}

// Product is a tradable item within a family, optionally linked to a detail page.
type Product struct {
	ID       int    `json:"id"`
	FamilyID int    `json:"familia_id"`
	Name     string `json:"nombre"`
	URL      string `json:"url,omitempty"`
}

// Price is one observed price, keyed by (auction, date, product, cut position).
type Price struct {
	AuctionID int    `json:"subasta_id"`
	Date      string `json:"fecha"`
	ProductID int    `json:"producto_id"`
	Cut       int    `json:"corte"`
	Price     int    `json:"precio"`
}

// ParsedRow is one product row lifted out of the auction price table before
// reconciliation. Cuts are positional; a nil entry means the column held no
// price (blank or placeholder cell).
type ParsedRow struct {
	FamilyName  string
	ProductName string
	ProductURL  string
	Cuts        []*int
}
