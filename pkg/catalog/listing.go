package catalog

import "time"

// Listing is one per-run priced observation of a board at one retailer.
// Listings are created fresh each run; prior runs' listings are retained
// for price history.
type Listing struct {
	RunID           int64     `json:"run_id" yaml:"run_id"`
	Retailer        string    `json:"retailer" yaml:"retailer"`
	URL             string    `json:"url" yaml:"url"`
	BoardKey        BoardKey  `json:"board_key" yaml:"board_key"`
	Price           float64   `json:"price" yaml:"price"`
	Currency        string    `json:"currency" yaml:"currency"`
	Region          string    `json:"region" yaml:"region"`
	Condition       Condition `json:"condition" yaml:"condition"`
	Gender          Gender    `json:"gender" yaml:"gender"`
	StockCount      *int      `json:"stock_count,omitempty" yaml:"stock_count,omitempty"`
	DiscountPercent *float64  `json:"discount_percent,omitempty" yaml:"discount_percent,omitempty"`
	ObservedAt      time.Time `json:"observed_at" yaml:"observed_at"`
}
