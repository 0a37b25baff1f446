package domain

// Product is the checkout core's read projection of the catalog. Price is in
// integer cents. Quantity and Sold are only ever adjusted relative to their
// current values, never set outright.
type Product struct {
	ID       string `json:"id"`
	Title    string `json:"title"`
	Brand    string `json:"brand"`
	Price    int64  `json:"price"`
	Quantity int    `json:"quantity"`
	Sold     int    `json:"sold"`
}
