package entities

import "time"

// Cursor is the per-conversation pagination state over the last query's
// result list. It is replaced wholesale by every new freeform query.
type Cursor struct {
	Query     string     `json:"query"` // normalized
	Page      int        `json:"page"`  // 0-based
	Results   []OfferRef `json:"results"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// PageSlice returns the refs visible on the cursor's current page.
func (c *Cursor) PageSlice(pageSize int) []OfferRef {
	if pageSize <= 0 {
		return nil
	}
	start := c.Page * pageSize
	if start >= len(c.Results) {
		return nil
	}
	end := start + pageSize
	if end > len(c.Results) {
		end = len(c.Results)
	}
	return c.Results[start:end]
}

// PageCount returns the number of pages for the cursor's result list.
func (c *Cursor) PageCount(pageSize int) int {
	if pageSize <= 0 || len(c.Results) == 0 {
		return 0
	}
	return (len(c.Results) + pageSize - 1) / pageSize
}
