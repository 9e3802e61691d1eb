package query

import (
	"math"
	"strconv"
)

// Page is a 1-based page number with a fixed page size.
type Page struct {
	Number int
	Size   int
}

// NewPage parses raw as a page number. Missing or invalid values yield page 1.
// Numbers are capped so the skip offset always fits in an int32.
func NewPage(raw string, size int) Page {
	if size < 1 {
		size = 1
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		n = 1
	}
	if maxPage := math.MaxInt32 / size; n > maxPage {
		n = maxPage
	}
	return Page{Number: n, Size: size}
}

func (p Page) Skip() int64 {
	return int64((p.Number - 1) * p.Size)
}

func (p Page) Limit() int64 {
	return int64(p.Size)
}

// Pages returns ceil(count / size).
func (p Page) Pages(count int64) int {
	return int(math.Ceil(float64(count) / float64(p.Size)))
}

// Listing assembles a paginated payload, e.g. {"products": [...], "page": 2, "pages": 5}.
func Listing[T any](key string, items []T, page Page, count int64) map[string]any {
	if items == nil {
		items = []T{}
	}
	return map[string]any{
		key:     items,
		"page":  page.Number,
		"pages": page.Pages(count),
	}
}
