package statement

// Page is one slice of a statement, newest items first.
type Page struct {
	Number     int    `json:"page"`
	Size       int    `json:"pageSize"`
	TotalItems int    `json:"totalItems"`
	TotalPages int    `json:"totalPages"`
	Items      []Item `json:"items"`
}

// Page returns page n (1-based) of the statement in reverse chronological
// order. Out-of-range page numbers are clamped.
func (s *Statement) Page(n, size int) Page {
	if size <= 0 {
		size = DefaultPageSize
	}
	total := len(s.Items)
	pages := (total + size - 1) / size
	if pages == 0 {
		pages = 1
	}
	if n < 1 {
		n = 1
	}
	if n > pages {
		n = pages
	}

	start := (n - 1) * size
	end := start + size
	if end > total {
		end = total
	}

	items := make([]Item, 0, end-start)
	for i := start; i < end; i++ {
		items = append(items, s.Items[total-1-i])
	}
	return Page{Number: n, Size: size, TotalItems: total, TotalPages: pages, Items: items}
}
