package services

const PageSize = 10

// Page is one window over a course's file list.
type Page struct {
	Index   int
	Pages   int
	Total   int
	Start   int
	End     int
	HasPrev bool
	HasNext bool
}

// Paginate computes the window for page over total items. Out-of-range pages
// clamp into [0, Pages-1]; there is always at least one page.
func Paginate(total, page int) Page {
	if total < 0 {
		total = 0
	}
	pages := (total + PageSize - 1) / PageSize
	if pages < 1 {
		pages = 1
	}
	if page < 0 {
		page = 0
	}
	if page >= pages {
		page = pages - 1
	}

	start := page * PageSize
	end := start + PageSize
	if end > total {
		end = total
	}
	return Page{
		Index:   page,
		Pages:   pages,
		Total:   total,
		Start:   start,
		End:     end,
		HasPrev: page > 0,
		HasNext: page < pages-1,
	}
}
