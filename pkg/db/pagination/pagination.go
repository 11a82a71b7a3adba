package pagination

// Pagination is zero-based page/size paging as accepted on list endpoints.
type Pagination struct {
	Page int `form:"page"`
	Size int `form:"size"`
}

// Normalize clamps the page to zero or above and the size into (0, max].
func (p Pagination) Normalize(defaultSize, maxSize int) Pagination {
	if p.Page < 0 {
		p.Page = 0
	}
	if p.Size <= 0 {
		p.Size = defaultSize
	}
	if maxSize > 0 && p.Size > maxSize {
		p.Size = maxSize
	}
	return p
}

func (p Pagination) Offset() int {
	return p.Page * p.Size
}

// Window returns the [start, end) bounds of the page within a slice of n items.
func (p Pagination) Window(n int) (int, int) {
	start := min(p.Offset(), n)
	end := min(start+p.Size, n)
	return start, end
}

// TotalPages rounds up; an empty result has zero pages.
func TotalPages(total int64, size int) int {
	if total <= 0 || size <= 0 {
		return 0
	}
	return int((total + int64(size) - 1) / int64(size))
}
