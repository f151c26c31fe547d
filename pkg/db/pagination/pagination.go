package pagination

const (
	DefaultPageSize = 20
	MaxPageSize     = 100
	// MaxPage keeps Page*PageSize far from int overflow.
	MaxPage = 1_000_000
)

// Pagination is a 1-based offset page request.
type Pagination struct {
	Page     int `form:"page,default=1"`
	PageSize int `form:"page_size,default=20"`
}

type PageInfo struct {
	Page       int   `json:"page"`
	PageSize   int   `json:"page_size"`
	Total      int64 `json:"total"`
	TotalPages int   `json:"total_pages"`
	HasMore    bool  `json:"has_more"`
}

// Normalize clamps Page to [1, MaxPage] and PageSize to [1, MaxPageSize].
func (p Pagination) Normalize() Pagination {
	if p.Page <= 0 {
		p.Page = 1
	}
	if p.Page > MaxPage {
		p.Page = MaxPage
	}
	if p.PageSize <= 0 {
		p.PageSize = DefaultPageSize
	}
	if p.PageSize > MaxPageSize {
		p.PageSize = MaxPageSize
	}
	return p
}

func (p Pagination) Offset() int {
	n := p.Normalize()
	return int(int64(n.Page-1) * int64(n.PageSize))
}

func (p Pagination) Limit() int {
	return p.Normalize().PageSize
}

func BuildPageInfo(p Pagination, total int64) PageInfo {
	n := p.Normalize()
	totalPages := 0
	if total > 0 {
		totalPages = int((total + int64(n.PageSize) - 1) / int64(n.PageSize))
	}
	return PageInfo{
		Page:       n.Page,
		PageSize:   n.PageSize,
		Total:      total,
		TotalPages: totalPages,
		HasMore:    int64(n.Page)*int64(n.PageSize) < total,
	}
}
