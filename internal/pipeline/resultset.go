package pipeline

import "github.com/FranksOps/coursefinder/internal/ranking"

// DefaultPageSize is how many results a page shows.
const DefaultPageSize = 5

// ResultSet is the outcome of one search together with the caller's
// position when paging through it. Pages are views over Results; nothing is
// fetched again.
type ResultSet struct {
	// Query is the provider query that produced the results.
	Query   string           `json:"query"`
	Results []ranking.Result `json:"results"`
	// Survivors counts results that passed filtering, before the cap.
	Survivors int `json:"survivors"`
	PageSize  int `json:"page_size"`
	Page      int `json:"page"`
}

// Len is the number of returned results.
func (rs *ResultSet) Len() int {
	if rs == nil {
		return 0
	}
	return len(rs.Results)
}

// More reports how many survivors were cut by the cap.
func (rs *ResultSet) More() int {
	if rs == nil {
		return 0
	}
	return max(rs.Survivors-len(rs.Results), 0)
}

func (rs *ResultSet) pageSize() int {
	if rs.PageSize > 0 {
		return rs.PageSize
	}
	return DefaultPageSize
}

// PageCount is the number of pages, at least one.
func (rs *ResultSet) PageCount() int {
	if rs == nil || len(rs.Results) == 0 {
		return 1
	}
	size := rs.pageSize()
	return (len(rs.Results) + size - 1) / size
}

// Items returns the results on the current page.
func (rs *ResultSet) Items() []ranking.Result {
	if rs == nil || len(rs.Results) == 0 {
		return nil
	}
	size := rs.pageSize()
	start := rs.Page * size
	if start < 0 || start >= len(rs.Results) {
		return nil
	}
	end := min(start+size, len(rs.Results))
	return rs.Results[start:end]
}

// SetPage moves to page p, reporting false if p is out of range.
func (rs *ResultSet) SetPage(p int) bool {
	if rs == nil || p < 0 || p >= rs.PageCount() {
		return false
	}
	rs.Page = p
	return true
}

// Next advances one page.
func (rs *ResultSet) Next() bool {
	if rs == nil {
		return false
	}
	return rs.SetPage(rs.Page + 1)
}

// Prev goes back one page.
func (rs *ResultSet) Prev() bool {
	if rs == nil {
		return false
	}
	return rs.SetPage(rs.Page - 1)
}

// Result looks up a result by its absolute index.
func (rs *ResultSet) Result(i int) (ranking.Result, bool) {
	if rs == nil || i < 0 || i >= len(rs.Results) {
		return ranking.Result{}, false
	}
	return rs.Results[i], true
}
