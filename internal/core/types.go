package core

import "time"

// PageDescriptor is the normalized view of one fetched listing page.
type PageDescriptor struct {
	ItemCount   int  `json:"item_count"`
	HasNextPage bool `json:"has_next_page"`
}

// Terminal reports whether the page is the last one the API will serve.
func (p PageDescriptor) Terminal() bool {
	return !p.HasNextPage
}

// ResumeRecord is the persisted boundary for a collection.
type ResumeRecord struct {
	Collection string    `json:"collection"`
	LastPage   int       `json:"last_page"`
	PageSize   int       `json:"page_size"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// CollectionResult reports the outcome of one collector run.
type CollectionResult struct {
	Collector string        `json:"collector"`
	Total     int64         `json:"total"`
	Err       error         `json:"-"`
	Error     string        `json:"error,omitempty"`
	StartedAt time.Time     `json:"started_at"`
	Duration  time.Duration `json:"duration"`
}

// OK reports whether the collector completed without error.
func (r CollectionResult) OK() bool {
	return r.Err == nil
}

// TotalCount computes the item count of a collection from its page size and
// the located boundary.
func TotalCount(pageSize, lastPage, itemsOnLastPage int) int64 {
	if lastPage < 1 {
		return int64(itemsOnLastPage)
	}
	return int64(pageSize)*int64(lastPage-1) + int64(itemsOnLastPage)
}
