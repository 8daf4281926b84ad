package data

const (
	DefaultMaxResults = 25
	MaxPageSize       = 500
)

// PageRequest selects a window of a result list. StartIndex is 1-based.
type PageRequest struct {
	StartIndex int `json:"startIndex" validate:"min=1"`
	MaxResults int `json:"maxResults" validate:"min=1,max=500"`
}

// DefaultPageRequest returns the first page with the default size.
func DefaultPageRequest() PageRequest {
	return PageRequest{StartIndex: 1, MaxResults: DefaultMaxResults}
}

// Offset is the zero-based offset of the first requested item.
func (p PageRequest) Offset() int {
	if p.StartIndex < 1 {
		return 0
	}
	return p.StartIndex - 1
}

// PagedResult is one page of a larger result set.
type PagedResult[T any] struct {
	Items        []T `json:"items"`
	StartIndex   int `json:"startIndex"`
	PageSize     int `json:"pageSize"`
	TotalResults int `json:"totalResults"`
}

// NewPagedResult wraps items that were already paged by the caller.
func NewPagedResult[T any](items []T, req PageRequest, total int) PagedResult[T] {
	if items == nil {
		items = []T{}
	}
	if total < len(items) {
		total = len(items)
	}
	return PagedResult[T]{
		Items:        items,
		StartIndex:   req.Offset() + 1,
		PageSize:     req.MaxResults,
		TotalResults: total,
	}
}

// Page slices an in-memory list. A start index past the end yields an empty
// page that still reports the full total.
func Page[T any](all []T, req PageRequest) PagedResult[T] {
	start := req.Offset()
	if start > len(all) {
		start = len(all)
	}
	end := len(all)
	if req.MaxResults > 0 && start+req.MaxResults < end {
		end = start + req.MaxResults
	}

	items := make([]T, end-start)
	copy(items, all[start:end])
	return NewPagedResult(items, req, len(all))
}
