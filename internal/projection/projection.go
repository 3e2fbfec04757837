// Package projection derives filtered, searched, sorted and paginated views from a merged
// catalog without mutating it.
package projection

import (
	"slices"
	"strings"

	"github.com/Sanskarlajurkar07/memeverse/internal/memes"
)

// DefaultPageSize is used when a query carries no positive page size.
const DefaultPageSize = 12

// SortKey names an ordering over items.
type SortKey string

const (
	// SortLikes orders by likeCount descending.
	SortLikes SortKey = "likes"
	// SortNewest orders by createdAt descending.
	SortNewest SortKey = "newest"
	// SortComments orders by comment count descending.
	SortComments SortKey = "comments"
)

// FilterTrending passes every item through.
const FilterTrending = string(memes.CategoryTrending)

// ParseSortKey maps raw input to a SortKey, falling back to SortLikes.
func ParseSortKey(raw string) SortKey {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case string(SortNewest), "date", "createdat":
		return SortNewest
	case string(SortComments), "commentcount":
		return SortComments
	default:
		return SortLikes
	}
}

// Query describes one projection request.
type Query struct {
	Filter   string
	Search   string
	Sort     SortKey
	PageSize int
	Page     int
}

// Page is a cumulative slice of the projected sequence.
type Page struct {
	Items   []memes.Item `json:"items"`
	HasMore bool         `json:"hasMore"`
	Total   int          `json:"total"`
}

func (q Query) normalized() Query {
	normalized := q
	normalized.Filter = strings.ToLower(strings.TrimSpace(q.Filter))
	if normalized.Filter == "" {
		normalized.Filter = FilterTrending
	}
	normalized.Search = strings.ToLower(strings.TrimSpace(q.Search))
	normalized.Sort = ParseSortKey(string(q.Sort))
	if normalized.PageSize < 1 {
		normalized.PageSize = DefaultPageSize
	}
	if normalized.Page < 1 {
		normalized.Page = 1
	}
	return normalized
}

// Project returns the first Page*PageSize items of the filtered and sorted sequence.
// The input slice is never modified.
func Project(items []memes.Item, query Query) Page {
	query = query.normalized()

	matched := make([]memes.Item, 0, len(items))
	for _, item := range items {
		if !matchesFilter(item, query.Filter) || !matchesSearch(item, query.Search) {
			continue
		}
		matched = append(matched, item)
	}
	sortItems(matched, query.Sort)

	total := len(matched)
	shown := query.Page * query.PageSize
	if shown > total || shown < 0 {
		shown = total
	}
	return Page{
		Items:   memes.CloneItems(matched[:shown]),
		HasMore: shown < total,
		Total:   total,
	}
}

// TopItems returns at most limit items ordered by likeCount descending.
func TopItems(items []memes.Item, limit int) []memes.Item {
	ranked := append([]memes.Item(nil), items...)
	sortItems(ranked, SortLikes)
	if limit >= 0 && limit < len(ranked) {
		ranked = ranked[:limit]
	}
	return memes.CloneItems(ranked)
}

func matchesFilter(item memes.Item, filter string) bool {
	if filter == FilterTrending {
		return true
	}
	return string(item.Category) == filter
}

func matchesSearch(item memes.Item, search string) bool {
	if search == "" {
		return true
	}
	return strings.Contains(strings.ToLower(item.Title), search)
}

// sortItems orders items in place; equal keys keep their input order.
func sortItems(items []memes.Item, key SortKey) {
	var compare func(left, right memes.Item) int
	switch key {
	case SortNewest:
		compare = func(left, right memes.Item) int {
			return right.CreatedAt.Compare(left.CreatedAt)
		}
	case SortComments:
		compare = func(left, right memes.Item) int {
			return right.CommentCount() - left.CommentCount()
		}
	default:
		compare = func(left, right memes.Item) int {
			return right.LikeCount - left.LikeCount
		}
	}
	slices.SortStableFunc(items, compare)
}
