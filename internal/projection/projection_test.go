package projection_test

import (
	"testing"
	"time"

	"github.com/Sanskarlajurkar07/memeverse/internal/memes"
	"github.com/Sanskarlajurkar07/memeverse/internal/projection"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var baseTime = time.Unix(1700000000, 0).UTC()

func item(id string, likes int, category memes.Category) memes.Item {
	return memes.Item{ID: id, Title: "Meme " + id, LikeCount: likes, Category: category, CreatedAt: baseTime}
}

func ids(items []memes.Item) []string {
	out := make([]string, 0, len(items))
	for _, entry := range items {
		out = append(out, entry.ID)
	}
	return out
}

func TestSortByLikesIsStable(t *testing.T) {
	input := []memes.Item{
		item("a", 5, memes.CategoryNew),
		item("b", 5, memes.CategoryNew),
		item("c", 9, memes.CategoryNew),
	}

	page := projection.Project(input, projection.Query{Sort: projection.SortLikes})

	assert.Equal(t, []string{"c", "a", "b"}, ids(page.Items))
	assert.Equal(t, []string{"a", "b", "c"}, ids(input), "input must not be reordered")
}

func TestSortByNewestAndComments(t *testing.T) {
	older := item("older", 1, memes.CategoryNew)
	older.CreatedAt = baseTime.Add(-time.Hour)
	newer := item("newer", 1, memes.CategoryNew)
	newer.Comments = []memes.Comment{{ID: "c1", Text: "x"}, {ID: "c2", Text: "y"}}
	middle := item("middle", 1, memes.CategoryNew)
	middle.CreatedAt = baseTime.Add(-time.Minute)
	middle.Comments = []memes.Comment{{ID: "c3", Text: "z"}}
	input := []memes.Item{older, newer, middle}

	byDate := projection.Project(input, projection.Query{Sort: projection.SortNewest})
	assert.Equal(t, []string{"newer", "middle", "older"}, ids(byDate.Items))

	byComments := projection.Project(input, projection.Query{Sort: projection.SortComments})
	assert.Equal(t, []string{"newer", "middle", "older"}, ids(byComments.Items))
}

func TestPaginationIsCumulative(t *testing.T) {
	input := []memes.Item{
		item("1", 50, memes.CategoryNew),
		item("2", 40, memes.CategoryNew),
		item("3", 30, memes.CategoryNew),
		item("4", 20, memes.CategoryNew),
		item("5", 10, memes.CategoryNew),
	}

	first := projection.Project(input, projection.Query{PageSize: 2, Page: 1})
	second := projection.Project(input, projection.Query{PageSize: 2, Page: 2})
	third := projection.Project(input, projection.Query{PageSize: 2, Page: 3})

	require.Len(t, first.Items, 2)
	assert.True(t, first.HasMore)
	require.Len(t, second.Items, 4)
	assert.Equal(t, ids(first.Items), ids(second.Items)[:2])
	require.Len(t, third.Items, 5)
	assert.False(t, third.HasMore)
	assert.Equal(t, 5, third.Total)
}

func TestFilterSemantics(t *testing.T) {
	input := []memes.Item{
		item("t", 1, memes.CategoryTrending),
		item("n", 2, memes.CategoryNew),
		item("c", 3, memes.CategoryClassic),
		item("r", 4, memes.CategoryRandom),
	}

	testCases := []struct {
		name   string
		filter string
		want   []string
	}{
		{name: "trending passes everything", filter: "trending", want: []string{"r", "c", "n", "t"}},
		{name: "empty behaves as trending", filter: "", want: []string{"r", "c", "n", "t"}},
		{name: "exact category", filter: "classic", want: []string{"c"}},
		{name: "case insensitive category", filter: " NEW ", want: []string{"n"}},
		{name: "unknown category", filter: "spicy", want: []string{}},
	}

	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			page := projection.Project(input, projection.Query{Filter: testCase.filter})
			assert.Equal(t, testCase.want, ids(page.Items))
		})
	}
}

func TestSearchIsCaseInsensitiveSubstring(t *testing.T) {
	drake := item("d", 1, memes.CategoryNew)
	drake.Title = "Drake Hotline Bling"
	buttons := item("b", 2, memes.CategoryNew)
	buttons.Title = "Two Buttons"

	page := projection.Project([]memes.Item{drake, buttons}, projection.Query{Search: "  hotLINE "})
	assert.Equal(t, []string{"d"}, ids(page.Items))

	all := projection.Project([]memes.Item{drake, buttons}, projection.Query{Search: ""})
	assert.Len(t, all.Items, 2)
}

func TestQueryDefaults(t *testing.T) {
	input := make([]memes.Item, 0, 20)
	for index := 0; index < 20; index++ {
		input = append(input, item(string(rune('a'+index)), index, memes.CategoryNew))
	}

	page := projection.Project(input, projection.Query{Page: -3, PageSize: 0, Sort: "bogus"})
	assert.Len(t, page.Items, projection.DefaultPageSize)
	assert.True(t, page.HasMore)
	assert.Equal(t, "t", page.Items[0].ID, "unknown sort falls back to likes")
}

func TestProjectionDoesNotAliasInput(t *testing.T) {
	source := item("a", 1, memes.CategoryNew)
	source.Captions = []string{"top"}
	input := []memes.Item{source}

	page := projection.Project(input, projection.Query{})
	page.Items[0].Captions[0] = "changed"
	page.Items[0].LikeCount = 100

	assert.Equal(t, "top", input[0].Captions[0])
	assert.Equal(t, 1, input[0].LikeCount)
}

func TestTopItems(t *testing.T) {
	input := []memes.Item{
		item("a", 5, memes.CategoryNew),
		item("b", 7, memes.CategoryNew),
		item("c", 5, memes.CategoryNew),
	}
	assert.Equal(t, []string{"b", "a"}, ids(projection.TopItems(input, 2)))
	assert.Equal(t, []string{"b", "a", "c"}, ids(projection.TopItems(input, 10)))
	assert.Equal(t, []string{"a", "b", "c"}, ids(input))
}

func TestParseSortKey(t *testing.T) {
	assert.Equal(t, projection.SortNewest, projection.ParseSortKey("Newest"))
	assert.Equal(t, projection.SortComments, projection.ParseSortKey("comments"))
	assert.Equal(t, projection.SortLikes, projection.ParseSortKey(""))
}
