package feed

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/Sanskarlajurkar07/memeverse/internal/catalog"
	"github.com/Sanskarlajurkar07/memeverse/internal/memes"
	"github.com/Sanskarlajurkar07/memeverse/internal/mutations"
	"github.com/Sanskarlajurkar07/memeverse/internal/storage"
)

var testNow = time.Unix(1700000000, 0).UTC()

type stubFetcher struct {
	mu           sync.Mutex
	items        []memes.Item
	err          error
	catalogCalls int
	catalogGate  chan struct{}
	itemGates    map[string]chan struct{}
}

func (f *stubFetcher) FetchCatalog(ctx context.Context) ([]memes.Item, error) {
	f.mu.Lock()
	f.catalogCalls++
	gate := f.catalogGate
	f.mu.Unlock()
	if gate != nil {
		<-gate
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	return memes.CloneItems(f.items), nil
}

func (f *stubFetcher) FetchOne(ctx context.Context, itemID memes.ItemID) (memes.Item, error) {
	f.mu.Lock()
	gate := f.itemGates[itemID.String()]
	f.mu.Unlock()
	if gate != nil {
		<-gate
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return memes.Item{}, f.err
	}
	for _, item := range f.items {
		if item.ID == itemID.String() {
			return item.Clone(), nil
		}
	}
	return memes.Item{}, fmt.Errorf("%w: %s", catalog.ErrNotFound, itemID)
}

func (f *stubFetcher) setError(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.err = err
}

func (f *stubFetcher) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.catalogCalls
}

type recordingNotifier struct {
	mu     sync.Mutex
	events []Event
}

func (n *recordingNotifier) Publish(event Event) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, event)
}

func (n *recordingNotifier) kinds() []EventKind {
	n.mu.Lock()
	defer n.mu.Unlock()
	kinds := make([]EventKind, 0, len(n.events))
	for _, event := range n.events {
		kinds = append(kinds, event.Kind)
	}
	return kinds
}

func catalogItem(id string, likes int, category memes.Category) memes.Item {
	return memes.Item{
		ID:           id,
		Title:        "Meme " + id,
		MediaURL:     "https://i.example.com/" + id + ".jpg",
		Width:        600,
		Height:       400,
		CaptionSlots: 2,
		Captions:     []string{},
		LikeCount:    likes,
		Comments:     []memes.Comment{},
		CreatedAt:    testNow.Add(-time.Hour),
		Category:     category,
	}
}

func uploadItem(id, title string) memes.Item {
	item := catalogItem(id, 0, memes.CategoryNew)
	item.Title = title
	item.OwnerID = "user-1"
	return item
}

func comment(id, text string) memes.Comment {
	return memes.Comment{
		ID:        id,
		Text:      text,
		Author:    memes.Author{ID: "user-1", DisplayName: "Demo User", AvatarURL: "/placeholder.svg"},
		CreatedAt: testNow,
	}
}

func newTestSession(t *testing.T, fetcher catalog.Fetcher, store storage.Store, notifier Notifier) *Session {
	t.Helper()
	session, err := NewSession(context.Background(), SessionConfig{
		UserID:   "user-1",
		Fetcher:  fetcher,
		Log:      mutations.NewLog(mutations.LogConfig{Store: store}),
		Notifier: notifier,
		Clock:    func() time.Time { return testNow },
	})
	if err != nil {
		t.Fatalf("new session: %v", err)
	}
	return session
}

func waitDone(t *testing.T, done <-chan struct{}) {
	t.Helper()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatalf("timed out waiting for fetch to complete")
	}
}

func loadCatalog(t *testing.T, session *Session) {
	t.Helper()
	waitDone(t, session.LoadCatalog(context.Background()))
}

func findItem(items []memes.Item, id string) (memes.Item, int) {
	count := 0
	var found memes.Item
	for _, item := range items {
		if item.ID == id {
			if count == 0 {
				found = item
			}
			count++
		}
	}
	return found, count
}

func TestNewSessionValidatesDependencies(t *testing.T) {
	_, err := NewSession(context.Background(), SessionConfig{Log: mutations.NewLog(mutations.LogConfig{})})
	var serviceErr *ServiceError
	if !errors.As(err, &serviceErr) || serviceErr.Code() != "feed.session.new.missing_fetcher" {
		t.Fatalf("expected missing fetcher error, got %v", err)
	}
	_, err = NewSession(context.Background(), SessionConfig{Fetcher: &stubFetcher{}})
	if !errors.As(err, &serviceErr) || serviceErr.Code() != "feed.session.new.missing_mutation_log" {
		t.Fatalf("expected missing log error, got %v", err)
	}
}

func TestLoadCatalogMergesAndDerivesTrending(t *testing.T) {
	items := make([]memes.Item, 0, 14)
	for index := 0; index < 12; index++ {
		items = append(items, catalogItem(fmt.Sprintf("t%02d", index), index, memes.CategoryTrending))
	}
	items = append(items, catalogItem("c1", 3, memes.CategoryClassic), catalogItem("n1", 4, memes.CategoryNew))
	fetcher := &stubFetcher{items: items}
	session := newTestSession(t, fetcher, storage.NewMemoryStore(), nil)

	if status := session.CatalogStatus().Status; status != StatusIdle {
		t.Fatalf("expected idle before load, got %s", status)
	}
	loadCatalog(t, session)

	if status := session.CatalogStatus().Status; status != StatusSucceeded {
		t.Fatalf("expected succeeded, got %s", status)
	}
	if got := len(session.AllItems()); got != 14 {
		t.Fatalf("expected 14 items, got %d", got)
	}
	trending := session.TrendingItems()
	if len(trending) != DefaultTrendingLimit {
		t.Fatalf("expected trending capped at %d, got %d", DefaultTrendingLimit, len(trending))
	}
	for index, item := range trending {
		if item.ID != fmt.Sprintf("t%02d", index) {
			t.Fatalf("expected fetched order in trending, position %d was %s", index, item.ID)
		}
	}
}

func TestLoadCatalogIsOncePerSession(t *testing.T) {
	gate := make(chan struct{})
	fetcher := &stubFetcher{items: []memes.Item{catalogItem("m1", 1, memes.CategoryNew)}, catalogGate: gate}
	session := newTestSession(t, fetcher, nil, nil)

	first := session.LoadCatalog(context.Background())
	second := session.LoadCatalog(context.Background())
	if session.CatalogStatus().Status != StatusLoading {
		t.Fatalf("expected loading while gated")
	}
	if session.Invalidate() {
		t.Fatalf("expected invalidate to be refused while loading")
	}
	close(gate)
	waitDone(t, first)
	waitDone(t, second)
	waitDone(t, session.LoadCatalog(context.Background()))

	if calls := fetcher.calls(); calls != 1 {
		t.Fatalf("expected exactly one fetch, got %d", calls)
	}

	waitDone(t, session.ReloadCatalog(context.Background()))
	if calls := fetcher.calls(); calls != 2 {
		t.Fatalf("expected reload to fetch again, got %d", calls)
	}
}

func TestDoubleToggleRestoresLikeCount(t *testing.T) {
	fetcher := &stubFetcher{items: []memes.Item{catalogItem("m1", 42, memes.CategoryTrending)}}
	session := newTestSession(t, fetcher, storage.NewMemoryStore(), nil)
	loadCatalog(t, session)
	ctx := context.Background()

	liked, err := session.ToggleLike(ctx, "m1")
	if err != nil || !liked {
		t.Fatalf("expected like, got liked=%v err=%v", liked, err)
	}
	item, _ := findItem(session.AllItems(), "m1")
	if item.LikeCount != 43 {
		t.Fatalf("expected 43 likes, got %d", item.LikeCount)
	}

	liked, err = session.ToggleLike(ctx, "m1")
	if err != nil || liked {
		t.Fatalf("expected unlike, got liked=%v err=%v", liked, err)
	}
	item, _ = findItem(session.AllItems(), "m1")
	trendingItem, _ := findItem(session.TrendingItems(), "m1")
	if item.LikeCount != 42 || trendingItem.LikeCount != 42 {
		t.Fatalf("expected 42 likes everywhere, got all=%d trending=%d", item.LikeCount, trendingItem.LikeCount)
	}
	if session.IsLiked(ctx, "m1") {
		t.Fatalf("expected membership restored")
	}
}

func TestToggleLikePatchesEveryViewOnce(t *testing.T) {
	fetcher := &stubFetcher{items: []memes.Item{catalogItem("m1", 10, memes.CategoryTrending)}}
	session := newTestSession(t, fetcher, storage.NewMemoryStore(), nil)
	loadCatalog(t, session)
	done, err := session.LoadItem(context.Background(), "m1")
	if err != nil {
		t.Fatalf("load item: %v", err)
	}
	waitDone(t, done)

	if _, err := session.ToggleLike(context.Background(), "m1"); err != nil {
		t.Fatalf("toggle: %v", err)
	}

	all, count := findItem(session.AllItems(), "m1")
	trending, _ := findItem(session.TrendingItems(), "m1")
	current, ok := session.CurrentItem()
	if count != 1 || !ok {
		t.Fatalf("expected the item in both views")
	}
	if all.LikeCount != 11 || trending.LikeCount != 11 || current.LikeCount != 11 {
		t.Fatalf("expected 11 likes in each view, got all=%d trending=%d current=%d",
			all.LikeCount, trending.LikeCount, current.LikeCount)
	}
}

func TestToggleLikeFloorsAtZero(t *testing.T) {
	store := storage.NewMemoryStore()
	fetcher := &stubFetcher{items: []memes.Item{catalogItem("m1", 0, memes.CategoryNew)}}
	log := mutations.NewLog(mutations.LogConfig{Store: store})
	session, err := NewSession(context.Background(), SessionConfig{Fetcher: fetcher, Log: log})
	if err != nil {
		t.Fatalf("new session: %v", err)
	}
	loadCatalog(t, session)
	log.ToggleLike(context.Background(), "m1")

	liked, err := session.ToggleLike(context.Background(), "m1")
	if err != nil || liked {
		t.Fatalf("expected unlike, got liked=%v err=%v", liked, err)
	}
	item, _ := findItem(session.AllItems(), "m1")
	if item.LikeCount != 0 {
		t.Fatalf("expected like count floored at 0, got %d", item.LikeCount)
	}
}

func TestToggleLikeOnUnheldItemIsDurable(t *testing.T) {
	store := storage.NewMemoryStore()
	fetcher := &stubFetcher{items: []memes.Item{catalogItem("m7", 5, memes.CategoryNew)}}
	session := newTestSession(t, fetcher, store, nil)

	if _, err := session.ToggleLike(context.Background(), "m7"); err != nil {
		t.Fatalf("toggle: %v", err)
	}

	restarted := newTestSession(t, fetcher, store, nil)
	if !restarted.IsLiked(context.Background(), "m7") {
		t.Fatalf("expected like to survive restart")
	}
	loadCatalog(t, restarted)
	item, _ := findItem(restarted.AllItems(), "m7")
	if item.LikeCount != 6 {
		t.Fatalf("expected liked overlay on fetched item, got %d", item.LikeCount)
	}
	if liked := restarted.LikedItems(context.Background()); len(liked) != 1 || liked[0].ID != "m7" {
		t.Fatalf("expected m7 in liked view, got %+v", liked)
	}
}

func TestToggleLikeRejectsEmptyID(t *testing.T) {
	session := newTestSession(t, &stubFetcher{}, nil, nil)
	if _, err := session.ToggleLike(context.Background(), "  "); !errors.Is(err, memes.ErrInvalidItemID) {
		t.Fatalf("expected invalid item id, got %v", err)
	}
}

func TestUploadThenCatalogKeepsUploadedVersion(t *testing.T) {
	store := storage.NewMemoryStore()
	fetcher := &stubFetcher{items: []memes.Item{
		catalogItem("m1", 1, memes.CategoryNew),
		catalogItem("u1", 99, memes.CategoryTrending),
	}}
	session := newTestSession(t, fetcher, store, nil)

	if err := session.AddUpload(context.Background(), uploadItem("u1", "My Upload")); err != nil {
		t.Fatalf("add upload: %v", err)
	}
	loadCatalog(t, session)

	item, count := findItem(session.AllItems(), "u1")
	if count != 1 {
		t.Fatalf("expected exactly one u1, got %d", count)
	}
	if item.Title != "My Upload" || item.OwnerID != "user-1" {
		t.Fatalf("expected uploaded version retained, got %+v", item)
	}
	if session.AllItems()[0].ID != "u1" {
		t.Fatalf("expected uploads first")
	}
}

func TestUploadsPrependedMostRecentFirst(t *testing.T) {
	fetcher := &stubFetcher{items: []memes.Item{catalogItem("m1", 1, memes.CategoryTrending)}}
	session := newTestSession(t, fetcher, storage.NewMemoryStore(), nil)
	loadCatalog(t, session)

	trendingUpload := uploadItem("u1", "first")
	trendingUpload.Category = memes.CategoryTrending
	if err := session.AddUpload(context.Background(), trendingUpload); err != nil {
		t.Fatalf("add upload: %v", err)
	}
	if err := session.AddUpload(context.Background(), uploadItem("u2", "second")); err != nil {
		t.Fatalf("add upload: %v", err)
	}

	all := session.AllItems()
	if all[0].ID != "u2" || all[1].ID != "u1" || all[2].ID != "m1" {
		t.Fatalf("unexpected order %v", []string{all[0].ID, all[1].ID, all[2].ID})
	}
	uploads := session.UserUploads()
	if len(uploads) != 2 || uploads[0].ID != "u2" {
		t.Fatalf("unexpected uploads view %+v", uploads)
	}
	if _, count := findItem(session.TrendingItems(), "u1"); count != 0 {
		t.Fatalf("expected uploads to stay out of trending")
	}

	restarted := newTestSession(t, fetcher, nil, nil)
	if len(restarted.UserUploads()) != 0 {
		t.Fatalf("expected no uploads without a store")
	}
}

func TestAddUploadRejectsInvalidItem(t *testing.T) {
	session := newTestSession(t, &stubFetcher{}, nil, nil)
	invalid := uploadItem("u1", "")
	if err := session.AddUpload(context.Background(), invalid); !errors.Is(err, memes.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if len(session.AllItems()) != 0 || len(session.UserUploads()) != 0 {
		t.Fatalf("expected no state change")
	}
}

func TestCommentPersistsAcrossRestart(t *testing.T) {
	store := storage.NewMemoryStore()
	fetcher := &stubFetcher{items: []memes.Item{catalogItem("m1", 3, memes.CategoryTrending)}}
	session := newTestSession(t, fetcher, store, nil)
	loadCatalog(t, session)

	if err := session.AddComment(context.Background(), "m1", comment("c1", "lol")); err != nil {
		t.Fatalf("add comment: %v", err)
	}
	item, _ := findItem(session.AllItems(), "m1")
	if len(item.Comments) != 1 {
		t.Fatalf("expected comment on catalog entry")
	}
	trending, _ := findItem(session.TrendingItems(), "m1")
	if len(trending.Comments) != 0 {
		t.Fatalf("expected trending view untouched by comments")
	}

	restarted := newTestSession(t, fetcher, store, nil)
	loadCatalog(t, restarted)
	item, _ = findItem(restarted.AllItems(), "m1")
	if len(item.Comments) != 1 || item.Comments[0].ID != "c1" || item.Comments[0].Text != "lol" {
		t.Fatalf("expected c1 after restart, got %+v", item.Comments)
	}

	done, err := restarted.LoadItem(context.Background(), "m1")
	if err != nil {
		t.Fatalf("load item: %v", err)
	}
	waitDone(t, done)
	current, ok := restarted.CurrentItem()
	if !ok || len(current.Comments) != 1 {
		t.Fatalf("expected comment overlay on detail, got %+v", current)
	}
}

func TestAddCommentPatchesCurrentItem(t *testing.T) {
	fetcher := &stubFetcher{items: []memes.Item{catalogItem("m1", 3, memes.CategoryNew)}}
	session := newTestSession(t, fetcher, storage.NewMemoryStore(), nil)
	done, err := session.LoadItem(context.Background(), "m1")
	if err != nil {
		t.Fatalf("load item: %v", err)
	}
	waitDone(t, done)

	if err := session.AddComment(context.Background(), "m1", comment("c1", "first")); err != nil {
		t.Fatalf("add comment: %v", err)
	}
	if err := session.AddComment(context.Background(), "m1", comment("c2", "first")); err != nil {
		t.Fatalf("duplicate text must be accepted: %v", err)
	}
	current, _ := session.CurrentItem()
	if len(current.Comments) != 2 || current.Comments[1].ID != "c2" {
		t.Fatalf("expected comments in insertion order, got %+v", current.Comments)
	}
}

func TestAddCommentRejectsEmptyText(t *testing.T) {
	fetcher := &stubFetcher{items: []memes.Item{catalogItem("m1", 3, memes.CategoryNew)}}
	session := newTestSession(t, fetcher, storage.NewMemoryStore(), nil)
	loadCatalog(t, session)

	err := session.AddComment(context.Background(), "m1", comment("c1", " "))
	if !errors.Is(err, memes.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	item, _ := findItem(session.AllItems(), "m1")
	if len(item.Comments) != 0 {
		t.Fatalf("expected no comment applied")
	}
}

func TestFailedReloadLeavesItemsUntouched(t *testing.T) {
	fetcher := &stubFetcher{items: []memes.Item{catalogItem("m1", 1, memes.CategoryNew), catalogItem("m2", 2, memes.CategoryNew)}}
	session := newTestSession(t, fetcher, nil, nil)
	loadCatalog(t, session)
	before := session.AllItems()

	fetcher.setError(fmt.Errorf("%w: connection refused", catalog.ErrNetwork))
	waitDone(t, session.ReloadCatalog(context.Background()))

	state := session.CatalogStatus()
	if state.Status != StatusFailed || state.Error == "" {
		t.Fatalf("expected failed status with message, got %+v", state)
	}
	if session.LastError() != state.Error {
		t.Fatalf("expected last error to match status message")
	}
	after := session.AllItems()
	if len(after) != len(before) || after[0].ID != before[0].ID || after[1].ID != before[1].ID {
		t.Fatalf("expected items unchanged after failure")
	}
}

func TestReloadMovesSettledCatalogStraightToLoading(t *testing.T) {
	fetcher := &stubFetcher{items: []memes.Item{catalogItem("m1", 1, memes.CategoryNew)}}
	notifier := &recordingNotifier{}
	session := newTestSession(t, fetcher, nil, notifier)
	loadCatalog(t, session)

	stop := make(chan struct{})
	sawIdle := make(chan bool, 1)
	go func() {
		idle := false
		for {
			select {
			case <-stop:
				sawIdle <- idle
				return
			default:
			}
			if session.CatalogStatus().Status == StatusIdle {
				idle = true
			}
		}
	}()
	for range 50 {
		waitDone(t, session.ReloadCatalog(context.Background()))
	}
	close(stop)
	if <-sawIdle {
		t.Fatalf("expected reload never to expose an idle catalog status")
	}

	notifier.mu.Lock()
	defer notifier.mu.Unlock()
	for _, event := range notifier.events {
		if event.Kind == EventCatalogStatus && event.Status == StatusIdle {
			t.Fatalf("unexpected idle catalog event %+v", event)
		}
	}
	if fetcher.calls() != 51 {
		t.Fatalf("expected one fetch per reload, got %d", fetcher.calls())
	}
}

func TestReloadDuringFetchJoinsInFlightFetch(t *testing.T) {
	gate := make(chan struct{})
	fetcher := &stubFetcher{items: []memes.Item{catalogItem("m1", 1, memes.CategoryNew)}, catalogGate: gate}
	session := newTestSession(t, fetcher, nil, nil)

	first := session.LoadCatalog(context.Background())
	second := session.ReloadCatalog(context.Background())
	if session.CatalogStatus().Status != StatusLoading {
		t.Fatalf("expected loading status while the fetch is gated")
	}
	close(gate)
	waitDone(t, first)
	waitDone(t, second)
	if fetcher.calls() != 1 {
		t.Fatalf("expected reload to join the in-flight fetch, got %d fetches", fetcher.calls())
	}
}

func TestFirstLoadFailureLeavesCatalogEmpty(t *testing.T) {
	fetcher := &stubFetcher{err: fmt.Errorf("%w: missing success flag", catalog.ErrUpstreamFormat)}
	session := newTestSession(t, fetcher, nil, nil)
	loadCatalog(t, session)

	if session.CatalogStatus().Status != StatusFailed {
		t.Fatalf("expected failed status")
	}
	if len(session.AllItems()) != 0 {
		t.Fatalf("expected empty catalog")
	}
	waitDone(t, session.LoadCatalog(context.Background()))
	if fetcher.calls() != 1 {
		t.Fatalf("expected no automatic retry after failure")
	}
}

func TestLoadItemNotFoundAffectsDetailOnly(t *testing.T) {
	fetcher := &stubFetcher{items: []memes.Item{catalogItem("m1", 1, memes.CategoryNew)}}
	session := newTestSession(t, fetcher, nil, nil)
	loadCatalog(t, session)

	done, err := session.LoadItem(context.Background(), "missing")
	if err != nil {
		t.Fatalf("load item: %v", err)
	}
	waitDone(t, done)

	if session.DetailStatus().Status != StatusFailed {
		t.Fatalf("expected failed detail status")
	}
	if session.CatalogStatus().Status != StatusSucceeded {
		t.Fatalf("expected catalog status unaffected")
	}
	if _, ok := session.CurrentItem(); ok {
		t.Fatalf("expected no current item")
	}
}

func TestLoadItemFallsBackToUpload(t *testing.T) {
	fetcher := &stubFetcher{}
	session := newTestSession(t, fetcher, storage.NewMemoryStore(), nil)
	if err := session.AddUpload(context.Background(), uploadItem("u1", "Local")); err != nil {
		t.Fatalf("add upload: %v", err)
	}

	done, err := session.LoadItem(context.Background(), "u1")
	if err != nil {
		t.Fatalf("load item: %v", err)
	}
	waitDone(t, done)

	current, ok := session.CurrentItem()
	if !ok || current.Title != "Local" || session.DetailStatus().Status != StatusSucceeded {
		t.Fatalf("expected uploaded item in detail slot, got %+v", current)
	}
}

func TestLoadItemLastToCompleteWins(t *testing.T) {
	gateA := make(chan struct{})
	gateB := make(chan struct{})
	fetcher := &stubFetcher{
		items:     []memes.Item{catalogItem("a", 1, memes.CategoryNew), catalogItem("b", 2, memes.CategoryNew)},
		itemGates: map[string]chan struct{}{"a": gateA, "b": gateB},
	}
	session := newTestSession(t, fetcher, nil, nil)

	doneA, _ := session.LoadItem(context.Background(), "a")
	doneB, _ := session.LoadItem(context.Background(), "b")
	close(gateB)
	waitDone(t, doneB)
	close(gateA)
	waitDone(t, doneA)

	current, _ := session.CurrentItem()
	if current.ID != "a" {
		t.Fatalf("expected the stale response to be applied last, got %s", current.ID)
	}
}

func TestSessionPublishesEvents(t *testing.T) {
	notifier := &recordingNotifier{}
	fetcher := &stubFetcher{items: []memes.Item{catalogItem("m1", 1, memes.CategoryNew)}}
	session := newTestSession(t, fetcher, nil, notifier)

	loadCatalog(t, session)
	if _, err := session.ToggleLike(context.Background(), "m1"); err != nil {
		t.Fatalf("toggle: %v", err)
	}

	kinds := notifier.kinds()
	expected := []EventKind{EventCatalogStatus, EventCatalogStatus, EventItemLiked}
	if len(kinds) != len(expected) {
		t.Fatalf("expected %v, got %v", expected, kinds)
	}
	for index := range expected {
		if kinds[index] != expected[index] {
			t.Fatalf("expected %v, got %v", expected, kinds)
		}
	}
	notifier.mu.Lock()
	liked := notifier.events[2]
	notifier.mu.Unlock()
	if liked.Liked == nil || !*liked.Liked || liked.LikeCount == nil || *liked.LikeCount != 2 {
		t.Fatalf("unexpected like event %+v", liked)
	}
}

func TestViewsReturnCopies(t *testing.T) {
	fetcher := &stubFetcher{items: []memes.Item{catalogItem("m1", 1, memes.CategoryTrending)}}
	session := newTestSession(t, fetcher, nil, nil)
	loadCatalog(t, session)

	items := session.AllItems()
	items[0].LikeCount = 500
	items[0].Comments = append(items[0].Comments, comment("x", "y"))

	fresh, _ := findItem(session.AllItems(), "m1")
	if fresh.LikeCount != 1 || len(fresh.Comments) != 0 {
		t.Fatalf("expected session state to be isolated from callers")
	}
}
