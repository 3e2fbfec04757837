// Package feed holds the per-user reconciling cache: the merged catalog, the trending
// subset, the detail slot and the status of each logical query.
package feed

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/Sanskarlajurkar07/memeverse/internal/catalog"
	"github.com/Sanskarlajurkar07/memeverse/internal/memes"
	"github.com/Sanskarlajurkar07/memeverse/internal/metrics"
	"github.com/Sanskarlajurkar07/memeverse/internal/mutations"
	"go.uber.org/zap"
)

// DefaultTrendingLimit caps the trending view.
const DefaultTrendingLimit = 10

// QueryStatus is the fetch state of one logical query.
type QueryStatus string

const (
	StatusIdle      QueryStatus = "idle"
	StatusLoading   QueryStatus = "loading"
	StatusSucceeded QueryStatus = "succeeded"
	StatusFailed    QueryStatus = "failed"
)

// QueryState pairs a status with the message of the last failure.
type QueryState struct {
	Status   QueryStatus `json:"status"`
	Error    string      `json:"error,omitempty"`
	NotFound bool        `json:"notFound,omitempty"`
}

const (
	opSessionNew = "feed.session.new"
	opToggleLike = "feed.toggle_like"
	opAddComment = "feed.add_comment"
	opAddUpload  = "feed.add_upload"
	opLoadItem   = "feed.load_item"
)

var (
	errMissingFetcher     = errors.New("catalog fetcher is required")
	errMissingMutationLog = errors.New("mutation log is required")
	noOpLogger            = zap.NewNop()
)

// ServiceError carries a stable code alongside the underlying cause.
type ServiceError struct {
	code string
	err  error
}

func (e *ServiceError) Error() string {
	if e.err == nil {
		return e.code
	}
	return fmt.Sprintf("%s: %v", e.code, e.err)
}

func (e *ServiceError) Unwrap() error {
	return e.err
}

func (e *ServiceError) Code() string {
	return e.code
}

func newServiceError(operation, reason string, cause error) error {
	code := fmt.Sprintf("%s.%s", operation, reason)
	return &ServiceError{code: code, err: cause}
}

// SessionConfig bundles the collaborators of a Session.
type SessionConfig struct {
	UserID        string
	Fetcher       catalog.Fetcher
	Log           *mutations.Log
	TrendingLimit int
	Notifier      Notifier
	Clock         func() time.Time
	Logger        *zap.Logger
	Metrics       *metrics.Recorder
}

// Session is the reconciling cache owned by one user. All state transitions happen under
// one mutex; fetches run on their own goroutines and apply their outcome when they complete.
type Session struct {
	mu            sync.Mutex
	userID        string
	fetcher       catalog.Fetcher
	log           *mutations.Log
	trendingLimit int
	notifier      Notifier
	clock         func() time.Time
	logger        *zap.Logger
	metrics       *metrics.Recorder

	allItems      []memes.Item
	trendingItems []memes.Item
	userUploads   []memes.Item
	currentItem   *memes.Item
	catalogState  QueryState
	detailState   QueryState
	lastError     string
	catalogDone   chan struct{}
}

// NewSession constructs a Session and reads the mutation log once.
func NewSession(ctx context.Context, cfg SessionConfig) (*Session, error) {
	if cfg.Fetcher == nil {
		return nil, newServiceError(opSessionNew, "missing_fetcher", errMissingFetcher)
	}
	if cfg.Log == nil {
		return nil, newServiceError(opSessionNew, "missing_mutation_log", errMissingMutationLog)
	}

	trendingLimit := cfg.TrendingLimit
	if trendingLimit <= 0 {
		trendingLimit = DefaultTrendingLimit
	}

	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}

	logger := cfg.Logger
	if logger == nil {
		logger = noOpLogger
	}

	snapshot := cfg.Log.LoadAll(ctx)
	uploads := make([]memes.Item, 0, len(snapshot.Uploads))
	for _, upload := range snapshot.Uploads {
		uploads = append(uploads, overlayItem(upload, snapshot, true))
	}

	return &Session{
		userID:        cfg.UserID,
		fetcher:       cfg.Fetcher,
		log:           cfg.Log,
		trendingLimit: trendingLimit,
		notifier:      cfg.Notifier,
		clock:         clock,
		logger:        logger,
		metrics:       cfg.Metrics,
		allItems:      []memes.Item{},
		trendingItems: []memes.Item{},
		userUploads:   uploads,
		catalogState:  QueryState{Status: StatusIdle},
		detailState:   QueryState{Status: StatusIdle},
	}, nil
}

// UserID reports the owner of the session.
func (s *Session) UserID() string {
	return s.userID
}

// LoadCatalog starts the catalog fetch when the catalog query is idle. The returned channel
// closes once the fetch outcome has been applied; when no fetch is started it is the channel
// of the in-flight fetch, or an already closed channel.
func (s *Session) LoadCatalog(ctx context.Context) <-chan struct{} {
	s.mu.Lock()
	if s.catalogState.Status != StatusIdle {
		done := s.catalogDone
		s.mu.Unlock()
		if done == nil {
			return closedChannel()
		}
		return done
	}
	done, event := s.beginCatalogLocked()
	s.mu.Unlock()
	s.publish(event)
	go s.fetchCatalog(ctx, done)
	return done
}

// Invalidate returns a settled catalog query to idle so the next LoadCatalog fetches again.
// It reports false while a fetch is in flight.
func (s *Session) Invalidate() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.catalogState.Status == StatusLoading {
		return false
	}
	s.catalogState = QueryState{Status: StatusIdle}
	return true
}

// ReloadCatalog starts a fresh catalog fetch from any settled state. The query moves
// straight to loading; while a fetch is in flight the in-flight channel is returned.
func (s *Session) ReloadCatalog(ctx context.Context) <-chan struct{} {
	s.mu.Lock()
	if s.catalogState.Status == StatusLoading && s.catalogDone != nil {
		done := s.catalogDone
		s.mu.Unlock()
		return done
	}
	done, event := s.beginCatalogLocked()
	s.mu.Unlock()
	s.publish(event)
	go s.fetchCatalog(ctx, done)
	return done
}

// beginCatalogLocked moves the catalog query to loading. s.mu must be held.
func (s *Session) beginCatalogLocked() (chan struct{}, Event) {
	done := make(chan struct{})
	s.catalogDone = done
	s.catalogState = QueryState{Status: StatusLoading}
	return done, s.statusEvent(EventCatalogStatus, "", s.catalogState)
}

func (s *Session) fetchCatalog(ctx context.Context, done chan struct{}) {
	defer close(done)
	items, err := s.fetcher.FetchCatalog(ctx)
	s.applyCatalog(ctx, items, err)
}

func (s *Session) applyCatalog(ctx context.Context, fetched []memes.Item, fetchErr error) {
	if fetchErr != nil {
		s.mu.Lock()
		message := failureMessage(fetchErr)
		s.catalogState = QueryState{Status: StatusFailed, Error: message}
		s.lastError = message
		event := s.statusEvent(EventCatalogStatus, "", s.catalogState)
		s.mu.Unlock()
		s.publish(event)
		return
	}

	s.mu.Lock()
	snapshot := s.log.Snapshot(ctx)
	seeded := make([]memes.Item, len(fetched))
	for index, item := range fetched {
		seeded[index] = overlayItem(item, snapshot, false)
	}

	trending := make([]memes.Item, 0, s.trendingLimit)
	for _, item := range seeded {
		if len(trending) == s.trendingLimit {
			break
		}
		if item.Category == memes.CategoryTrending {
			trending = append(trending, item.Clone())
		}
	}

	merged := make([]memes.Item, 0, len(snapshot.Uploads)+len(seeded))
	seen := make(map[string]struct{}, cap(merged))
	for _, upload := range snapshot.Uploads {
		if _, duplicate := seen[upload.ID]; duplicate {
			continue
		}
		seen[upload.ID] = struct{}{}
		merged = append(merged, overlayItem(upload, snapshot, true))
	}
	for _, item := range seeded {
		if _, duplicate := seen[item.ID]; duplicate {
			continue
		}
		seen[item.ID] = struct{}{}
		merged = append(merged, overlayComments(item, snapshot))
	}

	s.allItems = merged
	s.trendingItems = trending
	s.catalogState = QueryState{Status: StatusSucceeded}
	event := s.statusEvent(EventCatalogStatus, "", s.catalogState)
	s.mu.Unlock()

	s.logger.Debug("catalog loaded",
		zap.String("user_id", s.userID),
		zap.Int("fetched", len(fetched)),
		zap.Int("merged", len(merged)),
		zap.Int("trending", len(trending)))
	s.publish(event)
}

// LoadItem starts a fetch of a single item into the detail slot. Every call issues a fetch;
// when several overlap, the one that completes last is applied.
func (s *Session) LoadItem(ctx context.Context, rawID string) (<-chan struct{}, error) {
	itemID, err := memes.NewItemID(rawID)
	if err != nil {
		return nil, newServiceError(opLoadItem, "invalid_item_id", err)
	}

	s.mu.Lock()
	s.detailState = QueryState{Status: StatusLoading}
	event := s.statusEvent(EventDetailStatus, itemID.String(), s.detailState)
	s.mu.Unlock()
	s.publish(event)

	done := make(chan struct{})
	go func() {
		defer close(done)
		item, fetchErr := s.fetcher.FetchOne(ctx, itemID)
		if errors.Is(fetchErr, catalog.ErrNotFound) {
			if upload, ok := s.log.Upload(ctx, itemID); ok {
				item, fetchErr = upload, nil
			}
		}
		s.applyItem(ctx, itemID, item, fetchErr)
	}()
	return done, nil
}

func (s *Session) applyItem(ctx context.Context, itemID memes.ItemID, item memes.Item, fetchErr error) {
	s.mu.Lock()
	if fetchErr != nil {
		message := failureMessage(fetchErr)
		s.detailState = QueryState{
			Status:   StatusFailed,
			Error:    message,
			NotFound: errors.Is(fetchErr, catalog.ErrNotFound),
		}
		s.lastError = message
	} else {
		overlaid := overlayItem(item, s.log.Snapshot(ctx), true)
		s.currentItem = &overlaid
		s.detailState = QueryState{Status: StatusSucceeded}
	}
	event := s.statusEvent(EventDetailStatus, itemID.String(), s.detailState)
	s.mu.Unlock()
	s.publish(event)
}

// ToggleLike flips the like state of an item and patches every view holding it by one.
func (s *Session) ToggleLike(ctx context.Context, rawID string) (bool, error) {
	itemID, err := memes.NewItemID(rawID)
	if err != nil {
		return false, newServiceError(opToggleLike, "invalid_item_id", err)
	}

	s.mu.Lock()
	liked := s.log.ToggleLike(ctx, itemID)
	delta := -1
	if liked {
		delta = 1
	}
	id := itemID.String()
	likeCount := -1
	patch := func(item *memes.Item) {
		item.LikeCount += delta
		if item.LikeCount < 0 {
			item.LikeCount = 0
		}
		likeCount = item.LikeCount
	}
	patchMatching(s.allItems, id, patch)
	patchMatching(s.trendingItems, id, patch)
	patchMatching(s.userUploads, id, patch)
	if s.currentItem != nil && s.currentItem.ID == id {
		patch(s.currentItem)
	}
	event := Event{Kind: EventItemLiked, UserID: s.userID, ItemID: id, Liked: &liked, OccurredAt: s.clock().UTC()}
	if likeCount >= 0 {
		event.LikeCount = &likeCount
	}
	s.mu.Unlock()

	s.metrics.ObserveMutation("like")
	s.publish(event)
	return liked, nil
}

// AddComment appends comment to an item and to the detail slot and catalog entries holding it.
// The trending view is left untouched.
func (s *Session) AddComment(ctx context.Context, rawID string, comment memes.Comment) error {
	itemID, err := memes.NewItemID(rawID)
	if err != nil {
		return newServiceError(opAddComment, "invalid_item_id", err)
	}

	s.mu.Lock()
	if err := s.log.AppendComment(ctx, itemID, comment); err != nil {
		s.mu.Unlock()
		return err
	}
	id := itemID.String()
	appendComment := func(item *memes.Item) {
		comments := make([]memes.Comment, 0, len(item.Comments)+1)
		comments = append(comments, item.Comments...)
		item.Comments = append(comments, comment)
	}
	patchMatching(s.allItems, id, appendComment)
	patchMatching(s.userUploads, id, appendComment)
	if s.currentItem != nil && s.currentItem.ID == id {
		appendComment(s.currentItem)
	}
	event := Event{Kind: EventItemCommented, UserID: s.userID, ItemID: id, OccurredAt: s.clock().UTC()}
	s.mu.Unlock()

	s.metrics.ObserveMutation("comment")
	s.publish(event)
	return nil
}

// AddUpload records a locally created item and prepends it to the catalog and upload views.
func (s *Session) AddUpload(ctx context.Context, item memes.Item) error {
	s.mu.Lock()
	if err := s.log.RecordUpload(ctx, item); err != nil {
		s.mu.Unlock()
		s.logError(opAddUpload, "record_upload_failed", err, zap.String("item_id", item.ID))
		return err
	}
	s.allItems = prepend(s.allItems, item.Clone())
	s.userUploads = prepend(s.userUploads, item.Clone())
	event := Event{Kind: EventItemUploaded, UserID: s.userID, ItemID: item.ID, OccurredAt: s.clock().UTC()}
	s.mu.Unlock()

	s.metrics.ObserveMutation("upload")
	s.publish(event)
	return nil
}

// AllItems returns a copy of the merged catalog.
func (s *Session) AllItems() []memes.Item {
	s.mu.Lock()
	defer s.mu.Unlock()
	return memes.CloneItems(s.allItems)
}

// TrendingItems returns a copy of the trending view.
func (s *Session) TrendingItems() []memes.Item {
	s.mu.Lock()
	defer s.mu.Unlock()
	return memes.CloneItems(s.trendingItems)
}

// UserUploads returns a copy of the items uploaded by the session owner, most recent first.
func (s *Session) UserUploads() []memes.Item {
	s.mu.Lock()
	defer s.mu.Unlock()
	return memes.CloneItems(s.userUploads)
}

// CurrentItem returns the detail slot.
func (s *Session) CurrentItem() (memes.Item, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.currentItem == nil {
		return memes.Item{}, false
	}
	return s.currentItem.Clone(), true
}

// LikedItems returns the catalog entries the owner has liked, in catalog order.
func (s *Session) LikedItems(ctx context.Context) []memes.Item {
	s.mu.Lock()
	defer s.mu.Unlock()
	liked := make([]memes.Item, 0)
	for _, item := range s.allItems {
		if s.log.IsLiked(ctx, memes.ItemID(item.ID)) {
			liked = append(liked, item.Clone())
		}
	}
	return liked
}

// IsLiked reports whether the owner has liked the item.
func (s *Session) IsLiked(ctx context.Context, rawID string) bool {
	itemID, err := memes.NewItemID(rawID)
	if err != nil {
		return false
	}
	return s.log.IsLiked(ctx, itemID)
}

// CatalogStatus reports the whole-catalog query state.
func (s *Session) CatalogStatus() QueryState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.catalogState
}

// DetailStatus reports the single-item query state.
func (s *Session) DetailStatus() QueryState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.detailState
}

// LastError returns the message of the most recent failed fetch.
func (s *Session) LastError() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastError
}

func (s *Session) statusEvent(kind EventKind, itemID string, state QueryState) Event {
	return Event{
		Kind:       kind,
		UserID:     s.userID,
		ItemID:     itemID,
		Status:     state.Status,
		Error:      state.Error,
		OccurredAt: s.clock().UTC(),
	}
}

func (s *Session) publish(event Event) {
	if s.notifier == nil {
		return
	}
	s.notifier.Publish(event)
}

func (s *Session) logError(operation, reason string, err error, fields ...zap.Field) {
	if err == nil {
		return
	}
	allFields := append([]zap.Field{
		zap.String("operation", operation),
		zap.String("reason", reason),
		zap.String("user_id", s.userID),
		zap.Error(err),
	}, fields...)
	s.logger.Info("feed operation rejected", allFields...)
}

// overlayItem applies the like offset and the persisted comments to a copy of item.
// Uploaded items store no likes of their own, so the like offset applies to them too.
func overlayItem(item memes.Item, snapshot mutations.Snapshot, includeComments bool) memes.Item {
	overlaid := item.Clone()
	if _, liked := snapshot.LikedIDs[overlaid.ID]; liked {
		overlaid.LikeCount++
	}
	if includeComments {
		return overlayComments(overlaid, snapshot)
	}
	return overlaid
}

func overlayComments(item memes.Item, snapshot mutations.Snapshot) memes.Item {
	overlaid := item.Clone()
	if comments, ok := snapshot.CommentsByItem[overlaid.ID]; ok {
		overlaid.Comments = slices.Clone(comments)
	}
	if overlaid.Comments == nil {
		overlaid.Comments = []memes.Comment{}
	}
	if overlaid.Captions == nil {
		overlaid.Captions = []string{}
	}
	return overlaid
}

func patchMatching(items []memes.Item, id string, patch func(*memes.Item)) {
	for index := range items {
		if items[index].ID == id {
			patch(&items[index])
		}
	}
}

func prepend(items []memes.Item, item memes.Item) []memes.Item {
	updated := make([]memes.Item, 0, len(items)+1)
	updated = append(updated, item)
	for _, existing := range items {
		if existing.ID == item.ID {
			continue
		}
		updated = append(updated, existing)
	}
	return updated
}

func failureMessage(err error) string {
	switch {
	case errors.Is(err, catalog.ErrNotFound):
		return "Meme not found: " + err.Error()
	case errors.Is(err, catalog.ErrUpstreamFormat):
		return "Failed to fetch memes: " + err.Error()
	case errors.Is(err, catalog.ErrNetwork):
		return "Failed to fetch memes: " + err.Error()
	default:
		return err.Error()
	}
}

func closedChannel() <-chan struct{} {
	done := make(chan struct{})
	close(done)
	return done
}
