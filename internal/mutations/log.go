// Package mutations keeps the durable record of user generated changes: liked item ids,
// per-item comments and locally uploaded items. Each collection lives under its own key
// in a storage.Store and is rewritten in full on every change.
package mutations

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"sync"

	"github.com/Sanskarlajurkar07/memeverse/internal/memes"
	"github.com/Sanskarlajurkar07/memeverse/internal/metrics"
	"github.com/Sanskarlajurkar07/memeverse/internal/storage"
	"go.uber.org/zap"
)

// Persisted keys.
const (
	KeyLikedItems = "likedMemes"
	KeyComments   = "memeComments"
	KeyUploads    = "userMemes"
)

const (
	opLoad    = "mutations.load"
	opPersist = "mutations.persist"
)

// Snapshot is the state reconstructed from the persistent medium.
type Snapshot struct {
	LikedIDs       map[string]struct{}
	CommentsByItem map[string][]memes.Comment
	Uploads        []memes.Item
}

// LogConfig bundles the collaborators of a Log.
type LogConfig struct {
	Store   storage.Store
	Logger  *zap.Logger
	Metrics *metrics.Recorder
}

// Log is the in-memory authoritative copy of the mutation collections with write-through
// persistence. Persistence failures are logged and never returned.
type Log struct {
	mu       sync.Mutex
	store    storage.Store
	logger   *zap.Logger
	metrics  *metrics.Recorder
	loaded   bool
	liked    []string
	likedSet map[string]struct{}
	comments map[string][]memes.Comment
	uploads  []memes.Item
}

// NewLog constructs a Log. A nil store disables persistence.
func NewLog(cfg LogConfig) *Log {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Log{
		store:    cfg.Store,
		logger:   logger,
		metrics:  cfg.Metrics,
		likedSet: make(map[string]struct{}),
		comments: make(map[string][]memes.Comment),
	}
}

// LoadAll reads every collection from the store, replacing the in-memory state.
// Absent or corrupt values become empty collections.
func (l *Log) LoadAll(ctx context.Context) Snapshot {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.reload(ctx)
	return l.snapshotLocked()
}

// Snapshot returns a deep copy of the current state, loading it on first use.
func (l *Log) Snapshot(ctx context.Context) Snapshot {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.ensureLoaded(ctx)
	return l.snapshotLocked()
}

// ToggleLike flips membership of itemID in the liked set and reports whether it is now liked.
func (l *Log) ToggleLike(ctx context.Context, itemID memes.ItemID) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.ensureLoaded(ctx)

	id := itemID.String()
	liked := false
	if _, ok := l.likedSet[id]; ok {
		delete(l.likedSet, id)
		remaining := make([]string, 0, len(l.liked))
		for _, existing := range l.liked {
			if existing != id {
				remaining = append(remaining, existing)
			}
		}
		l.liked = remaining
	} else {
		l.likedSet[id] = struct{}{}
		l.liked = append(l.liked, id)
		liked = true
	}

	l.persist(ctx, KeyLikedItems, l.liked)
	return liked
}

// IsLiked reports whether itemID is in the liked set.
func (l *Log) IsLiked(ctx context.Context, itemID memes.ItemID) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.ensureLoaded(ctx)
	_, ok := l.likedSet[itemID.String()]
	return ok
}

// AppendComment appends comment to the sequence held for itemID. Empty text is rejected
// with memes.ErrValidation before anything changes.
func (l *Log) AppendComment(ctx context.Context, itemID memes.ItemID, comment memes.Comment) error {
	if err := memes.ValidateComment(comment); err != nil {
		return err
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	l.ensureLoaded(ctx)

	id := itemID.String()
	existing := l.comments[id]
	updated := make([]memes.Comment, 0, len(existing)+1)
	updated = append(updated, existing...)
	updated = append(updated, comment)
	l.comments[id] = updated

	l.persist(ctx, KeyComments, l.comments)
	return nil
}

// Comments returns a copy of the persisted comment sequence for itemID.
func (l *Log) Comments(ctx context.Context, itemID memes.ItemID) ([]memes.Comment, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.ensureLoaded(ctx)
	comments, ok := l.comments[itemID.String()]
	if !ok {
		return nil, false
	}
	return slices.Clone(comments), true
}

// RecordUpload prepends item to the upload list.
func (l *Log) RecordUpload(ctx context.Context, item memes.Item) error {
	if err := memes.ValidateItem(item); err != nil {
		return err
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	l.ensureLoaded(ctx)

	updated := make([]memes.Item, 0, len(l.uploads)+1)
	updated = append(updated, item.Clone())
	updated = append(updated, l.uploads...)
	l.uploads = updated

	l.persist(ctx, KeyUploads, l.uploads)
	return nil
}

// Upload returns the locally uploaded item with the supplied id.
func (l *Log) Upload(ctx context.Context, itemID memes.ItemID) (memes.Item, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.ensureLoaded(ctx)
	for _, item := range l.uploads {
		if item.ID == itemID.String() {
			return item.Clone(), true
		}
	}
	return memes.Item{}, false
}

func (l *Log) ensureLoaded(ctx context.Context) {
	if l.loaded {
		return
	}
	l.reload(ctx)
}

func (l *Log) reload(ctx context.Context) {
	var liked []string
	l.read(ctx, KeyLikedItems, &liked)
	likedSet := make(map[string]struct{}, len(liked))
	deduped := make([]string, 0, len(liked))
	for _, id := range liked {
		if _, seen := likedSet[id]; seen || id == "" {
			continue
		}
		likedSet[id] = struct{}{}
		deduped = append(deduped, id)
	}

	comments := make(map[string][]memes.Comment)
	l.read(ctx, KeyComments, &comments)
	if comments == nil {
		comments = make(map[string][]memes.Comment)
	}

	var uploads []memes.Item
	l.read(ctx, KeyUploads, &uploads)

	l.liked = deduped
	l.likedSet = likedSet
	l.comments = comments
	l.uploads = uploads
	l.loaded = true
}

// read decodes key into target, leaving target untouched when the value is absent or corrupt.
func (l *Log) read(ctx context.Context, key string, target any) {
	if l.store == nil {
		return
	}
	raw, found, err := l.store.Get(ctx, key)
	if err != nil {
		l.logger.Warn("mutation log read failed",
			zap.String("operation", opLoad),
			zap.String("reason", "store_read_failed"),
			zap.String("key", key),
			zap.Error(err))
		return
	}
	if !found || raw == "" {
		return
	}
	if err := json.Unmarshal([]byte(raw), target); err != nil {
		l.logger.Warn("mutation log value corrupt, treating as empty",
			zap.String("operation", opLoad),
			zap.String("reason", "decode_failed"),
			zap.String("key", key),
			zap.Error(err))
		resetTarget(target)
	}
}

func resetTarget(target any) {
	switch value := target.(type) {
	case *[]string:
		*value = nil
	case *map[string][]memes.Comment:
		*value = make(map[string][]memes.Comment)
	case *[]memes.Item:
		*value = nil
	}
}

func (l *Log) persist(ctx context.Context, key string, value any) {
	if l.store == nil {
		return
	}
	payload, err := json.Marshal(value)
	if err == nil {
		err = l.store.Set(ctx, key, string(payload))
	}
	l.metrics.ObservePersistence(key, err)
	if err != nil {
		l.logger.Warn("mutation log write failed",
			zap.String("operation", opPersist),
			zap.String("reason", "store_write_failed"),
			zap.String("key", key),
			zap.Error(fmt.Errorf("persist %s: %w", key, err)))
	}
}

func (l *Log) snapshotLocked() Snapshot {
	liked := make(map[string]struct{}, len(l.likedSet))
	for id := range l.likedSet {
		liked[id] = struct{}{}
	}
	comments := make(map[string][]memes.Comment, len(l.comments))
	for id, sequence := range l.comments {
		comments[id] = slices.Clone(sequence)
	}
	return Snapshot{
		LikedIDs:       liked,
		CommentsByItem: comments,
		Uploads:        memes.CloneItems(l.uploads),
	}
}
