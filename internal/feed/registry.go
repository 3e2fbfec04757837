package feed

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/Sanskarlajurkar07/memeverse/internal/catalog"
	"github.com/Sanskarlajurkar07/memeverse/internal/metrics"
	"github.com/Sanskarlajurkar07/memeverse/internal/mutations"
	"github.com/Sanskarlajurkar07/memeverse/internal/storage"
	"go.uber.org/zap"
)

const (
	opRegistryNew     = "feed.registry.new"
	opRegistrySession = "feed.registry.session"
)

var errMissingUserID = errors.New("user identifier is required")

// RegistryConfig bundles the shared collaborators handed to every Session.
type RegistryConfig struct {
	Fetcher       catalog.Fetcher
	Store         storage.Store
	TrendingLimit int
	Notifier      Notifier
	Clock         func() time.Time
	Logger        *zap.Logger
	Metrics       *metrics.Recorder
}

// Registry owns one Session per user, created on first use with the user's store namespace.
// The mutation log of a user outlives Drop, so a session still held by an old request and
// its replacement write through the same log.
type Registry struct {
	mu       sync.Mutex
	config   RegistryConfig
	logger   *zap.Logger
	sessions map[string]*Session
	logs     map[string]*mutations.Log
}

// NewRegistry constructs a Registry.
func NewRegistry(cfg RegistryConfig) (*Registry, error) {
	if cfg.Fetcher == nil {
		return nil, newServiceError(opRegistryNew, "missing_fetcher", errMissingFetcher)
	}
	logger := cfg.Logger
	if logger == nil {
		logger = noOpLogger
	}
	return &Registry{
		config:   cfg,
		logger:   logger,
		sessions: make(map[string]*Session),
		logs:     make(map[string]*mutations.Log),
	}, nil
}

// Session returns the session of userID, constructing it when absent.
func (r *Registry) Session(ctx context.Context, userID string) (*Session, error) {
	normalized := strings.TrimSpace(userID)
	if normalized == "" {
		return nil, newServiceError(opRegistrySession, "missing_user_id", errMissingUserID)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.sessions[normalized]; ok {
		return existing, nil
	}

	log, ok := r.logs[normalized]
	if !ok {
		log = mutations.NewLog(mutations.LogConfig{
			Store:   storage.Namespace(r.config.Store, normalized),
			Logger:  r.logger.With(zap.String("user_id", normalized)),
			Metrics: r.config.Metrics,
		})
		r.logs[normalized] = log
	}
	session, err := NewSession(ctx, SessionConfig{
		UserID:        normalized,
		Fetcher:       r.config.Fetcher,
		Log:           log,
		TrendingLimit: r.config.TrendingLimit,
		Notifier:      r.config.Notifier,
		Clock:         r.config.Clock,
		Logger:        r.logger,
		Metrics:       r.config.Metrics,
	})
	if err != nil {
		return nil, err
	}
	r.sessions[normalized] = session
	r.config.Metrics.SetActiveSessions(len(r.sessions))
	return session, nil
}

// Drop tears down the cached views of userID. The mutation log and its persisted values remain.
func (r *Registry) Drop(userID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, strings.TrimSpace(userID))
	r.config.Metrics.SetActiveSessions(len(r.sessions))
}

// Len reports the number of live sessions.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}
