// Package catalog retrieves the remote item catalog and normalizes it into domain items.
package catalog

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/Sanskarlajurkar07/memeverse/internal/memes"
	"github.com/Sanskarlajurkar07/memeverse/internal/metrics"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"
)

const (
	// DefaultURL is the public upstream catalog endpoint.
	DefaultURL = "https://api.imgflip.com/get_memes"

	defaultTimeout          = 10 * time.Second
	defaultFailureThreshold = 5
	defaultOpenTimeout      = 30 * time.Second
	maxResponseBytes        = 8 << 20

	queryCatalog = "catalog"
	queryDetail  = "detail"
)

var (
	// ErrNetwork indicates the upstream fetch could not complete.
	ErrNetwork = errors.New("catalog: network error")
	// ErrUpstreamFormat indicates the upstream response shape was invalid.
	ErrUpstreamFormat = errors.New("catalog: upstream format error")
	// ErrNotFound indicates a single item id is absent from the upstream result.
	ErrNotFound = errors.New("catalog: item not found")
	// ErrInvalidConfig indicates the fetcher configuration is unusable.
	ErrInvalidConfig = errors.New("catalog: invalid config")
)

// Fetcher retrieves catalog items from an upstream source.
type Fetcher interface {
	FetchCatalog(ctx context.Context) ([]memes.Item, error)
	FetchOne(ctx context.Context, itemID memes.ItemID) (memes.Item, error)
}

// HTTPFetcherConfig bundles configuration required to instantiate an HTTPFetcher.
type HTTPFetcherConfig struct {
	URL              string
	HTTPClient       *http.Client
	Timeout          time.Duration
	Seeder           Seeder
	Clock            func() time.Time
	Logger           *zap.Logger
	Metrics          *metrics.Recorder
	FailureThreshold uint32
	OpenTimeout      time.Duration
}

// HTTPFetcher fetches the imgflip shaped catalog over HTTP behind a circuit breaker.
type HTTPFetcher struct {
	url        string
	httpClient *http.Client
	seeder     Seeder
	clock      func() time.Time
	logger     *zap.Logger
	metrics    *metrics.Recorder
	breaker    *gobreaker.CircuitBreaker
}

// NewHTTPFetcher constructs a fetcher with validated configuration.
func NewHTTPFetcher(cfg HTTPFetcherConfig) (*HTTPFetcher, error) {
	url := strings.TrimSpace(cfg.URL)
	if url == "" {
		url = DefaultURL
	}
	if !strings.HasPrefix(url, "http://") && !strings.HasPrefix(url, "https://") {
		return nil, fmt.Errorf("%w: url %q must be http(s)", ErrInvalidConfig, url)
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = defaultTimeout
		}
		httpClient = &http.Client{Timeout: timeout}
	}

	seeder := cfg.Seeder
	if seeder == nil {
		seeder = NewRandomSeeder(nil)
	}

	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}

	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	threshold := cfg.FailureThreshold
	if threshold == 0 {
		threshold = defaultFailureThreshold
	}
	openTimeout := cfg.OpenTimeout
	if openTimeout <= 0 {
		openTimeout = defaultOpenTimeout
	}

	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "catalog-upstream",
		MaxRequests: 1,
		Timeout:     openTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		IsSuccessful: func(err error) bool {
			return err == nil || !errors.Is(err, ErrNetwork)
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.Warn("circuit breaker state changed",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()))
		},
	})

	return &HTTPFetcher{
		url:        url,
		httpClient: httpClient,
		seeder:     seeder,
		clock:      clock,
		logger:     logger,
		metrics:    cfg.Metrics,
		breaker:    breaker,
	}, nil
}

// FetchCatalog retrieves and seeds every upstream item, preserving upstream order.
func (f *HTTPFetcher) FetchCatalog(ctx context.Context) ([]memes.Item, error) {
	started := f.clock()
	items, err := f.fetch(ctx)
	f.metrics.ObserveFetch(queryCatalog, f.clock().Sub(started).Seconds(), err)
	if err != nil {
		f.logger.Warn("catalog fetch failed", zap.Error(err))
		return nil, err
	}
	return items, nil
}

// FetchOne retrieves the catalog and selects the item with the supplied id.
func (f *HTTPFetcher) FetchOne(ctx context.Context, itemID memes.ItemID) (memes.Item, error) {
	started := f.clock()
	item, err := f.fetchOne(ctx, itemID)
	f.metrics.ObserveFetch(queryDetail, f.clock().Sub(started).Seconds(), err)
	if err != nil {
		f.logger.Warn("catalog item fetch failed", zap.String("item_id", itemID.String()), zap.Error(err))
		return memes.Item{}, err
	}
	return item, nil
}

func (f *HTTPFetcher) fetchOne(ctx context.Context, itemID memes.ItemID) (memes.Item, error) {
	items, err := f.fetch(ctx)
	if err != nil {
		return memes.Item{}, err
	}
	for _, item := range items {
		if item.ID == itemID.String() {
			return item, nil
		}
	}
	return memes.Item{}, fmt.Errorf("%w: %s", ErrNotFound, itemID)
}

func (f *HTTPFetcher) fetch(ctx context.Context) ([]memes.Item, error) {
	result, err := f.breaker.Execute(func() (interface{}, error) {
		return f.download(ctx)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, fmt.Errorf("%w: %v", ErrNetwork, err)
		}
		return nil, err
	}
	payload, ok := result.([]byte)
	if !ok {
		return nil, fmt.Errorf("%w: unexpected payload type", ErrUpstreamFormat)
	}

	raw, err := decodeCatalog(payload)
	if err != nil {
		return nil, err
	}

	now := f.clock()
	items := make([]memes.Item, 0, len(raw))
	for _, entry := range raw {
		item, ok := entry.toItem(f.seeder.Seed(now))
		if !ok {
			continue
		}
		items = append(items, item)
	}
	return items, nil
}

func (f *HTTPFetcher) download(ctx context.Context) ([]byte, error) {
	request, err := http.NewRequestWithContext(ctx, http.MethodGet, f.url, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNetwork, err)
	}
	request.Header.Set("Accept", "application/json")

	response, err := f.httpClient.Do(request)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNetwork, err)
	}
	defer response.Body.Close()

	if response.StatusCode < http.StatusOK || response.StatusCode >= http.StatusMultipleChoices {
		return nil, fmt.Errorf("%w: upstream status %d", ErrNetwork, response.StatusCode)
	}

	payload, err := io.ReadAll(io.LimitReader(response.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("%w: read body: %v", ErrNetwork, err)
	}
	return payload, nil
}

type catalogEnvelope struct {
	Success *bool `json:"success"`
	Data    *struct {
		Memes []rawItem `json:"memes"`
	} `json:"data"`
	ErrorMessage string `json:"error_message"`
}

type rawItem struct {
	ID       flexibleID `json:"id"`
	Name     string     `json:"name"`
	Title    string     `json:"title"`
	URL      string     `json:"url"`
	Width    int        `json:"width"`
	Height   int        `json:"height"`
	BoxCount int        `json:"box_count"`
}

func decodeCatalog(payload []byte) ([]rawItem, error) {
	var envelope catalogEnvelope
	if err := json.Unmarshal(payload, &envelope); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUpstreamFormat, err)
	}
	if envelope.Success == nil {
		return nil, fmt.Errorf("%w: missing success flag", ErrUpstreamFormat)
	}
	if !*envelope.Success {
		message := strings.TrimSpace(envelope.ErrorMessage)
		if message == "" {
			message = "upstream reported failure"
		}
		return nil, fmt.Errorf("%w: %s", ErrUpstreamFormat, message)
	}
	if envelope.Data == nil {
		return nil, fmt.Errorf("%w: missing data", ErrUpstreamFormat)
	}
	return envelope.Data.Memes, nil
}

func (raw rawItem) toItem(seed Seed) (memes.Item, bool) {
	itemID, err := memes.NewItemID(string(raw.ID))
	if err != nil {
		return memes.Item{}, false
	}
	title := strings.TrimSpace(raw.Name)
	if title == "" {
		title = strings.TrimSpace(raw.Title)
	}
	likes := seed.LikeCount
	if likes < 0 {
		likes = 0
	}
	category := seed.Category
	if category == "" {
		category = memes.CategoryRandom
	}
	return memes.Item{
		ID:           itemID.String(),
		Title:        title,
		MediaURL:     raw.URL,
		Width:        raw.Width,
		Height:       raw.Height,
		CaptionSlots: raw.BoxCount,
		Captions:     []string{},
		LikeCount:    likes,
		Comments:     []memes.Comment{},
		CreatedAt:    seed.CreatedAt,
		Category:     category,
	}, true
}

// flexibleID accepts identifiers encoded as JSON strings or numbers.
type flexibleID string

func (id *flexibleID) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if bytes.Equal(trimmed, []byte("null")) {
		*id = ""
		return nil
	}
	if len(trimmed) > 0 && trimmed[0] == '"' {
		var value string
		if err := json.Unmarshal(trimmed, &value); err != nil {
			return err
		}
		*id = flexibleID(value)
		return nil
	}
	var number json.Number
	if err := json.Unmarshal(trimmed, &number); err != nil {
		return err
	}
	*id = flexibleID(number.String())
	return nil
}
