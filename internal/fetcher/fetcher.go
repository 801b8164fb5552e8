package fetcher

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"reelcast/internal/config"
	"reelcast/internal/logging"
	"reelcast/internal/metrics"
	"reelcast/internal/services"
	"reelcast/internal/store"
)

// Per-source result labels.
const (
	resultFetched        = "fetched"
	resultMalformed      = "malformed"
	resultDuplicate      = "duplicate"
	resultBelowThreshold = "below_threshold"
	resultAccepted       = "accepted"
)

// Result summarizes one intake pass.
type Result struct {
	Items        []*store.ContentItem
	TotalFetched int
	UniqueCount  int
	Duration     time.Duration
	Failures     []SourceFailure
}

// SourceFailure records a source that produced no entries this pass.
type SourceFailure struct {
	Source string
	Kind   services.Kind
	Err    error
}

// Fetcher runs intake passes over the configured sources.
type Fetcher struct {
	sources  []config.Source
	timeout  time.Duration
	minScore float64
	nearDup  float64
	scorer   Scorer
	store    *store.Store
	registry *Registry
	client   *http.Client
	limiters *services.Limiters
	recorder *metrics.Recorder
	logger   *slog.Logger
}

// Option customizes a Fetcher.
type Option func(*Fetcher)

// WithHTTPClient overrides the HTTP client used for every source.
func WithHTTPClient(client *http.Client) Option {
	return func(f *Fetcher) {
		if client != nil {
			f.client = client
		}
	}
}

// WithRegistry overrides the extractor registry.
func WithRegistry(reg *Registry) Option {
	return func(f *Fetcher) {
		if reg != nil {
			f.registry = reg
		}
	}
}

// WithLimiters gates every source request on the sources rate limiter.
func WithLimiters(limiters *services.Limiters) Option {
	return func(f *Fetcher) { f.limiters = limiters }
}

// WithRecorder records per-source activity and counters.
func WithRecorder(recorder *metrics.Recorder) Option {
	return func(f *Fetcher) { f.recorder = recorder }
}

// New builds a fetcher over cfg.Sources persisting into st.
func New(cfg *config.Config, st *store.Store, logger *slog.Logger, opts ...Option) *Fetcher {
	f := &Fetcher{
		sources:  cfg.Sources,
		timeout:  time.Duration(cfg.Pipeline.FetchTimeout) * time.Second,
		minScore: cfg.Scoring.MinScore,
		nearDup:  cfg.Scoring.NearDuplicateThreshold,
		scorer:   NewScorer(cfg.Scoring),
		store:    st,
		registry: DefaultRegistry(),
		client:   &http.Client{},
		logger:   logging.NewComponentLogger(logger, "fetcher"),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

type sourcePull struct {
	source   config.Source
	entries  []Entry
	err      error
	duration time.Duration
}

type candidate struct {
	item   *store.ContentItem
	source int
}

// Fetch queries every source concurrently, then dedups, scores and persists
// the items that reach the minimum score. Source failures are logged and
// reported in Result.Failures; they never fail the pass.
func (f *Fetcher) Fetch(ctx context.Context) (Result, error) {
	start := time.Now()
	pulls := f.pullAll(ctx)
	if err := ctx.Err(); err != nil {
		return Result{Duration: time.Since(start)}, err
	}

	counts := make([]map[string]int, len(pulls))
	var (
		result     Result
		candidates []candidate
	)
	for i, pull := range pulls {
		counts[i] = map[string]int{}
		if pull.err != nil {
			result.Failures = append(result.Failures, SourceFailure{
				Source: pull.source.Name,
				Kind:   services.KindOf(pull.err),
				Err:    pull.err,
			})
			logging.WarnWithContext(f.logger, "source fetch failed", "source_failed",
				logging.String(logging.FieldSource, pull.source.Name),
				logging.String(logging.FieldErrorKind, string(services.KindOf(pull.err))),
				logging.Error(pull.err),
				logging.String(logging.FieldErrorHint, "check the source url and selectors"),
				logging.String(logging.FieldImpact, "items from this source are skipped this pass"),
			)
			continue
		}
		counts[i][resultFetched] = len(pull.entries)
		result.TotalFetched += len(pull.entries)
		for _, entry := range pull.entries {
			item, ok := f.buildItem(pull.source, entry)
			if !ok {
				counts[i][resultMalformed]++
				continue
			}
			candidates = append(candidates, candidate{item: item, source: i})
		}
	}

	unique, dropped := dedupBatch(candidates)
	for _, c := range dropped {
		counts[c.source][resultDuplicate]++
	}
	if f.nearDup > 0 {
		var similar []candidate
		unique, similar = dedupSimilar(unique, f.nearDup)
		for _, c := range similar {
			counts[c.source][resultDuplicate]++
		}
	}
	unique, err := f.dropKnown(ctx, unique, counts)
	if err != nil {
		return result, err
	}
	result.UniqueCount = len(unique)

	for _, c := range unique {
		if c.item.RelevanceScore < f.minScore {
			counts[c.source][resultBelowThreshold]++
			continue
		}
		if err := f.store.InsertItem(ctx, c.item); err != nil {
			if errors.Is(err, services.ErrDuplicate) {
				counts[c.source][resultDuplicate]++
				continue
			}
			return result, err
		}
		counts[c.source][resultAccepted]++
		result.Items = append(result.Items, c.item)
	}

	for i, pull := range pulls {
		f.recorder.FetchSource(ctx, pull.source.Name, counts[i], pull.duration, pull.err)
	}
	result.Duration = time.Since(start)
	f.logger.Info("intake complete",
		logging.String(logging.FieldEventType, "fetch_complete"),
		logging.Int("sources", len(pulls)),
		logging.Int("fetched", result.TotalFetched),
		logging.Int("unique", result.UniqueCount),
		logging.Int("accepted", len(result.Items)),
		logging.Int("failed_sources", len(result.Failures)),
		logging.Duration("duration", result.Duration),
	)
	return result, nil
}

func (f *Fetcher) pullAll(ctx context.Context) []sourcePull {
	pulls := make([]sourcePull, len(f.sources))
	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	for i, src := range f.sources {
		g.Go(func() error {
			pull := f.pull(gctx, src)
			mu.Lock()
			pulls[i] = pull
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()
	return pulls
}

func (f *Fetcher) pull(ctx context.Context, src config.Source) sourcePull {
	start := time.Now()
	pull := sourcePull{source: src}

	extractor, err := f.registry.Resolve(src.Kind)
	if err != nil {
		pull.err = services.Wrap(services.ErrConfiguration, "fetcher", src.Name, "resolve extractor", err)
		pull.duration = time.Since(start)
		return pull
	}
	if err := f.limiters.Wait(ctx, services.APISources); err != nil {
		pull.err = err
		pull.duration = time.Since(start)
		return pull
	}
	if f.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, f.timeout)
		defer cancel()
	}
	pull.entries, pull.err = extractor.Extract(ctx, f.client, src)
	pull.duration = time.Since(start)
	f.logger.Debug("source pulled",
		logging.String(logging.FieldSource, src.Name),
		logging.Int("entries", len(pull.entries)),
		logging.Duration("duration", pull.duration),
	)
	return pull
}

// buildItem normalizes an entry into a scored content item. Entries without a
// title or body are malformed and dropped.
func (f *Fetcher) buildItem(src config.Source, entry Entry) (*store.ContentItem, bool) {
	title := collapseSpace(entry.Title)
	body := collapseSpace(entry.Body)
	if title == "" || body == "" {
		f.logger.Debug("dropping malformed entry",
			logging.String(logging.FieldSource, src.Name),
			logging.String("url", entry.URL),
		)
		return nil, false
	}

	payload := entry.Payload
	if payload == nil {
		payload = DetectPayload(body)
	}
	event := entry.Event
	if event == "" {
		event = src.Event
	}
	entities := entry.Entities
	if len(entities) == 0 {
		entities = src.Entities
	}

	category, ok := store.ParseCategory(entry.Category)
	if !ok {
		category, ok = store.ParseCategory(src.Category)
	}
	if !ok {
		category = InferCategory(title, body, payload)
	}

	item := &store.ContentItem{
		Title: title,
		Body:  body,
		Source: store.SourceRef{
			Name:        src.Name,
			Kind:        src.Kind,
			TrustWeight: src.TrustWeight,
		},
		CanonicalURL: strings.TrimSpace(entry.URL),
		Payload:      payload,
		PublishDate:  entry.PublishDate,
		ContentHash:  ContentHash(title, body),
		Category:     category,
		Tags:         dedupeStrings(entry.Tags),
		Event:        event,
		Entities:     dedupeStrings(entities),
	}
	item.RelevanceScore = f.scorer.Score(item)
	return item, true
}

// dropKnown removes candidates whose hash is already persisted.
func (f *Fetcher) dropKnown(ctx context.Context, candidates []candidate, counts []map[string]int) ([]candidate, error) {
	if len(candidates) == 0 {
		return nil, nil
	}
	hashes := make([]string, len(candidates))
	for i, c := range candidates {
		hashes[i] = c.item.ContentHash
	}
	known, err := f.store.ExistingHashes(ctx, hashes)
	if err != nil {
		return nil, err
	}
	kept := candidates[:0]
	for _, c := range candidates {
		if known[c.item.ContentHash] {
			counts[c.source][resultDuplicate]++
			continue
		}
		kept = append(kept, c)
	}
	return kept, nil
}

func dedupeStrings(values []string) []string {
	if len(values) == 0 {
		return nil
	}
	seen := make(map[string]bool, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		v = strings.TrimSpace(v)
		key := strings.ToLower(v)
		if v == "" || seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, v)
	}
	return out
}
