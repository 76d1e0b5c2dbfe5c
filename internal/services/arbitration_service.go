// Package services – ArbitrationService
//
// ArbitrationService sits between the HTTP surface and the generator. For
// every request it decides, in order:
//
//  1. cache: a fresh result for the same fingerprint is returned as is and
//     costs no quota
//  2. quota: refuse with *RateLimitedError when either window is spent
//  3. split: extract the product pair, or fall back to free-form chat
//  4. generate: call the provider outside every lock
//
// After a successful call it records quota usage, caches the payload and
// hands the comparison to the store in the background.
package services

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/singleflight"

	"github.com/tbourn/go-compare-backend/internal/cache"
	"github.com/tbourn/go-compare-backend/internal/catalog"
	"github.com/tbourn/go-compare-backend/internal/domain"
	"github.com/tbourn/go-compare-backend/internal/generator"
	"github.com/tbourn/go-compare-backend/internal/observability"
	"github.com/tbourn/go-compare-backend/internal/query"
	"github.com/tbourn/go-compare-backend/internal/quota"
	"github.com/tbourn/go-compare-backend/internal/slug"
)

// Result modes.
const (
	ModeComparison = "comparison" // structured JSON comparison (POST /compare)
	ModeChat       = "chat"       // Markdown comparison or free-form reply (POST /chat)
)

const (
	defaultResultTTL   = 600 * time.Second
	defaultPersistWait = 10 * time.Second
)

// Message is one prior turn of a conversation.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Request is one arbitration request.
type Request struct {
	Query   string
	History []Message
	// AllowFreeForm answers queries without a product pair with a chat reply
	// instead of ErrNoProductsFound.
	AllowFreeForm bool
}

// Result is the outcome of Handle.
type Result struct {
	Mode          string
	ComparisonKey string
	Product1      string
	Product2      string
	Content       string
	Comparison    *ComparisonPayload
	Cached        bool
	Remaining     quota.Remaining
}

// Quota is the dual-window limiter consulted before each provider call.
type Quota interface {
	Admit() bool
	RecordUsage()
	Snapshot() quota.Snapshot
}

// Splitter extracts a product pair from text.
type Splitter interface {
	Split(text string) (query.Pair, error)
}

// ComparisonStore persists comparisons.
type ComparisonStore interface {
	Upsert(ctx context.Context, name1, name2, content, query string) (*domain.Comparison, error)
}

// ArbitrationService orchestrates cache, quota, splitter, generator and store.
// Cache, Quota, Splitter, Generator and Store are required.
type ArbitrationService struct {
	Cache     cache.Store
	Quota     Quota
	Splitter  Splitter
	Generator generator.Generator
	Store     ComparisonStore
	Catalog   catalog.Lookup // optional prompt grounding
	Log       zerolog.Logger

	ResultTTL     time.Duration // defaults to 600s
	PersistWait   time.Duration // per background upsert; defaults to 10s
	MaxQueryRunes int           // 0 disables the check

	// Now defaults to time.Now.
	Now func() time.Time

	flight   singleflight.Group
	inflight sync.WaitGroup
}

func (s *ArbitrationService) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

// Handle answers one request. Errors: ErrEmptyQuery, ErrQueryTooLong,
// *RateLimitedError, ErrNoProductsFound, ErrProviderFailure.
func (s *ArbitrationService) Handle(ctx context.Context, req Request) (*Result, error) {
	tr := otel.Tracer("services/ArbitrationService")
	ctx, span := tr.Start(ctx, "Handle",
		trace.WithAttributes(
			attribute.Bool("request.free_form", req.AllowFreeForm),
			attribute.Int("request.history", len(req.History)),
		),
	)
	defer span.End()

	q := strings.TrimSpace(req.Query)
	if q == "" {
		return nil, ErrEmptyQuery
	}
	if s.MaxQueryRunes > 0 && utf8.RuneCountInString(q) > s.MaxQueryRunes {
		return nil, ErrQueryTooLong
	}
	req.Query = q

	fp := Fingerprint(q, modeFor(req), len(req.History))
	if p, ok := s.Cache.Get(ctx, fp); ok {
		observability.ObserveCacheLookup(true)
		span.SetAttributes(attribute.Bool("cache.hit", true))
		if p.Product1 != "" && p.Product2 != "" {
			s.persist(ctx, p.Product1, p.Product2, persistedContent(p), q)
		}
		res, err := resultFromPayload(p)
		if err != nil {
			return nil, err
		}
		res.Cached = true
		res.Remaining = s.Quota.Snapshot().Remaining()
		return res, nil
	}
	observability.ObserveCacheLookup(false)
	span.SetAttributes(attribute.Bool("cache.hit", false))

	// The shared call outlives any single caller; the generator timeout
	// still bounds it.
	shared := context.WithoutCancel(ctx)
	ch := s.flight.DoChan(fp, func() (any, error) {
		return s.generate(shared, req, fp)
	})
	var r singleflight.Result
	select {
	case r = <-ch:
	case <-ctx.Done():
		span.RecordError(ctx.Err())
		span.SetStatus(codes.Error, "caller gone")
		return nil, ctx.Err()
	}
	if r.Err != nil {
		span.RecordError(r.Err)
		span.SetStatus(codes.Error, "arbitration failed")
		return nil, r.Err
	}
	// Shared results are copied so callers cannot alias each other.
	res := *r.Val.(*Result)
	res.Remaining = s.Quota.Snapshot().Remaining()
	return &res, nil
}

func (s *ArbitrationService) generate(ctx context.Context, req Request, fp string) (*Result, error) {
	if !s.Quota.Admit() {
		observability.ObserveRateLimited()
		snap := s.Quota.Snapshot()
		s.publishQuota(snap)
		return nil, &RateLimitedError{Remaining: snap.Remaining(), RetryAfter: s.retryAfter(snap)}
	}

	pair, err := s.Splitter.Split(req.Query)
	hasPair := err == nil
	var key string
	if hasPair {
		// Spans that normalize to nothing cannot be stored or metered.
		if key, err = slug.ComparisonKey(pair.First, pair.Second); err != nil {
			hasPair = false
		}
	}
	if !hasPair && !req.AllowFreeForm {
		return nil, ErrNoProductsFound
	}

	var prompt generator.Prompt
	switch {
	case hasPair && !req.AllowFreeForm:
		prompt = comparisonPrompt(pair.First, pair.Second, s.Catalog)
	case hasPair:
		prompt = chatComparisonPrompt(pair.First, pair.Second, req.History, s.Catalog)
	default:
		prompt = chatPrompt(req.Query, req.History)
	}

	text, err := s.Generator.Generate(ctx, prompt)
	if err != nil {
		s.Log.Warn().Err(err).Msg("generator call failed")
		return nil, fmt.Errorf("%w: %v", ErrProviderFailure, err)
	}

	p := cache.Payload{
		Mode:        modeFor(req),
		Content:     text,
		GeneratedAt: s.now().UTC(),
	}
	var structured *ComparisonPayload
	if hasPair {
		p.ComparisonKey, p.Product1, p.Product2 = key, pair.First, pair.Second
	}
	if p.Mode == ModeComparison {
		structured, err = ParseComparison(text)
		if err != nil {
			s.Log.Warn().Err(err).Str("comparison_key", p.ComparisonKey).Msg("unusable generator output")
			return nil, fmt.Errorf("%w: %v", ErrProviderFailure, err)
		}
		b, err := json.Marshal(structured)
		if err != nil {
			return nil, fmt.Errorf("%w: encode comparison: %v", ErrProviderFailure, err)
		}
		p.Structured = b
	}

	s.Quota.RecordUsage()
	s.publishQuota(s.Quota.Snapshot())
	s.Cache.Set(ctx, fp, p, s.resultTTL())
	if hasPair {
		s.persist(ctx, p.Product1, p.Product2, persistedContent(p), req.Query)
	}

	return &Result{
		Mode:          p.Mode,
		ComparisonKey: p.ComparisonKey,
		Product1:      p.Product1,
		Product2:      p.Product2,
		Content:       p.Content,
		Comparison:    structured,
	}, nil
}

// persist upserts the comparison on a detached context. Failures are
// logged and counted, never returned.
func (s *ArbitrationService) persist(ctx context.Context, name1, name2, content, q string) {
	if s.Store == nil {
		return
	}
	s.inflight.Add(1)
	go func() {
		defer s.inflight.Done()
		pctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.persistWait())
		defer cancel()
		if _, err := s.Store.Upsert(pctx, name1, name2, content, q); err != nil {
			s.Log.Error().Err(err).Str("product1", name1).Str("product2", name2).Msg("background comparison upsert failed")
		}
	}()
}

// Wait blocks until background persistence started so far has finished.
func (s *ArbitrationService) Wait() { s.inflight.Wait() }

// QuotaSnapshot exposes the limiter state.
func (s *ArbitrationService) QuotaSnapshot() quota.Snapshot { return s.Quota.Snapshot() }

func (s *ArbitrationService) publishQuota(snap quota.Snapshot) {
	r := snap.Remaining()
	observability.SetQuotaRemaining(r.PerMinute, r.PerDay)
}

func (s *ArbitrationService) retryAfter(snap quota.Snapshot) time.Duration {
	reset := snap.MinuteResetAt
	if snap.UsedDay >= snap.LimitDay {
		reset = snap.DayResetAt
	}
	if d := reset.Sub(s.now()); d > 0 {
		return d
	}
	return time.Second
}

func (s *ArbitrationService) resultTTL() time.Duration {
	if s.ResultTTL > 0 {
		return s.ResultTTL
	}
	return defaultResultTTL
}

func (s *ArbitrationService) persistWait() time.Duration {
	if s.PersistWait > 0 {
		return s.PersistWait
	}
	return defaultPersistWait
}

// Fingerprint keys the result cache. It covers the normalized query text,
// the mode, and the history length capped at the replayed window, so the
// same question in a longer conversation is answered afresh.
func Fingerprint(q, mode string, historyLen int) string {
	norm := strings.Join(strings.Fields(strings.ToLower(q)), " ")
	bucket := min(historyLen, historyWindow)
	sum := sha256.Sum256([]byte(mode + "\x00" + strconv.Itoa(bucket) + "\x00" + norm))
	return hex.EncodeToString(sum[:])
}

func modeFor(req Request) string {
	if req.AllowFreeForm {
		return ModeChat
	}
	return ModeComparison
}

// persistedContent is what the store keeps as generated_content: the
// normalized JSON for structured comparisons, the raw text otherwise.
func persistedContent(p cache.Payload) string {
	if len(p.Structured) > 0 {
		return string(p.Structured)
	}
	return p.Content
}

func resultFromPayload(p cache.Payload) (*Result, error) {
	res := &Result{
		Mode:          p.Mode,
		ComparisonKey: p.ComparisonKey,
		Product1:      p.Product1,
		Product2:      p.Product2,
		Content:       p.Content,
	}
	if len(p.Structured) > 0 {
		var c ComparisonPayload
		if err := json.Unmarshal(p.Structured, &c); err != nil {
			return nil, errors.Join(ErrProviderFailure, err)
		}
		res.Comparison = &c
	}
	return res, nil
}
