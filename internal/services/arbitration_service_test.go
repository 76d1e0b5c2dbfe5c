package services

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tbourn/go-compare-backend/internal/cache"
	"github.com/tbourn/go-compare-backend/internal/catalog"
	"github.com/tbourn/go-compare-backend/internal/domain"
	"github.com/tbourn/go-compare-backend/internal/generator"
	"github.com/tbourn/go-compare-backend/internal/query"
	"github.com/tbourn/go-compare-backend/internal/quota"
)

const macVsDell = `Sure! Here is the comparison:
` + "```json" + `
{
  "product1": {"name": "MacBook Air", "price": "1099", "rating": "4.7", "pros": ["battery"], "cons": ["ports"], "specs": {"Weight": "1.24 kg"}},
  "product2": {"name": "Dell XPS 13", "price": "$999", "rating": 4.4, "pros": ["display"], "cons": ["webcam"], "specs": {"Weight": 1.17}},
  "verdict": "The MacBook Air wins on battery life.",
  "recommendation": "Buy the XPS if you need Windows."
}
` + "```"

type stubGenerator struct {
	calls   atomic.Int32
	reply   string
	err     error
	prompts chan generator.Prompt
	gate    chan struct{}
}

func (g *stubGenerator) Generate(ctx context.Context, p generator.Prompt) (string, error) {
	g.calls.Add(1)
	if g.prompts != nil {
		g.prompts <- p
	}
	if g.gate != nil {
		select {
		case <-g.gate:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	return g.reply, g.err
}

type fixture struct {
	svc   *ArbitrationService
	gen   *stubGenerator
	store *ComparisonService
	lim   *quota.Limiter
}

func newFixture(t *testing.T, perMinute int, gen *stubGenerator) *fixture {
	t.Helper()
	store := &ComparisonService{DB: newFileDB(t), Log: zerolog.Nop()}
	lim := quota.New(perMinute, 1500)
	svc := &ArbitrationService{
		Cache:     cache.NewMemory(),
		Quota:     lim,
		Splitter:  query.NewSplitter(),
		Generator: gen,
		Store:     store,
		Log:       zerolog.Nop(),
	}
	t.Cleanup(svc.Wait)
	return &fixture{svc: svc, gen: gen, store: store, lim: lim}
}

func TestHandle_EndToEnd_MacBookVsDell(t *testing.T) {
	f := newFixture(t, 60, &stubGenerator{reply: macVsDell})
	ctx := context.Background()

	res, err := f.svc.Handle(ctx, Request{Query: "Compare MacBook Air vs Dell XPS 13"})
	require.NoError(t, err)
	assert.False(t, res.Cached)
	assert.Equal(t, ModeComparison, res.Mode)
	assert.Equal(t, "macbook-air-vs-dell-xps-13", res.ComparisonKey)
	require.NotNil(t, res.Comparison)
	assert.Equal(t, "$1099", res.Comparison.Product1.Price)
	assert.Equal(t, Rating(4.7), res.Comparison.Product1.Rating)
	assert.Equal(t, quota.Remaining{PerMinute: 59, PerDay: 1499}, res.Remaining)

	f.svc.Wait()
	c, err := f.store.Get(ctx, "macbook-air-vs-dell-xps-13")
	require.NoError(t, err)
	assert.EqualValues(t, 1, c.ViewCount)
	assert.Contains(t, c.GeneratedContent, `"verdict":"The MacBook Air wins on battery life."`)

	// Same question, different casing and spacing: served from cache, no
	// quota spent, but the view is still counted.
	res2, err := f.svc.Handle(ctx, Request{Query: "  compare macbook air  VS dell xps 13 "})
	require.NoError(t, err)
	assert.True(t, res2.Cached)
	assert.Equal(t, res.Comparison, res2.Comparison)
	assert.EqualValues(t, 1, f.gen.calls.Load())
	assert.Equal(t, 59, res2.Remaining.PerMinute)

	f.svc.Wait()
	c, err = f.store.Get(ctx, "macbook-air-vs-dell-xps-13")
	require.NoError(t, err)
	assert.EqualValues(t, 2, c.ViewCount)
}

func TestHandle_MacBookAirVsDellXPS13(t *testing.T) {
	f := newFixture(t, 60, &stubGenerator{reply: macVsDell})
	ctx := context.Background()
	const q = "MacBook Air vs Dell XPS 13"

	res, err := f.svc.Handle(ctx, Request{Query: q})
	require.NoError(t, err)
	assert.False(t, res.Cached)
	assert.Equal(t, "macbook-air-vs-dell-xps-13", res.ComparisonKey)
	require.NotNil(t, res.Comparison)
	assert.Equal(t, "MacBook Air", res.Comparison.Product1.Name)
	assert.Equal(t, "Dell XPS 13", res.Comparison.Product2.Name)
	assert.Equal(t, 59, res.Remaining.PerMinute)

	f.svc.Wait()
	c, err := f.store.Get(ctx, "macbook-air-vs-dell-xps-13")
	require.NoError(t, err)
	assert.EqualValues(t, 1, c.ViewCount)

	res2, err := f.svc.Handle(ctx, Request{Query: q})
	require.NoError(t, err)
	assert.True(t, res2.Cached)
	assert.Equal(t, res.Comparison, res2.Comparison)
	assert.Equal(t, 59, res2.Remaining.PerMinute)
	assert.EqualValues(t, 1, f.gen.calls.Load())

	f.svc.Wait()
	c, err = f.store.Get(ctx, "macbook-air-vs-dell-xps-13")
	require.NoError(t, err)
	assert.EqualValues(t, 2, c.ViewCount)
}

func TestHandle_RateLimited(t *testing.T) {
	f := newFixture(t, 1, &stubGenerator{reply: macVsDell})
	ctx := context.Background()

	_, err := f.svc.Handle(ctx, Request{Query: "MacBook Air vs Dell XPS 13"})
	require.NoError(t, err)

	_, err = f.svc.Handle(ctx, Request{Query: "iPhone 15 vs Pixel 8"})
	var rl *RateLimitedError
	require.ErrorAs(t, err, &rl)
	assert.Equal(t, 0, rl.Remaining.PerMinute)
	assert.Equal(t, 1499, rl.Remaining.PerDay)
	assert.Greater(t, rl.RetryAfter, time.Duration(0))
	assert.LessOrEqual(t, rl.RetryAfter, time.Minute)
	assert.EqualValues(t, 1, f.gen.calls.Load())

	// A cached answer is still served while the quota is spent.
	res, err := f.svc.Handle(ctx, Request{Query: "MacBook Air vs Dell XPS 13"})
	require.NoError(t, err)
	assert.True(t, res.Cached)
}

func TestHandle_NoProductsFound(t *testing.T) {
	f := newFixture(t, 60, &stubGenerator{reply: macVsDell})
	_, err := f.svc.Handle(context.Background(), Request{Query: "what laptop should I buy"})
	assert.ErrorIs(t, err, ErrNoProductsFound)
	assert.EqualValues(t, 0, f.gen.calls.Load())
	assert.Equal(t, 60, f.lim.Remaining().PerMinute)
}

func TestHandle_ProviderFailureConsumesNoQuota(t *testing.T) {
	f := newFixture(t, 60, &stubGenerator{err: errors.New("upstream 503")})
	_, err := f.svc.Handle(context.Background(), Request{Query: "Kindle vs Kobo"})
	assert.ErrorIs(t, err, ErrProviderFailure)
	assert.Equal(t, 60, f.lim.Remaining().PerMinute)

	// Nothing is cached after a failure.
	f.gen.err, f.gen.reply = nil, `{"product1":{"name":"Kindle"},"product2":{"name":"Kobo"}}`
	res, err := f.svc.Handle(context.Background(), Request{Query: "Kindle vs Kobo"})
	require.NoError(t, err)
	assert.False(t, res.Cached)
}

func TestHandle_UnparseableOutput(t *testing.T) {
	f := newFixture(t, 60, &stubGenerator{reply: "I cannot help with that {not json}"})
	_, err := f.svc.Handle(context.Background(), Request{Query: "Kindle vs Kobo"})
	assert.ErrorIs(t, err, ErrProviderFailure)
	assert.Equal(t, 60, f.lim.Remaining().PerMinute)
}

func TestHandle_ChatFreeFormAndMarkdown(t *testing.T) {
	gen := &stubGenerator{reply: "Happy to help!", prompts: make(chan generator.Prompt, 4)}
	f := newFixture(t, 60, gen)
	ctx := context.Background()

	history := []Message{
		{Role: "user", Content: "m1"}, {Role: "assistant", Content: "m2"},
		{Role: "user", Content: "m3"}, {Role: "assistant", Content: "m4"},
		{Role: "user", Content: "m5"}, {Role: "assistant", Content: "m6"},
	}
	res, err := f.svc.Handle(ctx, Request{Query: "hello there", History: history, AllowFreeForm: true})
	require.NoError(t, err)
	assert.Equal(t, ModeChat, res.Mode)
	assert.Equal(t, "Happy to help!", res.Content)
	assert.Empty(t, res.ComparisonKey)

	p := <-gen.prompts
	assert.NotContains(t, p.User, "m1", "only the last five messages are replayed")
	assert.Contains(t, p.User, "User: m5")
	assert.Contains(t, p.User, "Assistant: m6")

	// A pair in chat mode yields Markdown and is persisted.
	gen.reply = "**Quick Verdict** Pixel wins."
	res, err = f.svc.Handle(ctx, Request{Query: "iPhone 15 or Pixel 8?", AllowFreeForm: true})
	require.NoError(t, err)
	assert.Equal(t, "iphone-15-vs-pixel-8", res.ComparisonKey)
	assert.Nil(t, res.Comparison)
	p = <-gen.prompts
	assert.Contains(t, p.User, "Quick Verdict")

	f.svc.Wait()
	c, err := f.store.Get(ctx, "iphone-15-vs-pixel-8")
	require.NoError(t, err)
	assert.Equal(t, "**Quick Verdict** Pixel wins.", c.GeneratedContent)
}

func TestHandle_CatalogGrounding(t *testing.T) {
	gen := &stubGenerator{reply: macVsDell, prompts: make(chan generator.Prompt, 1)}
	f := newFixture(t, 60, gen)
	f.svc.Catalog = catalog.FromEntries([]catalog.Entry{
		{Title: "MacBook Air M3", Body: "Price $1,099. 18h battery."},
	})

	_, err := f.svc.Handle(context.Background(), Request{Query: "MacBook Air vs Dell XPS 13"})
	require.NoError(t, err)
	p := <-gen.prompts
	assert.Contains(t, p.User, "MacBook Air M3: Price $1,099")
	assert.Equal(t, []string{"MacBook Air", "Dell XPS 13"}, p.Subjects)
}

func TestHandle_Validation(t *testing.T) {
	f := newFixture(t, 60, &stubGenerator{reply: macVsDell})
	f.svc.MaxQueryRunes = 10

	_, err := f.svc.Handle(context.Background(), Request{Query: "   "})
	assert.ErrorIs(t, err, ErrEmptyQuery)

	_, err = f.svc.Handle(context.Background(), Request{Query: strings.Repeat("x", 11)})
	assert.ErrorIs(t, err, ErrQueryTooLong)
}

func TestHandle_ConcurrentMissesShareOneCall(t *testing.T) {
	gen := &stubGenerator{reply: macVsDell, gate: make(chan struct{})}
	f := newFixture(t, 60, gen)

	const n = 8
	var wg sync.WaitGroup
	results := make([]*Result, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			res, err := f.svc.Handle(context.Background(), Request{Query: "MacBook Air vs Dell XPS 13"})
			if err == nil {
				results[i] = res
			}
		}(i)
	}
	time.Sleep(100 * time.Millisecond)
	close(gen.gate)
	wg.Wait()

	assert.EqualValues(t, 1, gen.calls.Load())
	for i, r := range results {
		require.NotNil(t, r, "result %d", i)
		assert.Equal(t, "macbook-air-vs-dell-xps-13", r.ComparisonKey)
	}
	assert.Equal(t, 59, f.lim.Remaining().PerMinute)
}

func TestHandle_PersistFailureIsNotReturned(t *testing.T) {
	f := newFixture(t, 60, &stubGenerator{reply: macVsDell})
	sqlDB, _ := f.store.DB.DB()
	require.NoError(t, sqlDB.Close())

	res, err := f.svc.Handle(context.Background(), Request{Query: "MacBook Air vs Dell XPS 13"})
	require.NoError(t, err)
	assert.NotNil(t, res.Comparison)
	f.svc.Wait()
}

func TestFingerprint(t *testing.T) {
	a := Fingerprint("MacBook  vs Dell", ModeComparison, 0)
	assert.Equal(t, a, Fingerprint(" macbook vs dell ", ModeComparison, 0))
	assert.NotEqual(t, a, Fingerprint("macbook vs dell", ModeChat, 0))
	assert.NotEqual(t, a, Fingerprint("macbook vs dell", ModeComparison, 1))
	assert.Equal(t, Fingerprint("x", ModeChat, 5), Fingerprint("x", ModeChat, 12), "history beyond the window shares a bucket")
}

type recordingStore struct {
	mu    sync.Mutex
	calls int
}

func (r *recordingStore) Upsert(ctx context.Context, n1, n2, content, q string) (*domain.Comparison, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls++
	return &domain.Comparison{}, nil
}

func TestWait_DrainsBackgroundPersistence(t *testing.T) {
	rs := &recordingStore{}
	svc := &ArbitrationService{
		Cache:     cache.NewMemory(),
		Quota:     quota.New(60, 1500),
		Splitter:  query.NewSplitter(),
		Generator: &stubGenerator{reply: macVsDell},
		Store:     rs,
		Log:       zerolog.Nop(),
	}
	for i := 0; i < 3; i++ {
		_, err := svc.Handle(context.Background(), Request{Query: "MacBook Air vs Dell XPS 13"})
		require.NoError(t, err)
	}
	svc.Wait()
	rs.mu.Lock()
	defer rs.mu.Unlock()
	assert.Equal(t, 3, rs.calls)
}

func TestHandle_UnkeyablePairSkipsProvider(t *testing.T) {
	f := newFixture(t, 1, &stubGenerator{reply: macVsDell})
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		_, err := f.svc.Handle(ctx, Request{Query: "@@ vs ## %%"})
		require.ErrorIs(t, err, ErrNoProductsFound)
	}
	assert.EqualValues(t, 0, f.gen.calls.Load())
	assert.Equal(t, quota.Remaining{PerMinute: 1, PerDay: 1500}, f.lim.Remaining())
}

func TestHandle_UnkeyablePairChatsFreeForm(t *testing.T) {
	gen := &stubGenerator{reply: "Which two products?", prompts: make(chan generator.Prompt, 1)}
	f := newFixture(t, 60, gen)

	res, err := f.svc.Handle(context.Background(), Request{Query: "@@ vs ## %%", AllowFreeForm: true})
	require.NoError(t, err)
	assert.Equal(t, ModeChat, res.Mode)
	assert.Empty(t, res.ComparisonKey)
	assert.Equal(t, "Which two products?", res.Content)

	p := <-gen.prompts
	assert.Contains(t, p.User, "User: @@ vs ## %%")
	assert.Empty(t, p.Subjects)
	assert.Equal(t, 59, f.lim.Remaining().PerMinute)
}

func TestHandle_CancelledCallerDoesNotFailOthers(t *testing.T) {
	gen := &stubGenerator{reply: macVsDell, prompts: make(chan generator.Prompt, 2), gate: make(chan struct{})}
	f := newFixture(t, 60, gen)
	const q = "MacBook Air vs Dell XPS 13"

	leaderCtx, cancel := context.WithCancel(context.Background())
	leaderErr := make(chan error, 1)
	go func() {
		_, err := f.svc.Handle(leaderCtx, Request{Query: q})
		leaderErr <- err
	}()
	<-gen.prompts

	type outcome struct {
		res *Result
		err error
	}
	follower := make(chan outcome, 1)
	go func() {
		res, err := f.svc.Handle(context.Background(), Request{Query: q})
		follower <- outcome{res, err}
	}()
	time.Sleep(50 * time.Millisecond)

	cancel()
	assert.ErrorIs(t, <-leaderErr, context.Canceled)

	close(gen.gate)
	got := <-follower
	require.NoError(t, got.err)
	assert.Equal(t, "macbook-air-vs-dell-xps-13", got.res.ComparisonKey)
	assert.EqualValues(t, 1, gen.calls.Load())

	// The abandoned call still completed: quota spent once, view recorded.
	f.svc.Wait()
	assert.Equal(t, 59, f.lim.Remaining().PerMinute)
	c, err := f.store.Get(context.Background(), "macbook-air-vs-dell-xps-13")
	require.NoError(t, err)
	assert.EqualValues(t, 1, c.ViewCount)
}

func TestHandle_UnencodableComparisonIsNotCached(t *testing.T) {
	reply := strings.Replace(macVsDell, `"rating": "4.7"`, `"rating": "NaN"`, 1)
	f := newFixture(t, 60, &stubGenerator{reply: reply})
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		_, err := f.svc.Handle(ctx, Request{Query: "MacBook Air vs Dell XPS 13"})
		require.ErrorIs(t, err, ErrProviderFailure)
	}
	assert.EqualValues(t, 2, f.gen.calls.Load(), "failed output must not be cached")
	assert.Equal(t, 60, f.lim.Remaining().PerMinute)
}
