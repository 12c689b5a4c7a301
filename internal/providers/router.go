package providers

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/sipeed/picoclaw-core/internal/errs"
	"github.com/sipeed/picoclaw-core/internal/logging"
)

// Router resolves aliases, dispatches through the fallback chain, and
// records a metric row for every call — successful or exhausted
// (spec.md §4.2). It is a process-wide, read-mostly singleton apart from
// its mutable metrics/rate-limit state (spec.md §5).
type Router struct {
	adapters   map[string]Adapter
	aliases    *AliasResolver
	fallback   *FallbackChain
	compat     map[string]map[string]string
	pricing    *PricingTable
	metrics    MetricsRecorder
	limitersMu sync.Mutex
	limiters   map[string]*rate.Limiter
	timeout    time.Duration
}

// RouterOption configures a Router at construction time.
type RouterOption func(*Router)

// WithCompatibilityMap sets the provider->model->model mapping used when
// expanding a fallback chain across providers.
func WithCompatibilityMap(compat map[string]map[string]string) RouterOption {
	return func(r *Router) { r.compat = compat }
}

// WithCallTimeout bounds every adapter call; on expiry the router treats it
// as a retriable failure, triggering fallback (spec.md §5).
func WithCallTimeout(d time.Duration) RouterOption {
	return func(r *Router) { r.timeout = d }
}

// NewRouter builds a router over the given adapters (keyed by provider name).
func NewRouter(adapters map[string]Adapter, aliases *AliasResolver, pricing *PricingTable, metrics MetricsRecorder, opts ...RouterOption) *Router {
	r := &Router{
		adapters: adapters,
		aliases:  aliases,
		fallback: NewFallbackChain(NewCooldownTracker(30 * time.Second)),
		compat:   map[string]map[string]string{},
		pricing:  pricing,
		metrics:  metrics,
		limiters: make(map[string]*rate.Limiter),
		timeout:  60 * time.Second,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// ResolveModel exposes the router's alias resolution without dispatching a
// call, for callers (the LLM-config context block) that need to display
// which model an alias or purpose currently maps to.
func (r *Router) ResolveModel(alias string) ModelRef {
	return r.aliases.Resolve(alias)
}

func (r *Router) limiterFor(provider string) *rate.Limiter {
	r.limitersMu.Lock()
	defer r.limitersMu.Unlock()
	l, ok := r.limiters[provider]
	if !ok {
		l = rate.NewLimiter(rate.Limit(5), 10)
		r.limiters[provider] = l
	}
	return l
}

// Dispatch resolves modelAlias (an alias or a direct "provider:model"
// string), runs the fallback chain, and records a metric row describing
// whichever provider/model actually served the response. It returns the
// id of that metric row so the caller (the reasoning loop) can attach a
// later evaluate_response call to it via last_metrics_id.
func (r *Router) Dispatch(ctx context.Context, modelAlias string, fallbackProviders []string, req ChatRequest) (*ChatResponse, int64, error) {
	primary := r.aliases.Resolve(modelAlias)
	candidates := ResolveCandidates(primary, fallbackProviders, r.compat)

	start := time.Now()
	result, err := r.fallback.Execute(ctx, candidates, func(ctx context.Context, provider, model string) (*ChatResponse, error) {
		return r.callOne(ctx, provider, model, req)
	})

	if err != nil {
		metricID := r.recordStub(req, primary.Provider, primary.Model, time.Since(start))
		return nil, metricID, err
	}

	metricID := r.recordSuccess(req, result, time.Since(start))
	return result.Response, metricID, nil
}

func (r *Router) callOne(ctx context.Context, provider, model string, req ChatRequest) (*ChatResponse, error) {
	adapter, ok := r.adapters[provider]
	if !ok {
		return nil, &errs.RouterError{Provider: provider, Model: model, Retriable: true, Cause: fmt.Errorf("no adapter registered for provider %q", provider)}
	}

	if err := r.limiterFor(provider).Wait(ctx); err != nil {
		return nil, &errs.RouterError{Provider: provider, Model: model, Retriable: true, Cause: err}
	}

	callCtx := ctx
	var cancel context.CancelFunc
	if r.timeout > 0 {
		callCtx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	resp, err := adapter.Chat(callCtx, model, req)
	if err != nil {
		return nil, classify(provider, model, err)
	}
	return resp, nil
}

// classify wraps a raw adapter error as a RouterError, marking it retriable
// unless the adapter already tagged it as an authentication or schema
// failure (spec.md §4.2, §7).
func classify(provider, model string, err error) error {
	var rerr *errs.RouterError
	if e, ok := err.(*errs.RouterError); ok {
		rerr = e
		return rerr
	}
	return &errs.RouterError{Provider: provider, Model: model, Retriable: true, Cause: err}
}

func (r *Router) recordSuccess(req ChatRequest, result *Result, latency time.Duration) int64 {
	if r.metrics == nil {
		return 0
	}
	cost := r.pricing.EstimateCost(result.Provider, result.Model, result.Response.Usage)
	m := Metric{
		AgentID:      req.AgentID,
		Timestamp:    time.Now().UTC(),
		Provider:     result.Provider,
		Model:        result.Model,
		Purpose:      req.Purpose,
		InputTokens:  result.Response.Usage.InputTokens,
		OutputTokens: result.Response.Usage.OutputTokens,
		CostUSD:      cost,
		LatencyMs:    latency.Milliseconds(),
		TTFTMillis:   result.Response.TTFTMillis,
	}
	id, err := r.metrics.RecordMetric(m)
	if err != nil {
		logging.ErrorCF("router", "failed to record metric", map[string]any{"error": err.Error()})
		return 0
	}
	return id
}

// recordStub writes a zero-usage metric row when every candidate failed, so
// the loop can still surface a metric for observability (spec.md §4.1's
// failure semantics: "records a metric stub if any tokens were counted").
func (r *Router) recordStub(req ChatRequest, provider, model string, latency time.Duration) int64 {
	if r.metrics == nil {
		return 0
	}
	m := Metric{
		AgentID:   req.AgentID,
		Timestamp: time.Now().UTC(),
		Provider:  provider,
		Model:     model,
		Purpose:   req.Purpose,
		LatencyMs: latency.Milliseconds(),
	}
	id, err := r.metrics.RecordMetric(m)
	if err != nil {
		logging.ErrorCF("router", "failed to record metric stub", map[string]any{"error": err.Error()})
		return 0
	}
	return id
}

// RegisterAdapter adds or replaces the adapter for one provider name.
func (r *Router) RegisterAdapter(name string, a Adapter) {
	if r.adapters == nil {
		r.adapters = map[string]Adapter{}
	}
	r.adapters[name] = a
}
