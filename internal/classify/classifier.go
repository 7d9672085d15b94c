// Package classify assigns categories to universal events, caching results by
// context fingerprint so repeated shapes skip the external AI call. Every
// failure path degrades to a safe UNKNOWN classification; this package never
// returns an error for a batch.
package classify

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/nkapur/unipipe/internal/domain"
)

// CategoryUnknown is the terminal category for events the service could not
// classify. Confidence 0.0 guarantees quarantine routing.
const CategoryUnknown = "UNKNOWN"

// Classification is the result shape of the external capability.
type Classification struct {
	Category    string  `json:"category"`
	SubCategory string  `json:"sub_category"`
	Confidence  float64 `json:"confidence"`
	Reasoning   string  `json:"reasoning"`
}

// Capability is the external AI classification service: given context text,
// return a category with confidence and reasoning. Calls may fail or time out.
type Capability interface {
	Classify(ctx context.Context, contextText string) (Classification, error)
}

// Unavailable is the Capability used when no AI service is configured. Every
// call fails, which degrades events to UNKNOWN and routes them to quarantine
// for human review.
type Unavailable struct{}

// Classify implements Capability.
func (Unavailable) Classify(context.Context, string) (Classification, error) {
	return Classification{}, errors.New("classification service not configured")
}

// Classifier tags events with categories, consulting the cache first.
type Classifier struct {
	capability Capability
	cache      Cache
	timeout    time.Duration
	// turboBatchSize triggers concurrent fan-out for large miss batches.
	// The turbo path has no behavioral difference from the sequential one.
	turboBatchSize int
	logger         *zap.Logger
}

// Option configures a Classifier.
type Option func(*Classifier)

// WithTimeout bounds each external call.
func WithTimeout(d time.Duration) Option {
	return func(c *Classifier) { c.timeout = d }
}

// WithTurboBatchSize sets the miss count at which classification fans out.
func WithTurboBatchSize(n int) Option {
	return func(c *Classifier) { c.turboBatchSize = n }
}

// NewClassifier wires a classifier around an external capability and an
// injectable cache.
func NewClassifier(capability Capability, cache Cache, logger *zap.Logger, opts ...Option) *Classifier {
	if cache == nil {
		cache = NewMemoryCache()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	c := &Classifier{
		capability:     capability,
		cache:          cache,
		timeout:        20 * time.Second,
		turboBatchSize: 8,
		logger:         logger.Named("classify"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ClassifyAll populates category, sub-category, confidence and reasoning on
// every event, in place, preserving input order. Cache hits and misses are
// grouped so the external service sees only the misses.
func (c *Classifier) ClassifyAll(ctx context.Context, events []*domain.UniversalEvent) []*domain.UniversalEvent {
	var misses []int

	for idx, event := range events {
		contextText := BuildContext(event)
		key := CacheKey(contextText)

		entry, ok := c.cache.Get(key)
		if ok && c.cachePlausible(entry, contextText) {
			event.Category = entry.Category
			event.SubCategory = entry.SubCategory
			event.ConfidenceScore = entry.Confidence
			event.AIReasoning = "cached classification for matching context"
			continue
		}
		misses = append(misses, idx)
	}

	if len(misses) == 0 {
		return events
	}

	if len(misses) >= c.turboBatchSize {
		c.classifyConcurrent(ctx, events, misses)
	} else {
		for _, idx := range misses {
			c.classifyOne(ctx, events[idx])
		}
	}

	return events
}

// classifyConcurrent fans the misses out and reassembles by index, so result
// order always matches input order.
func (c *Classifier) classifyConcurrent(ctx context.Context, events []*domain.UniversalEvent, misses []int) {
	var wg sync.WaitGroup
	for _, idx := range misses {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			c.classifyOne(ctx, events[i])
		}(idx)
	}
	wg.Wait()
}

func (c *Classifier) classifyOne(ctx context.Context, event *domain.UniversalEvent) {
	contextText := BuildContext(event)

	callCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	result, err := c.capability.Classify(callCtx, contextText)
	if err != nil {
		event.Category = CategoryUnknown
		event.SubCategory = ""
		event.ConfidenceScore = 0.0
		event.AIReasoning = fmt.Sprintf("classification failed: %v", err)
		c.logger.Warn("classification degraded to UNKNOWN",
			zap.String("event_id", event.EventID.String()),
			zap.Error(err))
		return
	}

	event.Category = result.Category
	event.SubCategory = result.SubCategory
	event.ConfidenceScore = clampConfidence(result.Confidence)
	event.AIReasoning = result.Reasoning

	c.cache.Put(CacheKey(contextText), CacheEntry{
		Category:    result.Category,
		SubCategory: result.SubCategory,
		Confidence:  event.ConfidenceScore,
		ContextLen:  len(contextText),
	})
}

// Learn feeds a human correction back into the cache so the next event with
// the same context shape starts from the reviewed category.
func (c *Classifier) Learn(event *domain.UniversalEvent) {
	contextText := BuildContext(event)
	c.cache.Put(CacheKey(contextText), CacheEntry{
		Category:    event.Category,
		SubCategory: event.SubCategory,
		Confidence:  event.ConfidenceScore,
		ContextLen:  len(contextText),
	})
}

// cachePlausible is the confirmatory check on a hit: the stored context must
// be roughly the same size as the incoming one, otherwise the hit is treated
// as stale and escalated to the live service.
func (c *Classifier) cachePlausible(entry CacheEntry, contextText string) bool {
	if entry.Category == "" || entry.Category == CategoryUnknown {
		return false
	}
	if entry.ContextLen == 0 {
		return false
	}
	diff := len(contextText) - entry.ContextLen
	if diff < 0 {
		diff = -diff
	}
	return diff*10 <= entry.ContextLen*4
}

// BuildContext produces the short description handed to the AI service:
// entity name, amount, then residual payload in stable key order.
func BuildContext(event *domain.UniversalEvent) string {
	var parts []string
	if event.EntityName != nil {
		parts = append(parts, "entity: "+*event.EntityName)
	}
	if event.Amount != nil {
		parts = append(parts, fmt.Sprintf("amount: %.2f", *event.Amount))
	}

	keys := make([]string, 0, len(event.RichData))
	for key := range event.RichData {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		parts = append(parts, key+": "+event.RichData[key])
	}

	return strings.Join(parts, "; ")
}

func clampConfidence(value float64) float64 {
	if value < 0 {
		return 0
	}
	if value > 1 {
		return 1
	}
	return value
}
