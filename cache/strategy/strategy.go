// Package strategy implements the Storage Strategy: given a key, value,
// and options, recommends which Storage Engine should hold it, with a
// confidence score and a human-readable reason, backed by a decision
// cache keyed by (size-bucket, ttl-bucket, type).
package strategy

import (
	"time"

	"github.com/poly1603/ldesign-cache-sub004/cache/engine"
)

// Decision is the strategy's verdict for one set() call.
type Decision struct {
	Engine     string
	Reason     string
	Confidence float64
}

// Config controls whether the strategy is consulted at all.
type Config struct {
	Enabled       bool
	DefaultEngine string
}

// Rule maps one bucket combination to an engine preference with a
// confidence weight.
type Rule struct {
	Size       SizeBucket
	TTL        TTLBucket
	Type       ValueType
	Engine     string
	Reason     string
	Confidence float64
}

// defaultRules is the bucket table consulted on a cache-decision miss.
// Rules are evaluated in order; when more than one matches the same
// bucket triple (the "medium + medium" row names two engines), their
// confidences are weighted-averaged and the first-listed engine wins
// ties.
var defaultRules = []Rule{
	{Size: SizeSmall, TTL: TTLShort, Engine: engine.NameMemory, Reason: "small, short-lived value favors memory", Confidence: 0.9},
	{Size: SizeSmall, TTL: TTLMedium, Engine: engine.NameLocal, Reason: "small value with lasting ttl favors local-persistent", Confidence: 0.85},
	{Size: SizeSmall, TTL: TTLLong, Engine: engine.NameLocal, Reason: "small value with lasting ttl favors local-persistent", Confidence: 0.85},
	{Size: SizeSmall, TTL: TTLPersistent, Engine: engine.NameLocal, Reason: "small value with lasting ttl favors local-persistent", Confidence: 0.85},
	{Size: SizeMedium, TTL: TTLShort, Engine: engine.NameMemory, Reason: "medium value with short ttl favors memory", Confidence: 0.8},
	{Size: SizeMedium, TTL: TTLMedium, Engine: engine.NameSession, Reason: "medium value with medium ttl favors session-scoped", Confidence: 0.6},
	{Size: SizeMedium, TTL: TTLMedium, Engine: engine.NameLocal, Reason: "medium value with medium ttl also fits local-persistent", Confidence: 0.6},
}

// Strategy implements the consult/decision-cache pair.
type Strategy struct {
	cfg   Config
	rules []Rule

	cache *decisionCache

	onDecision func(key string, d Decision)
}

// New constructs a Strategy. onDecision, if non-nil, is invoked with
// every consult outcome so the caller can emit a strategy event (not
// fired on cache hits, only on consult).
func New(cfg Config, onDecision func(key string, d Decision)) *Strategy {
	return &Strategy{
		cfg:        cfg,
		rules:      defaultRules,
		cache:      newDecisionCache(),
		onDecision: onDecision,
	}
}

// Consult recommends an engine for (key, valueSize, ttl, valueType).
// Complex object/array and binary values always route to
// indexed-persistent regardless of size/ttl bucket, checked
// before the bucket-table lookup.
func (s *Strategy) Consult(key string, valueSize int64, ttl time.Duration, valueType ValueType) Decision {
	if !s.cfg.Enabled {
		d := Decision{Engine: s.cfg.DefaultEngine, Reason: "strategy disabled", Confidence: 0.5}
		s.notify(key, d)
		return d
	}

	if valueType == TypeBinary {
		d := Decision{Engine: engine.NameIndexed, Reason: "binary value routed to indexed-persistent", Confidence: 0.95}
		s.notify(key, d)
		return d
	}

	sizeBucket := bucketSize(valueSize)
	ttlBucket := bucketTTL(ttl)

	if sizeBucket == SizeLarge || sizeBucket == SizeHuge {
		d := Decision{Engine: engine.NameIndexed, Reason: "large value routed to indexed-persistent", Confidence: 0.95}
		s.notify(key, d)
		return d
	}
	if valueType == TypeObject || valueType == TypeArray {
		d := Decision{Engine: engine.NameIndexed, Reason: "complex value routed to indexed-persistent", Confidence: 0.9}
		s.notify(key, d)
		return d
	}

	bucket := bucketKey{Size: sizeBucket, TTL: ttlBucket, Type: valueType}
	if cached, ok := s.cache.get(bucket); ok {
		return cached
	}

	decision := s.evaluateRules(sizeBucket, ttlBucket)
	s.cache.put(bucket, decision)
	s.notify(key, decision)
	return decision
}

func (s *Strategy) evaluateRules(size SizeBucket, ttl TTLBucket) Decision {
	var matches []Rule
	for _, r := range s.rules {
		if r.Size == size && r.TTL == ttl {
			matches = append(matches, r)
		}
	}
	if len(matches) == 0 {
		return Decision{Engine: s.cfg.DefaultEngine, Reason: "no strategy rule matched, using default engine", Confidence: 0.5}
	}
	if len(matches) == 1 {
		return Decision{Engine: matches[0].Engine, Reason: matches[0].Reason, Confidence: matches[0].Confidence}
	}

	// Weighted majority across competing rules: confidence drops when
	// multiple rules compete.
	totals := make(map[string]float64)
	reasons := make(map[string]string)
	var weightSum float64
	for _, r := range matches {
		totals[r.Engine] += r.Confidence
		reasons[r.Engine] = r.Reason
		weightSum += r.Confidence
	}
	winner := matches[0].Engine
	best := totals[winner]
	for eng, total := range totals {
		if total > best {
			best = total
			winner = eng
		}
	}
	return Decision{Engine: winner, Reason: reasons[winner], Confidence: best / weightSum}
}

func (s *Strategy) notify(key string, d Decision) {
	if s.onDecision != nil {
		s.onDecision(key, d)
	}
}

// Stats reports the decision cache's running hit rate, expected to
// climb past 50% once the bucket space has warmed up.
type Stats struct {
	Hits   uint64
	Misses uint64
}

func (s Stats) HitRate() float64 {
	total := s.Hits + s.Misses
	if total == 0 {
		return 0
	}
	return float64(s.Hits) / float64(total)
}

// CacheStats exposes the decision cache's running stats.
func (s *Strategy) CacheStats() Stats {
	return s.cache.stats()
}
