package core

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"
	"time"

	"github.com/huangsam/shiftpoint/core/dispatch"
	"github.com/huangsam/shiftpoint/internal/contract"
	"github.com/huangsam/shiftpoint/schema"
	"github.com/prometheus/client_golang/prometheus"
)

// currentCacheVersion defines the version of the cache schema
const currentCacheVersion = 1

var memoLookups = prometheus.NewCounterVec(
	prometheus.CounterOpts{Namespace: "shiftpoint", Subsystem: "memo", Name: "lookups_total", Help: "Segmentation memo lookups by result."},
	[]string{"result"},
)

func init() {
	_ = prometheus.Register(memoLookups)
}

// MemoSegmenter serves change points from a CacheStore and falls back to Next on a miss.
// Entries never expire since the key covers every input of the computation.
type MemoSegmenter struct {
	Store   contract.CacheStore
	Field   schema.SeriesField
	MinSize int
	Next    dispatch.Segmenter
}

var _ dispatch.Segmenter = MemoSegmenter{} // Compile-time check

// Segment implements dispatch.Segmenter.
func (s MemoSegmenter) Segment(ctx context.Context, seriesID string, values []float64, k int) (schema.ChangePointSet, error) {
	next := s.Next
	if next == nil {
		next = dispatch.DirectSegmenter{MinSize: s.MinSize}
	}
	if s.Store == nil {
		return next.Segment(ctx, seriesID, values, k)
	}

	key := generateCacheKey(seriesID, s.Field, k, s.MinSize, values)

	// Check for cache hit
	if result, ok := checkCacheHit(s.Store, key); ok {
		memoLookups.WithLabelValues("hit").Inc()
		return result, nil
	}
	memoLookups.WithLabelValues("miss").Inc()

	// Cache miss: compute and store
	return computeAndStore(ctx, next, s.Store, key, seriesID, values, k)
}

// checkCacheHit attempts to retrieve and validate a cached result
func checkCacheHit(store contract.CacheStore, key string) (schema.ChangePointSet, bool) {
	data, version, _, err := store.Get(key)
	if err != nil || version != currentCacheVersion {
		return schema.ChangePointSet{}, false
	}
	var result schema.ChangePointSet
	if err := json.Unmarshal(data, &result); err != nil {
		return schema.ChangePointSet{}, false
	}
	return result, true
}

// computeAndStore computes the result and stores it in cache
func computeAndStore(ctx context.Context, next dispatch.Segmenter, store contract.CacheStore, key, seriesID string, values []float64, k int) (schema.ChangePointSet, error) {
	result, err := next.Segment(ctx, seriesID, values, k)
	if err != nil {
		return schema.ChangePointSet{}, err
	}

	if data, err := json.Marshal(result); err == nil {
		if err := store.Set(key, data, currentCacheVersion, time.Now().Unix()); err != nil {
			contract.LogWarn("Failed to store segmentation memo", err)
		}
	}
	return result, nil
}

// generateCacheKey hashes every input that determines a segmentation.
func generateCacheKey(seriesID string, field schema.SeriesField, k, minSize int, values []float64) string {
	h := sha256.New()
	_, _ = fmt.Fprintf(h, "%s:%s:%d:%d:%d:", seriesID, field, k, minSize, len(values))
	var buf [8]byte
	for _, v := range values {
		binary.LittleEndian.PutUint64(buf[:], math.Float64bits(v))
		_, _ = h.Write(buf[:])
	}
	return fmt.Sprintf("%x", h.Sum(nil))
}
