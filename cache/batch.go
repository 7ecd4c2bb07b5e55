package cache

import (
	"context"
	"sync"
)

// BatchFailure pairs a key with the error that failed it within a batch
// operation.
type BatchFailure struct {
	Key string
	Err error
}

// BatchResult is the per-key outcome set every batch operation returns:
// one key's failure never aborts the others.
type BatchResult struct {
	Success []string
	Failed  []BatchFailure
}

// BatchSetItem is one key's payload in an MSet call.
type BatchSetItem struct {
	Value interface{}
	Opts  SetOptions
}

// runBatch executes op for every key with bounded concurrency
// (Config.BatchConcurrency, default 10) and admission throttled by
// m.batchLimiter.
func (m *Manager) runBatch(ctx context.Context, keys []string, op func(ctx context.Context, key string) error) BatchResult {
	concurrency := m.cfg.BatchConcurrency
	if concurrency <= 0 {
		concurrency = 10
	}
	sem := make(chan struct{}, concurrency)

	var mu sync.Mutex
	var result BatchResult
	var wg sync.WaitGroup

	for _, key := range keys {
		key := key
		wg.Add(1)
		sem <- struct{}{}
		go func() {
			defer wg.Done()
			defer func() { <-sem }()

			if err := m.batchLimiter.Wait(ctx); err != nil {
				mu.Lock()
				result.Failed = append(result.Failed, BatchFailure{Key: key, Err: err})
				mu.Unlock()
				return
			}
			if err := op(ctx, key); err != nil {
				mu.Lock()
				result.Failed = append(result.Failed, BatchFailure{Key: key, Err: err})
				mu.Unlock()
				return
			}
			mu.Lock()
			result.Success = append(result.Success, key)
			mu.Unlock()
		}()
	}
	wg.Wait()
	return result
}

// MSet stores every item in items with bounded concurrency.
func (m *Manager) MSet(ctx context.Context, items map[string]BatchSetItem) BatchResult {
	keys := make([]string, 0, len(items))
	for k := range items {
		keys = append(keys, k)
	}
	return m.runBatch(ctx, keys, func(ctx context.Context, key string) error {
		item := items[key]
		return m.Set(ctx, key, item.Value, item.Opts)
	})
}

// MGet fetches every key in outs, deserializing into its associated
// target. A miss (key absent or expired) is not a batch failure, mirroring
// single-key Get's "null = absent" semantics; outs[key] is simply left
// untouched.
func (m *Manager) MGet(ctx context.Context, outs map[string]interface{}) BatchResult {
	keys := make([]string, 0, len(outs))
	for k := range outs {
		keys = append(keys, k)
	}
	return m.runBatch(ctx, keys, func(ctx context.Context, key string) error {
		_, err := m.Get(ctx, key, outs[key])
		return err
	})
}

// MRemove deletes every key in keys with bounded concurrency.
func (m *Manager) MRemove(ctx context.Context, keys []string) BatchResult {
	return m.runBatch(ctx, keys, func(ctx context.Context, key string) error {
		return m.Remove(ctx, key)
	})
}

// MHas reports presence for every key in keys. presence[key] is valid
// only for keys that also appear in the returned BatchResult's Success
// list.
func (m *Manager) MHas(ctx context.Context, keys []string) (map[string]bool, BatchResult) {
	presence := make(map[string]bool, len(keys))
	var mu sync.Mutex
	result := m.runBatch(ctx, keys, func(ctx context.Context, key string) error {
		ok, err := m.Has(ctx, key)
		if err != nil {
			return err
		}
		mu.Lock()
		presence[key] = ok
		mu.Unlock()
		return nil
	})
	return presence, result
}
