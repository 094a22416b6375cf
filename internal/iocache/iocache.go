package iocache

import (
	"sync"

	"github.com/huangsam/shiftpoint/internal/contract"
)

// CacheStoreManager owns the memo store and the run-history store.
type CacheStoreManager struct {
	sync.RWMutex // Protects the store pointers during initialization
	memo         contract.CacheStore
	history      contract.HistoryStore
}

var _ contract.CacheManager = &CacheStoreManager{} // Compile-time check

// GetMemoStore returns the segmentation memo store, or nil when caching is off.
func (mgr *CacheStoreManager) GetMemoStore() contract.CacheStore {
	mgr.RLock()
	defer mgr.RUnlock()
	return mgr.memo
}

// GetHistoryStore returns the run-history store, or nil when history is off.
func (mgr *CacheStoreManager) GetHistoryStore() contract.HistoryStore {
	mgr.RLock()
	defer mgr.RUnlock()
	return mgr.history
}
