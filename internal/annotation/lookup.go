package annotation

import (
	"context"
	"fmt"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/sirupsen/logrus"

	"github.com/variantdb-pipeline/internal/domain"
)

// Lookup point-queries the current cache generation. It holds one open
// generation handle at a time; Reload publishes a newly built generation to
// readers. A small LRU memoizes hits and misses, since batches routinely
// carry the same variant for many patients.
type Lookup struct {
	cachePath string
	log       *logrus.Logger

	mu    sync.RWMutex
	store *Store

	memo *lru.Cache[string, memoEntry]
}

type memoEntry struct {
	record *domain.AnnotationRecord
	found  bool
}

// NewLookup creates a lookup over the cache generation at cachePath. The
// generation is opened lazily on first use.
func NewLookup(cachePath string, memoSize int, log *logrus.Logger) (*Lookup, error) {
	if memoSize <= 0 {
		memoSize = 1024
	}
	memo, err := lru.New[string, memoEntry](memoSize)
	if err != nil {
		return nil, fmt.Errorf("failed to create lookup memo cache: %w", err)
	}
	return &Lookup{cachePath: cachePath, log: log, memo: memo}, nil
}

// Find returns the annotation for (ncAccession, nmHGVS). The boolean is
// false on a miss; errors are store-level only.
func (l *Lookup) Find(ctx context.Context, ncAccession, nmHGVS string) (*domain.AnnotationRecord, bool, error) {
	key := ncAccession + "|" + nmHGVS
	if entry, ok := l.memo.Get(key); ok {
		return entry.record, entry.found, nil
	}

	store, err := l.currentStore()
	if err != nil {
		return nil, false, err
	}

	record, found, err := store.find(ctx, ncAccession, nmHGVS)
	if err != nil {
		return nil, false, err
	}

	if !found {
		l.log.WithFields(logrus.Fields{
			"accession": ncAccession,
			"hgvs":      nmHGVS,
		}).Info("Variant not present in annotation cache")
	}

	l.memo.Add(key, memoEntry{record: record, found: found})
	return record, found, nil
}

// Reload swaps readers onto the generation currently on disk and drops the
// memo, called after a rebuild publishes a new generation.
func (l *Lookup) Reload() error {
	store, err := OpenStore(l.cachePath)
	if err != nil {
		return &domain.StoreError{Op: "annotation cache open", Err: err}
	}

	l.mu.Lock()
	old := l.store
	l.store = store
	l.mu.Unlock()

	l.memo.Purge()
	if old != nil {
		old.Close()
	}
	return nil
}

// Close releases the current generation handle.
func (l *Lookup) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.store == nil {
		return nil
	}
	err := l.store.Close()
	l.store = nil
	return err
}

func (l *Lookup) currentStore() (*Store, error) {
	l.mu.RLock()
	store := l.store
	l.mu.RUnlock()
	if store != nil {
		return store, nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if l.store == nil {
		store, err := OpenStore(l.cachePath)
		if err != nil {
			return nil, &domain.StoreError{Op: "annotation cache open", Err: err}
		}
		l.store = store
	}
	return l.store, nil
}
