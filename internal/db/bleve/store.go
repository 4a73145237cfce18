// Package bleve implements db.Store on an embedded bleve index.
// Each db.IndexDefinition becomes one bleve index; keys are routed to the
// index whose prefix covers them, and the raw JSON is stored with the document.
package bleve

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/blevesearch/bleve/v2"

	"github.com/kailas-cloud/skuindex/internal/db"
)

var _ db.Store = (*Store)(nil)

var errClosed = errors.New("bleve store is closed")

// Config holds the on-disk location. An empty Path keeps every index in memory.
type Config struct {
	Path string
}

type index struct {
	def *db.IndexDefinition
	idx bleve.Index
	dir string
}

// Store implements db.Store with one bleve index per definition.
type Store struct {
	path string

	mu      sync.RWMutex
	indexes map[string]*index
	closed  bool
}

// NewStore opens a store. With a Path, indexes created by earlier runs are reopened.
func NewStore(cfg Config) (*Store, error) {
	s := &Store{path: cfg.Path, indexes: make(map[string]*index)}
	if cfg.Path == "" {
		return s, nil
	}

	if err := os.MkdirAll(cfg.Path, 0o755); err != nil {
		return nil, fmt.Errorf("create index dir: %w", err)
	}
	entries, err := os.ReadDir(cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("read index dir: %w", err)
	}
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		ix, err := openIndex(filepath.Join(cfg.Path, e.Name()))
		if err != nil {
			s.Close()
			return nil, err
		}
		s.indexes[ix.def.Name] = ix
	}
	return s, nil
}

func openIndex(dir string) (*index, error) {
	idx, err := bleve.Open(dir)
	if err != nil {
		return nil, fmt.Errorf("open index %s: %w", dir, err)
	}
	raw, err := idx.GetInternal([]byte(definitionKey))
	if err != nil || len(raw) == 0 {
		_ = idx.Close()
		return nil, fmt.Errorf("index %s: missing definition", dir)
	}
	var def db.IndexDefinition
	if err := json.Unmarshal(raw, &def); err != nil {
		_ = idx.Close()
		return nil, fmt.Errorf("index %s: decode definition: %w", dir, err)
	}
	return &index{def: &def, idx: idx, dir: dir}, nil
}

// Ping fails once the store is closed.
func (s *Store) Ping(_ context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return errClosed
	}
	return nil
}

// WaitForReady returns immediately: an embedded index is ready once opened.
func (s *Store) WaitForReady(ctx context.Context, _ time.Duration) error {
	return s.Ping(ctx)
}

// Close closes every open index.
func (s *Store) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	for _, ix := range s.indexes {
		_ = ix.idx.Close()
	}
}

// --- Index lifecycle ---

// CreateIndex builds the mapping for def and opens a new index.
// Returns db.ErrIndexExists if an index with that name is registered.
func (s *Store) CreateIndex(_ context.Context, def *db.IndexDefinition) error {
	if err := def.Validate(); err != nil {
		return &db.Error{Op: db.OpCreateIndex, Err: err}
	}
	im, err := buildMapping(def)
	if err != nil {
		return &db.Error{Op: db.OpCreateIndex, Err: err}
	}
	rawDef, err := json.Marshal(def)
	if err != nil {
		return &db.Error{Op: db.OpCreateIndex, Err: err}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return &db.Error{Op: db.OpCreateIndex, Err: errClosed}
	}
	if _, ok := s.indexes[def.Name]; ok {
		return db.ErrIndexExists
	}

	var (
		idx bleve.Index
		dir string
	)
	if s.path == "" {
		idx, err = bleve.NewMemOnly(im)
	} else {
		dir = filepath.Join(s.path, dirName(def.Name))
		idx, err = bleve.New(dir, im)
	}
	if err != nil {
		return &db.Error{Op: db.OpCreateIndex, Err: err}
	}
	if err := idx.SetInternal([]byte(definitionKey), rawDef); err != nil {
		_ = idx.Close()
		return &db.Error{Op: db.OpCreateIndex, Err: err}
	}

	owned := *def
	s.indexes[def.Name] = &index{def: &owned, idx: idx, dir: dir}
	return nil
}

// DropIndex closes the index and removes its files. Documents go with it.
func (s *Store) DropIndex(_ context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	ix, ok := s.indexes[name]
	if !ok {
		return db.ErrIndexNotFound
	}
	delete(s.indexes, name)

	if err := ix.idx.Close(); err != nil {
		return &db.Error{Op: db.OpDropIndex, Err: err}
	}
	if ix.dir != "" {
		if err := os.RemoveAll(ix.dir); err != nil {
			return &db.Error{Op: db.OpDropIndex, Err: err}
		}
	}
	return nil
}

// IndexExists reports whether name is registered.
func (s *Store) IndexExists(_ context.Context, name string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return false, &db.Error{Op: db.OpIndexInfo, Err: errClosed}
	}
	_, ok := s.indexes[name]
	return ok, nil
}

// --- JSON documents ---

// JSONSet indexes data under key. Only the root path is supported and it
// replaces the whole document.
func (s *Store) JSONSet(ctx context.Context, key, path string, data []byte) error {
	return s.JSONSetMulti(ctx, []db.JSONSetItem{{Key: key, Path: path, Data: data}})
}

// JSONSetMulti indexes items in one batch per target index.
func (s *Store) JSONSetMulti(_ context.Context, items []db.JSONSetItem) error {
	if len(items) == 0 {
		return nil
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return &db.Error{Op: db.OpJSONSet, Err: errClosed}
	}

	batches := make(map[*index]*bleve.Batch)
	for _, item := range items {
		if item.Path != "" && item.Path != "$" {
			return &db.Error{Op: db.OpJSONSet, Err: fmt.Errorf("key %s: unsupported path %q", item.Key, item.Path)}
		}
		ix := s.route(item.Key)
		if ix == nil {
			return &db.Error{Op: db.OpJSONSet, Err: fmt.Errorf("key %s: %w", item.Key, db.ErrNoIndexForKey)}
		}

		var doc map[string]interface{}
		if err := json.Unmarshal(item.Data, &doc); err != nil {
			return &db.Error{Op: db.OpJSONSet, Err: fmt.Errorf("key %s: %w", item.Key, err)}
		}
		doc[sourceField] = string(item.Data)

		b, ok := batches[ix]
		if !ok {
			b = ix.idx.NewBatch()
			batches[ix] = b
		}
		if err := b.Index(item.Key, doc); err != nil {
			return &db.Error{Op: db.OpJSONSet, Err: fmt.Errorf("key %s: %w", item.Key, err)}
		}
	}

	for ix, b := range batches {
		if err := ix.idx.Batch(b); err != nil {
			return &db.Error{Op: db.OpJSONSet, Err: err}
		}
	}
	return nil
}

// JSONGet returns the stored document. Only the root path is supported.
func (s *Store) JSONGet(ctx context.Context, key string, paths ...string) ([]byte, error) {
	for _, p := range paths {
		if p != "$" {
			return nil, &db.Error{Op: db.OpJSONGet, Err: fmt.Errorf("unsupported path %q", p)}
		}
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, &db.Error{Op: db.OpJSONGet, Err: errClosed}
	}

	ix := s.route(key)
	if ix == nil {
		return nil, db.ErrKeyNotFound
	}
	src, found, err := lookupSource(ctx, ix.idx, key)
	if err != nil {
		return nil, &db.Error{Op: db.OpJSONGet, Err: err}
	}
	if !found {
		return nil, db.ErrKeyNotFound
	}
	return []byte(src), nil
}

// Del removes keys. Missing keys and keys no index covers are ignored.
func (s *Store) Del(_ context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return &db.Error{Op: db.OpDel, Err: errClosed}
	}

	batches := make(map[*index]*bleve.Batch)
	for _, key := range keys {
		ix := s.route(key)
		if ix == nil {
			continue
		}
		b, ok := batches[ix]
		if !ok {
			b = ix.idx.NewBatch()
			batches[ix] = b
		}
		b.Delete(key)
	}
	for ix, b := range batches {
		if err := ix.idx.Batch(b); err != nil {
			return &db.Error{Op: db.OpDel, Err: err}
		}
	}
	return nil
}

// route returns the index whose prefix covers key; ties go to the lowest name.
// Caller holds s.mu.
func (s *Store) route(key string) *index {
	names := make([]string, 0, len(s.indexes))
	for name, ix := range s.indexes {
		if ix.def.Covers(key) {
			names = append(names, name)
		}
	}
	if len(names) == 0 {
		return nil
	}
	sort.Strings(names)
	return s.indexes[names[0]]
}

func lookupSource(ctx context.Context, idx bleve.Index, key string) (string, bool, error) {
	req := bleve.NewSearchRequestOptions(bleve.NewDocIDQuery([]string{key}), 1, 0, false)
	req.Fields = []string{sourceField}

	res, err := idx.SearchInContext(ctx, req)
	if err != nil {
		return "", false, err
	}
	if len(res.Hits) == 0 {
		return "", false, nil
	}
	src, _ := res.Hits[0].Fields[sourceField].(string)
	return src, true, nil
}

// dirName turns an index name into a directory name: "app:sku:idx" -> "app_sku_idx".
func dirName(name string) string {
	return strings.ReplaceAll(name, ":", "_")
}
