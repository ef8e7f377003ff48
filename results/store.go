package results

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/cockroachdb/pebble/v2"
	"github.com/cockroachdb/pebble/v2/vfs"
	lru "github.com/hashicorp/golang-lru/v2"
)

const keyPrefix = "draw/"

// Store persists finished draws in PebbleDB, keyed by room code, with an LRU
// cache in front for rejoin lookups.
type Store struct {
	db    *pebble.DB
	mu    sync.Mutex
	cache *lru.Cache[string, map[string]string]
}

// Open opens the store under dir. An empty dir keeps everything in memory.
func Open(dir string, cacheSize int) (*Store, error) {
	opts := &pebble.Options{}
	path := filepath.Clean(dir)
	if dir == "" {
		opts.FS = vfs.NewMem()
		path = "santa"
	} else if err := os.MkdirAll(path, 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	if cacheSize <= 0 {
		cacheSize = 256
	}
	cache, err := lru.New[string, map[string]string](cacheSize)
	if err != nil {
		return nil, err
	}
	db, err := pebble.Open(path, opts)
	if err != nil {
		return nil, fmt.Errorf("open pebble db: %w", err)
	}
	return &Store{db: db, cache: cache}, nil
}

func drawKey(room string) []byte {
	return []byte(keyPrefix + room)
}

// SaveDraw records the giver to receiver assignments of a room.
func (s *Store) SaveDraw(room string, pairs map[string]string) error {
	if s == nil || s.db == nil {
		return nil
	}
	val, err := json.Marshal(pairs)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.db.Set(drawKey(room), val, pebble.Sync); err != nil {
		return fmt.Errorf("save draw %s: %w", room, err)
	}
	s.cache.Add(room, copyPairs(pairs))
	return nil
}

// LoadDraw returns the assignments saved for room, if any.
func (s *Store) LoadDraw(room string) (map[string]string, bool, error) {
	if s == nil || s.db == nil {
		return nil, false, nil
	}
	if pairs, ok := s.cache.Get(room); ok {
		return copyPairs(pairs), true, nil
	}
	val, closer, err := s.db.Get(drawKey(room))
	if err != nil {
		if errors.Is(err, pebble.ErrNotFound) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("load draw %s: %w", room, err)
	}
	defer func() { _ = closer.Close() }()

	var pairs map[string]string
	if err := json.Unmarshal(val, &pairs); err != nil {
		return nil, false, fmt.Errorf("decode draw %s: %w", room, err)
	}
	s.cache.Add(room, pairs)
	return copyPairs(pairs), true, nil
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	s.cache.Purge()
	return s.db.Close()
}

func copyPairs(in map[string]string) map[string]string {
	out := make(map[string]string, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
