package store

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	bolt "go.etcd.io/bbolt"
)

var bucketSnapshots = []byte("snapshots")

// Snapshot persists successful list pages across runs so the dashboard can
// render immediately from the last session and refresh in the background.
// Values are stored as JSON keyed by Key.String().
type Snapshot struct {
	db     *bolt.DB
	logger *slog.Logger
	mu     sync.RWMutex // Protects memory cache

	// In-memory cache for hot-path reads (promoted on access)
	cache map[string][]byte
}

// OpenSnapshot opens (or creates) the snapshot database for serverURL under
// baseDir. An empty baseDir gives a memory-only snapshot.
func OpenSnapshot(baseDir, serverURL string, logger *slog.Logger) (*Snapshot, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if baseDir == "" {
		return &Snapshot{cache: make(map[string][]byte), logger: logger}, nil
	}

	dir := baseDir
	if serverURL != "" {
		dir = filepath.Join(baseDir, hashServerURL(serverURL))
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}

	dbPath := filepath.Join(dir, "folio.db")
	db, err := bolt.Open(dbPath, 0600, &bolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open bolt db: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketSnapshots)
		return err
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	return &Snapshot{db: db, cache: make(map[string][]byte), logger: logger}, nil
}

func hashServerURL(serverURL string) string {
	normalized := strings.TrimRight(strings.ToLower(serverURL), "/")
	hash := sha256.Sum256([]byte(normalized))
	return hex.EncodeToString(hash[:6])
}

func (s *Snapshot) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Load decodes the stored value for key into dest.
func (s *Snapshot) Load(key Key, dest any) bool {
	k := key.String()

	s.mu.RLock()
	if data, ok := s.cache[k]; ok {
		s.mu.RUnlock()
		return json.Unmarshal(data, dest) == nil
	}
	s.mu.RUnlock()

	if s.db == nil {
		return false
	}

	var data []byte
	s.db.View(func(tx *bolt.Tx) error {
		if v := tx.Bucket(bucketSnapshots).Get([]byte(k)); v != nil {
			data = make([]byte, len(v))
			copy(data, v)
		}
		return nil
	})
	if data == nil {
		return false
	}

	s.mu.Lock()
	s.cache[k] = data
	s.mu.Unlock()

	return json.Unmarshal(data, dest) == nil
}

// Save stores value under key.
func (s *Snapshot) Save(key Key, value any) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	k := key.String()

	s.mu.Lock()
	s.cache[k] = data
	s.mu.Unlock()

	if s.db == nil {
		return nil
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketSnapshots).Put([]byte(k), data)
	})
}

// Delete drops the stored value for key.
func (s *Snapshot) Delete(key Key) {
	k := key.String()

	s.mu.Lock()
	delete(s.cache, k)
	s.mu.Unlock()

	if s.db == nil {
		return
	}
	s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketSnapshots).Delete([]byte(k))
	})
}

// DeleteTag drops every stored value whose key starts with tag.
func (s *Snapshot) DeleteTag(tag Tag) {
	prefix := string(tag) + ":"

	s.mu.Lock()
	for k := range s.cache {
		if strings.HasPrefix(k, prefix) {
			delete(s.cache, k)
		}
	}
	s.mu.Unlock()

	if s.db == nil {
		return
	}
	err := s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketSnapshots)
		var keys [][]byte
		c := b.Cursor()
		for k, _ := c.Seek([]byte(prefix)); k != nil && strings.HasPrefix(string(k), prefix); k, _ = c.Next() {
			keys = append(keys, append([]byte(nil), k...))
		}
		for _, k := range keys {
			if err := b.Delete(k); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		s.logger.Error("failed to delete snapshots", "error", err, "tag", tag)
	}
}

// Clear wipes every stored value.
func (s *Snapshot) Clear() {
	s.mu.Lock()
	s.cache = make(map[string][]byte)
	s.mu.Unlock()

	if s.db == nil {
		return
	}
	err := s.db.Update(func(tx *bolt.Tx) error {
		if err := tx.DeleteBucket(bucketSnapshots); err != nil {
			return err
		}
		_, err := tx.CreateBucket(bucketSnapshots)
		return err
	})
	if err != nil {
		s.logger.Error("failed to clear snapshots", "error", err)
	}
}

// Attach mirrors successful list writes from st into the snapshot until the
// returned function is called. Optimistic placeholders are persisted too;
// the next session revalidates every seeded page anyway.
func (s *Snapshot) Attach(st *Store) func() {
	return st.SubscribeMatch(Pattern{Kind: KindList}, func(ev Event) {
		switch ev.Type {
		case EventSet:
			if ev.Entry.Status != StatusSuccess || !ev.Entry.HasValue() {
				return
			}
			if err := s.Save(ev.Key, ev.Entry.Value); err != nil {
				s.logger.Error("failed to save snapshot", "error", err, "key", ev.Key.String())
			}
		case EventRemove:
			s.Delete(ev.Key)
		}
	})
}
