package progress

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/syndtr/goleveldb/leveldb"

	"github.com/knightmint/knightmint/internal/domain"
)

const localKeyPrefix = "progress:"

// LocalStore implements Store on LevelDB for guest sessions, keyed by the
// device/session identifier instead of a wallet address.
type LocalStore struct {
	db  *leveldb.DB
	now func() time.Time
}

// OpenLocalStore opens (or creates) the LevelDB store at path.
func OpenLocalStore(path string) (*LocalStore, error) {
	db, err := leveldb.OpenFile(path, nil)
	if err != nil {
		return nil, fmt.Errorf("open leveldb %q: %w", path, err)
	}
	return &LocalStore{db: db, now: time.Now}, nil
}

// Get retrieves guest progress for a device key.
func (s *LocalStore) Get(_ context.Context, userKey string) (domain.UserProgress, bool, error) {
	data, err := s.db.Get([]byte(localKeyPrefix+userKey), nil)
	if err == leveldb.ErrNotFound {
		return domain.UserProgress{}, false, nil
	}
	if err != nil {
		return domain.UserProgress{}, false, domain.WrapAppError(domain.ErrStoreQuery.Code, "get guest progress", err)
	}
	var p domain.UserProgress
	if err := json.Unmarshal(data, &p); err != nil {
		return domain.UserProgress{}, false, domain.WrapAppError(domain.ErrStoreQuery.Code, "decode guest progress", err)
	}
	return p, true, nil
}

// Set stores guest progress for a device key.
func (s *LocalStore) Set(_ context.Context, userKey string, p domain.UserProgress) error {
	p.UpdatedAtUnix = s.now().Unix()
	data, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("encode guest progress: %w", err)
	}
	if err := s.db.Put([]byte(localKeyPrefix+userKey), data, nil); err != nil {
		return domain.WrapAppError(domain.ErrStoreWrite.Code, "set guest progress", err)
	}
	return nil
}

// Close releases the underlying LevelDB handle.
func (s *LocalStore) Close() error {
	return s.db.Close()
}
