package ledger

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/quantsentry/sentinel/internal/errors"
	"github.com/quantsentry/sentinel/pkg/types"
)

// FileStore persists trades as a JSON array in a single file, with the
// open-position set in a sibling file. Writes go through a temp file and
// rename so a crash mid-write cannot corrupt the ledger.
type FileStore struct {
	mu       sync.Mutex
	path     string
	openPath string
}

// NewFileStore creates a file-backed ledger, creating parent directories
// as needed.
func NewFileStore(path string) (*FileStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, errors.Wrap(err, errors.CategoryLedger, "ledger", "NewFileStore")
	}
	return &FileStore{path: path, openPath: path + ".open"}, nil
}

// SaveTrade appends a closed trade
func (s *FileStore) SaveTrade(_ context.Context, trade types.TradeRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	trades, err := s.readAll()
	if err != nil {
		return err
	}
	trades = append(trades, trade)
	return s.writeAll(trades)
}

// LoadTrades returns all recorded trades, oldest first
func (s *FileStore) LoadTrades(context.Context) ([]types.TradeRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.readAll()
}

// SaveOpenPositions replaces the persisted open-position set
func (s *FileStore) SaveOpenPositions(_ context.Context, positions []types.PositionSnapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := json.MarshalIndent(positions, "", "  ")
	if err != nil {
		return errors.Wrap(err, errors.CategoryLedger, "ledger", "SaveOpenPositions")
	}
	return s.atomicWrite(s.openPath, data)
}

// LoadOpenPositions returns the persisted open-position set
func (s *FileStore) LoadOpenPositions(context.Context) ([]types.PositionSnapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.openPath)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, errors.CategoryLedger, "ledger", "LoadOpenPositions")
	}

	var positions []types.PositionSnapshot
	if err := json.Unmarshal(data, &positions); err != nil {
		return nil, errors.Wrap(err, errors.CategoryLedger, "ledger", "LoadOpenPositions")
	}
	return positions, nil
}

// Close is a no-op for the file store
func (s *FileStore) Close() error {
	return nil
}

func (s *FileStore) readAll() ([]types.TradeRecord, error) {
	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, errors.CategoryLedger, "ledger", "readAll")
	}

	var trades []types.TradeRecord
	if err := json.Unmarshal(data, &trades); err != nil {
		return nil, errors.Wrap(err, errors.CategoryLedger, "ledger", "readAll")
	}
	return trades, nil
}

func (s *FileStore) writeAll(trades []types.TradeRecord) error {
	data, err := json.MarshalIndent(trades, "", "  ")
	if err != nil {
		return errors.Wrap(err, errors.CategoryLedger, "ledger", "writeAll")
	}
	return s.atomicWrite(s.path, data)
}

func (s *FileStore) atomicWrite(path string, data []byte) error {
	tmp := fmt.Sprintf("%s.tmp", path)
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return errors.Wrap(err, errors.CategoryLedger, "ledger", "atomicWrite")
	}
	if err := os.Rename(tmp, path); err != nil {
		return errors.Wrap(err, errors.CategoryLedger, "ledger", "atomicWrite")
	}
	return nil
}
