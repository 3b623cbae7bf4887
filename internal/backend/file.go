package backend

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/AlexZinkM/payme-wallet/internal/model"
)

const (
	walletExt = ".wallet.json"
	ledgerExt = ".ledger.json"
)

// utf8BOM is prepended to every file for proper display in Windows editors.
var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// FileStore keeps one JSON wallet file and one JSON ledger file per user in a directory.
// Writes go through a temp file and rename, so a crash never leaves a half-written record.
type FileStore struct {
	dir string
	mu  sync.Mutex
}

var _ Backend = (*FileStore)(nil)

// NewFileStore creates dir if needed and returns a store rooted there.
func NewFileStore(dir string) (*FileStore, error) {
	if dir == "" {
		return nil, errors.New("file store: empty data directory")
	}
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("file store: create directory: %w", err)
	}
	return &FileStore{dir: dir}, nil
}

func (s *FileStore) CreateWallet(_ context.Context, rec model.WalletRecord) error {
	if err := validateWallet(&rec); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	path := s.walletPath(rec.UserID)
	if _, err := os.Stat(path); err == nil {
		return ErrWalletExists
	}
	return writeJSONFile(path, rec)
}

func (s *FileStore) GetWallet(_ context.Context, userID string) (*model.WalletRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.readWallet(userID)
}

func (s *FileStore) FindWalletByAddress(_ context.Context, address string) (*model.WalletRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	paths, err := filepath.Glob(filepath.Join(s.dir, "*"+walletExt))
	if err != nil {
		return nil, fmt.Errorf("file store: list wallets: %w", err)
	}
	for _, path := range paths {
		var rec model.WalletRecord
		if err := readJSONFile(path, &rec); err != nil {
			return nil, err
		}
		if rec.WalletAddress == address {
			return &rec, nil
		}
	}
	return nil, ErrWalletNotFound
}

func (s *FileStore) ReplaceWallet(_ context.Context, userID, expectedPinHash string, next model.WalletRecord) error {
	next.UserID = userID
	if err := validateWallet(&next); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	current, err := s.readWallet(userID)
	if err != nil {
		return err
	}
	if current.PinHash != expectedPinHash {
		return ErrConflict
	}
	return writeJSONFile(s.walletPath(userID), next)
}

func (s *FileStore) DeleteWallet(_ context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.Remove(s.walletPath(userID)); err != nil {
		if os.IsNotExist(err) {
			return ErrWalletNotFound
		}
		return fmt.Errorf("file store: delete wallet: %w", err)
	}
	return nil
}

func (s *FileStore) AddTransaction(_ context.Context, entry model.LedgerEntry) error {
	if err := validateEntry(&entry); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := s.readLedger(entry.UserID)
	if err != nil {
		return err
	}
	return writeJSONFile(s.ledgerPath(entry.UserID), append(entries, entry))
}

func (s *FileStore) ListTransactions(_ context.Context, userID string, txType model.TransactionType, limit int) ([]model.LedgerEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := s.readLedger(userID)
	if err != nil {
		return nil, err
	}
	return newestFirst(ofType(entries, txType), limit), nil
}

func (s *FileStore) Close() error { return nil }

func (s *FileStore) readWallet(userID string) (*model.WalletRecord, error) {
	var rec model.WalletRecord
	if err := readJSONFile(s.walletPath(userID), &rec); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrWalletNotFound
		}
		return nil, err
	}
	return &rec, nil
}

func (s *FileStore) readLedger(userID string) ([]model.LedgerEntry, error) {
	var entries []model.LedgerEntry
	if err := readJSONFile(s.ledgerPath(userID), &entries); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return []model.LedgerEntry{}, nil
		}
		return nil, err
	}
	return entries, nil
}

// fileName maps a user id onto a name that is safe on every filesystem.
func fileName(userID string) string {
	return base64.RawURLEncoding.EncodeToString([]byte(userID))
}

func (s *FileStore) walletPath(userID string) string {
	return filepath.Join(s.dir, fileName(userID)+walletExt)
}

func (s *FileStore) ledgerPath(userID string) string {
	return filepath.Join(s.dir, fileName(userID)+ledgerExt)
}

func readJSONFile(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return err
		}
		return fmt.Errorf("file store: read %s: %w", filepath.Base(path), err)
	}

	// Skip UTF-8 BOM if present
	data = bytes.TrimPrefix(data, utf8BOM)
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("file store: unmarshal %s: %w", filepath.Base(path), err)
	}
	return nil
}

func writeJSONFile(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("file store: marshal: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".tmp-*")
	if err != nil {
		return fmt.Errorf("file store: create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(append(utf8BOM, data...)); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("file store: write: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("file store: sync: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("file store: close: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("file store: rename: %w", err)
	}
	return nil
}
