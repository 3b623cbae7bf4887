// Package backend persists wallet records and the transaction ledger.
//
// Every store implements Backend and is picked once at startup by Open. Records only
// ever hold the encrypted vault, the PIN credential and public data.
package backend

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/AlexZinkM/payme-wallet/internal/model"
)

var (
	ErrWalletNotFound = errors.New("wallet not found")
	ErrWalletExists   = errors.New("wallet already exists")

	// ErrConflict means the stored record changed since it was read.
	ErrConflict = errors.New("wallet was modified concurrently")

	ErrInvalidRecord = errors.New("invalid record")
)

// DefaultListLimit is used when ListTransactions is called with limit <= 0.
const DefaultListLimit = 50

const (
	KindFile   = "file"
	KindBolt   = "bolt"
	KindBadger = "badger"
	KindSQLite = "sqlite"
	KindRedis  = "redis"
)

// Backend is the persistence capability used by the application layer.
type Backend interface {
	// CreateWallet stores a new record. ErrWalletExists if the user already has one.
	CreateWallet(ctx context.Context, rec model.WalletRecord) error
	// GetWallet returns ErrWalletNotFound for an unknown user.
	GetWallet(ctx context.Context, userID string) (*model.WalletRecord, error)
	FindWalletByAddress(ctx context.Context, address string) (*model.WalletRecord, error)
	// ReplaceWallet atomically swaps the record of userID for next, but only while the
	// stored pin hash still equals expectedPinHash. Otherwise ErrConflict.
	ReplaceWallet(ctx context.Context, userID, expectedPinHash string, next model.WalletRecord) error
	DeleteWallet(ctx context.Context, userID string) error

	AddTransaction(ctx context.Context, entry model.LedgerEntry) error
	// ListTransactions returns the newest entries of userID first. A non-empty txType
	// keeps only entries of that type; limit applies after the type filter.
	ListTransactions(ctx context.Context, userID string, txType model.TransactionType, limit int) ([]model.LedgerEntry, error)

	Close() error
}

// Config selects and configures a store.
type Config struct {
	Kind    string
	DataDir string

	RedisAddr     string
	RedisPassword string
	RedisDB       int
}

// Open returns the store named by cfg.Kind.
func Open(cfg Config) (Backend, error) {
	switch strings.ToLower(cfg.Kind) {
	case KindFile:
		return NewFileStore(cfg.DataDir)
	case KindBolt, "":
		return NewBoltStore(cfg.DataDir)
	case KindBadger:
		return NewBadgerStore(cfg.DataDir, nil)
	case KindSQLite:
		return NewSQLiteStore(cfg.DataDir)
	case KindRedis:
		return NewRedisStore(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	default:
		return nil, fmt.Errorf("unknown backend %q", cfg.Kind)
	}
}

func validateWallet(rec *model.WalletRecord) error {
	switch {
	case rec.UserID == "":
		return fmt.Errorf("%w: empty user id", ErrInvalidRecord)
	case rec.WalletAddress == "":
		return fmt.Errorf("%w: empty wallet address", ErrInvalidRecord)
	case rec.EncryptedPrivateKey == "" || rec.EncryptionIV == "" || rec.EncryptionSalt == "" || rec.PinHash == "":
		return fmt.Errorf("%w: missing vault fields", ErrInvalidRecord)
	}
	return nil
}

func validateEntry(entry *model.LedgerEntry) error {
	switch {
	case entry.ID == "":
		return fmt.Errorf("%w: empty ledger entry id", ErrInvalidRecord)
	case entry.UserID == "":
		return fmt.Errorf("%w: empty ledger entry user id", ErrInvalidRecord)
	}
	return nil
}

// ofType keeps the entries of txType in place. An empty txType keeps everything.
func ofType(entries []model.LedgerEntry, txType model.TransactionType) []model.LedgerEntry {
	if txType == "" {
		return entries
	}
	kept := entries[:0]
	for _, e := range entries {
		if e.Type == txType {
			kept = append(kept, e)
		}
	}
	return kept
}

// newestFirst sorts entries by CreatedAt descending and applies limit.
func newestFirst(entries []model.LedgerEntry, limit int) []model.LedgerEntry {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].CreatedAt.After(entries[j].CreatedAt)
	})
	if len(entries) > limit {
		entries = entries[:limit]
	}
	return entries
}
