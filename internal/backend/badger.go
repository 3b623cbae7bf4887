package backend

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/AlexZinkM/payme-wallet/internal/model"

	"github.com/dgraph-io/badger/v4"
	log "github.com/sirupsen/logrus"
	"github.com/timshannon/badgerhold/v4"
)

const badgerStoreDir = "badger"

// BadgerStore keeps wallets and ledger entries in a badgerhold store.
// An empty dir opens an in-memory database.
type BadgerStore struct {
	db *badgerhold.Store
}

var _ Backend = (*BadgerStore)(nil)

// NewBadgerStore opens the store under dir/badger. A nil logger uses logrus.
func NewBadgerStore(dir string, logger badger.Logger) (*BadgerStore, error) {
	if dir != "" {
		dir = filepath.Join(dir, badgerStoreDir)
	}
	if logger == nil {
		logger = log.StandardLogger()
	}

	db, err := createDB(dir, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger store: %s", err)
	}
	return &BadgerStore{db: db}, nil
}

func createDB(dir string, logger badger.Logger) (*badgerhold.Store, error) {
	opts := badgerhold.DefaultOptions
	opts.Options = badger.DefaultOptions(dir).WithLogger(logger)
	if dir == "" {
		opts.Options = opts.Options.WithInMemory(true)
	}
	return badgerhold.Open(opts)
}

func (s *BadgerStore) Close() error { return s.db.Close() }

func (s *BadgerStore) CreateWallet(_ context.Context, rec model.WalletRecord) error {
	if err := validateWallet(&rec); err != nil {
		return err
	}
	if err := s.db.Insert(rec.UserID, &rec); err != nil {
		if errors.Is(err, badgerhold.ErrKeyExists) {
			return ErrWalletExists
		}
		return err
	}
	return nil
}

func (s *BadgerStore) GetWallet(_ context.Context, userID string) (*model.WalletRecord, error) {
	var rec model.WalletRecord
	if err := s.db.Get(userID, &rec); err != nil {
		if errors.Is(err, badgerhold.ErrNotFound) {
			return nil, ErrWalletNotFound
		}
		return nil, err
	}
	return &rec, nil
}

func (s *BadgerStore) FindWalletByAddress(_ context.Context, address string) (*model.WalletRecord, error) {
	var recs []model.WalletRecord
	query := badgerhold.Where("WalletAddress").Eq(address).Index("WalletAddress")
	if err := s.db.Find(&recs, query); err != nil {
		return nil, err
	}
	if len(recs) == 0 {
		return nil, ErrWalletNotFound
	}
	return &recs[0], nil
}

func (s *BadgerStore) ReplaceWallet(_ context.Context, userID, expectedPinHash string, next model.WalletRecord) error {
	next.UserID = userID
	if err := validateWallet(&next); err != nil {
		return err
	}

	err := s.db.Badger().Update(func(tx *badger.Txn) error {
		var current model.WalletRecord
		if err := s.db.TxGet(tx, userID, &current); err != nil {
			if errors.Is(err, badgerhold.ErrNotFound) {
				return ErrWalletNotFound
			}
			return err
		}
		if current.PinHash != expectedPinHash {
			return ErrConflict
		}
		return s.db.TxUpdate(tx, userID, &next)
	})
	if errors.Is(err, badger.ErrConflict) {
		return ErrConflict
	}
	return err
}

func (s *BadgerStore) DeleteWallet(_ context.Context, userID string) error {
	if err := s.db.Delete(userID, model.WalletRecord{}); err != nil {
		if errors.Is(err, badgerhold.ErrNotFound) {
			return ErrWalletNotFound
		}
		return err
	}
	return nil
}

func (s *BadgerStore) AddTransaction(_ context.Context, entry model.LedgerEntry) error {
	if err := validateEntry(&entry); err != nil {
		return err
	}
	return s.db.Upsert(entry.ID, &entry)
}

func (s *BadgerStore) ListTransactions(_ context.Context, userID string, txType model.TransactionType, limit int) ([]model.LedgerEntry, error) {
	entries := make([]model.LedgerEntry, 0)
	query := badgerhold.Where("UserID").Eq(userID).Index("UserID")
	if txType != "" {
		query = query.And("Type").Eq(txType)
	}
	if err := s.db.Find(&entries, query); err != nil {
		return nil, err
	}
	return newestFirst(entries, limit), nil
}
