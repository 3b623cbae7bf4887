package backend

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/AlexZinkM/payme-wallet/internal/model"

	"go.etcd.io/bbolt"
)

const boltFileName = "payme.db"

var (
	bucketWallets      = []byte("wallets")
	bucketAddresses    = []byte("wallet_addresses")
	bucketTransactions = []byte("transactions")
)

// BoltStore keeps wallets and ledger entries in a single bbolt file.
// Ledger entries live in one nested bucket per user, keyed by their id.
type BoltStore struct {
	db *bbolt.DB
}

var _ Backend = (*BoltStore)(nil)

// NewBoltStore opens or creates the bbolt database inside dir.
func NewBoltStore(dir string) (*BoltStore, error) {
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("bolt store: create directory: %w", err)
	}
	db, err := bbolt.Open(filepath.Join(dir, boltFileName), 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("bolt store: open db: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		for _, name := range [][]byte{bucketWallets, bucketAddresses, bucketTransactions} {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return fmt.Errorf("bolt store: create bucket %q: %w", name, err)
			}
		}
		return nil
	})
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	return &BoltStore{db: db}, nil
}

func (s *BoltStore) Close() error { return s.db.Close() }

func (s *BoltStore) CreateWallet(_ context.Context, rec model.WalletRecord) error {
	if err := validateWallet(&rec); err != nil {
		return err
	}

	return s.db.Update(func(tx *bbolt.Tx) error {
		wallets := tx.Bucket(bucketWallets)
		if wallets.Get([]byte(rec.UserID)) != nil {
			return ErrWalletExists
		}
		return putWallet(tx, rec)
	})
}

func (s *BoltStore) GetWallet(_ context.Context, userID string) (*model.WalletRecord, error) {
	var rec *model.WalletRecord
	err := s.db.View(func(tx *bbolt.Tx) error {
		var err error
		rec, err = getWallet(tx, userID)
		return err
	})
	return rec, err
}

func (s *BoltStore) FindWalletByAddress(_ context.Context, address string) (*model.WalletRecord, error) {
	var rec *model.WalletRecord
	err := s.db.View(func(tx *bbolt.Tx) error {
		userID := tx.Bucket(bucketAddresses).Get([]byte(address))
		if userID == nil {
			return ErrWalletNotFound
		}
		var err error
		rec, err = getWallet(tx, string(userID))
		return err
	})
	return rec, err
}

func (s *BoltStore) ReplaceWallet(_ context.Context, userID, expectedPinHash string, next model.WalletRecord) error {
	next.UserID = userID
	if err := validateWallet(&next); err != nil {
		return err
	}

	return s.db.Update(func(tx *bbolt.Tx) error {
		current, err := getWallet(tx, userID)
		if err != nil {
			return err
		}
		if current.PinHash != expectedPinHash {
			return ErrConflict
		}
		if current.WalletAddress != next.WalletAddress {
			if err := tx.Bucket(bucketAddresses).Delete([]byte(current.WalletAddress)); err != nil {
				return fmt.Errorf("bolt store: delete address index: %w", err)
			}
		}
		return putWallet(tx, next)
	})
}

func (s *BoltStore) DeleteWallet(_ context.Context, userID string) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		current, err := getWallet(tx, userID)
		if err != nil {
			return err
		}
		if err := tx.Bucket(bucketAddresses).Delete([]byte(current.WalletAddress)); err != nil {
			return fmt.Errorf("bolt store: delete address index: %w", err)
		}
		if err := tx.Bucket(bucketWallets).Delete([]byte(userID)); err != nil {
			return fmt.Errorf("bolt store: delete wallet: %w", err)
		}
		return nil
	})
}

func (s *BoltStore) AddTransaction(_ context.Context, entry model.LedgerEntry) error {
	if err := validateEntry(&entry); err != nil {
		return err
	}

	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("bolt store: encode ledger entry: %w", err)
	}

	return s.db.Update(func(tx *bbolt.Tx) error {
		userBucket, err := tx.Bucket(bucketTransactions).CreateBucketIfNotExists([]byte(entry.UserID))
		if err != nil {
			return fmt.Errorf("bolt store: create ledger bucket: %w", err)
		}
		if err := userBucket.Put([]byte(entry.ID), data); err != nil {
			return fmt.Errorf("bolt store: put ledger entry: %w", err)
		}
		return nil
	})
}

func (s *BoltStore) ListTransactions(_ context.Context, userID string, txType model.TransactionType, limit int) ([]model.LedgerEntry, error) {
	entries := make([]model.LedgerEntry, 0)
	err := s.db.View(func(tx *bbolt.Tx) error {
		userBucket := tx.Bucket(bucketTransactions).Bucket([]byte(userID))
		if userBucket == nil {
			return nil
		}
		return userBucket.ForEach(func(_, v []byte) error {
			var entry model.LedgerEntry
			if err := json.Unmarshal(v, &entry); err != nil {
				return fmt.Errorf("bolt store: decode ledger entry: %w", err)
			}
			if txType != "" && entry.Type != txType {
				return nil
			}
			entries = append(entries, entry)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return newestFirst(entries, limit), nil
}

func getWallet(tx *bbolt.Tx, userID string) (*model.WalletRecord, error) {
	data := tx.Bucket(bucketWallets).Get([]byte(userID))
	if data == nil {
		return nil, ErrWalletNotFound
	}
	var rec model.WalletRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("bolt store: decode wallet: %w", err)
	}
	return &rec, nil
}

func putWallet(tx *bbolt.Tx, rec model.WalletRecord) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("bolt store: encode wallet: %w", err)
	}
	if err := tx.Bucket(bucketWallets).Put([]byte(rec.UserID), data); err != nil {
		return fmt.Errorf("bolt store: put wallet: %w", err)
	}
	if err := tx.Bucket(bucketAddresses).Put([]byte(rec.WalletAddress), []byte(rec.UserID)); err != nil {
		return fmt.Errorf("bolt store: put address index: %w", err)
	}
	return nil
}
