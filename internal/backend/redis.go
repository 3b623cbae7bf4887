package backend

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/AlexZinkM/payme-wallet/internal/model"

	"github.com/redis/go-redis/v9"
)

const (
	walletKeyPrefix  = "payme:wallet:"
	addressKeyPrefix = "payme:address:"
	ledgerKeyPrefix  = "payme:tx:"
)

// RedisStore shares wallet records and the ledger between processes through Redis.
// Ledger entries sit in a sorted set per user scored by creation time.
type RedisStore struct {
	client *redis.Client
}

var _ Backend = (*RedisStore)(nil)

// NewRedisStore connects to addr and checks the connection with PING.
func NewRedisStore(addr, password string, db int) (*RedisStore, error) {
	if addr == "" {
		return nil, errors.New("redis store: address is not configured")
	}

	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}
	return NewRedisStoreFromClient(client), nil
}

// NewRedisStoreFromClient wraps an existing client.
func NewRedisStoreFromClient(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func (s *RedisStore) Close() error { return s.client.Close() }

func (s *RedisStore) CreateWallet(ctx context.Context, rec model.WalletRecord) error {
	if err := validateWallet(&rec); err != nil {
		return err
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to marshal wallet: %w", err)
	}

	created, err := s.client.SetNX(ctx, walletKeyPrefix+rec.UserID, data, 0).Result()
	if err != nil {
		return fmt.Errorf("failed to save wallet: %w", err)
	}
	if !created {
		return ErrWalletExists
	}
	if err := s.client.Set(ctx, addressKeyPrefix+rec.WalletAddress, rec.UserID, 0).Err(); err != nil {
		return fmt.Errorf("failed to save address index: %w", err)
	}
	return nil
}

func (s *RedisStore) GetWallet(ctx context.Context, userID string) (*model.WalletRecord, error) {
	return getRedisWallet(ctx, s.client, userID)
}

func (s *RedisStore) FindWalletByAddress(ctx context.Context, address string) (*model.WalletRecord, error) {
	userID, err := s.client.Get(ctx, addressKeyPrefix+address).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrWalletNotFound
		}
		return nil, fmt.Errorf("failed to get address index: %w", err)
	}
	return getRedisWallet(ctx, s.client, userID)
}

func (s *RedisStore) ReplaceWallet(ctx context.Context, userID, expectedPinHash string, next model.WalletRecord) error {
	next.UserID = userID
	if err := validateWallet(&next); err != nil {
		return err
	}
	data, err := json.Marshal(next)
	if err != nil {
		return fmt.Errorf("failed to marshal wallet: %w", err)
	}

	key := walletKeyPrefix + userID
	err = s.client.Watch(ctx, func(tx *redis.Tx) error {
		current, err := getRedisWallet(ctx, tx, userID)
		if err != nil {
			return err
		}
		if current.PinHash != expectedPinHash {
			return ErrConflict
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, data, 0)
			if current.WalletAddress != next.WalletAddress {
				pipe.Del(ctx, addressKeyPrefix+current.WalletAddress)
				pipe.Set(ctx, addressKeyPrefix+next.WalletAddress, userID, 0)
			}
			return nil
		})
		return err
	}, key)

	if errors.Is(err, redis.TxFailedErr) {
		return ErrConflict
	}
	return err
}

func (s *RedisStore) DeleteWallet(ctx context.Context, userID string) error {
	current, err := getRedisWallet(ctx, s.client, userID)
	if err != nil {
		return err
	}

	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, walletKeyPrefix+userID)
		pipe.Del(ctx, addressKeyPrefix+current.WalletAddress)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to delete wallet: %w", err)
	}
	return nil
}

func (s *RedisStore) AddTransaction(ctx context.Context, entry model.LedgerEntry) error {
	if err := validateEntry(&entry); err != nil {
		return err
	}
	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to marshal ledger entry: %w", err)
	}

	member := redis.Z{Score: float64(entry.CreatedAt.UnixMilli()), Member: data}
	if err := s.client.ZAdd(ctx, ledgerKeyPrefix+entry.UserID, member).Err(); err != nil {
		return fmt.Errorf("failed to save ledger entry: %w", err)
	}
	return nil
}

func (s *RedisStore) ListTransactions(ctx context.Context, userID string, txType model.TransactionType, limit int) ([]model.LedgerEntry, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}

	// the type lives inside the JSON member, so a filtered listing reads the whole set
	stop := int64(limit - 1)
	if txType != "" {
		stop = -1
	}
	members, err := s.client.ZRevRange(ctx, ledgerKeyPrefix+userID, 0, stop).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list ledger entries: %w", err)
	}

	entries := make([]model.LedgerEntry, 0, len(members))
	for _, m := range members {
		var entry model.LedgerEntry
		if err := json.Unmarshal([]byte(m), &entry); err != nil {
			return nil, fmt.Errorf("failed to unmarshal ledger entry: %w", err)
		}
		entries = append(entries, entry)
	}
	return newestFirst(ofType(entries, txType), limit), nil
}

// redisGetter is satisfied by both *redis.Client and *redis.Tx.
type redisGetter interface {
	Get(ctx context.Context, key string) *redis.StringCmd
}

func getRedisWallet(ctx context.Context, c redisGetter, userID string) (*model.WalletRecord, error) {
	data, err := c.Get(ctx, walletKeyPrefix+userID).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrWalletNotFound
		}
		return nil, fmt.Errorf("failed to get wallet: %w", err)
	}

	var rec model.WalletRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("failed to unmarshal wallet: %w", err)
	}
	return &rec, nil
}
