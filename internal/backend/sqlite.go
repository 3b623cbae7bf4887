package backend

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/AlexZinkM/payme-wallet/internal/model"

	"github.com/ccoveille/go-safecast"
	"github.com/golang-migrate/migrate/v4"
	sqlitemigrate "github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "modernc.org/sqlite"
)

const sqliteFileName = "payme.sqlite"

//go:embed migrations/*.sql
var migrations embed.FS

// SQLiteStore mirrors the users/transactions table layout in a local SQLite file.
type SQLiteStore struct {
	db *sql.DB
}

var _ Backend = (*SQLiteStore)(nil)

// NewSQLiteStore opens dir/payme.sqlite and applies pending migrations.
func NewSQLiteStore(dir string) (*SQLiteStore, error) {
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("sqlite store: create directory: %w", err)
	}

	dsn := filepath.Join(dir, sqliteFileName) + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("sqlite store: open db: %w", err)
	}
	db.SetMaxOpenConns(1)

	if err := migrateUp(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &SQLiteStore{db: db}, nil
}

func migrateUp(db *sql.DB) error {
	src, err := iofs.New(migrations, "migrations")
	if err != nil {
		return fmt.Errorf("sqlite store: load migrations: %w", err)
	}
	driver, err := sqlitemigrate.WithInstance(db, &sqlitemigrate.Config{})
	if err != nil {
		return fmt.Errorf("sqlite store: migration driver: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", src, "sqlite", driver)
	if err != nil {
		return fmt.Errorf("sqlite store: init migrations: %w", err)
	}
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("sqlite store: apply migrations: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Close() error { return s.db.Close() }

const walletColumns = `user_id, username, wallet_address, encrypted_private_key, encryption_iv,
	encryption_salt, pin_hash, created_at, updated_at`

func (s *SQLiteStore) CreateWallet(ctx context.Context, rec model.WalletRecord) error {
	if err := validateWallet(&rec); err != nil {
		return err
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO users (`+walletColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.UserID, rec.Username, rec.WalletAddress, rec.EncryptedPrivateKey, rec.EncryptionIV,
		rec.EncryptionSalt, rec.PinHash, rec.CreatedAt.UnixNano(), rec.UpdatedAt.UnixNano(),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrWalletExists
		}
		return fmt.Errorf("sqlite store: insert wallet: %w", err)
	}
	return nil
}

func (s *SQLiteStore) GetWallet(ctx context.Context, userID string) (*model.WalletRecord, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+walletColumns+` FROM users WHERE user_id = ?`, userID)
	return scanWallet(row)
}

func (s *SQLiteStore) FindWalletByAddress(ctx context.Context, address string) (*model.WalletRecord, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+walletColumns+` FROM users WHERE wallet_address = ?`, address)
	return scanWallet(row)
}

func (s *SQLiteStore) ReplaceWallet(ctx context.Context, userID, expectedPinHash string, next model.WalletRecord) error {
	next.UserID = userID
	if err := validateWallet(&next); err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlite store: begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx,
		`UPDATE users SET username = ?, wallet_address = ?, encrypted_private_key = ?, encryption_iv = ?,
			encryption_salt = ?, pin_hash = ?, created_at = ?, updated_at = ?
		WHERE user_id = ? AND pin_hash = ?`,
		next.Username, next.WalletAddress, next.EncryptedPrivateKey, next.EncryptionIV,
		next.EncryptionSalt, next.PinHash, next.CreatedAt.UnixNano(), next.UpdatedAt.UnixNano(),
		userID, expectedPinHash,
	)
	if err != nil {
		return fmt.Errorf("sqlite store: update wallet: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite store: update wallet: %w", err)
	}
	if n == 0 {
		var exists int
		err := tx.QueryRowContext(ctx, `SELECT 1 FROM users WHERE user_id = ?`, userID).Scan(&exists)
		if errors.Is(err, sql.ErrNoRows) {
			return ErrWalletNotFound
		}
		if err != nil {
			return fmt.Errorf("sqlite store: check wallet: %w", err)
		}
		return ErrConflict
	}
	return tx.Commit()
}

func (s *SQLiteStore) DeleteWallet(ctx context.Context, userID string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM users WHERE user_id = ?`, userID)
	if err != nil {
		return fmt.Errorf("sqlite store: delete wallet: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite store: delete wallet: %w", err)
	}
	if n == 0 {
		return ErrWalletNotFound
	}
	return nil
}

func (s *SQLiteStore) AddTransaction(ctx context.Context, entry model.LedgerEntry) error {
	if err := validateEntry(&entry); err != nil {
		return err
	}
	amount, err := safecast.ToInt64(entry.AmountMinorUnits)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidRecord, err)
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO transactions (id, user_id, type, signature, from_address, to_address,
			counterparty_user_id, amount, currency, memo, status, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		entry.ID, entry.UserID, string(entry.Type), entry.Signature, entry.From, entry.To,
		entry.CounterpartyUserID, amount, entry.Currency, entry.Memo, string(entry.Status),
		entry.CreatedAt.UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("sqlite store: insert transaction: %w", err)
	}
	return nil
}

func (s *SQLiteStore) ListTransactions(ctx context.Context, userID string, txType model.TransactionType, limit int) ([]model.LedgerEntry, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, user_id, type, signature, from_address, to_address, counterparty_user_id,
			amount, currency, memo, status, created_at
		FROM transactions WHERE user_id = ? AND (? = '' OR type = ?)
		ORDER BY created_at DESC LIMIT ?`,
		userID, string(txType), string(txType), limit,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite store: query transactions: %w", err)
	}
	defer rows.Close()

	entries := make([]model.LedgerEntry, 0)
	for rows.Next() {
		var (
			entry          model.LedgerEntry
			txType, status string
			amount         int64
			createdAt      int64
		)
		if err := rows.Scan(&entry.ID, &entry.UserID, &txType, &entry.Signature, &entry.From, &entry.To,
			&entry.CounterpartyUserID, &amount, &entry.Currency, &entry.Memo, &status, &createdAt); err != nil {
			return nil, fmt.Errorf("sqlite store: scan transaction: %w", err)
		}
		entry.Type = model.TransactionType(txType)
		entry.Status = model.TransactionStatus(status)
		entry.CreatedAt = time.Unix(0, createdAt).UTC()
		if entry.AmountMinorUnits, err = safecast.ToUint64(amount); err != nil {
			return nil, fmt.Errorf("sqlite store: bad amount: %w", err)
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite store: iterate transactions: %w", err)
	}
	return entries, nil
}

func scanWallet(row *sql.Row) (*model.WalletRecord, error) {
	var (
		rec                  model.WalletRecord
		createdAt, updatedAt int64
	)
	err := row.Scan(&rec.UserID, &rec.Username, &rec.WalletAddress, &rec.EncryptedPrivateKey,
		&rec.EncryptionIV, &rec.EncryptionSalt, &rec.PinHash, &createdAt, &updatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrWalletNotFound
		}
		return nil, fmt.Errorf("sqlite store: scan wallet: %w", err)
	}
	rec.CreatedAt = time.Unix(0, createdAt).UTC()
	rec.UpdatedAt = time.Unix(0, updatedAt).UTC()
	return &rec, nil
}

func isUniqueViolation(err error) bool {
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}
