package service

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"trade_engine/internal/models"
	"trade_engine/pkg/db"
)

// TxRunner — то, что хранилищу нужно от транзакционного менеджера.
type TxRunner interface {
	Conn() db.Transaction
	RunMaster(ctx context.Context, fn func(ctxTx context.Context, tx pgx.Tx) error) error
}

// Store — тонкий CRUD над ключами пользователей. Никакой auth-логики:
// это граница с хранилищем, ядро о ней не знает.
type Store struct {
	txm TxRunner
}

func NewStore(txm TxRunner) *Store {
	return &Store{txm: txm}
}

func (s *Store) Get(ctx context.Context, userID int64) (models.Credentials, error) {
	var creds models.Credentials
	row := s.txm.Conn().QueryRow(ctx,
		`SELECT api_key, api_secret FROM user_credentials WHERE user_id = $1`,
		userID,
	)
	if err := row.Scan(&creds.APIKey, &creds.APISecret); err != nil {
		return models.Credentials{}, fmt.Errorf("get credentials for user %d: %w", userID, err)
	}
	return creds, nil
}

func (s *Store) Upsert(ctx context.Context, userID int64, creds models.Credentials) error {
	if !creds.Valid() {
		return fmt.Errorf("empty api key/secret for user %d", userID)
	}
	return s.txm.RunMaster(ctx, func(ctxTx context.Context, tx pgx.Tx) error {
		_, err := tx.Exec(ctxTx,
			`INSERT INTO user_credentials (user_id, api_key, api_secret, updated_at)
			 VALUES ($1, $2, $3, now())
			 ON CONFLICT (user_id)
			 DO UPDATE SET api_key = $2, api_secret = $3, updated_at = now()`,
			userID, creds.APIKey, creds.APISecret,
		)
		if err != nil {
			return fmt.Errorf("upsert credentials for user %d: %w", userID, err)
		}
		return nil
	})
}
