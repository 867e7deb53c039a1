package service

import (
	"context"

	bybit "trade_engine/internal/modules/bybit_client/service"
	feed "trade_engine/internal/modules/bybit_ws/service"
	"trade_engine/internal/models"
	"trade_engine/pkg/logger"
)

// Rotator применяет ключи пользователя сразу к ОБОИМ клиентам:
// REST и стриму. Порядок важен: сначала REST (новые вызовы сразу с новой
// парой), затем фид — тот сам пересоздаст приватный сокет.
type Rotator struct {
	store *Store
	rest  *bybit.Client
	feed  *feed.Client
}

func NewRotator(store *Store, rest *bybit.Client, f *feed.Client) *Rotator {
	return &Rotator{store: store, rest: rest, feed: f}
}

// Apply — ротация без похода в базу (ключи уже на руках).
func (r *Rotator) Apply(creds models.Credentials) {
	r.rest.UpdateCredentials(creds.APIKey, creds.APISecret)
	r.feed.UpdateCredentials(creds.APIKey, creds.APISecret)
	logger.Info("credentials rotated")
}

// RotateUser тянет ключи из хранилища и применяет их.
func (r *Rotator) RotateUser(ctx context.Context, userID int64) error {
	creds, err := r.store.Get(ctx, userID)
	if err != nil {
		return err
	}
	r.Apply(creds)
	return nil
}
