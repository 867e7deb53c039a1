package credstore

import (
	"context"

	"go.uber.org/fx"

	"trade_engine/internal/modules/config"
	"trade_engine/internal/modules/credstore/service"
	"trade_engine/pkg/db"
	"trade_engine/pkg/logger"
)

// Module — хранилище ключей и ротация пар в REST/фид-клиенты.
// На старте, если задан credentials_user_id, пара этого пользователя
// тянется из базы и применяется к обоим клиентам.
func Module() fx.Option {
	return fx.Module("credstore",
		fx.Provide(
			func(txm *db.PgTxManager) service.TxRunner { return txm },
			service.NewStore,
			service.NewRotator,
		),
		fx.Invoke(func(lc fx.Lifecycle, cfg *config.Config, r *service.Rotator) {
			lc.Append(fx.Hook{
				OnStart: func(ctx context.Context) error {
					if cfg.CredentialsUserID == 0 {
						logger.Info("credstore: no user configured, using config/env pair")
						return nil
					}
					return r.RotateUser(ctx, cfg.CredentialsUserID)
				},
			})
		}),
	)
}
