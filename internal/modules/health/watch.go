package health

import (
	"context"

	"go.uber.org/fx"

	"trade_engine/internal/bus"
	"trade_engine/internal/models"
	"trade_engine/internal/modules/health/service"
)

// WatchFeed держит индикаторы здоровья в актуальном состоянии по шине:
// тик — фид жив, FeedUnavailable — фид лёг окончательно.
func WatchFeed(lc fx.Lifecycle, b *bus.Bus, state *service.State) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			sub := b.Subscribe()
			go func() {
				defer close(done)
				defer sub.Cancel()
				for {
					select {
					case <-ctx.Done():
						return
					case ev, ok := <-sub.Events():
						if !ok {
							return
						}
						switch e := ev.(type) {
						case models.PriceTick:
							state.SetWSConnected(true)
							state.TouchTick(e.At)
						case models.FeedUnavailable:
							state.SetWSConnected(false)
							state.FeedFailed()
						}
					}
				}
			}()
			state.SetReady(true)
			return nil
		},
		OnStop: func(context.Context) error {
			state.SetReady(false)
			cancel()
			<-done
			return nil
		},
	})
}
