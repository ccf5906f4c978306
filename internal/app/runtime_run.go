package app

import (
	"context"
	"errors"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/slaug/slaug/internal/assettypes"
)

func (r *Runtime) Run(ctx context.Context) error {
	r.logger.Info("slaug starting", "addr", r.cfg.HTTPAddr, "memory", r.cfg.Memory.String())

	group, groupCtx := errgroup.WithContext(ctx)

	// Localization is fetched asynchronously at startup; the registry serves
	// fallback names until it lands and keeps serving them if it never does.
	group.Go(func() error {
		r.registry.Refresh(groupCtx, r.client)
		return nil
	})

	group.Go(func() error {
		return r.dedup.Run(groupCtx)
	})

	if r.cfg.TypesFile != "" {
		group.Go(func() error {
			err := assettypes.WatchOverrides(groupCtx, r.cfg.TypesFile, r.registry, r.logger.With("component", "overrides"))
			if err != nil {
				r.logger.Error("overrides watcher failed", "error", err)
			}
			return nil
		})
	}

	if r.locRefresh != nil {
		group.Go(func() error {
			return r.runLocalizationRefresh(groupCtx)
		})
	}

	for _, conn := range r.connectors {
		connector := conn
		group.Go(func() error {
			return connector.Start(groupCtx)
		})
	}

	group.Go(func() error {
		err := r.httpServer.ListenAndServe()
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	})
	group.Go(func() error {
		<-groupCtx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return r.httpServer.Shutdown(shutdownCtx)
	})

	return group.Wait()
}

func (r *Runtime) runLocalizationRefresh(ctx context.Context) error {
	for {
		next := r.locRefresh.Next(time.Now())
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(time.Until(next)):
			r.registry.Refresh(ctx, r.client)
		}
	}
}
