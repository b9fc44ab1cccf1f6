package fx

import (
	"lobby-scout/internal/api"
	"lobby-scout/internal/config"
	"lobby-scout/internal/constants"
	"lobby-scout/internal/database"
	"lobby-scout/internal/fetcher"
	"lobby-scout/internal/history"
	"lobby-scout/internal/logger"
	"lobby-scout/internal/pagecache"
	"lobby-scout/internal/party"
	"lobby-scout/internal/poller"
	"lobby-scout/internal/reconcile"
	"lobby-scout/internal/render"
	"lobby-scout/internal/repository"
	"lobby-scout/internal/server"

	"github.com/rs/zerolog"
	"go.uber.org/fx"
)

func ProvidePageCache() *pagecache.Cache {
	return pagecache.New(constants.PageCacheBucketLimit)
}

func ProvideHistory(stats *api.StatsClient, cache *pagecache.Cache, log zerolog.Logger) *history.Service {
	return history.NewService(stats, cache, log)
}

func ProvideFetcher(stats *api.StatsClient, hist *history.Service, log zerolog.Logger) *fetcher.Fetcher {
	return fetcher.New(stats, stats, hist, log)
}

func ProvideRenderQueue(log zerolog.Logger) *render.Queue {
	return render.NewQueue(render.NewLogRenderer(log), log)
}

func ProvideReconciler(f *fetcher.Fetcher, det *party.Detector, q *render.Queue, repo *repository.EncounterRepository, log zerolog.Logger) *reconcile.Reconciler {
	return reconcile.New(f, det, q, repo, log)
}

func ProvidePoller(session *api.SessionClient, rec *reconcile.Reconciler, f *fetcher.Fetcher, log zerolog.Logger) *poller.Poller {
	return poller.New(session, rec, f, log)
}

var Module = fx.Options(
	fx.Provide(logger.New),
	fx.Provide(config.Load),
	fx.Provide(database.New),
	// caches
	fx.Provide(ProvidePageCache),
	// api clients
	fx.Provide(api.NewStatsClient),
	fx.Provide(api.NewSessionClient),
	// repos
	fx.Provide(repository.NewEncounterRepository),
	// svc
	fx.Provide(ProvideHistory),
	fx.Provide(ProvideFetcher),
	fx.Provide(party.NewDetector),
	fx.Provide(ProvideRenderQueue),
	fx.Provide(ProvideReconciler),
	fx.Provide(ProvidePoller),
	// server
	fx.Provide(server.NewOverlayServer),
)
