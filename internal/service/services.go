package service

import (
	"log/slog"

	"github.com/kirinyoku/tixmarket/internal/domain"
	"github.com/kirinyoku/tixmarket/internal/notify"
	"github.com/kirinyoku/tixmarket/internal/repository"
	redis "github.com/kirinyoku/tixmarket/internal/repository/redis"
	"github.com/kirinyoku/tixmarket/internal/service/catalog"
	"github.com/kirinyoku/tixmarket/internal/service/checkin"
	"github.com/kirinyoku/tixmarket/internal/service/purchase"
	"github.com/kirinyoku/tixmarket/internal/service/refund"
	"github.com/kirinyoku/tixmarket/internal/service/sales"
	"github.com/kirinyoku/tixmarket/internal/service/users"
)

type Services struct {
	Catalog  *catalog.Service
	Purchase *purchase.Service
	CheckIn  *checkin.Service
	Refund   *refund.Service
	Sales    *sales.Service
	Users    *users.Service
}

type Config struct {
	Catalog catalog.Config
	Fees    domain.FeeSchedule
}

// Deps are the shared adapters. Cache, PubSub, Limiter and Notifier may be
// nil; the services then skip caching, publishing, rate limiting and
// confirmations.
type Deps struct {
	Store    repository.Store
	Cache    *redis.Cache
	PubSub   *redis.CatalogPubSub
	Limiter  *redis.SlidingWindowLimiter
	Notifier *notify.Dispatcher
	Log      *slog.Logger
}

func NewServices(d Deps, cfg Config) *Services {
	return &Services{
		Catalog:  catalog.New(d.Store, d.Cache, d.PubSub, cfg.Catalog, d.Log.With(slog.String("service", "catalog"))),
		Purchase: purchase.New(d.Store, d.Cache, d.PubSub, d.Limiter, d.Notifier, d.Log.With(slog.String("service", "purchase"))),
		CheckIn:  checkin.New(d.Store, d.Log.With(slog.String("service", "checkin"))),
		Refund:   refund.New(d.Store, d.Cache, d.PubSub, cfg.Fees, d.Log.With(slog.String("service", "refund"))),
		Sales:    sales.New(d.Store, d.Notifier, d.Log.With(slog.String("service", "sales"))),
		Users:    users.New(d.Store, d.Log.With(slog.String("service", "users"))),
	}
}
