package main

import (
	"database/sql"
	"net/http"

	_ "github.com/go-sql-driver/mysql"
	"github.com/rs/zerolog/log"

	amqpad "staybook/internal/adapters/amqp"
	"staybook/internal/adapters/chapa"
	server "staybook/internal/adapters/http_server"
	"staybook/internal/adapters/observability"
	redisad "staybook/internal/adapters/redis"
	"staybook/internal/app"
	"staybook/internal/domain"
	"staybook/internal/shared"
	mysqlrepo "staybook/internal/storage/mysql"
)

func main() {
	cfg := shared.Load()

	// set global logger (console in dev, JSON otherwise)
	log.Logger = observability.NewLogger(cfg.AppEnv)

	reg := observability.InitRegistry()
	observability.Serve(reg)

	// db
	db, err := sql.Open("mysql", cfg.MySQLDSN)
	if err != nil {
		log.Fatal().Err(err).Msg("sql.Open failed")
	}
	if err := db.Ping(); err != nil {
		log.Fatal().Err(err).Msg("db.Ping failed")
	}
	log.Info().Msg("database connection ok")

	// deps
	repo := mysqlrepo.New(db)
	cache := redisad.New(cfg.RedisAddr, cfg.RedisPass, cfg.RedisDB)

	gateway, err := chapa.New(cfg.ChapaBase, cfg.ChapaKey, cfg.GatewayTimeout, 5)
	if err != nil {
		log.Fatal().Err(err).Msg("payment gateway init failed")
	}

	// confirmation events ride a durable queue; the API stays up when the
	// broker is down and the services log the missed dispatch
	var notifier *amqpad.Publisher
	notifier, err = amqpad.NewPublisher(cfg.AMQPURL)
	if err != nil {
		log.Error().Err(err).Msg("amqp unavailable; confirmation emails disabled")
		notifier = nil
	} else {
		defer notifier.Close()
	}

	listings := app.NewListingService(repo, repo, cache, cfg.CacheTTL)
	bookings := app.NewBookingService(repo, repo, repo, cache, notifierOrNil(notifier), cfg.CacheTTL)
	payments := app.NewPaymentService(repo, repo, repo, repo, gateway, notifierOrNil(notifier), cache,
		cfg.CallbackBase, cfg.Currency)

	// http
	srv := server.New()
	srv.Mount("/metrics", observability.MetricsHandler(reg))
	srv.MountHandlers(&server.Handlers{Listings: listings, Bookings: bookings, Payments: payments})

	log.Info().Str("addr", cfg.HTTPAddr).Msg("API listening")
	httpSrv := &http.Server{Addr: cfg.HTTPAddr, Handler: srv.Mux()}

	if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatal().Err(err).Msg("http server failed")
	}
}

// notifierOrNil avoids handing the services a non-nil interface wrapping
// a nil *Publisher.
func notifierOrNil(p *amqpad.Publisher) domain.Notifier {
	if p == nil {
		return nil
	}
	return p
}
