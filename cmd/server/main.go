// Command server wires the purchase fulfillment pipeline into a runnable
// HTTP service: postgres entitlement store, redis checkout reservations,
// S3-compatible object storage, and the external payment provider.
package main

import (
	"context"
	"os"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	purchasegin "github.com/open-rails/purchasekit/adapters/gin"
	"github.com/open-rails/purchasekit/adapters/ginutil"
	"github.com/open-rails/purchasekit/auth"
	"github.com/open-rails/purchasekit/catalog"
	"github.com/open-rails/purchasekit/checkout"
	"github.com/open-rails/purchasekit/config"
	"github.com/open-rails/purchasekit/downloads"
	"github.com/open-rails/purchasekit/jobs"
	"github.com/open-rails/purchasekit/payments"
	redislimiter "github.com/open-rails/purchasekit/ratelimit/redis"
	pgstore "github.com/open-rails/purchasekit/storage/postgres"
	redisstore "github.com/open-rails/purchasekit/storage/redis"
	s3store "github.com/open-rails/purchasekit/storage/s3"
)

func main() {
	cfg := config.Load()
	log := logrus.New()
	if lvl, err := logrus.ParseLevel(cfg.LogLevel); err == nil {
		log.SetLevel(lvl)
	}

	ctx := context.Background()

	pg, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		log.WithError(err).Fatal("connect postgres")
	}
	defer pg.Close()

	var rdb *redis.Client
	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			log.WithError(err).Fatal("parse redis url")
		}
		rdb = redis.NewClient(opts)
		defer rdb.Close()
	}

	signer, err := s3store.NewSigner(s3store.Config{
		Endpoint:  cfg.S3Endpoint,
		AccessKey: cfg.S3AccessKey,
		SecretKey: cfg.S3SecretKey,
		Region:    cfg.S3Region,
		UseSSL:    cfg.S3UseSSL,
		Bucket:    cfg.S3Bucket,
	})
	if err != nil {
		log.WithError(err).Fatal("object storage signer")
	}

	verifier, err := buildVerifier(ctx, cfg)
	if err != nil {
		log.WithError(err).Fatal("token verifier")
	}

	store := pgstore.NewEntitlementStore(pg, cfg.DBSchema)
	sessions := pgstore.NewSessionLog(pg, cfg.DBSchema)
	items := catalog.NewStore(pg, "catalog")

	var holds checkout.ReservationCache
	var limiter ginutil.RateLimiter
	if rdb != nil {
		holds = redisstore.NewReservationCache(rdb, "", cfg.CheckoutReservationTTL)
		limiter = redislimiter.New(rdb, map[string]redislimiter.Limit{
			ginutil.RLCheckoutCreate: {Limit: 10, Window: time.Minute},
			ginutil.RLDownloadURL:    {Limit: 30, Window: time.Minute},
			"default":                {Limit: 120, Window: time.Minute},
		})
	}

	provider := payments.NewClient(cfg.ProviderAPIKey, cfg.ProviderAPIBase, nil)

	checkoutSvc := checkout.NewService(checkout.Config{
		Items:         items,
		Store:         store,
		Provider:      provider,
		Holds:         holds,
		Sessions:      sessions,
		PublicBaseURL: cfg.PublicBaseURL,
		Currency:      cfg.Currency,
		HoldTTL:       cfg.CheckoutReservationTTL,
		Logger:        log,
	})
	downloadSvc := downloads.NewService(store, items, signer, cfg.DownloadURLTTL, log)

	rcvOpts := []payments.ReceiverOpt{
		payments.WithSessionLog(sessions),
		payments.WithLogger(log),
	}
	if holds != nil {
		rcvOpts = append(rcvOpts, payments.WithReservations(holds))
	}
	receiver := payments.NewReceiver(cfg.WebhookSigningSecret, store, rcvOpts...)

	sweeper := jobs.NewSessionSweeper(sessions, cfg.CheckoutReservationTTL+time.Hour, log)
	if err := sweeper.Start("@hourly"); err != nil {
		log.WithError(err).Fatal("start session sweeper")
	}
	defer sweeper.Stop()

	r := gin.New()
	r.Use(gin.Recovery())
	purchasegin.Mount(r, purchasegin.Deps{
		Verifier:  verifier,
		Checkout:  checkoutSvc,
		Downloads: downloadSvc,
		Receiver:  receiver,
		Store:     store,
		Sessions:  sessions,
		Items:     items,
		Limiter:   limiter,
	})

	log.WithField("addr", cfg.ListenAddr).Info("purchase service listening")
	if err := r.Run(cfg.ListenAddr); err != nil {
		log.WithError(err).Error("server stopped")
		os.Exit(1)
	}
}

func buildVerifier(ctx context.Context, cfg *config.Config) (*auth.Verifier, error) {
	if cfg.AuthJWKSURL != "" {
		set, err := auth.FetchKeySet(ctx, cfg.AuthJWKSURL)
		if err != nil {
			return nil, err
		}
		return auth.NewVerifier(cfg.AuthIssuer, cfg.AuthAudience, set), nil
	}
	return auth.NewSharedSecretVerifier(cfg.AuthIssuer, cfg.AuthAudience, []byte(cfg.AuthHSSecret)), nil
}
