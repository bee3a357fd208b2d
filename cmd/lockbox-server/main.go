package main

import (
	"context"
	"database/sql"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/BrandonDHaskell/Lockbox/server/internal/config"
	"github.com/BrandonDHaskell/Lockbox/server/internal/db"
	"github.com/BrandonDHaskell/Lockbox/server/internal/grpcapi"
	"github.com/BrandonDHaskell/Lockbox/server/internal/httpapi"
	"github.com/BrandonDHaskell/Lockbox/server/internal/lockbox/credential"
	"github.com/BrandonDHaskell/Lockbox/server/internal/lockbox/service"
	sqlitestore "github.com/BrandonDHaskell/Lockbox/server/internal/lockbox/store/sqlite"
	"github.com/BrandonDHaskell/Lockbox/server/internal/lockbox/throttle"
	"github.com/BrandonDHaskell/Lockbox/server/internal/lockbox/window"
	"github.com/BrandonDHaskell/Lockbox/server/internal/logging"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logrus.WithError(err).Fatal("invalid configuration")
	}
	logger := logging.New(cfg.LogLevel, cfg.Env).WithField("app", "lockbox-server")

	loc, err := cfg.Location()
	if err != nil {
		logger.WithError(err).Fatal("load timezone")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Storage
	dbCfg := db.Config{Path: cfg.DBPath, Env: cfg.Env, ReadConns: cfg.DBReadConns}
	conn, err := db.Open(ctx, dbCfg, logging.Component(logger, "db"))
	if err != nil {
		logger.WithError(err).Fatal("open database")
	}
	defer conn.Close()

	reader, err := db.OpenReader(ctx, dbCfg)
	if err != nil {
		logger.WithError(err).Fatal("open database readers")
	}
	defer reader.Close()

	writer := db.NewWorker(conn)
	defer writer.Close()

	st := sqlitestore.New(reader, writer)
	hasher := credential.NewHasher(cfg.BcryptCost)

	if cfg.Env == "dev" {
		if err := seedDev(ctx, cfg, conn, st, hasher, logging.Component(logger, "seed")); err != nil {
			logger.WithError(err).Fatal("seed dev data")
		}
	}

	// Services
	policy := throttle.Policy{Threshold: cfg.LockoutThreshold, Cooldown: cfg.LockoutCooldown}
	accessSvc := service.NewAccessService(st, hasher, policy, loc, logging.Component(logger, "access"))
	accountSvc := service.NewAccountService(st, window.NewRegistry(st, loc), hasher, logging.Component(logger, "accounts"))
	adminSvc := service.NewAdminService(st, hasher, policy, logging.Component(logger, "admin"))
	auditSvc := service.NewAuditService(st, st)

	// gRPC health
	var grpcSrv *grpcapi.Server
	onHealth := func(bool) {}
	if cfg.GRPCAddr != "" {
		grpcSrv = grpcapi.NewServer(logging.Component(logger, "grpc"))
		onHealth = grpcSrv.SetServing

		lis, err := net.Listen("tcp", cfg.GRPCAddr)
		if err != nil {
			logger.WithError(err).Fatal("grpc listen")
		}
		go func() {
			if err := grpcSrv.Serve(lis); err != nil {
				logger.WithError(err).Error("grpc server error")
				stop()
			}
		}()
	}

	monitor := service.NewHealthMonitor(conn, service.MonitorConfig{Interval: cfg.HealthInterval}, onHealth, logging.Component(logger, "health"))
	monitor.Start(ctx)
	defer monitor.Stop()

	// HTTP
	srv := httpapi.NewServer(httpapi.Dependencies{
		Logger:              logging.Component(logger, "http"),
		Addr:                cfg.HTTPAddr,
		AccessService:       accessSvc,
		AccountService:      accountSvc,
		AdminService:        adminSvc,
		AuditService:        auditSvc,
		Tokens:              httpapi.NewTokens(cfg.JWTSecret, cfg.TokenTTL),
		Healthy:             monitor.Healthy,
		AccessRatePerMinute: cfg.AccessRatePerMinute,
		AccessRateBurst:     cfg.AccessRateBurst,
		TrustedProxies:      cfg.TrustedProxies,
	})

	go func() {
		logger.WithField("addr", cfg.HTTPAddr).Info("listening")
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithError(err).Error("server error")
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Warn("http shutdown")
	}
	if grpcSrv != nil {
		grpcSrv.Stop()
	}
}

// seedDev creates the bootstrap admin when one is configured. The admin is
// ACTIVE, so it gets a PIN straight away; the plaintext is logged once, on
// the run that created the row.
func seedDev(ctx context.Context, cfg config.Config, conn *sql.DB, st *sqlitestore.Store, hasher *credential.Hasher, logger logrus.FieldLogger) error {
	opt := db.SeedDevOptions{OpenAllHours: cfg.DevOpenAllHours}
	var pin string
	if cfg.BootstrapAdminEmail != "" && cfg.BootstrapAdminPassword != "" {
		hash, err := hasher.Hash(cfg.BootstrapAdminPassword)
		if err != nil {
			return err
		}
		existing, err := st.ActivePINHashes(ctx)
		if err != nil {
			return err
		}
		pin, err = hasher.NewPIN(existing)
		if err != nil {
			return err
		}
		pinHash, err := hasher.Hash(pin)
		if err != nil {
			return err
		}
		opt.AdminID = uuid.NewString()
		opt.AdminEmail = cfg.BootstrapAdminEmail
		opt.AdminPasswordHash = hash
		opt.AdminPINHash = pinHash
	}

	res, err := db.SeedDev(ctx, conn, opt)
	if err != nil {
		return err
	}
	if res.AdminCreated {
		logger.WithFields(logrus.Fields{
			"email": cfg.BootstrapAdminEmail,
			"pin":   pin,
		}).Warn("bootstrap admin created; record this PIN, it is not shown again")
	}
	return nil
}
