package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/crypto/bcrypt"

	"dinner-house/internal/accounts"
	"dinner-house/internal/catalog"
	"dinner-house/internal/config"
	"dinner-house/internal/connections/database"
	"dinner-house/internal/connections/rabbitmq"
	redisconn "dinner-house/internal/connections/redis"
	"dinner-house/internal/domain"
	"dinner-house/internal/events"
	"dinner-house/internal/httpapi"
	"dinner-house/internal/logger"
	"dinner-house/internal/migrate"
	"dinner-house/internal/notify"
	"dinner-house/internal/orders"
	"dinner-house/internal/promotion"
	"dinner-house/internal/staff"
)

func main() {
	mode := flag.String("mode", "", "api | notifier | migrate | create-staff")
	cfgPath := flag.String("config", "", "path to YAML config (auto-detected when empty)")
	port := flag.Int("port", 0, "api: override HTTP port")

	staffUsername := flag.String("username", "", "create-staff: login name")
	staffPassword := flag.String("password", "", "create-staff: password")
	staffName := flag.String("name", "", "create-staff: display name")
	staffRole := flag.String("role", domain.RoleKitchen, "create-staff: OWNER | MANAGER | KITCHEN | DELIVERY")
	flag.Parse()

	if *cfgPath == "" {
		p, err := config.Find()
		if err != nil {
			fmt.Fprintln(os.Stderr, "no config file found; pass --config")
			os.Exit(2)
		}
		*cfgPath = p
	}
	cfg, err := config.Load(*cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(2)
	}
	if *port != 0 {
		cfg.Server.Port = *port
	}

	log, err := logger.New(cfg.Server.LogMode)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(2)
	}
	defer log.Sync()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	switch *mode {
	case "api":
		err = runAPI(ctx, cfg, log)
	case "notifier":
		err = runNotifier(ctx, cfg, log)
	case "migrate":
		err = runMigrate(ctx, cfg, log)
	case "create-staff":
		err = runCreateStaff(ctx, cfg, log, *staffUsername, *staffPassword, *staffName, *staffRole)
	default:
		fmt.Fprintln(os.Stderr, "--mode is required: api | notifier | migrate | create-staff")
		os.Exit(2)
	}
	if err != nil {
		log.Error("fatal", "mode", *mode, "error", err)
		os.Exit(1)
	}
}

func runAPI(ctx context.Context, cfg config.App, log *logger.Logger) error {
	pool, err := database.Connect(ctx, cfg.Database)
	if err != nil {
		return err
	}
	defer pool.Close()

	if err := migrate.Run(ctx, pool, log); err != nil {
		return err
	}

	mq, err := rabbitmq.Dial(cfg.Rabbit)
	if err != nil {
		return err
	}
	defer mq.Close()
	if err := mq.DeclareAll(); err != nil {
		return err
	}

	rdb, err := redisconn.Connect(ctx, cfg.Redis)
	if err != nil {
		// The catalog degrades to plain DB reads without Redis.
		log.Warn("redis unavailable, catalog cache disabled", "error", err)
		rdb = nil
	} else {
		defer rdb.Close()
	}

	publisher := events.NewPublisher(mq, log)

	cache := catalog.NewCache(rdb, time.Duration(cfg.Redis.CacheTTLSeconds)*time.Second, log)
	catalogSvc := catalog.NewService(catalog.NewRepository(pool), cache, log)

	staffRepo := staff.NewRepository(pool, cfg.Attendance.LocalOffsetMinutes)
	ledger := staff.NewLedger(staffRepo, publisher, log)

	promoRepo := promotion.NewRepository(pool)
	promoSvc := promotion.NewService(promoRepo, log)

	accountsRepo := accounts.NewRepository(pool)
	ordersSvc := orders.NewService(orders.NewRepository(pool), catalogSvc.Repo(),
		accountsRepo, promoSvc, publisher, log)

	srv := httpapi.NewServer(ordersSvc, ledger, staffRepo, catalogSvc, promoRepo, accountsRepo, log)
	httpSrv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: srv.Routes(),
	}

	errCh := make(chan error, 1)
	go func() { errCh <- httpSrv.ListenAndServe() }()
	log.Info("api listening", "port", cfg.Server.Port)

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpSrv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		log.Info("api stopped")
		return nil
	case err := <-errCh:
		if err == http.ErrServerClosed {
			return nil
		}
		return err
	}
}

func runNotifier(ctx context.Context, cfg config.App, log *logger.Logger) error {
	mq, err := rabbitmq.Dial(cfg.Rabbit)
	if err != nil {
		return err
	}
	defer mq.Close()
	if err := mq.DeclareAll(); err != nil {
		return err
	}
	log.Info("notifier started")
	return notify.NewSubscriber(mq, log).Run(ctx)
}

func runMigrate(ctx context.Context, cfg config.App, log *logger.Logger) error {
	pool, err := database.Connect(ctx, cfg.Database)
	if err != nil {
		return err
	}
	defer pool.Close()
	return migrate.Run(ctx, pool, log)
}

func runCreateStaff(ctx context.Context, cfg config.App, log *logger.Logger, username, password, name, role string) error {
	if username == "" || password == "" {
		return fmt.Errorf("--username and --password are required")
	}
	if name == "" {
		name = username
	}
	if !domain.ValidRole(role) {
		return fmt.Errorf("unknown role %q", role)
	}

	pool, err := database.Connect(ctx, cfg.Database)
	if err != nil {
		return err
	}
	defer pool.Close()
	if err := migrate.Run(ctx, pool, log); err != nil {
		return err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	repo := staff.NewRepository(pool, cfg.Attendance.LocalOffsetMinutes)
	id, err := repo.CreateStaff(ctx, &domain.Staff{
		Username:     username,
		PasswordHash: string(hash),
		DisplayName:  name,
		Role:         role,
		IsActive:     true,
	})
	if err != nil {
		return err
	}
	log.Info("staff created", "staff_id", id, "username", username, "role", role)
	return nil
}
