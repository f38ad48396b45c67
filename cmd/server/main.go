package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq"
	"go.uber.org/zap"

	"fydblock/internal/api"
	"fydblock/internal/config"
	"fydblock/internal/engine"
	"fydblock/internal/exchange"
	"fydblock/internal/repository"
	"fydblock/internal/service"
	"fydblock/internal/websocket"
	"fydblock/pkg/crypto"
	"fydblock/pkg/logger"
)

func main() {
	// Загрузка конфигурации
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	zlog, err := logger.New(cfg.Logging.Level, cfg.Logging.Format)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer zlog.Sync()

	// Ключ шифрования API ключей выводится из секрета один раз на старте
	key, err := crypto.DeriveKey(cfg.Security.EncryptionSecret)
	if err != nil {
		zlog.Fatal("failed to derive encryption key", zap.Error(err))
	}

	// Инициализация базы данных
	db, err := initDatabase(cfg)
	if err != nil {
		zlog.Fatal("failed to connect to database", zap.Error(err),
			zap.String("dsn", cfg.Database.DSNWithoutPassword()))
	}
	defer db.Close()

	zlog.Info("connected to database", zap.String("dsn", cfg.Database.DSNWithoutPassword()))

	// Репозитории
	credentialRepo := repository.NewCredentialRepository(db)
	snapshotRepo := repository.NewSnapshotRepository(db)
	botRepo := repository.NewBotRepository(db)

	// Кэш биржевых клиентов с фоновой очисткой
	clientCache := exchange.NewClientCache(cfg.Cache.TTL, cfg.Cache.MaxEntries, zlog)
	clientCache.Start(cfg.Cache.SweepInterval)

	// Клиент внешнего торгового движка
	engineClient := engine.NewClient(cfg.Engine.URL, cfg.Engine.Timeout, zlog)

	// Сервисы
	portfolioService := service.NewPortfolioService(credentialRepo, snapshotRepo, clientCache, engineClient, key, zlog)
	dashboardService := service.NewDashboardService(snapshotRepo, botRepo, zlog)
	exchangeService := service.NewExchangeService(credentialRepo, botRepo, clientCache, engineClient, key, zlog)
	marketService := service.NewMarketService(clientCache, zlog)
	botService := service.NewBotService(botRepo, credentialRepo, snapshotRepo, engineClient, key, zlog)

	// Фоновые снапшоты equity для истории портфелей
	snapshotService := service.NewSnapshotService(
		credentialRepo, snapshotRepo, botRepo, clientCache, key,
		cfg.Snapshot.Interval, cfg.Snapshot.Retention, zlog,
	)
	// WebSocket hub для push-обновлений
	hub := websocket.NewHub(zlog)
	go hub.Run()

	botService.AttachNotifier(hub)
	snapshotService.AttachNotifier(hub)
	snapshotService.Start()

	// Настройка HTTP роутера
	router := api.SetupRoutes(&api.Dependencies{
		Portfolio: portfolioService,
		Dashboard: dashboardService,
		Exchanges: exchangeService,
		Market:    marketService,
		Bots:      botService,
		Hub:       hub,
		Log:       zlog,
	})

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Запуск сервера в отдельной горутине
	go func() {
		zlog.Info("starting server", zap.String("addr", server.Addr), zap.Bool("https", cfg.Server.UseHTTPS))
		var srvErr error
		if cfg.Server.UseHTTPS {
			srvErr = server.ListenAndServeTLS(cfg.Server.CertFile, cfg.Server.KeyFile)
		} else {
			srvErr = server.ListenAndServe()
		}
		if srvErr != nil && srvErr != http.ErrServerClosed {
			zlog.Fatal("server failed", zap.Error(srvErr))
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	zlog.Info("shutting down server")

	// Сначала фоновые воркеры: новые снапшоты и sweep'ы не должны
	// стартовать во время останова
	snapshotService.Stop()
	clientCache.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		zlog.Error("server forced to shutdown", zap.Error(err))
	}

	// Затем соединения: websocket клиенты, биржевые клиенты, БД
	hub.Stop()
	clientCache.CloseAll()
	exchange.CloseSharedHTTPClient()

	zlog.Info("server exited")
}

// initDatabase создает подключение к базе данных и проверяет его
func initDatabase(cfg *config.Config) (*sql.DB, error) {
	db, err := sql.Open(cfg.Database.Driver, cfg.Database.DSN())
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Настройка пула соединений
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return db, nil
}
