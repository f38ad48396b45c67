package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"fydblock/internal/exchange"
	"fydblock/internal/models"
	"fydblock/pkg/retry"
)

// cleanupInterval - период удаления устаревших снапшотов
const cleanupInterval = time.Hour

// SnapshotService периодически фиксирует стоимость портфелей всех
// пользователей и накопленную прибыль работающих ботов. Эти ряды питают
// мини-графики портфеля и график дашборда.
type SnapshotService struct {
	credentials CredentialStore
	snapshots   SnapshotStore
	bots        BotStore
	clients     ClientProvider
	key         []byte
	notifier    Notifier
	log         *zap.Logger

	interval  time.Duration
	retention time.Duration

	stopCh chan struct{}
	doneCh chan struct{}
}

// NewSnapshotService создает фоновый сервис снапшотов
func NewSnapshotService(credentials CredentialStore, snapshots SnapshotStore, bots BotStore, clients ClientProvider, key []byte, interval, retention time.Duration, log *zap.Logger) *SnapshotService {
	if log == nil {
		log = zap.NewNop()
	}
	return &SnapshotService{
		credentials: credentials,
		snapshots:   snapshots,
		bots:        bots,
		clients:     clients,
		key:         key,
		log:         log,
		interval:    interval,
		retention:   retention,
	}
}

// AttachNotifier подключает push-канал: свежая стоимость портфеля уходит
// на открытые вкладки сразу после записи снапшота
func (s *SnapshotService) AttachNotifier(notifier Notifier) {
	s.notifier = notifier
}

// Start запускает периодическое снятие снапшотов и очистку истории
func (s *SnapshotService) Start() {
	s.stopCh = make(chan struct{})
	s.doneCh = make(chan struct{})

	go func() {
		defer close(s.doneCh)

		snapshotTicker := time.NewTicker(s.interval)
		defer snapshotTicker.Stop()
		cleanupTicker := time.NewTicker(cleanupInterval)
		defer cleanupTicker.Stop()

		for {
			select {
			case <-snapshotTicker.C:
				ctx, cancel := context.WithTimeout(context.Background(), s.interval)
				s.RunOnce(ctx)
				cancel()
			case <-cleanupTicker.C:
				s.cleanup()
			case <-s.stopCh:
				return
			}
		}
	}()

	s.log.Info("snapshot service started",
		zap.Duration("interval", s.interval),
		zap.Duration("retention", s.retention))
}

// Stop останавливает фоновые циклы и дожидается завершения текущего прохода
func (s *SnapshotService) Stop() {
	if s.stopCh == nil {
		return
	}
	close(s.stopCh)
	<-s.doneCh
	s.stopCh = nil
	s.log.Info("snapshot service stopped")
}

// RunOnce выполняет один проход: по снапшоту на каждое актуальное подключение
// плюс снапшоты прибыли работающих ботов. Ошибки отдельных подключений не
// прерывают проход.
func (s *SnapshotService) RunOnce(ctx context.Context) {
	started := time.Now()
	defer func() {
		SnapshotRunDuration.Observe(time.Since(started).Seconds())
	}()

	creds, err := s.credentials.GetAllCurrent()
	if err != nil {
		s.log.Error("failed to list credentials for snapshot pass", zap.Error(err))
		return
	}

	users := make(map[int]bool)
	for _, cred := range creds {
		users[cred.UserID] = true
		s.snapshotPortfolio(ctx, cred)

		select {
		case <-ctx.Done():
			s.log.Warn("snapshot pass interrupted", zap.Error(ctx.Err()))
			return
		default:
		}
	}

	for userID := range users {
		s.snapshotBotProfits(userID)
	}
}

// snapshotPortfolio фиксирует стоимость одного портфеля
func (s *SnapshotService) snapshotPortfolio(ctx context.Context, cred *models.ExchangeCredential) {
	logger := s.log.With(
		zap.Int("user_id", cred.UserID),
		zap.String("exchange", cred.ExchangeName))

	apiKey, apiSecret, passphrase, err := decryptCredential(cred, s.key)
	if err != nil {
		SnapshotErrors.WithLabelValues("decrypt").Inc()
		logger.Error("failed to decrypt credentials, skipping", zap.Error(err))
		return
	}

	mode := cred.Mode()
	client, err := s.clients.AuthClient(exchange.AuthParams{
		ExchangeID: cred.ExchangeID(),
		UserID:     cred.UserID,
		APIKey:     apiKey,
		APISecret:  apiSecret,
		Passphrase: passphrase,
		Sandbox:    mode == models.ModePaper,
	})
	if err != nil {
		SnapshotErrors.WithLabelValues("client").Inc()
		logger.Warn("failed to create exchange client, skipping", zap.Error(err))
		return
	}

	// Фоновый проход не торопится, но и не ретраит бесконечно
	cfg := retry.ConservativeConfig()
	cfg.RetryIf = retry.RetryIfNotContext
	balances, err := retry.DoWithResult(ctx, func() (exchange.Balances, error) {
		return client.FetchBalance(ctx)
	}, cfg)
	if err != nil {
		SnapshotErrors.WithLabelValues("balance").Inc()
		logger.Warn("failed to fetch balance, skipping snapshot", zap.Error(err))
		return
	}

	equity := s.equity(ctx, client, balances, logger)

	// Нулевая стоимость не пишется: это либо пустой аккаунт, либо отказ
	// тикеров - и то и другое рисовало бы на графике фальшивый провал
	if equity <= 0 {
		return
	}

	if err := s.snapshots.InsertPortfolio(cred.UserID, mode, equity); err != nil {
		SnapshotErrors.WithLabelValues("persist").Inc()
		logger.Error("failed to persist portfolio snapshot", zap.Error(err))
		return
	}
	SnapshotsWritten.WithLabelValues("portfolio").Inc()

	if s.notifier != nil {
		s.notifier.SendPortfolioUpdate(cred.UserID, mode, equity)
	}
}

// equity оценивает балансы в USD: стейблкоины по 1.0, остальное по последней
// цене против USDT. Активы без тикера в сумму не попадают.
func (s *SnapshotService) equity(ctx context.Context, client exchange.Client, balances exchange.Balances, logger *zap.Logger) float64 {
	var total float64
	symbols := make([]string, 0, len(balances))

	for asset, bal := range balances {
		if stablecoins[asset] {
			total += bal.Total
		} else if bal.Total > 0 {
			symbols = append(symbols, asset+"/USDT")
		}
	}

	if len(symbols) == 0 {
		return total
	}

	tickers, err := client.FetchTickers(ctx, symbols)
	if err != nil {
		logger.Warn("failed to fetch tickers for equity", zap.Error(err))
		return total
	}

	for asset, bal := range balances {
		if stablecoins[asset] {
			continue
		}
		if ticker, ok := tickers[asset+"/USDT"]; ok {
			total += bal.Total * ticker.Last
		}
	}
	return total
}

// snapshotBotProfits фиксирует накопленную прибыль работающих ботов
func (s *SnapshotService) snapshotBotProfits(userID int) {
	bots, err := s.bots.ListByUser(userID)
	if err != nil {
		s.log.Error("failed to list bots for profit snapshot",
			zap.Int("user_id", userID), zap.Error(err))
		return
	}

	for _, bot := range bots {
		if !bot.IsRunning() {
			continue
		}
		if err := s.snapshots.InsertBotProfit(bot.ID, bot.Config.TotalProfit); err != nil {
			SnapshotErrors.WithLabelValues("persist").Inc()
			s.log.Error("failed to persist bot profit snapshot",
				zap.Int("bot_id", bot.ID), zap.Error(err))
			continue
		}
		SnapshotsWritten.WithLabelValues("bot_profit").Inc()
	}
}

// cleanup удаляет снапшоты старше горизонта хранения
func (s *SnapshotService) cleanup() {
	deleted, err := s.snapshots.DeleteOlderThan(time.Now().Add(-s.retention))
	if err != nil {
		s.log.Error("failed to prune old snapshots", zap.Error(err))
		return
	}
	if deleted > 0 {
		SnapshotsPruned.Add(float64(deleted))
		s.log.Debug("pruned old snapshots", zap.Int64("deleted", deleted))
	}
}
