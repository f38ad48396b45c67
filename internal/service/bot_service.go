package service

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"fydblock/internal/engine"
	"fydblock/internal/models"
	"fydblock/internal/repository"
	"fydblock/pkg/crypto"
)

// Ошибки сервиса ботов
var (
	ErrNoCredentialForMode = errors.New("no exchange connected for the requested mode")
	ErrBotAlreadyRunning   = errors.New("bot is already running")
	ErrBotNotRunning       = errors.New("bot is not running")
)

// botSparklineLength - сколько точек прибыли отдаётся на карточку бота
const botSparklineLength = 25

// BotView - бот с историей прибыли для списков
type BotView struct {
	*models.Bot
	ProfitHistory []float64 `json:"profit_history"`
}

// BotService управляет жизненным циклом ботов. Исполнение стратегий живёт
// во внешнем движке, здесь - конфигурация, статусы и согласование с БД.
type BotService struct {
	bots        BotStore
	credentials CredentialStore
	snapshots   SnapshotStore
	engine      EngineAPI
	key         []byte
	notifier    Notifier
	log         *zap.Logger
}

// NewBotService создает сервис ботов
func NewBotService(bots BotStore, credentials CredentialStore, snapshots SnapshotStore, engineAPI EngineAPI, key []byte, log *zap.Logger) *BotService {
	if log == nil {
		log = zap.NewNop()
	}
	return &BotService{
		bots:        bots,
		credentials: credentials,
		snapshots:   snapshots,
		engine:      engineAPI,
		key:         key,
		log:         log,
	}
}

// AttachNotifier подключает push-канал смены статусов ботов
func (s *BotService) AttachNotifier(notifier Notifier) {
	s.notifier = notifier
}

// notifyStatus отправляет новый статус бота на вкладки пользователя
func (s *BotService) notifyStatus(userID, botID int, status string) {
	if s.notifier != nil {
		s.notifier.SendBotStatus(userID, botID, status)
	}
}

// CreateBot создает бота в статусе paused. Запуск - отдельная операция:
// пользователь сначала настраивает сетку, потом включает.
func (s *BotService) CreateBot(ctx context.Context, userID int, bot *models.Bot) (*models.Bot, error) {
	bot.Config.Normalize()

	// Бот привязывается к актуальному подключению своего режима
	cred, err := s.credentials.GetCurrent(userID, bot.Config.Mode)
	if err != nil {
		if errors.Is(err, repository.ErrCredentialNotFound) {
			return nil, ErrNoCredentialForMode
		}
		return nil, fmt.Errorf("failed to load credentials: %w", err)
	}

	bot.UserID = userID
	bot.CredentialID = cred.ID
	bot.Status = models.BotStatusPaused
	if bot.Type == "" {
		bot.Type = "grid"
	}

	if err := s.bots.Create(bot); err != nil {
		return nil, fmt.Errorf("failed to store bot: %w", err)
	}
	bot.ExchangeName = cred.ExchangeName

	s.log.Info("bot created",
		zap.Int("user_id", userID),
		zap.Int("bot_id", bot.ID),
		zap.String("pair", bot.Config.Pair),
		zap.String("mode", bot.Config.Mode))
	return bot, nil
}

// StartBot запускает бота в движке, передавая расшифрованные ключи его
// подключения. Статус в БД меняется только после подтверждения движка.
func (s *BotService) StartBot(ctx context.Context, userID, botID int) error {
	bot, err := s.bots.GetByID(userID, botID)
	if err != nil {
		return err
	}
	if bot.IsRunning() {
		return ErrBotAlreadyRunning
	}

	cred, err := s.credentials.GetByID(bot.CredentialID)
	if err != nil {
		return fmt.Errorf("failed to load bot credentials: %w", err)
	}

	apiKey, apiSecret, passphrase, err := decryptCredential(cred, s.key)
	if err != nil {
		return fmt.Errorf("failed to decrypt bot credentials: %w", err)
	}

	err = s.engine.StartBot(ctx, engine.StartBotRequest{
		BotID:    bot.ID,
		UserID:   userID,
		Exchange: cred.ExchangeID(),
		Mode:     bot.Config.Mode,
		Pair:     bot.Config.Pair,
		Config:   bot.Config,
		Credentials: engine.BotCredentials{
			APIKey:     apiKey,
			APISecret:  apiSecret,
			Passphrase: passphrase,
		},
	})
	if err != nil {
		return fmt.Errorf("engine refused to start bot: %w", err)
	}

	if err := s.bots.UpdateStatus(userID, botID, models.BotStatusRunning); err != nil {
		// Движок запустил, а БД не записала: останавливаем обратно,
		// иначе появится бот-призрак, который торгует, но числится выключенным
		if stopErr := s.engine.StopBot(ctx, botID); stopErr != nil {
			s.log.Error("failed to roll back engine start",
				zap.Int("bot_id", botID), zap.Error(stopErr))
		}
		return fmt.Errorf("failed to update bot status: %w", err)
	}

	s.notifyStatus(userID, botID, models.BotStatusRunning)
	s.log.Info("bot started", zap.Int("user_id", userID), zap.Int("bot_id", botID))
	return nil
}

// StopBot останавливает бота в движке и переводит его в paused
func (s *BotService) StopBot(ctx context.Context, userID, botID int) error {
	bot, err := s.bots.GetByID(userID, botID)
	if err != nil {
		return err
	}
	if !bot.IsRunning() {
		return ErrBotNotRunning
	}

	if err := s.engine.StopBot(ctx, botID); err != nil {
		return fmt.Errorf("engine refused to stop bot: %w", err)
	}

	if err := s.bots.UpdateStatus(userID, botID, models.BotStatusPaused); err != nil {
		return fmt.Errorf("failed to update bot status: %w", err)
	}

	s.notifyStatus(userID, botID, models.BotStatusPaused)
	s.log.Info("bot stopped", zap.Int("user_id", userID), zap.Int("bot_id", botID))
	return nil
}

// DeleteBot удаляет бота из движка и из БД.
// liquidate - продать базовый актив бота по рынку перед удалением.
func (s *BotService) DeleteBot(ctx context.Context, userID, botID int, liquidate bool) error {
	bot, err := s.bots.GetByID(userID, botID)
	if err != nil {
		return err
	}

	if bot.IsRunning() || liquidate {
		if err := s.engine.DeleteBot(ctx, botID, liquidate); err != nil {
			return fmt.Errorf("engine refused to delete bot: %w", err)
		}
	}

	if err := s.bots.Delete(userID, botID); err != nil {
		return err
	}

	s.log.Info("bot deleted",
		zap.Int("user_id", userID),
		zap.Int("bot_id", botID),
		zap.Bool("liquidate", liquidate))
	return nil
}

// GetBot возвращает бота с историей прибыли
func (s *BotService) GetBot(ctx context.Context, userID, botID int) (*BotView, error) {
	bot, err := s.bots.GetByID(userID, botID)
	if err != nil {
		return nil, err
	}
	return s.withProfitHistory(bot), nil
}

// ListBots возвращает ботов пользователя с историей прибыли
func (s *BotService) ListBots(ctx context.Context, userID int) ([]*BotView, error) {
	bots, err := s.bots.ListByUser(userID)
	if err != nil {
		return nil, err
	}

	views := make([]*BotView, 0, len(bots))
	for _, bot := range bots {
		views = append(views, s.withProfitHistory(bot))
	}
	return views, nil
}

// UpdateBotConfig обновляет конфигурацию остановленного бота
func (s *BotService) UpdateBotConfig(ctx context.Context, userID, botID int, cfg models.BotConfig) error {
	bot, err := s.bots.GetByID(userID, botID)
	if err != nil {
		return err
	}
	if bot.IsRunning() {
		return ErrBotAlreadyRunning
	}

	cfg.Normalize()
	// Режим бота фиксируется при создании: его смена означала бы перенос
	// бота на другое подключение
	cfg.Mode = bot.Config.Mode

	return s.bots.UpdateConfig(userID, botID, cfg)
}

// withProfitHistory дополняет бота спарклайном прибыли от старых точек к новым
func (s *BotService) withProfitHistory(bot *models.Bot) *BotView {
	view := &BotView{Bot: bot, ProfitHistory: []float64{}}

	snaps, err := s.snapshots.BotProfitSparkline(bot.ID, botSparklineLength)
	if err != nil {
		s.log.Warn("failed to load bot profit history",
			zap.Int("bot_id", bot.ID), zap.Error(err))
		return view
	}

	for i := len(snaps) - 1; i >= 0; i-- {
		view.ProfitHistory = append(view.ProfitHistory, snaps[i].TotalProfit)
	}
	return view
}

// decryptCredential расшифровывает ключи подключения
func decryptCredential(cred *models.ExchangeCredential, key []byte) (apiKey, apiSecret, passphrase string, err error) {
	apiKey, err = crypto.Decrypt(cred.APIKey, key)
	if err != nil {
		return "", "", "", err
	}
	apiSecret, err = crypto.Decrypt(cred.APISecret, key)
	if err != nil {
		return "", "", "", err
	}
	if cred.Passphrase != "" {
		passphrase, err = crypto.Decrypt(cred.Passphrase, key)
		if err != nil {
			return "", "", "", err
		}
	}
	return apiKey, apiSecret, passphrase, nil
}
