package service

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"fydblock/internal/exchange"
	"fydblock/internal/models"
	"fydblock/pkg/crypto"
)

// Ошибки подключения бирж
var (
	ErrPassphraseRequired = errors.New("passphrase is required for this exchange")
	ErrInvalidCredentials = errors.New("exchange rejected the provided credentials")
)

// ConnectRequest - параметры подключения биржи
type ConnectRequest struct {
	ExchangeID     string `json:"exchange"`
	Mode           string `json:"mode"`
	APIKey         string `json:"api_key"`
	APISecret      string `json:"api_secret"`
	Passphrase     string `json:"passphrase,omitempty"`
	ConnectionType string `json:"connection_type,omitempty"`
}

// ConnectionView - подключение в ответе API, без ключей
type ConnectionView struct {
	ID        int    `json:"id"`
	Exchange  string `json:"exchange"`
	Mode      string `json:"mode"`
	CreatedAt string `json:"created_at"`
}

// ExchangeService управляет подключениями пользователей к биржам
type ExchangeService struct {
	credentials CredentialStore
	bots        BotStore
	clients     ClientProvider
	engine      EngineAPI
	key         []byte
	log         *zap.Logger
}

// NewExchangeService создает сервис подключений
func NewExchangeService(credentials CredentialStore, bots BotStore, clients ClientProvider, engineAPI EngineAPI, key []byte, log *zap.Logger) *ExchangeService {
	if log == nil {
		log = zap.NewNop()
	}
	return &ExchangeService{
		credentials: credentials,
		bots:        bots,
		clients:     clients,
		engine:      engineAPI,
		key:         key,
		log:         log,
	}
}

// Connect проверяет ключи живым вызовом к бирже и сохраняет их зашифрованными.
// Повторное подключение добавляет новую запись - кэш клиентов сбрасывается,
// чтобы следующий запрос ушёл уже с новыми ключами.
func (s *ExchangeService) Connect(ctx context.Context, userID int, req ConnectRequest) (*ConnectionView, error) {
	if !exchange.IsSupported(req.ExchangeID) {
		return nil, exchange.ErrUnsupportedExchange
	}

	caps, _ := exchange.CapabilitiesOf(req.ExchangeID)
	if caps.RequiresPassphrase && req.Passphrase == "" {
		return nil, ErrPassphraseRequired
	}

	if req.Mode != models.ModePaper {
		req.Mode = models.ModeLive
	}

	// Ключи проверяются до сохранения: единственный способ узнать, что они
	// рабочие - спросить саму биржу
	client, err := exchange.New(req.ExchangeID, exchange.Options{
		APIKey:     req.APIKey,
		APISecret:  req.APISecret,
		Passphrase: req.Passphrase,
		Sandbox:    req.Mode == models.ModePaper,
	})
	if err != nil {
		return nil, err
	}
	defer client.Close()

	if _, err := client.FetchBalance(ctx); err != nil {
		s.log.Info("credential verification failed",
			zap.Int("user_id", userID),
			zap.String("exchange", req.ExchangeID),
			zap.Error(err))
		return nil, fmt.Errorf("%w: %v", ErrInvalidCredentials, err)
	}

	cred := &models.ExchangeCredential{
		UserID:         userID,
		ExchangeName:   models.CredentialName(req.ExchangeID, req.Mode),
		ConnectionType: req.ConnectionType,
	}

	if cred.APIKey, err = crypto.Encrypt(req.APIKey, s.key); err != nil {
		return nil, fmt.Errorf("failed to encrypt api key: %w", err)
	}
	if cred.APISecret, err = crypto.Encrypt(req.APISecret, s.key); err != nil {
		return nil, fmt.Errorf("failed to encrypt api secret: %w", err)
	}
	if req.Passphrase != "" {
		if cred.Passphrase, err = crypto.Encrypt(req.Passphrase, s.key); err != nil {
			return nil, fmt.Errorf("failed to encrypt passphrase: %w", err)
		}
	}

	if err := s.credentials.Create(cred); err != nil {
		return nil, fmt.Errorf("failed to store credentials: %w", err)
	}

	s.clients.Invalidate(req.ExchangeID, userID)

	s.log.Info("exchange connected",
		zap.Int("user_id", userID),
		zap.String("exchange", req.ExchangeID),
		zap.String("mode", req.Mode))

	return &ConnectionView{
		ID:        cred.ID,
		Exchange:  req.ExchangeID,
		Mode:      req.Mode,
		CreatedAt: cred.CreatedAt.Format("2006-01-02T15:04:05Z07:00"),
	}, nil
}

// Disconnect отключает биржу: останавливает её ботов в движке, удаляет
// подключения обоих режимов вместе с ботами и сбрасывает кэш клиентов.
// Остановка в движке best-effort: недоступный движок не должен навсегда
// заблокировать отключение.
func (s *ExchangeService) Disconnect(ctx context.Context, userID int, exchangeID string) error {
	bots, err := s.bots.ListByUser(userID)
	if err != nil {
		return fmt.Errorf("failed to list bots: %w", err)
	}

	for _, bot := range bots {
		if bot.ExchangeID() != exchangeID || !bot.IsRunning() {
			continue
		}
		if err := s.engine.StopBot(ctx, bot.ID); err != nil {
			s.log.Warn("failed to stop bot in engine during disconnect",
				zap.Int("bot_id", bot.ID), zap.Error(err))
		}
	}

	deleted, err := s.credentials.DeleteForExchange(userID, exchangeID)
	if err != nil {
		return fmt.Errorf("failed to delete credentials: %w", err)
	}

	s.clients.Invalidate(exchangeID, userID)

	s.log.Info("exchange disconnected",
		zap.Int("user_id", userID),
		zap.String("exchange", exchangeID),
		zap.Int64("credentials_deleted", deleted))
	return nil
}

// Connections возвращает актуальные подключения пользователя
func (s *ExchangeService) Connections(userID int) ([]ConnectionView, error) {
	creds, err := s.credentials.ListByUser(userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list credentials: %w", err)
	}

	views := make([]ConnectionView, 0, len(creds))
	for _, cred := range creds {
		views = append(views, ConnectionView{
			ID:        cred.ID,
			Exchange:  cred.ExchangeID(),
			Mode:      cred.Mode(),
			CreatedAt: cred.CreatedAt.Format("2006-01-02T15:04:05Z07:00"),
		})
	}
	return views, nil
}

// SupportedExchanges возвращает список бирж, доступных для подключения
func (s *ExchangeService) SupportedExchanges() []string {
	return exchange.Supported()
}
