package service

import (
	"context"
	"errors"
	"testing"

	"fydblock/internal/exchange"
	"fydblock/internal/models"
	"fydblock/pkg/crypto"
)

// registerServiceExchange регистрирует тестовую биржу, чьи клиенты
// управляются переданным stubClient
func registerServiceExchange(id string, caps exchange.Capabilities, client *stubClient) {
	exchange.Register(id, func(opts exchange.Options) (exchange.Client, error) {
		return client, nil
	}, caps)
}

func TestConnectVerifiesAndStoresEncrypted(t *testing.T) {
	key := testKey(t)
	client := &stubClient{id: "svcmock", balances: exchange.Balances{}}
	registerServiceExchange("svcmock", exchange.Capabilities{NativeSandbox: true}, client)

	var stored *models.ExchangeCredential
	creds := &mockCredentialStore{
		CreateFn: func(cred *models.ExchangeCredential) error {
			cred.ID = 11
			stored = cred
			return nil
		},
	}
	provider := &mockClientProvider{client: client}

	svc := NewExchangeService(creds, &mockBotStore{}, provider, &mockEngine{}, key, nil)

	view, err := svc.Connect(context.Background(), 42, ConnectRequest{
		ExchangeID: "svcmock",
		Mode:       models.ModePaper,
		APIKey:     "plain-key",
		APISecret:  "plain-secret",
	})
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}

	if view.Mode != models.ModePaper {
		t.Errorf("Mode = %q, want paper", view.Mode)
	}
	if stored.ExchangeName != "svcmock_paper" {
		t.Errorf("ExchangeName = %q, want svcmock_paper", stored.ExchangeName)
	}

	// Ключи в БД зашифрованы, но расшифровываются обратно в исходные
	if stored.APIKey == "plain-key" {
		t.Error("api key stored in plaintext")
	}
	decrypted, err := crypto.Decrypt(stored.APIKey, key)
	if err != nil || decrypted != "plain-key" {
		t.Errorf("Decrypt() = %q, %v, want plain-key", decrypted, err)
	}

	// Кэш клиентов сброшен: новые ключи должны применяться немедленно
	if len(provider.invalidated) != 1 || provider.invalidated[0] != "svcmock" {
		t.Errorf("invalidated = %v, want [svcmock]", provider.invalidated)
	}
}

func TestConnectRejectsBadCredentials(t *testing.T) {
	client := &stubClient{id: "svcmock", balanceErr: errors.New("invalid api key")}
	registerServiceExchange("svcmock", exchange.Capabilities{NativeSandbox: true}, client)

	creds := &mockCredentialStore{
		CreateFn: func(cred *models.ExchangeCredential) error {
			t.Error("rejected credentials must not be stored")
			return nil
		},
	}

	svc := NewExchangeService(creds, &mockBotStore{}, &mockClientProvider{}, &mockEngine{}, testKey(t), nil)

	_, err := svc.Connect(context.Background(), 42, ConnectRequest{
		ExchangeID: "svcmock",
		APIKey:     "bad",
		APISecret:  "bad",
	})
	if !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("expected ErrInvalidCredentials, got %v", err)
	}
}

func TestConnectUnsupportedExchange(t *testing.T) {
	svc := NewExchangeService(&mockCredentialStore{}, &mockBotStore{}, &mockClientProvider{}, &mockEngine{}, testKey(t), nil)

	_, err := svc.Connect(context.Background(), 42, ConnectRequest{ExchangeID: "kraken"})
	if !errors.Is(err, exchange.ErrUnsupportedExchange) {
		t.Errorf("expected ErrUnsupportedExchange, got %v", err)
	}
}

func TestConnectPassphraseRequired(t *testing.T) {
	client := &stubClient{id: "passmock"}
	registerServiceExchange("passmock", exchange.Capabilities{RequiresPassphrase: true, NativeSandbox: true}, client)

	svc := NewExchangeService(&mockCredentialStore{}, &mockBotStore{}, &mockClientProvider{}, &mockEngine{}, testKey(t), nil)

	_, err := svc.Connect(context.Background(), 42, ConnectRequest{
		ExchangeID: "passmock",
		APIKey:     "k",
		APISecret:  "s",
	})
	if !errors.Is(err, ErrPassphraseRequired) {
		t.Errorf("expected ErrPassphraseRequired, got %v", err)
	}
}

func TestDisconnectStopsRunningBots(t *testing.T) {
	var stopped []int
	eng := &mockEngine{
		StopBotFn: func(ctx context.Context, botID int) error {
			stopped = append(stopped, botID)
			return nil
		},
	}

	bots := &mockBotStore{
		ListByUserFn: func(userID int) ([]*models.Bot, error) {
			return []*models.Bot{
				{ID: 1, Status: models.BotStatusRunning, ExchangeName: "binance"},
				{ID: 2, Status: models.BotStatusPaused, ExchangeName: "binance"},
				{ID: 3, Status: models.BotStatusRunning, ExchangeName: "okx_paper"},
			}, nil
		},
	}

	var deletedExchange string
	creds := &mockCredentialStore{
		DeleteForExchangeFn: func(userID int, exchangeID string) (int64, error) {
			deletedExchange = exchangeID
			return 2, nil
		},
	}
	provider := &mockClientProvider{}

	svc := NewExchangeService(creds, bots, provider, eng, testKey(t), nil)

	if err := svc.Disconnect(context.Background(), 42, "binance"); err != nil {
		t.Fatalf("Disconnect() error = %v", err)
	}

	// Остановлен только работающий бот на отключаемой бирже
	if len(stopped) != 1 || stopped[0] != 1 {
		t.Errorf("stopped = %v, want [1]", stopped)
	}
	if deletedExchange != "binance" {
		t.Errorf("deleted exchange = %q, want binance", deletedExchange)
	}
	if len(provider.invalidated) != 1 {
		t.Errorf("expected cache invalidation, got %v", provider.invalidated)
	}
}

func TestDisconnectSurvivesEngineOutage(t *testing.T) {
	eng := &mockEngine{
		StopBotFn: func(ctx context.Context, botID int) error {
			return errors.New("engine down")
		},
	}
	bots := &mockBotStore{
		ListByUserFn: func(userID int) ([]*models.Bot, error) {
			return []*models.Bot{{ID: 1, Status: models.BotStatusRunning, ExchangeName: "binance"}}, nil
		},
	}
	creds := &mockCredentialStore{
		DeleteForExchangeFn: func(userID int, exchangeID string) (int64, error) { return 1, nil },
	}

	svc := NewExchangeService(creds, bots, &mockClientProvider{}, eng, testKey(t), nil)

	// Недоступный движок не блокирует отключение биржи
	if err := svc.Disconnect(context.Background(), 42, "binance"); err != nil {
		t.Fatalf("Disconnect() error = %v", err)
	}
}
