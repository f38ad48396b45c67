package exchange

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"
)

// ClientCache кэширует биржевые клиенты между запросами: создание клиента
// (и прогрев его rate-limit окон) заметно дороже одного REST вызова.
//
// Две секции:
//   - публичные клиенты, ключ exchange:sandbox - общие для всех пользователей
//   - аутентифицированные, ключ exchange:user:mode - по одному на подключение
//
// TTL скользящий: каждое обращение продлевает жизнь записи.
type ClientCache struct {
	log        *zap.Logger
	ttl        time.Duration
	maxEntries int

	mu     sync.Mutex
	public map[string]*cacheEntry
	auth   map[string]*cacheEntry

	stopCh chan struct{}
	doneCh chan struct{}

	now func() time.Time // подменяется в тестах
}

type cacheEntry struct {
	client    Client
	apiKey    string
	apiSecret string
	lastUsed  time.Time
}

// AuthParams - параметры аутентифицированного клиента
type AuthParams struct {
	ExchangeID string
	UserID     int
	APIKey     string
	APISecret  string
	Passphrase string
	Sandbox    bool
}

// NewClientCache создает кэш клиентов.
// maxEntries - порог суммарного размера, при достижении которого вставка
// запускает внеочередную очистку.
func NewClientCache(ttl time.Duration, maxEntries int, log *zap.Logger) *ClientCache {
	if log == nil {
		log = zap.NewNop()
	}
	return &ClientCache{
		log:        log,
		ttl:        ttl,
		maxEntries: maxEntries,
		public:     make(map[string]*cacheEntry),
		auth:       make(map[string]*cacheEntry),
		now:        time.Now,
	}
}

func publicKey(exchangeID string, sandbox bool) string {
	if sandbox {
		return exchangeID + ":sandbox"
	}
	return exchangeID
}

func authKey(exchangeID string, userID int, sandbox bool) string {
	mode := "live"
	if sandbox {
		mode = "paper"
	}
	return fmt.Sprintf("%s:%d:%s", exchangeID, userID, mode)
}

// PublicClient возвращает публичный клиент биржи (без ключей).
// Клиент общий: тикеры одинаковы для всех пользователей.
func (c *ClientCache) PublicClient(exchangeID string, sandbox bool) (Client, error) {
	key := publicKey(exchangeID, sandbox)

	c.mu.Lock()
	defer c.mu.Unlock()

	if entry, ok := c.public[key]; ok {
		entry.lastUsed = c.now()
		recordLookup("public", "hit")
		return entry.client, nil
	}
	recordLookup("public", "miss")

	client, err := New(exchangeID, Options{Sandbox: sandbox})
	if err != nil {
		return nil, err
	}

	c.insertLocked(c.public, key, &cacheEntry{client: client, lastUsed: c.now()})
	return client, nil
}

// AuthClient возвращает аутентифицированный клиент пользователя.
// Если закэшированный клиент создан с другими ключами (пользователь
// переподключил биржу), старый закрывается и создаётся новый.
func (c *ClientCache) AuthClient(p AuthParams) (Client, error) {
	key := authKey(p.ExchangeID, p.UserID, p.Sandbox)

	c.mu.Lock()
	defer c.mu.Unlock()

	if entry, ok := c.auth[key]; ok {
		if entry.apiKey == p.APIKey && entry.apiSecret == p.APISecret {
			entry.lastUsed = c.now()
			recordLookup("auth", "hit")
			return entry.client, nil
		}

		// Ключи сменились - запись устарела
		recordLookup("auth", "stale_credentials")
		recordEviction("credentials", 1)
		c.log.Info("cached client credentials changed, recreating",
			zap.String("exchange", p.ExchangeID),
			zap.Int("user_id", p.UserID))
		entry.client.Close()
		delete(c.auth, key)
	} else {
		recordLookup("auth", "miss")
	}

	client, err := New(p.ExchangeID, Options{
		APIKey:     p.APIKey,
		APISecret:  p.APISecret,
		Passphrase: p.Passphrase,
		Sandbox:    p.Sandbox,
	})
	if err != nil {
		return nil, err
	}

	c.insertLocked(c.auth, key, &cacheEntry{
		client:    client,
		apiKey:    p.APIKey,
		apiSecret: p.APISecret,
		lastUsed:  c.now(),
	})
	return client, nil
}

// insertLocked добавляет запись и запускает очистку при достижении порога.
// Вызывается под c.mu.
func (c *ClientCache) insertLocked(section map[string]*cacheEntry, key string, entry *cacheEntry) {
	if c.size() >= c.maxEntries {
		c.sweepLocked(c.now())
	}
	section[key] = entry
	c.updateSizeMetrics()
}

// size возвращает суммарный размер обеих секций. Вызывается под c.mu.
func (c *ClientCache) size() int {
	return len(c.public) + len(c.auth)
}

// Invalidate удаляет клиентов пользователя на бирже в обоих режимах.
// Вызывается при переподключении и отключении биржи.
func (c *ClientCache) Invalidate(exchangeID string, userID int) {
	c.mu.Lock()
	defer c.mu.Unlock()

	removed := 0
	for _, sandbox := range []bool{false, true} {
		key := authKey(exchangeID, userID, sandbox)
		if entry, ok := c.auth[key]; ok {
			entry.client.Close()
			delete(c.auth, key)
			removed++
		}
	}

	if removed > 0 {
		recordEviction("invalidate", removed)
		c.updateSizeMetrics()
		c.log.Debug("invalidated cached clients",
			zap.String("exchange", exchangeID),
			zap.Int("user_id", userID),
			zap.Int("removed", removed))
	}
}

// sweepLocked выполняет очистку: сначала по TTL, и если это освободило меньше
// половины кэша - дополнительно вытесняет наименее используемую половину
// остатка. Вызывается под c.mu.
func (c *ClientCache) sweepLocked(now time.Time) {
	total := c.size()
	if total == 0 {
		return
	}

	expired := 0
	for _, section := range []map[string]*cacheEntry{c.public, c.auth} {
		for key, entry := range section {
			if now.Sub(entry.lastUsed) > c.ttl {
				entry.client.Close()
				delete(section, key)
				expired++
			}
		}
	}
	recordEviction("ttl", expired)

	// TTL не помог - вытесняем давно не использованную половину остатка
	if expired < total/2 {
		type victim struct {
			section  map[string]*cacheEntry
			key      string
			lastUsed time.Time
		}

		remaining := make([]victim, 0, c.size())
		for _, section := range []map[string]*cacheEntry{c.public, c.auth} {
			for key, entry := range section {
				remaining = append(remaining, victim{section, key, entry.lastUsed})
			}
		}

		sort.Slice(remaining, func(i, j int) bool {
			return remaining[i].lastUsed.Before(remaining[j].lastUsed)
		})

		evicted := 0
		for _, v := range remaining[:len(remaining)/2] {
			v.section[v.key].client.Close()
			delete(v.section, v.key)
			evicted++
		}
		recordEviction("lru", evicted)

		c.log.Warn("cache pressure, evicted least recently used clients",
			zap.Int("ttl_expired", expired),
			zap.Int("lru_evicted", evicted),
			zap.Int("remaining", c.size()))
	}

	c.updateSizeMetrics()
}

// Sweep выполняет внеочередную очистку по TTL
func (c *ClientCache) Sweep() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sweepLocked(c.now())
}

// Start запускает фоновую периодическую очистку
func (c *ClientCache) Start(interval time.Duration) {
	c.stopCh = make(chan struct{})
	c.doneCh = make(chan struct{})

	go func() {
		defer close(c.doneCh)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				c.Sweep()
			case <-c.stopCh:
				return
			}
		}
	}()
}

// Stop останавливает фоновую очистку. Клиентов не закрывает - см. CloseAll.
func (c *ClientCache) Stop() {
	if c.stopCh == nil {
		return
	}
	close(c.stopCh)
	<-c.doneCh
	c.stopCh = nil
}

// CloseAll закрывает все клиенты и опустошает кэш.
// Вызывается при graceful shutdown после остановки HTTP сервера.
func (c *ClientCache) CloseAll() {
	c.mu.Lock()
	defer c.mu.Unlock()

	closed := 0
	for _, section := range []map[string]*cacheEntry{c.public, c.auth} {
		for key, entry := range section {
			entry.client.Close()
			delete(section, key)
			closed++
		}
	}

	recordEviction("shutdown", closed)
	c.updateSizeMetrics()
	c.log.Info("closed all cached exchange clients", zap.Int("count", closed))
}

// Len возвращает текущий суммарный размер кэша
func (c *ClientCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.size()
}

// updateSizeMetrics обновляет gauge размера. Вызывается под c.mu.
func (c *ClientCache) updateSizeMetrics() {
	CacheSize.WithLabelValues("public").Set(float64(len(c.public)))
	CacheSize.WithLabelValues("auth").Set(float64(len(c.auth)))
}
