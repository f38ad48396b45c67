package exchange

import (
	"sort"
	"strings"
	"sync"
)

// Options - параметры создания клиента. Пустые ключи дают публичный клиент.
type Options struct {
	APIKey     string
	APISecret  string
	Passphrase string
	Sandbox    bool
}

// Capabilities описывает возможности биржи, существенные для ядра
type Capabilities struct {
	// RequiresPassphrase - биржа требует passphrase в дополнение к ключам (OKX)
	RequiresPassphrase bool

	// NativeSandbox - paper режим обслуживается собственным sandbox/testnet
	// биржи (реальный стакан и резервы), а не чисто симулированным леджером.
	// Влияет на активацию sandbox при создании клиента и на политику вычета
	// резервов в сверке балансов.
	NativeSandbox bool
}

// Factory создает клиента биржи с заданными параметрами
type Factory func(opts Options) (Client, error)

type registryEntry struct {
	factory Factory
	caps    Capabilities
}

// Явный реестр бирж вместо динамического поиска по имени: заполняется при
// старте процесса, запрашивается по ключу с явным "not found" результатом.
var (
	registryMu sync.RWMutex
	registry   = map[string]registryEntry{}
)

func init() {
	Register("binance", newBinance, Capabilities{NativeSandbox: true})
	Register("bybit", newBybit, Capabilities{NativeSandbox: true})
	// OKX: demo trading включается заголовком x-simulated-trading, но стакан
	// и резервы там настоящие - для ядра это нативный sandbox
	Register("okx", newOKX, Capabilities{RequiresPassphrase: true, NativeSandbox: true})
}

// Register добавляет биржу в реестр. Вызывается при старте процесса.
func Register(id string, factory Factory, caps Capabilities) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[strings.ToLower(id)] = registryEntry{factory: factory, caps: caps}
}

// New создает новый экземпляр клиента биржи по идентификатору
func New(id string, opts Options) (Client, error) {
	registryMu.RLock()
	entry, ok := registry[strings.ToLower(id)]
	registryMu.RUnlock()

	if !ok {
		return nil, ErrUnsupportedExchange
	}

	if opts.Sandbox && !entry.caps.NativeSandbox {
		return nil, ErrSandboxUnsupported
	}

	return entry.factory(opts)
}

// IsSupported проверяет, есть ли биржа в реестре
func IsSupported(id string) bool {
	registryMu.RLock()
	defer registryMu.RUnlock()
	_, ok := registry[strings.ToLower(id)]
	return ok
}

// CapabilitiesOf возвращает возможности биржи
func CapabilitiesOf(id string) (Capabilities, bool) {
	registryMu.RLock()
	defer registryMu.RUnlock()
	entry, ok := registry[strings.ToLower(id)]
	return entry.caps, ok
}

// Supported возвращает отсортированный список поддерживаемых бирж
func Supported() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()

	ids := make([]string, 0, len(registry))
	for id := range registry {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
