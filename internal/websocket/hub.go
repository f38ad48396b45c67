// Package websocket - push-обновления портфелей и ботов на фронтенд.
package websocket

import (
	"sync"

	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Типизированные сообщения: известные типы сериализуются без рефлексии
// по map[string]interface{}

// PortfolioUpdateMessage - стоимость портфеля изменилась
type PortfolioUpdateMessage struct {
	Type       string  `json:"type"`
	Mode       string  `json:"mode"`
	TotalValue float64 `json:"total_value"`
}

// BotStatusMessage - бот сменил статус
type BotStatusMessage struct {
	Type   string `json:"type"`
	BotID  int    `json:"bot_id"`
	Status string `json:"status"`
}

// Hub управляет активными WebSocket соединениями.
//
// Сообщения адресные: каждое соединение принадлежит пользователю, и
// обновления портфеля уходят только на его вкладки. Broadcast всем
// пользователям здесь не нужен - чужой портфель никого не касается.
type Hub struct {
	mu      sync.RWMutex
	clients map[int]map[*Client]bool // userID -> соединения

	register   chan *Client
	unregister chan *Client
	stopCh     chan struct{}
	doneCh     chan struct{}

	log *zap.Logger
}

// NewHub создает новый Hub
func NewHub(log *zap.Logger) *Hub {
	if log == nil {
		log = zap.NewNop()
	}
	return &Hub{
		clients:    make(map[int]map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		stopCh:     make(chan struct{}),
		doneCh:     make(chan struct{}),
		log:        log,
	}
}

// Run запускает главный цикл Hub. Запускается в отдельной горутине.
func (h *Hub) Run() {
	defer close(h.doneCh)

	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			if h.clients[client.userID] == nil {
				h.clients[client.userID] = make(map[*Client]bool)
			}
			h.clients[client.userID][client] = true
			h.mu.Unlock()
			h.log.Debug("websocket client connected", zap.Int("user_id", client.userID))

		case client := <-h.unregister:
			h.removeClient(client)

		case <-h.stopCh:
			h.closeAll()
			return
		}
	}
}

// Stop закрывает все соединения и останавливает цикл
func (h *Hub) Stop() {
	close(h.stopCh)
	<-h.doneCh
}

// drop снимает соединение с учёта через цикл Run. После Stop цикл уже не
// читает unregister - дочитывающие readPump'ы не должны повиснуть на нём.
func (h *Hub) drop(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.stopCh:
		// Соединения уже закрыл closeAll
	}
}

// SendToUser отправляет сообщение на все соединения пользователя.
// Медленные клиенты (переполненный буфер) отключаются: бэкенд не копит
// очередь ради зависшей вкладки.
//
// Запись в send идёт строго под RLock: removeClient закрывает канал под
// полным Lock, поэтому запись и закрытие взаимно исключены. Запись на
// закрытый канал - это паника, а SendToUser вызывается и из фоновых
// горутин, где её никто не перехватит.
func (h *Hub) SendToUser(userID int, message interface{}) {
	data, err := json.Marshal(message)
	if err != nil {
		h.log.Error("failed to marshal websocket message", zap.Error(err))
		return
	}

	var slow []*Client

	h.mu.RLock()
	for client := range h.clients[userID] {
		select {
		case client.send <- data:
		default:
			slow = append(slow, client)
		}
	}
	h.mu.RUnlock()

	// Отключение требует полного Lock, поэтому выносится за RLock.
	// removeClient сам проверяет членство: клиента мог уже снять другой
	// отправитель или цикл Run.
	for _, client := range slow {
		h.log.Warn("dropping slow websocket client", zap.Int("user_id", userID))
		h.removeClient(client)
	}
}

// SendPortfolioUpdate отправляет пользователю новую стоимость портфеля
func (h *Hub) SendPortfolioUpdate(userID int, mode string, totalValue float64) {
	h.SendToUser(userID, &PortfolioUpdateMessage{
		Type:       "portfolioUpdate",
		Mode:       mode,
		TotalValue: totalValue,
	})
}

// SendBotStatus отправляет пользователю смену статуса бота
func (h *Hub) SendBotStatus(userID, botID int, status string) {
	h.SendToUser(userID, &BotStatusMessage{
		Type:   "botStatus",
		BotID:  botID,
		Status: status,
	})
}

// ClientCount возвращает количество активных соединений
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	total := 0
	for _, conns := range h.clients {
		total += len(conns)
	}
	return total
}

func (h *Hub) removeClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	conns, ok := h.clients[client.userID]
	if !ok {
		return
	}
	if _, ok := conns[client]; !ok {
		return
	}
	delete(conns, client)
	close(client.send)
	if len(conns) == 0 {
		delete(h.clients, client.userID)
	}
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for userID, conns := range h.clients {
		for client := range conns {
			close(client.send)
		}
		delete(h.clients, userID)
	}
}
