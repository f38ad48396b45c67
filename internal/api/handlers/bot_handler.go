package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"fydblock/internal/engine"
	"fydblock/internal/models"
	"fydblock/internal/repository"
	"fydblock/internal/service"
)

// CreateBotRequest - тело запроса на создание бота
type CreateBotRequest struct {
	Name        string           `json:"bot_name"`
	Type        string           `json:"bot_type,omitempty"`
	Description string           `json:"description,omitempty"`
	IconURL     string           `json:"icon_url,omitempty"`
	Config      models.BotConfig `json:"config"`
}

// BotHandler управляет ботами пользователя
//
// Endpoints:
// - GET /api/v1/bots - список ботов
// - POST /api/v1/bots - создать бота
// - GET /api/v1/bots/{id} - получить бота
// - PATCH /api/v1/bots/{id} - обновить конфигурацию
// - DELETE /api/v1/bots/{id}?liquidate= - удалить бота
// - POST /api/v1/bots/{id}/start - запустить бота
// - POST /api/v1/bots/{id}/stop - остановить бота
type BotHandler struct {
	bots BotAPI
}

// NewBotHandler создает новый BotHandler
func NewBotHandler(bots BotAPI) *BotHandler {
	return &BotHandler{bots: bots}
}

// botID достает идентификатор бота из пути
func botID(w http.ResponseWriter, r *http.Request) (int, bool) {
	id, err := strconv.Atoi(mux.Vars(r)["id"])
	if err != nil || id <= 0 {
		respondWithError(w, http.StatusBadRequest, "Invalid bot id", "")
		return 0, false
	}
	return id, true
}

// respondBotError переводит ошибки сервиса ботов в HTTP статусы
func respondBotError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, repository.ErrBotNotFound):
		respondWithError(w, http.StatusNotFound, "Bot not found", "")
	case errors.Is(err, service.ErrBotAlreadyRunning):
		respondWithError(w, http.StatusConflict, "Bot is already running", "Stop the bot first")
	case errors.Is(err, service.ErrBotNotRunning):
		respondWithError(w, http.StatusConflict, "Bot is not running", "")
	case errors.Is(err, service.ErrNoCredentialForMode):
		respondWithError(w, http.StatusBadRequest, "No exchange connected for this mode", "Connect an exchange first")
	case errors.Is(err, engine.ErrEngineUnavailable):
		respondWithError(w, http.StatusBadGateway, "Trading engine is unavailable", err.Error())
	default:
		respondWithError(w, http.StatusInternalServerError, "Internal server error", err.Error())
	}
}

// ListBots возвращает ботов пользователя с историей прибыли
// GET /api/v1/bots
func (h *BotHandler) ListBots(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	views, err := h.bots.ListBots(r.Context(), userID)
	if err != nil {
		respondBotError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, map[string][]*service.BotView{"bots": views})
}

// CreateBot создает бота в статусе paused
// POST /api/v1/bots
func (h *BotHandler) CreateBot(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	var req CreateBotRequest
	if !decodeBody(w, r, &req) {
		return
	}

	if req.Name == "" {
		respondWithError(w, http.StatusBadRequest, "Bot name is required", "")
		return
	}
	if req.Config.Pair == "" {
		respondWithError(w, http.StatusBadRequest, "Trading pair is required", "")
		return
	}

	bot, err := h.bots.CreateBot(r.Context(), userID, &models.Bot{
		Name:        req.Name,
		Type:        req.Type,
		Description: req.Description,
		IconURL:     req.IconURL,
		Config:      req.Config,
	})
	if err != nil {
		respondBotError(w, err)
		return
	}

	respondWithJSON(w, http.StatusCreated, bot)
}

// GetBot возвращает бота с историей прибыли
// GET /api/v1/bots/{id}
func (h *BotHandler) GetBot(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}
	id, ok := botID(w, r)
	if !ok {
		return
	}

	view, err := h.bots.GetBot(r.Context(), userID, id)
	if err != nil {
		respondBotError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, view)
}

// UpdateBot обновляет конфигурацию остановленного бота
// PATCH /api/v1/bots/{id}
func (h *BotHandler) UpdateBot(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}
	id, ok := botID(w, r)
	if !ok {
		return
	}

	var cfg models.BotConfig
	if !decodeBody(w, r, &cfg) {
		return
	}

	if err := h.bots.UpdateBotConfig(r.Context(), userID, id, cfg); err != nil {
		respondBotError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, map[string]string{"status": "updated"})
}

// DeleteBot удаляет бота
// DELETE /api/v1/bots/{id}?liquidate=true
func (h *BotHandler) DeleteBot(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}
	id, ok := botID(w, r)
	if !ok {
		return
	}

	liquidate, _ := strconv.ParseBool(r.URL.Query().Get("liquidate"))

	if err := h.bots.DeleteBot(r.Context(), userID, id, liquidate); err != nil {
		respondBotError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

// StartBot запускает бота в торговом движке
// POST /api/v1/bots/{id}/start
func (h *BotHandler) StartBot(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}
	id, ok := botID(w, r)
	if !ok {
		return
	}

	if err := h.bots.StartBot(r.Context(), userID, id); err != nil {
		respondBotError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, map[string]string{"status": models.BotStatusRunning})
}

// StopBot останавливает бота
// POST /api/v1/bots/{id}/stop
func (h *BotHandler) StopBot(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}
	id, ok := botID(w, r)
	if !ok {
		return
	}

	if err := h.bots.StopBot(r.Context(), userID, id); err != nil {
		respondBotError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, map[string]string{"status": models.BotStatusPaused})
}
