package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gorilla/mux"

	"fydblock/internal/models"
	"fydblock/internal/repository"
	"fydblock/internal/service"
)

func botRequest(method, target, body string, botID string) *http.Request {
	r := authedRequest(method, target, body, 42)
	return mux.SetURLVars(r, map[string]string{"id": botID})
}

func TestCreateBotValidatesInput(t *testing.T) {
	h := NewBotHandler(&mockBotAPI{
		CreateBotFn: func(ctx context.Context, userID int, bot *models.Bot) (*models.Bot, error) {
			t.Error("service must not be called for invalid request")
			return nil, nil
		},
	})

	// Нет имени
	rec := httptest.NewRecorder()
	h.CreateBot(rec, authedRequest(http.MethodPost, "/api/v1/bots", `{"config":{"pair":"BTC/USDT"}}`, 42))
	if rec.Code != http.StatusBadRequest {
		t.Errorf("missing name: status = %d, want 400", rec.Code)
	}

	// Нет торговой пары
	rec = httptest.NewRecorder()
	h.CreateBot(rec, authedRequest(http.MethodPost, "/api/v1/bots", `{"bot_name":"grid one"}`, 42))
	if rec.Code != http.StatusBadRequest {
		t.Errorf("missing pair: status = %d, want 400", rec.Code)
	}
}

func TestCreateBotReturnsCreated(t *testing.T) {
	h := NewBotHandler(&mockBotAPI{
		CreateBotFn: func(ctx context.Context, userID int, bot *models.Bot) (*models.Bot, error) {
			bot.ID = 7
			bot.Status = models.BotStatusPaused
			return bot, nil
		},
	})

	rec := httptest.NewRecorder()
	body := `{"bot_name":"grid one","config":{"pair":"BTC/USDT","mode":"paper"}}`
	h.CreateBot(rec, authedRequest(http.MethodPost, "/api/v1/bots", body, 42))

	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201, body %s", rec.Code, rec.Body.String())
	}

	var bot models.Bot
	decodeResponse(t, rec, &bot)
	if bot.ID != 7 || bot.Status != models.BotStatusPaused {
		t.Errorf("bot = %+v, want id 7 paused", bot)
	}
}

func TestGetBotNotFound(t *testing.T) {
	h := NewBotHandler(&mockBotAPI{
		GetBotFn: func(ctx context.Context, userID, botID int) (*service.BotView, error) {
			return nil, repository.ErrBotNotFound
		},
	})

	rec := httptest.NewRecorder()
	h.GetBot(rec, botRequest(http.MethodGet, "/api/v1/bots/99", "", "99"))

	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
}

func TestStartBotConflictWhenRunning(t *testing.T) {
	h := NewBotHandler(&mockBotAPI{
		StartBotFn: func(ctx context.Context, userID, botID int) error {
			return service.ErrBotAlreadyRunning
		},
	})

	rec := httptest.NewRecorder()
	h.StartBot(rec, botRequest(http.MethodPost, "/api/v1/bots/7/start", "", "7"))

	if rec.Code != http.StatusConflict {
		t.Fatalf("status = %d, want 409", rec.Code)
	}
}

func TestStartBot(t *testing.T) {
	var startedID int
	h := NewBotHandler(&mockBotAPI{
		StartBotFn: func(ctx context.Context, userID, botID int) error {
			startedID = botID
			return nil
		},
	})

	rec := httptest.NewRecorder()
	h.StartBot(rec, botRequest(http.MethodPost, "/api/v1/bots/7/start", "", "7"))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if startedID != 7 {
		t.Errorf("started bot %d, want 7", startedID)
	}
}

func TestDeleteBotPassesLiquidate(t *testing.T) {
	var gotLiquidate bool
	h := NewBotHandler(&mockBotAPI{
		DeleteBotFn: func(ctx context.Context, userID, botID int, liquidate bool) error {
			gotLiquidate = liquidate
			return nil
		},
	})

	rec := httptest.NewRecorder()
	h.DeleteBot(rec, botRequest(http.MethodDelete, "/api/v1/bots/7?liquidate=true", "", "7"))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if !gotLiquidate {
		t.Error("liquidate flag was not passed through")
	}
}

func TestBotInvalidID(t *testing.T) {
	h := NewBotHandler(&mockBotAPI{
		GetBotFn: func(ctx context.Context, userID, botID int) (*service.BotView, error) {
			t.Error("service must not be called with invalid id")
			return nil, nil
		},
	})

	rec := httptest.NewRecorder()
	h.GetBot(rec, botRequest(http.MethodGet, "/api/v1/bots/abc", "", "abc"))

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestListBots(t *testing.T) {
	h := NewBotHandler(&mockBotAPI{
		ListBotsFn: func(ctx context.Context, userID int) ([]*service.BotView, error) {
			return []*service.BotView{
				{Bot: &models.Bot{ID: 1}, ProfitHistory: []float64{1.5, 3.0}},
			}, nil
		},
	})

	rec := httptest.NewRecorder()
	h.ListBots(rec, authedRequest(http.MethodGet, "/api/v1/bots", "", 42))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var resp map[string][]*service.BotView
	decodeResponse(t, rec, &resp)
	if len(resp["bots"]) != 1 {
		t.Fatalf("bots = %v, want one entry", resp["bots"])
	}
	if len(resp["bots"][0].ProfitHistory) != 2 {
		t.Errorf("ProfitHistory = %v, want two points", resp["bots"][0].ProfitHistory)
	}
}
