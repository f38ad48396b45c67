package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"fydblock/internal/exchange"
	"fydblock/internal/models"
	"fydblock/internal/service"
)

func TestGetPortfolioReturnsView(t *testing.T) {
	portfolio := &mockPortfolioAPI{
		GetPortfolioFn: func(ctx context.Context, userID int, mode string) (*service.PortfolioView, error) {
			if userID != 42 {
				t.Errorf("userID = %d, want 42", userID)
			}
			if mode != models.ModePaper {
				t.Errorf("mode = %q, want paper", mode)
			}
			return &service.PortfolioView{Mode: mode, TotalValue: 1234.5}, nil
		},
	}

	h := NewPortfolioHandler(portfolio, nil)
	rec := httptest.NewRecorder()
	h.GetPortfolio(rec, authedRequest(http.MethodGet, "/api/v1/portfolio?mode=paper", "", 42))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var view service.PortfolioView
	decodeResponse(t, rec, &view)
	if view.TotalValue != 1234.5 {
		t.Errorf("TotalValue = %v, want 1234.5", view.TotalValue)
	}
}

func TestGetPortfolioDefaultsToLive(t *testing.T) {
	portfolio := &mockPortfolioAPI{
		GetPortfolioFn: func(ctx context.Context, userID int, mode string) (*service.PortfolioView, error) {
			if mode != models.ModeLive {
				t.Errorf("mode = %q, want live", mode)
			}
			return &service.PortfolioView{Mode: mode}, nil
		},
	}

	h := NewPortfolioHandler(portfolio, nil)
	rec := httptest.NewRecorder()
	h.GetPortfolio(rec, authedRequest(http.MethodGet, "/api/v1/portfolio?mode=bogus", "", 42))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
}

func TestGetPortfolioExchangeFailureIsBadGateway(t *testing.T) {
	portfolio := &mockPortfolioAPI{
		GetPortfolioFn: func(ctx context.Context, userID int, mode string) (*service.PortfolioView, error) {
			return nil, &exchange.ExchangeError{Exchange: "binance", Message: "request timed out"}
		},
	}

	h := NewPortfolioHandler(portfolio, nil)
	rec := httptest.NewRecorder()
	h.GetPortfolio(rec, authedRequest(http.MethodGet, "/api/v1/portfolio", "", 42))

	if rec.Code != http.StatusBadGateway {
		t.Fatalf("status = %d, want 502", rec.Code)
	}
}

func TestGetPortfolioWithoutAuth(t *testing.T) {
	h := NewPortfolioHandler(&mockPortfolioAPI{
		GetPortfolioFn: func(ctx context.Context, userID int, mode string) (*service.PortfolioView, error) {
			t.Error("service must not be called without authentication")
			return nil, nil
		},
	}, nil)

	rec := httptest.NewRecorder()
	h.GetPortfolio(rec, httptest.NewRequest(http.MethodGet, "/api/v1/portfolio", nil))

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
}

func TestGetDashboardPassesTimeframe(t *testing.T) {
	dashboard := &mockDashboardAPI{
		GetDashboardFn: func(ctx context.Context, userID int, mode, timeframe string) (*service.DashboardView, error) {
			if timeframe != "1w" {
				t.Errorf("timeframe = %q, want 1w", timeframe)
			}
			return &service.DashboardView{Mode: mode, Timeframe: timeframe, TotalBots: 3}, nil
		},
	}

	h := NewPortfolioHandler(nil, dashboard)
	rec := httptest.NewRecorder()
	h.GetDashboard(rec, authedRequest(http.MethodGet, "/api/v1/dashboard?timeframe=1w", "", 42))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var view service.DashboardView
	decodeResponse(t, rec, &view)
	if view.TotalBots != 3 {
		t.Errorf("TotalBots = %d, want 3", view.TotalBots)
	}
}
