package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"fydblock/internal/models"
)

// maxChartPoints - максимум точек на графике прибыли дашборда
const maxChartPoints = 31

// pnlWindow - окно расчёта PnL на дашборде
const pnlWindow = 30 * 24 * time.Hour

// timeframe описывает окно графика и прореживание почасовых данных
type timeframe struct {
	window time.Duration
	step   int  // каждая step-я часовая точка попадает на график
	hourly bool // подписи часами (15:00), иначе датами (Jan 2)
}

// Таймфреймы графика: окно подобрано так, чтобы после прореживания
// оставалось ~30 точек
var timeframes = map[string]timeframe{
	"1h": {window: 30 * time.Hour, step: 1, hourly: true},
	"3h": {window: 90 * time.Hour, step: 3, hourly: true},
	"1d": {window: 30 * 24 * time.Hour, step: 24},
	"1w": {window: 30 * 7 * 24 * time.Hour, step: 168},
	"1m": {window: 30 * 30 * 24 * time.Hour, step: 720},
}

const defaultTimeframe = "1d"

// PnLView - прибыль портфеля за окно
type PnLView struct {
	Value float64 `json:"value"`
	Pct   float64 `json:"pct"`
}

// DashboardView - сводка дашборда
type DashboardView struct {
	Mode        string              `json:"mode"`
	Timeframe   string              `json:"timeframe"`
	Chart       []models.ChartPoint `json:"chart"`
	PnL30d      PnLView             `json:"pnl_30d"`
	TotalBots   int                 `json:"total_bots"`
	ActiveBots  int                 `json:"active_bots"`
	TotalProfit float64             `json:"total_profit"`
}

// DashboardService собирает сводку: график прибыли ботов, PnL портфеля
// за месяц и счётчики ботов
type DashboardService struct {
	snapshots SnapshotStore
	bots      BotStore
	log       *zap.Logger

	now func() time.Time // подменяется в тестах
}

// NewDashboardService создает сервис дашборда
func NewDashboardService(snapshots SnapshotStore, bots BotStore, log *zap.Logger) *DashboardService {
	if log == nil {
		log = zap.NewNop()
	}
	return &DashboardService{
		snapshots: snapshots,
		bots:      bots,
		log:       log,
		now:       time.Now,
	}
}

// GetDashboard собирает сводку дашборда. Неизвестный таймфрейм трактуется
// как значение по умолчанию, а не ошибка - ссылка со старым параметром
// должна продолжать открываться.
func (s *DashboardService) GetDashboard(ctx context.Context, userID int, mode, tfName string) (*DashboardView, error) {
	tf, ok := timeframes[tfName]
	if !ok {
		tfName = defaultTimeframe
		tf = timeframes[defaultTimeframe]
	}

	now := s.now()

	points, err := s.snapshots.HourlyProfitSeries(userID, mode, now.Add(-tf.window))
	if err != nil {
		return nil, fmt.Errorf("failed to load profit series: %w", err)
	}

	view := &DashboardView{
		Mode:      mode,
		Timeframe: tfName,
		Chart:     downsample(points, tf),
	}

	view.PnL30d, err = s.pnl(userID, mode, now)
	if err != nil {
		return nil, err
	}

	bots, err := s.bots.ListByUser(userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load bots: %w", err)
	}
	for _, bot := range bots {
		if bot.Config.Mode != mode {
			continue
		}
		view.TotalBots++
		if bot.IsRunning() {
			view.ActiveBots++
		}
		view.TotalProfit += bot.Config.TotalProfit
	}

	return view, nil
}

// downsample прореживает почасовой ряд: каждая step-я точка от старых к новым,
// не больше maxChartPoints последних
func downsample(points []models.ProfitPoint, tf timeframe) []models.ChartPoint {
	chart := make([]models.ChartPoint, 0, maxChartPoints)

	for i := 0; i < len(points); i += tf.step {
		p := points[i]
		label := p.Time.Format("Jan 2")
		if tf.hourly {
			label = p.Time.Format("15:04")
		}
		chart = append(chart, models.ChartPoint{Date: label, Value: p.Value})
	}

	if len(chart) > maxChartPoints {
		chart = chart[len(chart)-maxChartPoints:]
	}
	return chart
}

// pnl считает изменение стоимости портфеля за месяц.
// Стартовая точка - самый ранний снапшот внутри окна; если истории за окно
// ещё нет, берётся самый старый снапшот вообще.
func (s *DashboardService) pnl(userID int, mode string, now time.Time) (PnLView, error) {
	var start *models.PortfolioSnapshot

	inWindow, err := s.snapshots.PortfolioSince(userID, mode, now.Add(-pnlWindow))
	if err != nil {
		return PnLView{}, fmt.Errorf("failed to load portfolio history: %w", err)
	}
	if len(inWindow) > 0 {
		start = &inWindow[0]
	} else {
		start, err = s.snapshots.OldestPortfolio(userID, mode)
		if err != nil {
			return PnLView{}, fmt.Errorf("failed to load oldest snapshot: %w", err)
		}
	}

	if start == nil {
		return PnLView{}, nil
	}

	latest, err := s.snapshots.LatestPortfolio(userID, mode, 1)
	if err != nil {
		return PnLView{}, fmt.Errorf("failed to load latest snapshot: %w", err)
	}
	if len(latest) == 0 {
		return PnLView{}, nil
	}

	current := latest[0].TotalValue
	pnl := PnLView{Value: current - start.TotalValue}
	if start.TotalValue > 0 {
		pnl.Pct = pnl.Value / start.TotalValue * 100
	}
	return pnl, nil
}
