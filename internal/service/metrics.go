package service

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus метрики фонового снятия снапшотов

// SnapshotRunDuration - длительность полного прохода по всем подключениям
var SnapshotRunDuration = promauto.NewHistogram(
	prometheus.HistogramOpts{
		Namespace: "fydblock",
		Subsystem: "snapshots",
		Name:      "run_duration_seconds",
		Help:      "Duration of a full snapshot pass over all credentials",
		Buckets:   []float64{1, 5, 15, 30, 60, 120, 300},
	},
)

// SnapshotsWritten - записанные снапшоты по типам
var SnapshotsWritten = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "fydblock",
		Subsystem: "snapshots",
		Name:      "written_total",
		Help:      "Snapshots written by kind",
	},
	[]string{"kind"}, // portfolio, bot_profit
)

// SnapshotErrors - ошибки снятия снапшотов по стадиям
var SnapshotErrors = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "fydblock",
		Subsystem: "snapshots",
		Name:      "errors_total",
		Help:      "Snapshot failures by stage",
	},
	[]string{"stage"}, // decrypt, client, balance, persist
)

// SnapshotsPruned - снапшоты, удалённые ретенцией
var SnapshotsPruned = promauto.NewCounter(
	prometheus.CounterOpts{
		Namespace: "fydblock",
		Subsystem: "snapshots",
		Name:      "pruned_total",
		Help:      "Snapshots deleted by retention cleanup",
	},
)
