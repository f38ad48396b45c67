package models

// AssetAllocation - средства, зарезервированные торговым движком по одному активу.
// Не персистится этим сервисом: запрашивается у движка на каждую сверку.
type AssetAllocation struct {
	Total float64 `json:"total"` // всего зарезервировано (ордера + внутренние резервы)
	Idle  float64 `json:"idle"`  // резерв без выставленных ордеров
}

// AllocationMap - распределение по активам, ключ - символ актива (BTC, USDT...)
type AllocationMap map[string]AssetAllocation
