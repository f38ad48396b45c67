// Package service - бизнес-логика портфелей, ботов и подключений к биржам.
package service

import (
	"fydblock/internal/exchange"
	"fydblock/internal/models"
)

// desyncFactor - порог рассинхронизации учёта: если движок считает занятым
// в полтора раза больше, чем вообще есть на бирже, его данным верить нельзя
const desyncFactor = 1.5

// DeductionPolicy определяет, какая часть резервов движка вычитается из
// свободного остатка биржи
type DeductionPolicy int

const (
	// DeductIdle - вычитается только свободная часть резерва (alloc.idle):
	// занятое ордерами биржа уже сама не показывает в free
	DeductIdle DeductionPolicy = iota

	// DeductTotal - вычитается весь резерв (alloc.total): леджер симулируется
	// движком, биржа про эти ордера ничего не знает
	DeductTotal
)

// PolicyFor выбирает политику вычета для режима торговли.
// Live и paper поверх нативного sandbox биржи считаются одинаково: ордера
// реально лежат на бирже. Симулированный paper - отдельный случай.
func PolicyFor(mode string, nativeSandbox bool) DeductionPolicy {
	if mode == models.ModePaper && !nativeSandbox {
		return DeductTotal
	}
	return DeductIdle
}

// ReconciledAsset - результат сверки одного актива
type ReconciledAsset struct {
	Total float64 `json:"total"`
	Free  float64 `json:"free"`

	// Reserved - сколько актива закреплено за ботами по данным движка
	Reserved float64 `json:"reserved"`

	// Desynced - учёт движка разошёлся с биржей, резерв проигнорирован
	Desynced bool `json:"-"`
}

// ReconcileBalances сверяет балансы биржи с резервами торгового движка и
// возвращает по каждому активу эффективный свободный остаток - то, что
// пользователь может отдать новому боту, не отбирая средства у работающих.
//
// Чистая функция: ни I/O, ни логирования - о рассинхронах сообщает флагом.
func ReconcileBalances(balances exchange.Balances, allocs models.AllocationMap, policy DeductionPolicy) map[string]ReconciledAsset {
	result := make(map[string]ReconciledAsset, len(balances))

	for asset, bal := range balances {
		// Пустые балансы не сверяются: адаптеры их отфильтровывают, но
		// контракт на этом не держится
		if bal.Total <= 0 {
			continue
		}

		// Свободный остаток биржи: берём free как есть, иначе восстанавливаем
		// из total и used, иначе считаем свободным всё
		exchangeFree := bal.Total
		switch {
		case bal.HasFree:
			exchangeFree = bal.Free
		case bal.HasUsed:
			exchangeFree = bal.Total - bal.Used
		}

		alloc := allocs[asset]

		// Рассинхронизация: движок зарезервировал больше, чем есть на бирже
		// (с запасом на комиссии и округления). Его резерв игнорируем -
		// заниженный free хуже завышенного, пользователь не поймёт, куда
		// делись деньги.
		desynced := alloc.Total > bal.Total*desyncFactor

		var deduction float64
		if !desynced {
			switch policy {
			case DeductTotal:
				deduction = alloc.Total
			default:
				deduction = alloc.Idle
			}
		}

		effectiveFree := exchangeFree - deduction
		if effectiveFree <= 0 && exchangeFree > 0 {
			// Вычет съел весь остаток - показываем сырой free биржи,
			// нулевой доступный баланс при живых деньгах вводит в заблуждение
			effectiveFree = exchangeFree
		}
		if effectiveFree < 0 {
			effectiveFree = 0
		}

		result[asset] = ReconciledAsset{
			Total:    bal.Total,
			Free:     effectiveFree,
			Reserved: alloc.Total,
			Desynced: desynced,
		}
	}

	return result
}
