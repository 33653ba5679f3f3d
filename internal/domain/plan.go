package domain

import "time"

// BillingTier ценовая ступень плана для конкретного периода оплаты
type BillingTier struct {
	Cycle BillingCycle `json:"cycle"`
	Price float64      `json:"price"`
}

// SubscriptionPlan план подписки из внешнего каталога.
// План неизменяем после того, как на него ссылается подготовленный переход:
// цена и кредиты снимаются в PendingUpgrade, а не перечитываются позже.
type SubscriptionPlan struct {
	ID             string        `json:"id" db:"id"`
	Name           string        `json:"name" db:"name"`
	Price          float64       `json:"price" db:"price"`
	Currency       string        `json:"currency" db:"currency"`
	CreditsGranted int           `json:"credits_granted" db:"credits_granted"`
	DurationDays   int           `json:"duration_days" db:"duration_days"`
	BillingTiers   []BillingTier `json:"billing_tiers,omitempty" db:"-"`
}

// PriceFor возвращает цену плана для заданного периода оплаты.
// Если подходящей ступени нет, возвращается базовая цена плана.
func (p *SubscriptionPlan) PriceFor(cycle BillingCycle) float64 {
	for _, tier := range p.BillingTiers {
		if tier.Cycle == cycle {
			return tier.Price
		}
	}
	return p.Price
}

// PeriodFor возвращает длительность одного подписочного периода:
// срок из каталога, если он задан, иначе стандартный период цикла.
func (p *SubscriptionPlan) PeriodFor(cycle BillingCycle) time.Duration {
	if p.DurationDays > 0 {
		return time.Duration(p.DurationDays) * 24 * time.Hour
	}
	return cycle.PeriodDuration()
}
