package domain

// User запись пользователя из внешнего каталога (UserDirectory).
// Сервис биллинга не управляет пользователями, только читает их.
type User struct {
	ID             string `json:"id"`
	Email          string `json:"email"`
	Locale         string `json:"locale"`
	SubscriptionID string `json:"subscription_id,omitempty"`
}
