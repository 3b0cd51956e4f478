package models

// All lists every persisted model, in dependency order, for SQLite auto-migration.
func All() []any {
	return []any{
		&Offer{},
		&FlashDeal{},
		&UserProfile{},
		&ActivationRecord{},
		&PaymentRecord{},
	}
}
