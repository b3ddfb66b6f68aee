package models

import "budgetledger/internal/ledger"

// Category groups transactions of a single kind. A transaction may only
// reference a category whose kind equals its own.
type Category struct {
	Base
	UserID      string      `gorm:"type:uuid;not null;index" json:"user_id"`
	Name        string      `gorm:"not null" json:"name"`
	Kind        ledger.Kind `gorm:"type:varchar(20);not null" json:"kind"`
	Description string      `json:"description"`
	Icon        string      `json:"icon"`
	Color       string      `json:"color"`
}
