package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Asset is one of the closed set of supported assets. USDT is the reference
// asset all prices are quoted in; its price is always 1.
type Asset string

const (
	AssetUSDT Asset = "USDT"
	AssetBTC  Asset = "BTC"
	AssetETH  Asset = "ETH"
	AssetTRX  Asset = "TRX"
)

const ReferenceAsset = AssetUSDT

func KnownAssets() []Asset {
	return []Asset{AssetUSDT, AssetBTC, AssetETH, AssetTRX}
}

func (a Asset) Valid() bool {
	switch a {
	case AssetUSDT, AssetBTC, AssetETH, AssetTRX:
		return true
	}
	return false
}

type OrderStatus string

const (
	OrderPending   OrderStatus = "pending"
	OrderActive    OrderStatus = "active"
	OrderRejected  OrderStatus = "rejected"
	OrderAborted   OrderStatus = "aborted"
	OrderCompleted OrderStatus = "completed"
)

// Terminal reports whether no further transition is permitted.
func (s OrderStatus) Terminal() bool {
	switch s {
	case OrderRejected, OrderAborted, OrderCompleted:
		return true
	}
	return false
}

const (
	RoleAdmin    = "admin"
	RoleSubAdmin = "sub-admin"
)

type User struct {
	ID           string    `db:"id" json:"id"`
	Username     string    `db:"username" json:"username"`
	Email        string    `db:"email" json:"email"`
	PasswordHash string    `db:"password_hash" json:"-"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
}

type WalletBalance struct {
	UserID    string    `db:"user_id" json:"user_id"`
	Asset     Asset     `db:"asset" json:"asset"`
	Amount    int64     `db:"amount" json:"amount"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// MiningPlan is read-only catalog data; rows are seeded by administrators and
// never mutated by user actions.
type MiningPlan struct {
	ID           string          `db:"id" json:"id"`
	Name         string          `db:"name" json:"name"`
	CycleDays    int             `db:"cycle_days" json:"cycle_days"`
	MinAmount    int64           `db:"min_amount" json:"min_amount"`
	MaxAmount    int64           `db:"max_amount" json:"max_amount"`
	DailyRate    decimal.Decimal `db:"daily_rate" json:"daily_rate"`
	AbortFeeRate decimal.Decimal `db:"abort_fee_rate" json:"abort_fee_rate"`
	CreatedAt    time.Time       `db:"created_at" json:"created_at"`
}

type MiningOrder struct {
	ID           string      `db:"id" json:"id"`
	UserID       string      `db:"user_id" json:"user_id"`
	PlanID       string      `db:"plan_id" json:"plan_id"`
	Principal    int64       `db:"principal" json:"principal"`
	Status       OrderStatus `db:"status" json:"status"`
	AccruedDays  int         `db:"accrued_days" json:"accrued_days"`
	AccruedTotal int64       `db:"accrued_total" json:"accrued_total"`
	Note         *string     `db:"note" json:"note,omitempty"`
	CreatedAt    time.Time   `db:"created_at" json:"created_at"`
	ActivatedAt  *time.Time  `db:"activated_at" json:"activated_at,omitempty"`
	ClosedAt     *time.Time  `db:"closed_at" json:"closed_at,omitempty"`
}

// TopupRecord is append-only; corrections are new compensating records.
type TopupRecord struct {
	ID              string    `db:"id" json:"id"`
	UserID          string    `db:"user_id" json:"user_id"`
	AdminID         string    `db:"admin_id" json:"admin_id"`
	Asset           Asset     `db:"asset" json:"asset"`
	Amount          int64     `db:"amount" json:"amount"`
	Note            *string   `db:"note" json:"note,omitempty"`
	ClientRequestID *string   `db:"client_request_id" json:"client_request_id,omitempty"`
	CreatedAt       time.Time `db:"created_at" json:"created_at"`
}

type AssetPrice struct {
	ID        string          `db:"id" json:"id"`
	Asset     Asset           `db:"asset" json:"asset"`
	Price     decimal.Decimal `db:"price" json:"price"`
	IsActive  bool            `db:"is_active" json:"is_active"`
	CreatedAt time.Time       `db:"created_at" json:"created_at"`
}
