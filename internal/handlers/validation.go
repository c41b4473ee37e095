package handlers

import (
	"errors"
	"strconv"
	"strings"

	"minetrade/internal/models"
	"minetrade/internal/money"

	"github.com/shopspring/decimal"
)

var decimalOne = decimal.NewFromInt(1)

var errInvalidAmount = errors.New("invalid amount")
var errInvalidPrice = errors.New("invalid price")
var errInvalidAsset = errors.New("invalid asset")

func parseAmountMinor(raw string) (int64, error) {
	amount, err := money.ParseMinor(raw)
	if err != nil || amount <= 0 {
		return 0, errInvalidAmount
	}
	return amount, nil
}

func parseAsset(raw string) (models.Asset, error) {
	asset := models.Asset(strings.ToUpper(strings.TrimSpace(raw)))
	if !asset.Valid() {
		return "", errInvalidAsset
	}
	return asset, nil
}

func parsePrice(raw string) (decimal.Decimal, error) {
	price, err := decimal.NewFromString(raw)
	if err != nil || price.LessThanOrEqual(decimal.Zero) {
		return decimal.Zero, errInvalidPrice
	}
	if price.Exponent() < -8 {
		return decimal.Zero, errInvalidPrice
	}
	return price, nil
}

func parseInt(raw string, fallback int) int {
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil || value <= 0 {
		return fallback
	}
	return value
}
