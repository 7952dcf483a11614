package utils

import (
	"fmt"

	"reservas-backend/internal/domain"
)

// FeeBreakdown provides a detailed view of how a quote price becomes a charge
type FeeBreakdown struct {
	Price          int64
	FeeBasisPoints int64
	PlatformFee    int64
	Total          int64
}

// CalculatePlatformFee returns price * bps / 10000 rounded half up.
// Amounts are in minor currency units.
func CalculatePlatformFee(price, feeBasisPoints int64) (int64, error) {
	if price < 0 {
		return 0, fmt.Errorf("price must not be negative, got %d", price)
	}
	if feeBasisPoints < 0 || feeBasisPoints > 10000 {
		return 0, fmt.Errorf("fee must be between 0 and 10000 bps, got %d", feeBasisPoints)
	}
	return (price*feeBasisPoints + 5000) / 10000, nil
}

// CalculateFinancials prices a reservation from an accepted quote
func CalculateFinancials(price, feeBasisPoints int64) (domain.Financials, error) {
	b, err := CalculateFinancialsWithBreakdown(price, feeBasisPoints)
	if err != nil {
		return domain.Financials{}, err
	}
	return domain.Financials{Price: b.Price, PlatformFee: b.PlatformFee, Total: b.Total}, nil
}

// CalculateFinancialsWithBreakdown is CalculateFinancials plus the inputs used
func CalculateFinancialsWithBreakdown(price, feeBasisPoints int64) (FeeBreakdown, error) {
	if price <= 0 {
		return FeeBreakdown{}, fmt.Errorf("price must be positive, got %d", price)
	}
	fee, err := CalculatePlatformFee(price, feeBasisPoints)
	if err != nil {
		return FeeBreakdown{}, err
	}
	return FeeBreakdown{
		Price:          price,
		FeeBasisPoints: feeBasisPoints,
		PlatformFee:    fee,
		Total:          price + fee,
	}, nil
}

// FormatAmount renders minor units as a decimal string, e.g. 12345 -> "123.45"
func FormatAmount(amount int64) string {
	sign := ""
	if amount < 0 {
		sign = "-"
		amount = -amount
	}
	return fmt.Sprintf("%s%d.%02d", sign, amount/100, amount%100)
}
