package utils

import "math"

// RoundToDecimalPrecision truncates the quantity to the specified decimal
// precision. Truncation, not rounding: a fill can only be smaller than the
// sized quantity, never larger.
func RoundToDecimalPrecision(quantity float64, decimalPrecision int) float64 {
	multiplier := math.Pow10(decimalPrecision)

	return math.Floor(quantity*multiplier) / multiplier
}

// LegQuantities sizes the two legs of a spread entry: leg A receives the
// trade notional at its fill price, leg B offsets it at the hedge ratio.
// Both quantities are truncated to the given precision. A non-positive
// result on either leg means the entry cannot be sized.
func LegQuantities(notional float64, priceA float64, beta float64, decimalPrecision int) (float64, float64) {
	if notional <= 0 || priceA <= 0 {
		return 0, 0
	}

	qtyA := RoundToDecimalPrecision(notional/priceA, decimalPrecision)
	qtyB := RoundToDecimalPrecision(beta*qtyA, decimalPrecision)

	return qtyA, qtyB
}
