package organization

import (
	"bfoproxy/internal/core/apperror"
)

var taxIDWeights = [9]int{2, 4, 10, 3, 5, 9, 4, 6, 8}

// ValidateTaxID checks a 10-digit legal entity INN including its control digit.
func ValidateTaxID(taxID string) error {
	if len(taxID) != 10 {
		return invalidTaxID(taxID, "must contain exactly 10 digits")
	}
	digits := make([]int, 10)
	for i, r := range taxID {
		if r < '0' || r > '9' {
			return invalidTaxID(taxID, "must contain only digits")
		}
		digits[i] = int(r - '0')
	}
	if digits[0] == 0 {
		return invalidTaxID(taxID, "must not start with 0")
	}

	sum := 0
	for i, w := range taxIDWeights {
		sum += digits[i] * w
	}
	if sum%11%10 != digits[9] {
		return invalidTaxID(taxID, "control digit mismatch")
	}
	return nil
}

func invalidTaxID(taxID, reason string) error {
	return apperror.NewValidation("invalid INN: "+reason).
		WithDetail("field", "inn").
		WithDetail("value", taxID)
}
