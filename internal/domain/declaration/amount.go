package declaration

import "github.com/shopspring/decimal"

// ComputeTotal sums the effective amount of every participant
func ComputeTotal(participants []Participant) decimal.Decimal {
	total := decimal.Zero
	for i := range participants {
		total = total.Add(participants[i].EffectiveAmount())
	}
	return total
}

// ValidateForSubmission checks every participant and reports the first incomplete one
func ValidateForSubmission(participants []Participant) error {
	for i := range participants {
		if err := participants[i].ValidateForSubmission(); err != nil {
			return err
		}
	}
	return nil
}
