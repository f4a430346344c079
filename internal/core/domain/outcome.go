package domain

import "fmt"

// Outcome is the result of a payment confirmation.
type Outcome string

const (
	OutcomeSuccess Outcome = "success"
	OutcomeFailure Outcome = "failure"
)

// ForcedOutcome overrides the amount rule when set.
type ForcedOutcome string

const (
	ForcedOutcomeNone    ForcedOutcome = ""
	ForcedOutcomeSuccess ForcedOutcome = "success"
	ForcedOutcomeFail    ForcedOutcome = "fail"
)

// ParseForcedOutcome accepts "", "success" or "fail".
func ParseForcedOutcome(raw string) (ForcedOutcome, error) {
	switch f := ForcedOutcome(raw); f {
	case ForcedOutcomeNone, ForcedOutcomeSuccess, ForcedOutcomeFail:
		return f, nil
	}
	return ForcedOutcomeNone, fmt.Errorf("unknown forced outcome %q", raw)
}

// DecideOutcome is the outcome rule: a forced outcome wins, otherwise amounts
// whose last digit is 3 or 7 fail and everything else succeeds.
func DecideOutcome(amountMinor int64, forced ForcedOutcome) Outcome {
	switch forced {
	case ForcedOutcomeSuccess:
		return OutcomeSuccess
	case ForcedOutcomeFail:
		return OutcomeFailure
	}

	switch amountMinor % 10 {
	case 3, 7:
		return OutcomeFailure
	}
	return OutcomeSuccess
}

// AttemptStatus maps the outcome onto the terminal attempt status it produces.
func (o Outcome) AttemptStatus() AttemptStatus {
	if o == OutcomeSuccess {
		return AttemptStatusConfirmed
	}
	return AttemptStatusFailed
}
