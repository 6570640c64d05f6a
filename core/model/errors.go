package model

import "errors"

// Error taxonomy. Every failure path maps onto exactly one of these kinds so
// negative acknowledgments and rejection lists stay machine readable.
var (
	// ErrValidation marks malformed input. Rejected synchronously, never retried.
	ErrValidation = errors.New("validation error")
	// ErrInfeasibleJob marks a job no slot can satisfy. Surfaced in the
	// rejection list, not a system failure.
	ErrInfeasibleJob = errors.New("infeasible job")
	// ErrForecastGap marks insufficient reference data for normalization.
	ErrForecastGap = errors.New("forecast gap")
	// ErrCallbackDelivery marks exhausted outbound delivery retries.
	ErrCallbackDelivery = errors.New("callback delivery failure")
)

// ErrorKind returns the wire identifier for an error, used in NACK payloads.
func ErrorKind(err error) string {
	switch {
	case errors.Is(err, ErrValidation):
		return "VALIDATION_ERROR"
	case errors.Is(err, ErrInfeasibleJob):
		return "INFEASIBLE_JOB"
	case errors.Is(err, ErrForecastGap):
		return "FORECAST_GAP"
	case errors.Is(err, ErrCallbackDelivery):
		return "CALLBACK_DELIVERY_FAILURE"
	default:
		return "DOWNSTREAM_ERROR"
	}
}
