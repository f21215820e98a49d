package errors

// Outcome classifies the result of a best-effort operation. Callers that must
// keep going (bot handlers, the PR publisher) return an Outcome alongside a
// usable value instead of propagating the error.
type Outcome string

const (
	// OutcomeOK means the operation did what was asked.
	OutcomeOK Outcome = "ok"
	// OutcomeDegraded means a fallback value was produced.
	OutcomeDegraded Outcome = "degraded"
	// OutcomeFatal means no usable value could be produced.
	OutcomeFatal Outcome = "fatal"
)

// Classify maps an error to the outcome a best-effort caller should report
// when it was able to substitute a fallback value.
func Classify(err error) Outcome {
	if err == nil {
		return OutcomeOK
	}
	switch GetCode(err) {
	case ErrCodeConfigInvalid, ErrCodeConfigNotFound, ErrCodeRepoNotConfigured, ErrCodeInternal:
		return OutcomeFatal
	default:
		return OutcomeDegraded
	}
}
