package usecase

// Outcome is the terminal state of one inbound-message run. None of these are
// surfaced to the transport; the webhook acknowledges success in every case.
type Outcome string

const (
	// OutcomeDone — a reply was produced and bookkeeping attempted.
	OutcomeDone Outcome = "done"
	// OutcomeIgnored — addressing declined, or nothing remained after
	// extraction.
	OutcomeIgnored Outcome = "ignored"
	// OutcomeMalformed — the inbound message failed validation.
	OutcomeMalformed Outcome = "malformed"
)

// Failure categories attached to step-level log records.
const (
	failureIdentity   = "identity_unavailable"
	failureStorage    = "storage_unavailable"
	failureCompletion = "completion_failure"
	failureSend       = "send_failure"
)
