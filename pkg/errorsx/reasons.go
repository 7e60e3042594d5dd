package errorsx

// ReasonCode is a short machine-readable error reason.
type ReasonCode string

const (
	ReasonUnknown ReasonCode = "unknown"

	// ReasonFormat marks an audio asset that does not match the canonical
	// 16 kHz / mono / 16-bit PCM format. Fatal for that asset only.
	ReasonFormat ReasonCode = "format_invalid"

	// ReasonConnect marks a vendor connection or handshake failure.
	ReasonConnect ReasonCode = "stt_connect"

	// ReasonSend marks a mid-session audio transmission failure.
	ReasonSend ReasonCode = "stt_send"

	// ReasonInvalidState marks an operation invoked outside its valid
	// session state. A caller bug, not a vendor fault.
	ReasonInvalidState ReasonCode = "invalid_state"

	// ReasonFinalizeTimeout marks a vendor that never signalled completion
	// after end-of-audio within the idle deadline.
	ReasonFinalizeTimeout ReasonCode = "finalize_timeout"

	// ReasonScoringUnavailable marks a missing or failing fact-extraction
	// collaborator. SER is omitted; CER is still reported.
	ReasonScoringUnavailable ReasonCode = "scoring_unavailable"
)
