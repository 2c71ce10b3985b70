package messaging

// Subject constants for the events message bus.
// Follow the pattern: {domain}.{resource}.{action}
const (
	// SubjectOutboundEnvelope carries one delivery envelope per matched subscription.
	SubjectOutboundEnvelope = "events.outbound.envelope"

	// SubjectSubscriptionValidation carries newly created subscriptions awaiting the endpoint handshake.
	SubjectSubscriptionValidation = "events.subscriptions.validate"
)

// Stream and durable consumer names.
const (
	StreamOutbound   = "EVENTS_OUTBOUND"
	StreamValidation = "EVENTS_VALIDATION"

	ConsumerOutboundWorkers   = "outbound-workers"
	ConsumerValidationWorkers = "validation-workers"
)
