package order

// Stable reason codes carried by errs.RuleViolationError for order rejections.
const (
	ReasonInvalidTransition    = "INVALID_TRANSITION"
	ReasonOrderFrozen          = "ORDER_FROZEN"
	ReasonNotDispatchable      = "ORDER_NOT_DISPATCHABLE"
	ReasonNotOfferHolder       = "NOT_OFFER_HOLDER"
	ReasonOfferExpired         = "OFFER_EXPIRED"
	ReasonOrderFinished        = "ORDER_FINISHED"
	ReasonStopNotArrived       = "STOP_NOT_ARRIVED"
	ReasonStopAlreadyActive    = "ANOTHER_STOP_ARRIVED"
	ReasonLinkedStepIncomplete = "LINKED_STEP_INCOMPLETE"
	ReasonProofsPending        = "PROOFS_PENDING"
	ReasonProofSettled         = "PROOF_ALREADY_SETTLED"
	ReasonProofNotSubmitted    = "PROOF_NOT_SUBMITTED"
	ReasonNoStops              = "ORDER_HAS_NO_STOPS"
)
