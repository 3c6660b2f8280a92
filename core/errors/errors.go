package errors

import stderrors "errors"

// Kind classifies a failure returned by the channel network engines.
type Kind uint8

const (
	KindAuthorization Kind = iota + 1
	KindState
	KindValidation
	KindNotFound
	KindFunds
	KindProof
	KindRoute
)

func (k Kind) String() string {
	switch k {
	case KindAuthorization:
		return "authorization"
	case KindState:
		return "state"
	case KindValidation:
		return "validation"
	case KindNotFound:
		return "not_found"
	case KindFunds:
		return "funds"
	case KindProof:
		return "proof"
	case KindRoute:
		return "route"
	default:
		return "unknown"
	}
}

// Error is a typed engine failure. Condition errors carry a code and match
// the category sentinel of their kind through errors.Is.
type Error struct {
	Kind Kind
	Code string
	msg  string
}

func (e *Error) Error() string { return e.msg }

// Is reports whether target is the category sentinel for e's kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	if t == e {
		return true
	}
	return t.Code == "" && t.Kind == e.Kind
}

func category(kind Kind) *Error {
	return &Error{Kind: kind, msg: kind.String() + " error"}
}

func condition(kind Kind, code, msg string) *Error {
	return &Error{Kind: kind, Code: code, msg: msg}
}

// Category sentinels.
var (
	ErrAuthorization = category(KindAuthorization)
	ErrState         = category(KindState)
	ErrValidation    = category(KindValidation)
	ErrNotFound      = category(KindNotFound)
	ErrFunds         = category(KindFunds)
	ErrProof         = category(KindProof)
	ErrRoute         = category(KindRoute)
)

var (
	ErrUnauthorized   = condition(KindAuthorization, "Unauthorized", "caller not permitted")
	ErrNotParticipant = condition(KindAuthorization, "NotParticipant", "caller is not a channel participant")
	ErrNotRegistered  = condition(KindAuthorization, "NotRegistered", "participant not registered")

	ErrChannelClosed        = condition(KindState, "ChannelClosed", "channel not open")
	ErrInvalidState         = condition(KindState, "InvalidState", "invalid state for operation")
	ErrChannelAlreadyExists = condition(KindState, "ChannelAlreadyExists", "channel already exists for pair")
	ErrNotClosing           = condition(KindState, "NotClosing", "channel not closing")
	ErrDisputeWindowClosed  = condition(KindState, "DisputeWindowClosed", "dispute window closed")
	ErrDisputeWindowOpen    = condition(KindState, "DisputeWindowOpen", "dispute window still open")
	ErrHTLCResolved         = condition(KindState, "HTLCResolved", "htlc already claimed or refunded")
	ErrTimelockNotExpired   = condition(KindState, "TimelockNotExpired", "timelock not expired")
	ErrTimelockExpired      = condition(KindState, "TimelockExpired", "timelock expired")
	ErrAlreadyRegistered    = condition(KindState, "AlreadyRegistered", "participant already registered")

	ErrSelfPayment          = condition(KindValidation, "SelfPayment", "participants must differ")
	ErrBelowMinimumDeposit  = condition(KindValidation, "BelowMinimumDeposit", "deposit below minimum")
	ErrInvalidAmount        = condition(KindValidation, "InvalidAmount", "amount must be positive")
	ErrBalanceExceedsCap    = condition(KindValidation, "BalanceExceedsCapacity", "balance exceeds channel capacity")
	ErrBalanceMismatch      = condition(KindValidation, "BalanceMismatch", "balances do not sum to capacity")
	ErrInvalidTimelock      = condition(KindValidation, "InvalidTimelock", "timelock must be in the future")
	ErrInvalidReceiver      = condition(KindValidation, "InvalidReceiver", "receiver must be the channel counterparty")
	ErrInvalidRoute         = condition(KindValidation, "InvalidRoute", "route is malformed")
	ErrFeeRateOutOfRange    = condition(KindValidation, "FeeRateOutOfRange", "fee rate out of range")
	ErrInvalidParticipant   = condition(KindValidation, "InvalidParticipant", "participant address required")
	ErrReputationOutOfRange = condition(KindValidation, "ReputationOutOfRange", "reputation out of range")

	ErrChannelNotFound     = condition(KindNotFound, "ChannelNotFound", "channel not found")
	ErrHTLCNotFound        = condition(KindNotFound, "HTLCNotFound", "htlc not found")
	ErrParticipantNotFound = condition(KindNotFound, "ParticipantNotFound", "participant not found")
	ErrEdgeNotFound        = condition(KindNotFound, "EdgeNotFound", "routing edge not found")
	ErrInboundNotFound     = condition(KindNotFound, "InboundHTLCNotFound", "inbound htlc not found")
	ErrProofNotFound       = condition(KindNotFound, "ProofNotFound", "balance proof not found")

	ErrInsufficientFunds = condition(KindFunds, "InsufficientFunds", "insufficient funds")

	ErrStaleNonce    = condition(KindProof, "StaleNonce", "nonce must strictly increase")
	ErrBadSignature  = condition(KindProof, "BadSignature", "signature verification failed")
	ErrWrongPreimage = condition(KindProof, "WrongPreimage", "preimage does not match hashlock")

	ErrRouteNotFound    = condition(KindRoute, "RouteNotFound", "no route found")
	ErrNoLiquidityCycle = condition(KindRoute, "NoLiquidityCycle", "channels do not share a liquidity cycle")
)

// KindOf returns the kind of the first typed error in err's chain.
func KindOf(err error) (Kind, bool) {
	var typed *Error
	if stderrors.As(err, &typed) {
		return typed.Kind, true
	}
	return 0, false
}

// CodeOf returns the condition code of err, or an empty string.
func CodeOf(err error) string {
	var typed *Error
	if stderrors.As(err, &typed) {
		return typed.Code
	}
	return ""
}
