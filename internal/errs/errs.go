package errs

import (
	"errors"
	"fmt"
)

// Kind classifies a failure for propagation and HTTP mapping.
type Kind int

const (
	KindInternal Kind = iota
	KindValidation
	KindAuthorization
	KindNotFound
	KindConflict
	KindOTP
	KindTransient
	KindUnauthenticated
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindAuthorization:
		return "authorization"
	case KindNotFound:
		return "not_found"
	case KindConflict:
		return "conflict"
	case KindOTP:
		return "otp"
	case KindTransient:
		return "transient"
	case KindUnauthenticated:
		return "unauthenticated"
	default:
		return "internal"
	}
}

// Error carries a Kind through wrapping layers.
type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil && e.Msg != "" {
		return e.Msg + ": " + e.Err.Error()
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return e.Msg
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches sentinels by identity of message and kind so errors.Is works on copies.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && t.Msg == e.Msg && t.Err == nil
}

func newKind(k Kind, msg string) *Error {
	return &Error{Kind: k, Msg: msg}
}

// E wraps err with a kind and a message.
func E(k Kind, msg string, err error) error {
	return &Error{Kind: k, Msg: msg, Err: err}
}

// Validation builds a formatted validation error.
func Validation(format string, args ...any) error {
	return &Error{Kind: KindValidation, Msg: fmt.Sprintf(format, args...)}
}

// Conflict builds a formatted conflict error.
func Conflict(format string, args ...any) error {
	return &Error{Kind: KindConflict, Msg: fmt.Sprintf(format, args...)}
}

// KindOf returns the kind of the outermost classified error in the chain.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

func IsKind(err error, k Kind) bool {
	return err != nil && KindOf(err) == k
}

var (
	ErrAccountNotFound = newKind(KindNotFound, "account not found")
	ErrSignerNotFound  = newKind(KindNotFound, "signer not found")
	ErrGroupNotFound   = newKind(KindNotFound, "group not found")
	ErrOrderNotFound   = newKind(KindNotFound, "order not found")
	ErrItemNotFound    = newKind(KindNotFound, "line item not found")

	ErrInvalidQuorum     = newKind(KindValidation, "minimum signatures must be between 1 and the number of enabled signers")
	ErrInvalidIBAN       = newKind(KindValidation, "invalid IBAN")
	ErrEmptyBatch        = newKind(KindValidation, "no orders provided")
	ErrBatchTooLarge     = newKind(KindValidation, "batch size exceeds limit")
	ErrIntentMismatch    = newKind(KindValidation, "code was issued for a different intent")
	ErrAccountDisabled   = newKind(KindValidation, "account is disabled")
	ErrCurrencyMismatch  = newKind(KindValidation, "currency does not match account")
	ErrUnknownBankStatus = newKind(KindValidation, "unknown bank status code")

	ErrUnauthenticated = newKind(KindUnauthenticated, "missing or invalid credentials")

	ErrNotEligible     = newKind(KindAuthorization, "actor is not an eligible signer for this order")
	ErrForbidden       = newKind(KindAuthorization, "operation not permitted")
	ErrNotOrderCreator = newKind(KindAuthorization, "only the order creator may perform this operation")

	ErrInvalidTransition = newKind(KindConflict, "order state does not allow this operation")
	ErrAlreadyDecided    = newKind(KindConflict, "actor has already decided on this order")
	ErrVersionConflict   = newKind(KindConflict, "order was modified concurrently")
	ErrSignerState       = newKind(KindConflict, "signer state does not allow this operation")
	ErrDuplicateSigner   = newKind(KindConflict, "user is already a signer of this account")
	ErrDuplicateMember   = newKind(KindConflict, "account is already a member of this group")
	ErrQuorumBreach      = newKind(KindConflict, "disabling this signer would leave fewer enabled signers than the quorum")

	ErrOTPExpired     = newKind(KindOTP, "code expired")
	ErrOTPMismatch    = newKind(KindOTP, "code does not match")
	ErrOTPAlreadyUsed = newKind(KindConflict, "code already used")
	ErrOTPBinding     = newKind(KindOTP, "code was issued for a different operation")
	ErrOTPNotFound    = newKind(KindOTP, "code not found or expired")
	ErrOTPRateLimited = newKind(KindTransient, "too many codes requested, try again later")

	ErrOTPDelivery      = newKind(KindTransient, "failed to deliver code")
	ErrBankUnavailable  = newKind(KindTransient, "bank gateway unavailable")
	ErrStoreUnavailable = newKind(KindTransient, "storage unavailable")
)
