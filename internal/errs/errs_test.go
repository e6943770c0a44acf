package errs

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindOf(t *testing.T) {
	assert.Equal(t, KindNotFound, KindOf(ErrOrderNotFound))
	assert.Equal(t, KindConflict, KindOf(fmt.Errorf("decide o-1: %w", ErrInvalidTransition)))
	assert.Equal(t, KindInternal, KindOf(errors.New("plain")))
	assert.Equal(t, KindValidation, KindOf(Validation("bad %s", "input")))
	assert.True(t, IsKind(ErrOTPMismatch, KindOTP))
	assert.False(t, IsKind(nil, KindInternal))
}

func TestIsMatchesCopies(t *testing.T) {
	wrapped := E(KindTransient, ErrOTPDelivery.Msg, errors.New("smtp down"))
	assert.ErrorIs(t, wrapped, ErrOTPDelivery)
	assert.NotErrorIs(t, wrapped, ErrBankUnavailable)
	assert.Equal(t, "failed to deliver code: smtp down", wrapped.Error())
}

func TestUnwrap(t *testing.T) {
	cause := errors.New("connection reset")
	err := E(KindTransient, "store", cause)
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "transient", KindOf(err).String())
}
