package apperr_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"repair-job-service/internal/apperr"
)

func TestKindSurvivesWrapping(t *testing.T) {
	err := fmt.Errorf("withdraw: %w", apperr.Conflict(apperr.ReasonInsufficientStock, "only %d in stock", 2))

	assert.Equal(t, apperr.KindConflict, apperr.KindOf(err))
	assert.Equal(t, apperr.ReasonInsufficientStock, apperr.ReasonOf(err))
	assert.True(t, errors.Is(err, apperr.ErrConflict))
	assert.False(t, errors.Is(err, apperr.ErrNotFound))
	assert.False(t, apperr.IsRetryable(err))
	assert.Contains(t, err.Error(), "only 2 in stock")
}

func TestIsMatchesReasonWhenTargetHasOne(t *testing.T) {
	err := apperr.RetryableConflict(apperr.ReasonJobNumberCollision, errors.New("dup"), "job number taken")

	assert.True(t, errors.Is(err, &apperr.Error{Kind: apperr.KindConflict, Reason: apperr.ReasonJobNumberCollision}))
	assert.False(t, errors.Is(err, &apperr.Error{Kind: apperr.KindConflict, Reason: apperr.ReasonInsufficientStock}))
	assert.True(t, apperr.IsRetryable(err))
	assert.EqualError(t, errors.Unwrap(err), "dup")
}

func TestPlainErrorHasNoKind(t *testing.T) {
	err := errors.New("boom")

	assert.Equal(t, apperr.Kind(""), apperr.KindOf(err))
	assert.False(t, apperr.IsRetryable(err))
}
