package types

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestError_Format(t *testing.T) {
	err := NewError(ErrStageTransient, "analyze failed").WithStage(StageAnalyze)
	assert.Equal(t, "[STAGE_TRANSIENT] analyze failed", err.Error())

	cause := fmt.Errorf("connection reset")
	err = err.WithCause(cause)
	assert.Equal(t, "[STAGE_TRANSIENT] analyze failed: connection reset", err.Error())
	assert.True(t, errors.Is(err, cause))
}

func TestError_Retryable(t *testing.T) {
	transient := NewError(ErrStageTransient, "timeout").WithRetryable(true)
	exhausted := NewError(ErrExhausted, "error ceiling reached")

	assert.True(t, IsRetryable(transient))
	assert.False(t, IsRetryable(exhausted))
	assert.False(t, IsRetryable(errors.New("plain error")))
}

func TestGetErrorCode(t *testing.T) {
	assert.Equal(t, ErrCacheIO, GetErrorCode(NewError(ErrCacheIO, "write failed")))
	assert.Equal(t, ErrorCode(""), GetErrorCode(errors.New("plain")))
	assert.Equal(t, ErrorCode(""), GetErrorCode(nil))
}
