package errors

import (
	stderrors "errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	err := New(ErrorTypeValidation, "empty frame")
	require.Error(t, err)
	assert.Equal(t, ErrorTypeValidation, err.Type)
	assert.Equal(t, "validation: empty frame", err.Error())
	assert.NotEmpty(t, err.Stack)
}

func TestWrap(t *testing.T) {
	cause := stderrors.New("connection refused")
	err := Wrap(cause, ErrorTypeConnection, "failed to ping database")

	require.Error(t, err)
	assert.Equal(t, "connection: failed to ping database: connection refused", err.Error())
	assert.ErrorIs(t, err, cause)
}

func TestWrapNil(t *testing.T) {
	assert.Nil(t, Wrap(nil, ErrorTypeQuery, "ignored"))
}

func TestWrapPreservesStack(t *testing.T) {
	inner := New(ErrorTypeQuery, "syntax error")
	outer := Wrap(inner, ErrorTypeSchema, "create table failed")

	assert.Equal(t, inner.Stack, outer.Stack)
	assert.ErrorIs(t, outer, inner)
}

func TestIsType(t *testing.T) {
	err := New(ErrorTypeConflict, "duplicate key")
	assert.True(t, IsType(err, ErrorTypeConflict))
	assert.False(t, IsType(err, ErrorTypeConnection))
	assert.False(t, IsType(stderrors.New("plain"), ErrorTypeConflict))

	wrapped := Wrap(err, ErrorTypeQuery, "insert failed")
	assert.True(t, IsType(wrapped, ErrorTypeQuery))
}

func TestWithDetail(t *testing.T) {
	err := New(ErrorTypeSchema, "column type mismatch").
		WithDetail("schema", "raw_data").
		WithDetail("table", "btc_trades")

	assert.Equal(t, "raw_data", err.Details["schema"])
	assert.Equal(t, "btc_trades", err.Details["table"])
}
