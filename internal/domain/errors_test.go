package domain

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolverError_KindMatching(t *testing.T) {
	err := NewResolverError(FailureNotRecognized, "17-45983420-G-T", "not recognized")

	assert.Equal(t, FailureNotRecognized, FailureKindOf(err))
	assert.True(t, errors.Is(err, &ResolverError{Kind: FailureNotRecognized}))
	assert.False(t, errors.Is(err, &ResolverError{Kind: FailureServiceError}))
}

func TestResolverError_WrappedCauseSurvives(t *testing.T) {
	cause := errors.New("connection reset")
	err := WrapResolverError(FailureConnectionProblem, "x", "could not connect", cause)

	require.ErrorIs(t, err, cause)
	assert.Equal(t, FailureConnectionProblem, FailureKindOf(fmt.Errorf("outer: %w", err)))
}

func TestFailureKindOf_NonResolverError(t *testing.T) {
	assert.Equal(t, FailureKind(""), FailureKindOf(errors.New("plain")))
	assert.Equal(t, FailureKind(""), FailureKindOf(nil))
}

func TestStoreError_MessageStaysGeneric(t *testing.T) {
	cause := errors.New("SQLITE_BUSY: database table locked at page 81234")
	err := NewStoreError("annotation lookup", cause)

	assert.Equal(t, "store error during annotation lookup", err.Error())
	assert.NotContains(t, err.Error(), "SQLITE_BUSY")
	require.ErrorIs(t, err, cause)
}
