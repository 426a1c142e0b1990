package validate

import (
	"strings"
	"testing"

	"github.com/cuemby/omg/pkg/rpc"
	"github.com/stretchr/testify/assert"
)

func TestName_RejectsForbiddenCharacter(t *testing.T) {
	err := Name("foo;rm -rf /")
	if assert.NotNil(t, err) {
		assert.Equal(t, rpc.KindInvalidRequest, err.Kind)
		assert.Equal(t, "name", err.Field)
	}
}

func TestName_AcceptsWhitelisted(t *testing.T) {
	assert.Nil(t, Name("firefox-esr"))
}

func TestQuery_RejectsControlCharacters(t *testing.T) {
	assert.NotNil(t, Query("fire\x01fox"))
}

func TestQuery_EmptyIsValid(t *testing.T) {
	// Search{query=""} is a valid request that yields an empty result,
	// not an InvalidRequest.
	assert.Nil(t, Query(""))
}

func TestQuery_RejectsOverLength(t *testing.T) {
	assert.NotNil(t, Query(strings.Repeat("a", MaxQueryLen+1)))
}

func TestQuery_AcceptsOrdinaryText(t *testing.T) {
	assert.Nil(t, Query("fire fox 128"))
}

func TestPrefix_EmptyIsValid(t *testing.T) {
	assert.Nil(t, Prefix(""))
}

func TestPrefix_RejectsDotDotSegments(t *testing.T) {
	assert.NotNil(t, Prefix("../../etc"))
}

func TestBatchLen_EnforcesCap(t *testing.T) {
	assert.Nil(t, BatchLen(MaxBatchLen))
	assert.NotNil(t, BatchLen(MaxBatchLen+1))
}

func TestSearchLimit_DefaultsAndClamps(t *testing.T) {
	assert.Equal(t, DefaultSearchLimit, SearchLimit(0))
	assert.Equal(t, 100, SearchLimit(100))
	assert.Equal(t, MaxSearchLimit, SearchLimit(999999))
}

func TestCompleteLimit_DefaultsAndClamps(t *testing.T) {
	assert.Equal(t, DefaultCompleteLimit, CompleteLimit(0))
	assert.Equal(t, MaxCompleteLimit, CompleteLimit(999999))
}

func TestConnLimiter_ExhaustsBurst(t *testing.T) {
	lim := NewConnLimiter(1)
	assert.True(t, lim.Allow())
	assert.False(t, lim.Allow())
}
