package event

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestType_IsValid(t *testing.T) {
	tests := []struct {
		eventType Type
		want      bool
	}{
		{TypeAdvanceCreated, true},
		{TypeAdvanceLiquidated, true},
		{TypeMovementCreated, true},
		{TypeMovementUpdated, true},
		{TypeMovementDeleted, true},
		{TypeCashMovementApproved, true},
		{TypeCashMovementRejected, true},
		{TypeCashMovementReversed, true},
		{Type("instance.created"), false},
		{Type(""), false},
	}

	for _, tt := range tests {
		t.Run(tt.eventType.String(), func(t *testing.T) {
			assert.Equal(t, tt.want, tt.eventType.IsValid())
		})
	}
}

func TestNewEvent(t *testing.T) {
	evt := NewEvent(TypeAdvanceLiquidated, 1, 1, 42, map[string]interface{}{"movements": 3})

	assert.NotEmpty(t, evt.ID)
	assert.NotEmpty(t, evt.CorrelationID)
	assert.NotEqual(t, evt.ID, evt.CorrelationID)
	assert.Equal(t, int64(42), evt.ActorID)
	assert.Equal(t, int64(3), evt.GetPayloadInt("movements"))
	assert.False(t, evt.Timestamp.IsZero())
}

func TestNewEvent_NilPayload(t *testing.T) {
	evt := NewEvent(TypeMovementDeleted, 1, 5, 42, nil)

	assert.NotNil(t, evt.Payload)
	assert.Equal(t, "", evt.GetPayloadString("missing"))
}

func TestWithPayload_DoesNotMutateOriginal(t *testing.T) {
	original := NewEvent(TypeCashMovementReversed, 1, 9, 42, map[string]interface{}{"reason": "duplicate entry"})

	updated := original.WithPayload("reversal_id", int64(10))

	assert.Equal(t, int64(10), updated.GetPayloadInt("reversal_id"))
	assert.Equal(t, int64(0), original.GetPayloadInt("reversal_id"))
	assert.Equal(t, "duplicate entry", updated.GetPayloadString("reason"))
	assert.Equal(t, original.ID, updated.ID)
	assert.Equal(t, original.CorrelationID, updated.CorrelationID)
}
