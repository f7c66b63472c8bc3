package kafka

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/river-flow-service/internal/engine"
)

func TestSerializeToMessage(t *testing.T) {
	computed := time.Date(2026, 8, 28, 9, 0, 0, 0, time.UTC)
	r := &engine.Result{
		DamID:      "old-hickory",
		DamName:    "Old Hickory Dam",
		TargetMile: 166.2,
		SourceCFS:  41200,
		TargetCFS:  24986.5,
		DataFresh:  true,
		ComputedAt: computed,
	}

	msg, err := serializeToMessage(r)
	require.NoError(t, err)

	assert.Equal(t, []byte("old-hickory"), msg.Key)
	assert.Contains(t, string(msg.Value), `"dam_id":"old-hickory"`)
	assert.Contains(t, string(msg.Value), `"target_mile":166.2`)

	require.Len(t, msg.Headers, 3)
	assert.Equal(t, "dam_id", msg.Headers[0].Key)
	assert.Equal(t, []byte("old-hickory"), msg.Headers[0].Value)
	assert.Equal(t, "data_fresh", msg.Headers[1].Key)
	assert.Equal(t, []byte("true"), msg.Headers[1].Value)
	assert.Equal(t, "computed_at", msg.Headers[2].Key)
	assert.Equal(t, []byte(computed.Format(time.RFC3339)), msg.Headers[2].Value)
}

func TestSerializeToMessage_StaleEstimate(t *testing.T) {
	r := &engine.Result{
		DamID:        "wolf-creek",
		DataFresh:    false,
		GaugeFailure: "timeout",
		ComputedAt:   time.Now(),
	}

	msg, err := serializeToMessage(r)
	require.NoError(t, err)

	assert.Equal(t, []byte("false"), msg.Headers[1].Value)
	assert.Contains(t, string(msg.Value), `"gauge_failure":"timeout"`)
}
