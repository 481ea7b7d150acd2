package processor_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"auditcore/internal/processor"
)

func TestRetryPolicy_Delay_ScenarioS3Bounds(t *testing.T) {
	policy := processor.RetryPolicy{
		InitialDelay: 100 * time.Millisecond,
		Multiplier:   2,
		MaxDelay:     5 * time.Second,
		Jitter:       20 * time.Millisecond,
	}

	d1 := policy.Delay(1)
	assert.GreaterOrEqual(t, d1, 80*time.Millisecond)
	assert.LessOrEqual(t, d1, 120*time.Millisecond)

	d2 := policy.Delay(2)
	assert.GreaterOrEqual(t, d2, 180*time.Millisecond)
	assert.LessOrEqual(t, d2, 220*time.Millisecond)
}

func TestRetryPolicy_Delay_CapsAtMaxDelay(t *testing.T) {
	policy := processor.RetryPolicy{
		InitialDelay: 100 * time.Millisecond,
		Multiplier:   10,
		MaxDelay:     1 * time.Second,
		Jitter:       0,
	}

	d := policy.Delay(5)
	assert.LessOrEqual(t, d, 1*time.Second)
}
