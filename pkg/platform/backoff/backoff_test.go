package backoff

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDelay(t *testing.T) {
	tests := []struct {
		name    string
		attempt int
		base    time.Duration
	}{
		{name: "first retry uses initial", attempt: 1, base: 100 * time.Millisecond},
		{name: "zero treated as first", attempt: 0, base: 100 * time.Millisecond},
		{name: "doubles", attempt: 3, base: 400 * time.Millisecond},
		{name: "capped", attempt: 10, base: time.Second},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for i := 0; i < 20; i++ {
				d := Delay(100*time.Millisecond, time.Second, tt.attempt)
				assert.GreaterOrEqual(t, d, time.Duration(float64(tt.base)*0.8))
				assert.LessOrEqual(t, d, time.Duration(float64(tt.base)*1.2))
			}
		})
	}
}

func TestSleep(t *testing.T) {
	assert.NoError(t, Sleep(context.Background(), time.Millisecond))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, Sleep(ctx, time.Hour), context.Canceled)
	assert.ErrorIs(t, Sleep(ctx, 0), context.Canceled)
}
