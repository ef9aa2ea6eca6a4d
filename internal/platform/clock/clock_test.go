package clock

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVirtual_AdvanceMovesNow(t *testing.T) {
	start := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
	v := NewVirtual(start)

	v.Advance(90 * time.Minute)
	assert.Equal(t, start.Add(90*time.Minute), v.Now())

	v.Set(start)
	assert.Equal(t, start, v.Now())
}

func TestVirtual_TickerFiresOnPeriod(t *testing.T) {
	start := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
	v := NewVirtual(start)
	tk := v.NewTicker(30 * time.Second)
	defer tk.Stop()

	v.Advance(10 * time.Second)
	select {
	case <-tk.C():
		t.Fatalf("ticker fired before its period")
	default:
	}

	v.Advance(20 * time.Second)
	select {
	case got := <-tk.C():
		assert.Equal(t, start.Add(30*time.Second), got)
	default:
		t.Fatalf("expected tick after 30s")
	}
}

func TestVirtual_SlowConsumerDropsTicks(t *testing.T) {
	v := NewVirtual(time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC))
	tk := v.NewTicker(time.Second)

	v.Advance(5 * time.Second)

	require.Len(t, tk.C(), 1)
	<-tk.C()

	tk.Stop()
	v.Advance(5 * time.Second)
	assert.Len(t, tk.C(), 0)
}
