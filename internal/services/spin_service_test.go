package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"zapwheel/internal/models"
	"zapwheel/internal/store"
	"zapwheel/internal/wheel"
	"zapwheel/pkg/speedapi"
)

// fakeGateway records sends and answers with a canned outcome.
type fakeGateway struct {
	mu       sync.Mutex
	succeed  bool
	simulate bool
	sent     []speedapi.PaymentResult
}

func (g *fakeGateway) Send(_ context.Context, recipient string, amount int64, description string) speedapi.PaymentResult {
	g.mu.Lock()
	defer g.mu.Unlock()

	result := speedapi.PaymentResult{
		Success:     g.succeed,
		Simulated:   g.succeed && g.simulate,
		Recipient:   recipient,
		Amount:      amount,
		Description: description,
	}
	if !g.succeed {
		result.Err = "payment network unreachable"
	}
	g.sent = append(g.sent, result)
	return result
}

func (g *fakeGateway) sendCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.sent)
}

func fastPolicy() wheel.Policy {
	return wheel.Policy{MinTurns: 5, MaxTurns: 8, Duration: 5 * time.Millisecond}
}

func TestStartSpinPaysAndRecords(t *testing.T) {
	st := store.New()
	winner, err := st.RegisterParticipant("sess", "Alice", "alice@speed.app")
	require.NoError(t, err)

	gateway := &fakeGateway{succeed: true, simulate: true}
	svc := NewSpinService(st, gateway, fastPolicy())

	spin, err := svc.Start("sess", 1000)
	require.NoError(t, err)
	assert.Equal(t, 1, spin.PoolSize)
	assert.Equal(t, wheel.Spinning, svc.Phase())

	require.Eventually(t, func() bool {
		return st.SessionStats("sess").PayoutCount == 1
	}, time.Second, 5*time.Millisecond, "payout never recorded")

	records := st.ListPayouts("sess")
	require.Len(t, records, 1)
	assert.Equal(t, winner.ID, records[0].RegistrantID)
	assert.Equal(t, int64(1000), records[0].Amount)
	assert.Equal(t, models.PayoutSimulated, records[0].Status)
	assert.Equal(t, wheel.Settled, svc.Phase())
	assert.Equal(t, 1, gateway.sendCount())
}

func TestStartEmptyPool(t *testing.T) {
	st := store.New()
	svc := NewSpinService(st, &fakeGateway{succeed: true}, fastPolicy())

	_, err := svc.Start("empty", 1000)
	require.ErrorIs(t, err, wheel.ErrEmptyPool)
	assert.Equal(t, wheel.Idle, svc.Phase())
	assert.Equal(t, 0, st.SessionStats("empty").PayoutCount)
}

func TestStartInvalidAmount(t *testing.T) {
	st := store.New()
	_, err := st.RegisterParticipant("sess", "Alice", "addr")
	require.NoError(t, err)

	svc := NewSpinService(st, &fakeGateway{succeed: true}, fastPolicy())
	_, err = svc.Start("sess", 0)
	require.ErrorIs(t, err, store.ErrInvalidAmount)
}

func TestGatewayFailureRecordsFailedPayout(t *testing.T) {
	st := store.New()
	_, err := st.RegisterParticipant("sess", "Alice", "addr")
	require.NoError(t, err)

	svc := NewSpinService(st, &fakeGateway{succeed: false}, fastPolicy())
	_, err = svc.Start("sess", 500)
	require.NoError(t, err, "gateway health must not affect the selection")

	require.Eventually(t, func() bool {
		return st.SessionStats("sess").PayoutCount == 1
	}, time.Second, 5*time.Millisecond)

	stats := st.SessionStats("sess")
	assert.Equal(t, 1, stats.FailedCount)
	assert.Equal(t, 0, stats.CompletedCount)
}

func TestPayDirect(t *testing.T) {
	st := store.New()
	winner, err := st.RegisterParticipant("sess", "Alice", "alice@speed.app")
	require.NoError(t, err)

	t.Run("live gateway yields completed", func(t *testing.T) {
		svc := NewSpinService(st, &fakeGateway{succeed: true}, fastPolicy())
		record, result, err := svc.PayDirect("sess", winner.ID, 2000)
		require.NoError(t, err)
		assert.True(t, result.Success)
		assert.Equal(t, models.PayoutCompleted, record.Status)
		assert.Equal(t, "alice@speed.app", result.Recipient)
	})

	t.Run("simulated gateway yields simulated", func(t *testing.T) {
		svc := NewSpinService(st, &fakeGateway{succeed: true, simulate: true}, fastPolicy())
		record, _, err := svc.PayDirect("sess", winner.ID, 1000)
		require.NoError(t, err)
		assert.Equal(t, models.PayoutSimulated, record.Status)
	})

	t.Run("gateway failure yields failed record", func(t *testing.T) {
		svc := NewSpinService(st, &fakeGateway{succeed: false}, fastPolicy())
		record, result, err := svc.PayDirect("sess", winner.ID, 1000)
		require.NoError(t, err)
		assert.False(t, result.Success)
		assert.Equal(t, models.PayoutFailed, record.Status)
	})

	t.Run("unknown registrant", func(t *testing.T) {
		svc := NewSpinService(st, &fakeGateway{succeed: true}, fastPolicy())
		_, _, err := svc.PayDirect("sess", "nobody", 1000)
		require.ErrorIs(t, err, store.ErrNotFound)
	})

	t.Run("invalid amount", func(t *testing.T) {
		svc := NewSpinService(st, &fakeGateway{succeed: true}, fastPolicy())
		_, _, err := svc.PayDirect("sess", winner.ID, -1)
		require.ErrorIs(t, err, store.ErrInvalidAmount)
	})
}

func TestRestartReplacesSpin(t *testing.T) {
	st := store.New()
	_, err := st.RegisterParticipant("sess", "Alice", "addr")
	require.NoError(t, err)

	gateway := &fakeGateway{succeed: true, simulate: true}
	svc := NewSpinService(st, gateway, wheel.Policy{MinTurns: 5, MaxTurns: 8, Duration: 30 * time.Millisecond})

	_, err = svc.Start("sess", 1000)
	require.NoError(t, err)
	_, err = svc.Start("sess", 1000)
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		return st.SessionStats("sess").PayoutCount == 1
	}, time.Second, 5*time.Millisecond)

	// Let any stray timer fire before counting deliveries.
	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, 1, gateway.sendCount(), "cancelled spin must not pay")
	assert.Equal(t, 1, st.SessionStats("sess").PayoutCount)
}

func TestFailedRestartKeepsInflightPayout(t *testing.T) {
	st := store.New()
	winner, err := st.RegisterParticipant("session-a", "Alice", "alice@speed.app")
	require.NoError(t, err)

	gateway := &fakeGateway{succeed: true, simulate: true}
	svc := NewSpinService(st, gateway, wheel.Policy{MinTurns: 5, MaxTurns: 8, Duration: 50 * time.Millisecond})

	_, err = svc.Start("session-a", 1000)
	require.NoError(t, err)

	// A start for an empty session must fail without touching the
	// in-flight spin or its payout context.
	_, err = svc.Start("session-b", 500)
	require.ErrorIs(t, err, wheel.ErrEmptyPool)

	require.Eventually(t, func() bool {
		return st.SessionStats("session-a").PayoutCount == 1
	}, time.Second, 5*time.Millisecond, "in-flight spin never settled")

	records := st.ListPayouts("session-a")
	require.Len(t, records, 1)
	assert.Equal(t, winner.ID, records[0].RegistrantID)
	assert.Equal(t, int64(1000), records[0].Amount)
	assert.Equal(t, 0, st.SessionStats("session-b").PayoutCount)
}
