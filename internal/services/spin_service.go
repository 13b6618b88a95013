package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/logger"

	"zapwheel/internal/models"
	"zapwheel/internal/store"
	"zapwheel/internal/wheel"
	"zapwheel/pkg/speedapi"
)

// Gateway is the external payment collaborator used to deliver
// winnings. speedapi.Client satisfies it.
type Gateway interface {
	Send(ctx context.Context, recipient string, amount int64, description string) speedapi.PaymentResult
}

const gatewayTimeout = 15 * time.Second

// SpinService drives a full selection: snapshot the session's pool,
// spin the wheel, and when it settles pay the winner and record the
// outcome. The gateway call happens in the settle callback, outside
// any store lock.
type SpinService struct {
	store   *store.Store
	gateway Gateway
	engine  *wheel.Engine
}

// NewSpinService wires a store and gateway to a fresh wheel engine.
func NewSpinService(st *store.Store, gateway Gateway, policy wheel.Policy) *SpinService {
	return &SpinService{
		store:   st,
		gateway: gateway,
		engine:  wheel.NewEngine(policy),
	}
}

// Start begins a selection against the session's current pool and
// returns the spin parameters the caller animates with. Restarting
// while a spin is in flight cancels the old one; a rejected restart
// leaves the in-flight one untouched. The session and amount are bound
// to the spin itself, so the settle path pays into the session the spin
// was started for no matter what Start calls follow.
func (s *SpinService) Start(sessionID string, amount int64) (wheel.Spin, error) {
	if amount <= 0 {
		return wheel.Spin{}, fmt.Errorf("payout amount %d: %w", amount, store.ErrInvalidAmount)
	}

	s.store.EnsureSession(sessionID, "")
	pool := s.store.ListParticipants(sessionID)

	spin, err := s.engine.Start(pool, func(outcome wheel.Outcome) {
		s.settled(sessionID, amount, outcome)
	})
	if err != nil {
		return wheel.Spin{}, err
	}
	logger.Infof("spin started for session %s: %.1f degrees over %s, %d registrants",
		sessionID, spin.Rotation, spin.Duration, spin.PoolSize)
	return spin, nil
}

// PayDirect pays a caller-chosen registrant without driving the engine.
// This is the admin path where the host's page computed the winner.
func (s *SpinService) PayDirect(sessionID, registrantID string, amount int64) (models.PayoutRecord, speedapi.PaymentResult, error) {
	if amount <= 0 {
		return models.PayoutRecord{}, speedapi.PaymentResult{}, fmt.Errorf("payout amount %d: %w", amount, store.ErrInvalidAmount)
	}

	s.store.EnsureSession(sessionID, "")
	winner, err := s.store.GetParticipant(registrantID)
	if err != nil {
		return models.PayoutRecord{}, speedapi.PaymentResult{}, err
	}

	record, result := s.deliver(sessionID, winner, amount)
	return record, result, nil
}

// Phase exposes the engine's current phase.
func (s *SpinService) Phase() wheel.Phase {
	return s.engine.Phase()
}

func (s *SpinService) settled(sessionID string, amount int64, outcome wheel.Outcome) {
	logger.Infof("wheel settled at %.1f degrees: winner %s (index %d)",
		outcome.FinalAngle, outcome.Winner.Name, outcome.Index)
	s.deliver(sessionID, outcome.Winner, amount)
}

// deliver sends the payment and records the outcome. Gateway failure is
// never an error here; it becomes a failed payout record.
func (s *SpinService) deliver(sessionID string, winner models.Registrant, amount int64) (models.PayoutRecord, speedapi.PaymentResult) {
	ctx, cancel := context.WithTimeout(context.Background(), gatewayTimeout)
	defer cancel()

	result := s.gateway.Send(ctx, winner.PayoutAddress, amount,
		fmt.Sprintf("Stream wheel win - %s", winner.Name))

	status := models.PayoutFailed
	if result.Success {
		if result.Simulated {
			status = models.PayoutSimulated
		} else {
			status = models.PayoutCompleted
		}
	}

	record, err := s.store.RecordPayout(sessionID, winner.ID, amount, status)
	if err != nil {
		logger.Errorf("failed to record payout for session %s: %v", sessionID, err)
		return models.PayoutRecord{}, result
	}
	return record, result
}
