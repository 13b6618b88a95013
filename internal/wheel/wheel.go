package wheel

import (
	"errors"
	"math"
	"math/rand"
	"sync"
	"time"

	"zapwheel/internal/models"
)

// ErrEmptyPool is returned when a selection is requested against a
// session with no registrants.
var ErrEmptyPool = errors.New("selection pool is empty")

// Phase is the engine's position in its selection cycle.
type Phase int

const (
	Idle Phase = iota
	Spinning
	Settled
)

func (p Phase) String() string {
	switch p {
	case Spinning:
		return "spinning"
	case Settled:
		return "settled"
	default:
		return "idle"
	}
}

// Policy sets the spin parameters: the closed interval of full turns
// the rotation is drawn from, and the animation duration.
type Policy struct {
	MinTurns int
	MaxTurns int
	Duration time.Duration
}

// DefaultPolicy matches the broadcast wheel: 5 to 8 full turns over 3s.
func DefaultPolicy() Policy {
	return Policy{MinTurns: 5, MaxTurns: 8, Duration: 3 * time.Second}
}

// Spin describes one in-flight selection: the randomly drawn total
// rotation in degrees and the fixed duration of the animation.
type Spin struct {
	Rotation  float64       `json:"rotation"`
	Duration  time.Duration `json:"-"`
	StartedAt time.Time     `json:"started_at"`
	PoolSize  int           `json:"pool_size"`
}

// Outcome is the settled result of a spin.
type Outcome struct {
	Winner     models.Registrant
	Index      int
	FinalAngle float64
	Spin       Spin
}

// Engine turns a continuous spin animation into one discrete winner.
//
// The cycle is Idle -> Spinning -> Settled. Starting a new selection
// while one is spinning cancels the in-flight one; it is a restart, not
// an error. The pool is snapshotted at start, so a registrant removed
// mid-spin cannot change the segment count underfoot.
type Engine struct {
	mu        sync.Mutex
	phase     Phase
	policy    Policy
	rng       *rand.Rand
	timer     *time.Timer
	pool      []models.Registrant
	current   Spin
	onSettled func(Outcome)
}

// NewEngine creates an idle engine.
func NewEngine(policy Policy) *Engine {
	if policy.MinTurns <= 0 || policy.MaxTurns < policy.MinTurns || policy.Duration <= 0 {
		policy = DefaultPolicy()
	}
	return &Engine{
		phase:  Idle,
		policy: policy,
		rng:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Start begins a new selection against a snapshot of pool. The drawn
// rotation magnitude is the only randomness source; everything after it
// is deterministic. onSettled, if non-nil, is invoked outside the
// engine's lock when this spin settles; it belongs to this spin alone,
// so a restart can never deliver an old spin's outcome through a new
// spin's callback. A failed start changes nothing, including any spin
// already in flight.
func (e *Engine) Start(pool []models.Registrant, onSettled func(Outcome)) (Spin, error) {
	if len(pool) == 0 {
		return Spin{}, ErrEmptyPool
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.timer != nil {
		e.timer.Stop()
		e.timer = nil
	}

	snapshot := make([]models.Registrant, len(pool))
	copy(snapshot, pool)

	turns := float64(e.policy.MinTurns) + e.rng.Float64()*float64(e.policy.MaxTurns-e.policy.MinTurns)
	spin := Spin{
		Rotation:  turns * 360,
		Duration:  e.policy.Duration,
		StartedAt: time.Now(),
		PoolSize:  len(snapshot),
	}

	e.pool = snapshot
	e.current = spin
	e.phase = Spinning
	e.onSettled = onSettled
	e.timer = time.AfterFunc(spin.Duration, func() { e.settle(spin) })
	return spin, nil
}

// Cancel aborts any in-flight spin and returns the engine to Idle.
func (e *Engine) Cancel() {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.timer != nil {
		e.timer.Stop()
		e.timer = nil
	}
	e.phase = Idle
	e.pool = nil
	e.onSettled = nil
}

// Phase returns the engine's current phase.
func (e *Engine) Phase() Phase {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.phase
}

func (e *Engine) settle(spin Spin) {
	e.mu.Lock()
	if e.phase != Spinning || e.current != spin {
		// A newer spin replaced this one before its timer fired.
		e.mu.Unlock()
		return
	}
	outcome := settleOutcome(spin, e.pool)
	e.phase = Settled
	e.timer = nil
	cb := e.onSettled
	e.mu.Unlock()

	if cb != nil {
		cb(outcome)
	}
}

// settleOutcome replays the winner formula for a finished spin against
// the pool snapshot it started with.
func settleOutcome(spin Spin, pool []models.Registrant) Outcome {
	finalAngle := math.Mod(spin.Rotation, 360)
	index := WinnerIndex(finalAngle, len(pool))
	return Outcome{
		Winner:     pool[index],
		Index:      index,
		FinalAngle: finalAngle,
		Spin:       spin,
	}
}

// Angle returns the wheel's orientation at elapsed time t of a spin
// with the given total rotation and duration, following a cubic
// ease-out: rotation * (1 - (1 - t/d)^3). Pure in its inputs, so
// repeated partial evaluations cannot accumulate drift.
func Angle(rotation float64, d, t time.Duration) float64 {
	if t <= 0 {
		return 0
	}
	if t >= d {
		return rotation
	}
	progress := float64(t) / float64(d)
	return rotation * (1 - math.Pow(1-progress, 3))
}

// WinnerIndex maps a settled angle to a segment index for a pool of n
// equal segments laid out in registration order from twelve o'clock.
// The pointer is fixed while the wheel rotates forward, so the winning
// segment is counted backwards from the settled angle.
func WinnerIndex(finalAngle float64, n int) int {
	normalized := math.Mod(math.Mod(finalAngle, 360)+360, 360)
	segment := 360 / float64(n)
	return int(math.Floor((360-normalized)/segment)) % n
}
