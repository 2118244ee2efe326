package evm

// GasManager tracks gas consumption for one execution frame. It is a pure
// counter over a fixed budget: it never enforces the budget itself, and
// GasLeft may go negative when charges exceed it. Exhaustion detection is
// the responsibility of the component issuing the charges — clamping the
// negative value here would hide over-charge bugs from the caller.
//
// A GasManager is exclusively owned by its frame and is not safe for
// concurrent use.
type GasManager struct {
	budget int64
	cost   int64
	last   int64
}

// NewGasManager returns a gas counter over the given fixed budget.
func NewGasManager(budget int64) *GasManager {
	return &GasManager{budget: budget}
}

// Add charges the given amount and records it as the most recent charge.
func (g *GasManager) Add(cost int64) {
	g.cost += cost
	g.last = cost
}

// GasLeft returns budget minus cumulative cost. The result is negative if
// the frame was over-charged.
func (g *GasManager) GasLeft() int64 {
	return g.budget - g.cost
}

// LastCost returns the most recent single charge. Re-pricing logic such as
// SSTORE refund schedules uses it to undo or adjust the previous charge.
func (g *GasManager) LastCost() int64 {
	return g.last
}

// Budget returns the fixed budget the manager was constructed with.
func (g *GasManager) Budget() int64 {
	return g.budget
}
