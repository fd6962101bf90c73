package observer

import (
	"context"
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/stat/distuv"
)

// #region transfer
// Transfer maps a grid level to the linear signal strength added to the target interval.
type Transfer func(level float64) float64

// DecibelToLinear treats levels as dB: 10^(level/20).
func DecibelToLinear(level float64) float64 {
	return math.Pow(10, level/20)
}

// Identity uses the level directly as signal strength.
func Identity(level float64) float64 { return level }

// #endregion transfer

// #region observer
// DefaultNoiseSD is the per-interval noise standard deviation.
var DefaultNoiseSD = math.Sqrt2

// Observer is a simulated two-interval forced-choice subject. The target
// interval draws N(0, sd) plus the transferred signal, the null interval draws
// N(0, sd), and the response is correct when the target exceeds the null.
type Observer struct {
	sd       float64
	rng      *rand.Rand
	transfer Transfer
	trials   int
}

// New returns an observer with noise sd and a PCG source seeded from seed,
// so two observers built with the same arguments respond identically.
func New(sd float64, seed uint64, transfer Transfer) *Observer {
	if transfer == nil {
		transfer = DecibelToLinear
	}
	if !(sd > 0) {
		sd = DefaultNoiseSD
	}
	return &Observer{
		sd:       sd,
		rng:      rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)),
		transfer: transfer,
	}
}

// Respond simulates one trial at level.
func (o *Observer) Respond(ctx context.Context, level float64) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	o.trials++
	target := o.rng.NormFloat64()*o.sd + o.transfer(level)
	null := o.rng.NormFloat64() * o.sd
	return target > null, nil
}

// Trials returns how many responses have been simulated.
func (o *Observer) Trials() int { return o.trials }

// PCorrect is the analytic probability of a correct response at level:
// Phi(signal / (sd*sqrt(2))).
func (o *Observer) PCorrect(level float64) float64 {
	diff := distuv.Normal{Mu: 0, Sigma: o.sd * math.Sqrt2}
	return diff.CDF(o.transfer(level))
}

// #endregion observer
