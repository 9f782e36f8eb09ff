package signal

import (
	"errors"
	"math"
)

// ErrScorerUnavailable is returned by a Scorer that cannot produce a
// confidence value. The engine reacts per spec §6: "candidate rejected with
// reason SCORER_UNAVAILABLE; ghost experience still recorded."
var ErrScorerUnavailable = errors.New("scorer_unavailable")

// Scorer is the confidence-provider seam spec §6 and §9 define: the
// learning model is an external collaborator. The engine is agnostic to
// whether it is backed by a neural model, a heuristic, or a constant.
// Contract: stateless with respect to the core, and deterministic given
// identical input when Exploration is false.
type Scorer interface {
	Score(FeatureVector) (confidence float64, exploration bool, err error)
}

// HeuristicScorer is a deterministic, dependency-free fallback used for
// dry_run and tests. Grounded on the teacher's AIMicroModel (model.go): a
// tiny logistic-style combination of hand-picked features, generalized
// behind the Scorer interface instead of being hard-wired into the
// decision path the way the teacher's decide() calls m.predict() directly.
type HeuristicScorer struct {
	// Weights mirror the teacher's AIMicroModel.W ordering conceptually:
	// a small set of normalized features combined linearly then squashed.
	WeightRSI      float64
	WeightVWAPDist float64
	WeightTrend    float64
	Bias           float64
}

// NewHeuristicScorer returns a HeuristicScorer with sane default weights.
func NewHeuristicScorer() *HeuristicScorer {
	return &HeuristicScorer{
		WeightRSI:      0.02,
		WeightVWAPDist: 0.15,
		WeightTrend:    2.0,
		Bias:           0,
	}
}

// Score implements Scorer deterministically; it never reports exploration
// (that is the live exploration-rate scorer's job, see ExplorationScorer).
func (h *HeuristicScorer) Score(f FeatureVector) (float64, bool, error) {
	z := h.Bias +
		h.WeightRSI*(f.RSI-50) +
		h.WeightVWAPDist*f.VWAPDistanceSigma +
		h.WeightTrend*f.TrendStrength
	return sigmoid(z), false, nil
}

// sigmoid matches the teacher's own sigmoid in model.go: 1/(1+e^-x) with
// simple clamping for numerical stability.
func sigmoid(x float64) float64 {
	if x > 20 {
		return 1
	}
	if x < -20 {
		return 0
	}
	return 1 / (1 + math.Exp(-x))
}

// ExplorationScorer wraps a base Scorer and injects exploration decisions
// at explorationRate, per spec §6's exploration_rate knob and the
// Exploration contract in §6: "is_exploration=true ... sizing is forced to
// 1 contract." rng is injected so behavior is reproducible in backtests.
type ExplorationScorer struct {
	Base            Scorer
	ExplorationRate float64
	RNG             func() float64 // returns a uniform [0,1) draw
}

// Score delegates to Base for confidence, then independently decides
// exploration via RNG, matching spec §6's "stateless wrt the core" scorer
// contract (the exploration decision doesn't change the base confidence).
func (e *ExplorationScorer) Score(f FeatureVector) (float64, bool, error) {
	conf, _, err := e.Base.Score(f)
	if err != nil {
		return 0, false, err
	}
	explore := false
	if e.RNG != nil && e.ExplorationRate > 0 {
		explore = e.RNG() < e.ExplorationRate
	}
	return conf, explore, nil
}
