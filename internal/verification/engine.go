package verification

import (
	"fmt"
	"time"
)

const (
	// HighConfidence short-circuits the blend: an adapter at or above it is trusted as is.
	HighConfidence = 0.8
	// BlendVerifiedThreshold decides the verified flag of a blended result.
	BlendVerifiedThreshold = 0.6

	automatedWeight = 0.6
	manualWeight    = 0.4
)

// Engine dispatches submissions to the adapter for their game type.
type Engine struct {
	now func() time.Time
}

func NewEngine() *Engine {
	return &Engine{now: time.Now}
}

func adapterFor(gameType GameType) (adapter, error) {
	switch gameType {
	case GameSC2:
		return verifySC2, nil
	case GameAOE2:
		return verifyAOE2, nil
	case GameFAF:
		return verifyFAF, nil
	case GameManual:
		return verifyManual, nil
	default:
		return nil, fmt.Errorf("unsupported game type %q", gameType)
	}
}

// Verify never fails. A primary adapter error, or an unknown game type,
// degrades to the manual-review result; a weak automated score is blended
// with it.
func (e *Engine) Verify(gameType GameType, data MatchData, proofs []ProofFile) Result {
	if data == nil {
		data = MatchData{}
	}

	manual, _ := verifyManual(data, proofs)
	manual.Timestamp = e.now()

	primaryFn, err := adapterFor(gameType)
	if err != nil {
		return downgrade(manual, err)
	}
	primary, err := primaryFn(data, proofs)
	if err != nil {
		return downgrade(manual, err)
	}
	primary.Timestamp = manual.Timestamp

	if primary.Confidence >= HighConfidence {
		return primary
	}

	confidence := finalize(primary.Confidence*automatedWeight + manual.Confidence*manualWeight)
	return Result{
		Verified:   confidence >= BlendVerifiedThreshold,
		Confidence: confidence,
		Method:     primary.Method + "+manual",
		Details: map[string]any{
			"automated": primary.Details,
			"manual":    manual.Details,
		},
		Downgraded: true,
		Timestamp:  primary.Timestamp,
	}
}

func downgrade(manual Result, cause error) Result {
	manual.Downgraded = true
	manual.FallbackReason = cause.Error()
	return manual
}
