// stage.go defines the tagged result every pipeline stage returns.
package processor

// Stage names, also used as metric labels.
const (
	StageLifecycle = "lifecycle"
	StageAdmission = "admission"
	StageState     = "state"
	StageFetch     = "fetch"
	StageRecognize = "recognize"
	StageDispatch  = "dispatch"
)

// Skip reasons.
const (
	ReasonFirstMessage        = "first_message"
	ReasonZoneCameraMismatch  = "zone_camera_mismatch"
	ReasonLabelNotAllowed     = "label_not_allowed"
	ReasonRedundantRefinement = "redundant_refinement"
	ReasonAlreadyProcessed    = "already_processed"
	ReasonNoLicensePlate      = "no_license_plate"
	ReasonPlateScoreTooLow    = "license_plate_score_too_low"
	ReasonEventEnded          = "event_ended"
	ReasonBudgetExhausted     = "attempts_exhausted"
	ReasonSnapshotNotReady    = "snapshot_not_ready"
	ReasonNoText              = "no_text"
	ReasonScoreTooLow         = "score_too_low"
)

// Verdict tags a StageResult.
type Verdict int

const (
	Proceed Verdict = iota
	Skip
	Fail
)

func (v Verdict) String() string {
	switch v {
	case Proceed:
		return "proceed"
	case Skip:
		return "skip"
	case Fail:
		return "fail"
	default:
		return "unknown"
	}
}

// StageResult is proceed, skip(reason) or fail(err).
type StageResult struct {
	Verdict Verdict
	Reason  string
	Err     error
}

func proceed() StageResult { return StageResult{Verdict: Proceed} }

func skip(reason string) StageResult { return StageResult{Verdict: Skip, Reason: reason} }

func fail(err error) StageResult { return StageResult{Verdict: Fail, Err: err} }

// Result is the final state of one message: the stage it stopped at (or
// StageDispatch when it ran to completion) and that stage's result.
type Result struct {
	Stage string
	StageResult
	Outcome *Outcome
}
