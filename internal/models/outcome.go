package models

// Labels and advisory text used by degraded results. Clients match on these
// strings, so they must not change.
const (
	LabelModelNotTrained  = "Model not trained"
	LabelPredictionFailed = "Error in prediction"

	AdvisoryModelNotTrained = "Error: Model not trained. Please train the model first."
	advisoryErrorPrefix     = "Error: "
)

// OutcomeKind tags an Outcome as a real prediction or a degraded stand-in
type OutcomeKind int

const (
	OutcomeSuccess OutcomeKind = iota
	OutcomeDegraded
)

func (k OutcomeKind) String() string {
	if k == OutcomeDegraded {
		return "degraded"
	}
	return "ok"
}

// DegradeReason says why an outcome is degraded
type DegradeReason string

const (
	ReasonNone               DegradeReason = ""
	ReasonModelUnavailable   DegradeReason = "model_unavailable"
	ReasonComputationFailure DegradeReason = "computation_failure"
)

// Outcome is the tagged result of a recommendation. Result is always
// well-formed, so a boundary can render it without looking at Kind.
type Outcome struct {
	Kind   OutcomeKind
	Result PredictionResult
	Reason DegradeReason
	Err    error

	// Cached is set when Result came from the result cache
	Cached bool
	// ID is the history record ID, empty when history is disabled or the write failed
	ID string
}

// OK reports whether the outcome is a real prediction
func (o Outcome) OK() bool {
	return o.Kind == OutcomeSuccess
}

// Succeeded wraps a computed result
func Succeeded(result PredictionResult) Outcome {
	return Outcome{Kind: OutcomeSuccess, Result: result}
}

// ModelNotTrained is the outcome when no model artifact is loaded
func ModelNotTrained(err error) Outcome {
	return Outcome{
		Kind:   OutcomeDegraded,
		Reason: ReasonModelUnavailable,
		Err:    err,
		Result: PredictionResult{
			Predictions:               []CropPrediction{{Crop: LabelModelNotTrained, Confidence: 0}},
			SoilHealthScore:           0,
			AdditionalRecommendations: AdvisoryModelNotTrained,
		},
	}
}

// PredictionFailed is the outcome when computing a prediction failed.
// description is shown to the caller after "Error: ".
func PredictionFailed(err error, description string) Outcome {
	return Outcome{
		Kind:   OutcomeDegraded,
		Reason: ReasonComputationFailure,
		Err:    err,
		Result: PredictionResult{
			Predictions:               []CropPrediction{{Crop: LabelPredictionFailed, Confidence: 0}},
			SoilHealthScore:           0,
			AdditionalRecommendations: advisoryErrorPrefix + description,
		},
	}
}
