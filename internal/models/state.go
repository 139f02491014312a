package models

// ResponseState is derived from which artifacts a response holds; it is never
// stored.
type ResponseState string

const (
	// StateCreated means no round has been logged yet.
	StateCreated ResponseState = "CREATED"
	// StateGenerating covers the generate, rate and optimize rounds.
	StateGenerating ResponseState = "GENERATING"
	// StateComplete means a terminal artifact sits beyond the round threshold.
	StateComplete ResponseState = "COMPLETE"
)

// InferState derives the lifecycle state of a response given the survey's
// image threshold.
func InferState(response Response, threshold int) ResponseState {
	images := len(response.GeneratedImageBatch)
	if images == 0 && len(response.PromptStrings) == 0 {
		return StateCreated
	}
	if images > threshold {
		return StateComplete
	}
	return StateGenerating
}
