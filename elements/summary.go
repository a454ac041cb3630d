package elements

type RunStatus string

const (
	StatusSuccess RunStatus = "success"
	StatusNoInput RunStatus = "no-input"
)

type OutputMode string

const (
	// one output object for the whole run
	OutputModeSingle OutputMode = "single"
	// one output object per batch, named with a 1-based part index
	OutputModeMulti OutputMode = "multi"
)

type ProcessingSummary struct {
	RunId            string     `json:"run_id"`
	Status           RunStatus  `json:"status"`
	SourceKey        string     `json:"source_key,omitempty"`
	Mode             OutputMode `json:"mode,omitempty"`
	ProcessedRecords int64      `json:"processed_records"`
	DroppedRecords   int64      `json:"dropped_records"`
	Parts            int        `json:"parts"`
	OutputKeys       []string   `json:"output_keys,omitempty"`
}

func NoInputSummary(runId string) *ProcessingSummary {
	return &ProcessingSummary{
		RunId:  runId,
		Status: StatusNoInput,
	}
}

// InvocationResult is what the caller of a run sees.
type InvocationResult struct {
	Status           RunStatus `json:"status"`
	ProcessedRecords *int64    `json:"processed_records,omitempty"`
	Parts            *int      `json:"parts,omitempty"`
}

func (obj *ProcessingSummary) Result() InvocationResult {
	result := InvocationResult{Status: obj.Status}
	if obj.Status == StatusNoInput {
		return result
	}

	processed := obj.ProcessedRecords
	result.ProcessedRecords = &processed
	if obj.Mode == OutputModeMulti {
		parts := obj.Parts
		result.Parts = &parts
	}
	return result
}
