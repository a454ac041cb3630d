package pipeline

import (
	"errors"

	dataops "github.com/alekLukanen/CampaignETL/dataOps"
)

var (
	ErrSourceUnavailable = dataops.ErrSourceUnavailable
	ErrSinkUnavailable   = dataops.ErrSinkUnavailable
	ErrHeaderMismatch    = dataops.ErrHeaderMismatch
	ErrRunInProgress     = errors.New("run in progress")
	ErrInvalidTransition = errors.New("invalid state transition")
	ErrPipelineOptions   = errors.New("pipeline options invalid")
)
