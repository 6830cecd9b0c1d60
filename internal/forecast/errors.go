package forecast

import (
	"fmt"

	"supermart-dashboard/internal/models"
)

// ModelFitError reports a model that could not be fitted: too little
// history, non-finite inputs, or an optimizer that did not converge.
type ModelFitError struct {
	Model  string
	Reason string
	Err    error
}

func (e *ModelFitError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("fit %s: %s: %v", e.Model, e.Reason, e.Err)
	}
	return fmt.Sprintf("fit %s: %s", e.Model, e.Reason)
}

func (e *ModelFitError) Unwrap() error {
	return e.Err
}

// UnknownSegmentError reports a forecast request for a (category,
// sub-category) pair that never appeared in training data.
type UnknownSegmentError struct {
	Segment models.Segment
}

func (e *UnknownSegmentError) Error() string {
	return fmt.Sprintf("unknown segment %q / %q", e.Segment.Category, e.Segment.SubCategory)
}
