package jobs

import (
	"fmt"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks a fetched posting before it enters the pipeline.
func (j RawJob) Validate() error {
	if err := validate.Struct(j); err != nil {
		return fmt.Errorf("invalid job %s/%s: %w", j.Platform, j.ExternalID, err)
	}
	return nil
}

// ValidOnly drops postings that fail validation and returns the rejected count.
func ValidOnly(in []RawJob) ([]RawJob, int) {
	out := in[:0:0]
	dropped := 0
	for _, j := range in {
		if j.Validate() != nil {
			dropped++
			continue
		}
		out = append(out, j)
	}
	return out, dropped
}
