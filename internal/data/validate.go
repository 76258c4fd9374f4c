// internal/data/validate.go
package data

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/go-playground/validator/v10"
)

// ErrValidation marks malformed submissions, rejected before anything is
// buffered. The caller must fix the payload and resubmit.
var ErrValidation = errors.New("validation failed")

var validate = validator.New()

// SubmitRequest is the tagged boundary record for a device submission.
// Parameter fields are pointers so a missing field is distinguishable
// from a legitimate zero value.
type SubmitRequest struct {
	FacilityID    string             `json:"facility_id" validate:"required"`
	Side          Side               `json:"side" validate:"required,oneof=inlet outlet"`
	DeviceID      string             `json:"device_id" validate:"required"`
	Parameters    *ParametersPayload `json:"parameters" validate:"required"`
	SensorMapping map[string]string  `json:"sensor_mapping,omitempty"`
}

// ParametersPayload carries the four required sensor values of one side.
type ParametersPayload struct {
	PH          *float64 `json:"ph" validate:"required,gte=0,lte=14"`
	TDS         *float64 `json:"tds" validate:"required,gte=0"`
	Turbidity   *float64 `json:"turbidity" validate:"required,gte=0"`
	Temperature *float64 `json:"temperature" validate:"required,gte=-20,lte=100"`
}

// ToParameters converts the validated payload into the internal value type.
func (p *ParametersPayload) ToParameters() Parameters {
	return Parameters{
		PH:          *p.PH,
		TDS:         *p.TDS,
		Turbidity:   *p.Turbidity,
		Temperature: *p.Temperature,
	}
}

// ParseSubmitRequest decodes and validates a submission body.
func ParseSubmitRequest(r io.Reader) (*SubmitRequest, error) {
	var req SubmitRequest
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		return nil, fmt.Errorf("%w: malformed JSON: %v", ErrValidation, err)
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}
	return &req, nil
}

// Validate runs struct-tag validation and reports the first offending field.
func (r *SubmitRequest) Validate() error {
	if err := validate.Struct(r); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			return fmt.Errorf("%w: field %q failed rule %q", ErrValidation, fe.Namespace(), fe.Tag())
		}
		return fmt.Errorf("%w: %v", ErrValidation, err)
	}
	return nil
}
