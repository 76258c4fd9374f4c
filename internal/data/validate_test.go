// internal/data/validate_test.go
package data

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const validBody = `{
	"facility_id": "fac-1",
	"side": "inlet",
	"device_id": "dev-1",
	"parameters": {"ph": 7.2, "tds": 450, "turbidity": 25, "temperature": 28},
	"sensor_mapping": {"ph": "probe-a"}
}`

func TestParseSubmitRequestValid(t *testing.T) {
	req, err := ParseSubmitRequest(strings.NewReader(validBody))
	require.NoError(t, err)

	assert.Equal(t, "fac-1", req.FacilityID)
	assert.Equal(t, SideInlet, req.Side)
	assert.Equal(t, "probe-a", req.SensorMapping["ph"])

	p := req.Parameters.ToParameters()
	assert.Equal(t, Parameters{PH: 7.2, TDS: 450, Turbidity: 25, Temperature: 28}, p)
}

func TestParseSubmitRequestZeroValuesAreValid(t *testing.T) {
	body := `{"facility_id":"fac-1","side":"outlet","device_id":"d","parameters":{"ph":0,"tds":0,"turbidity":0,"temperature":0}}`
	req, err := ParseSubmitRequest(strings.NewReader(body))
	require.NoError(t, err)
	assert.Equal(t, 0.0, *req.Parameters.PH)
}

func TestParseSubmitRequestRejections(t *testing.T) {
	cases := []struct {
		name string
		body string
	}{
		{"malformed json", `{"facility_id": `},
		{"unknown field", `{"facility_id":"f","side":"inlet","device_id":"d","parameters":{"ph":7,"tds":1,"turbidity":1,"temperature":1},"nope":1}`},
		{"missing facility", `{"side":"inlet","device_id":"d","parameters":{"ph":7,"tds":1,"turbidity":1,"temperature":1}}`},
		{"invalid side", `{"facility_id":"f","side":"sideways","device_id":"d","parameters":{"ph":7,"tds":1,"turbidity":1,"temperature":1}}`},
		{"missing parameters", `{"facility_id":"f","side":"inlet","device_id":"d"}`},
		{"missing ph", `{"facility_id":"f","side":"inlet","device_id":"d","parameters":{"tds":1,"turbidity":1,"temperature":1}}`},
		{"ph out of range", `{"facility_id":"f","side":"inlet","device_id":"d","parameters":{"ph":15,"tds":1,"turbidity":1,"temperature":1}}`},
		{"negative tds", `{"facility_id":"f","side":"inlet","device_id":"d","parameters":{"ph":7,"tds":-1,"turbidity":1,"temperature":1}}`},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ParseSubmitRequest(strings.NewReader(tc.body))
			require.Error(t, err)
			assert.Truef(t, errors.Is(err, ErrValidation), "want ErrValidation, got %v", err)
		})
	}
}

func TestSideHelpers(t *testing.T) {
	assert.True(t, SideInlet.Valid())
	assert.True(t, SideOutlet.Valid())
	assert.False(t, Side("middle").Valid())
	assert.Equal(t, SideOutlet, SideInlet.Opposite())
	assert.Equal(t, SideInlet, SideOutlet.Opposite())
}

func TestSeverityAtLeast(t *testing.T) {
	assert.True(t, SeverityAtLeast(SeverityCritical, SeverityHigh))
	assert.True(t, SeverityAtLeast(SeverityHigh, SeverityHigh))
	assert.False(t, SeverityAtLeast(SeverityMedium, SeverityHigh))
	assert.False(t, SeverityAtLeast("unknown", SeverityLow))
}
