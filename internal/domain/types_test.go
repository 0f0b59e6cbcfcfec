package domain

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResultTypeValidation(t *testing.T) {
	tests := []struct {
		name  string
		value ResultType
		valid bool
	}{
		{"Numeric", ResultNumeric, true},
		{"Boolean", ResultBoolean, true},
		{"String", ResultString, true},
		{"Unknown", ResultType("image"), false},
		{"Empty", ResultType(""), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.valid, tt.value.IsValid())
			if tt.valid {
				assert.NoError(t, tt.value.Validate())
			} else {
				assert.True(t, errors.Is(tt.value.Validate(), ErrInvalidResultType))
			}
		})
	}
}

func TestSeverityAndPriority(t *testing.T) {
	assert.True(t, SeverityHigh.IsValid())
	assert.False(t, Severity("critical").IsValid())
	assert.True(t, errors.Is(Severity("critical").Validate(), ErrInvalidSeverity))

	assert.True(t, PriorityLow.IsValid())
	assert.False(t, Priority("urgent").IsValid())
	assert.True(t, errors.Is(Priority("urgent").Validate(), ErrInvalidPriority))
}

func TestResultValue_UnmarshalJSON(t *testing.T) {
	tests := []struct {
		name      string
		input     string
		wantText  string
		wantFloat float64
		numeric   bool
	}{
		{"number", `12.5`, "12.5", 12.5, true},
		{"integer", `3800`, "3800", 3800, true},
		{"numeric string", `" 140 "`, " 140 ", 140, true},
		{"text", `"positif"`, "positif", 0, false},
		{"boolean", `true`, "true", 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var v ResultValue
			require.NoError(t, json.Unmarshal([]byte(tt.input), &v))
			assert.Equal(t, tt.wantText, v.String())
			f, ok := v.Float()
			assert.Equal(t, tt.numeric, ok)
			if ok {
				assert.InDelta(t, tt.wantFloat, f, 1e-9)
			}
		})
	}
}

func TestPatientCase_Decode(t *testing.T) {
	body := `{
		"symptoms": [{"name": " Fièvre ", "details": [{"id": 1, "name": "intensité", "options": ["faible", "forte"], "selected": "forte"}]}],
		"analyses": [{"name": "CRP", "result": "12", "resultType": "numeric", "unit": "mg/L", "threshold": 10}],
		"medicalHistory": [{"name": "Asthme", "details": []}],
		"recentDiseases": [{"name": "Grippe", "date": 1700000000}, {"name": "Angine", "date": "2024-03-01"}],
		"patientInfo": {"age": 34, "gender": "F"}
	}`

	var pc PatientCase
	require.NoError(t, json.Unmarshal([]byte(body), &pc))

	require.Len(t, pc.Symptoms, 1)
	assert.Equal(t, "fièvre", pc.Symptoms[0].NormalizedName())
	assert.Equal(t, "forte", pc.Symptoms[0].Details[0].Selected)

	require.Len(t, pc.Analyses, 1)
	assert.Equal(t, ResultNumeric, pc.Analyses[0].ResultType)
	require.NotNil(t, pc.Analyses[0].Threshold)
	assert.Equal(t, 10.0, *pc.Analyses[0].Threshold)

	require.Len(t, pc.RecentDiseases, 2)
	assert.Equal(t, int64(1700000000), pc.RecentDiseases[0].Date.Epoch)
	assert.Equal(t, "2024-03-01", pc.RecentDiseases[1].Date.String())

	require.NotNil(t, pc.PatientInfo)
	require.NotNil(t, pc.PatientInfo.Age)
	assert.Equal(t, 34, *pc.PatientInfo.Age)
}

func TestCompatibleResult(t *testing.T) {
	r := CompatibleResult()
	assert.True(t, r.Compatible)
	assert.NotNil(t, r.Warnings)
	assert.Empty(t, r.Warnings)
}
