package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Detail is one (detail-name, selected-value) pair attached to a symptom or
// a medical history item.
type Detail struct {
	ID       int      `json:"id,omitempty"`
	Name     string   `json:"name"`
	Options  []string `json:"options,omitempty"`
	Selected string   `json:"selected"`
}

// Symptom is a reported symptom. Names are matched case-insensitively.
type Symptom struct {
	Name    string   `json:"name"`
	Details []Detail `json:"details,omitempty"`
}

// NormalizedName returns the lowercase, trimmed symptom name used for lookups.
func (s Symptom) NormalizedName() string {
	return NormalizeName(s.Name)
}

// NormalizeName lowercases and trims a symptom, analysis or disease name.
func NormalizeName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// ResultValue holds an analysis result that may arrive as a JSON string,
// number or boolean.
type ResultValue struct {
	raw     string
	number  float64
	numeric bool
	boolean *bool
}

// StringResult builds a ResultValue from a string.
func StringResult(s string) ResultValue {
	v := ResultValue{raw: s}
	if f, err := strconv.ParseFloat(strings.TrimSpace(s), 64); err == nil {
		v.number, v.numeric = f, true
	}
	return v
}

// NumberResult builds a ResultValue from a number.
func NumberResult(f float64) ResultValue {
	return ResultValue{raw: strconv.FormatFloat(f, 'f', -1, 64), number: f, numeric: true}
}

// BoolResult builds a ResultValue from a boolean.
func BoolResult(b bool) ResultValue {
	return ResultValue{raw: strconv.FormatBool(b), boolean: &b}
}

// Float returns the numeric value of the result. ok is false when the result
// cannot be read as a number.
func (r ResultValue) Float() (float64, bool) {
	return r.number, r.numeric
}

// String returns the textual form of the result.
func (r ResultValue) String() string {
	return r.raw
}

// IsZero reports whether no result was provided.
func (r ResultValue) IsZero() bool {
	return r.raw == "" && r.boolean == nil
}

func (r *ResultValue) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*r = ResultValue{}
		return nil
	}

	switch data[0] {
	case '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return fmt.Errorf("decode string result: %w", err)
		}
		*r = StringResult(s)
	case 't', 'f':
		var b bool
		if err := json.Unmarshal(data, &b); err != nil {
			return fmt.Errorf("decode boolean result: %w", err)
		}
		*r = BoolResult(b)
	default:
		var f float64
		if err := json.Unmarshal(data, &f); err != nil {
			return fmt.Errorf("decode numeric result: %w", err)
		}
		*r = NumberResult(f)
	}
	return nil
}

func (r ResultValue) MarshalJSON() ([]byte, error) {
	switch {
	case r.boolean != nil:
		return json.Marshal(*r.boolean)
	case r.IsZero():
		return []byte("null"), nil
	default:
		return json.Marshal(r.raw)
	}
}

// Analysis is a lab result. Photo is an opaque base64 payload only forwarded
// to the AI service.
type Analysis struct {
	Name       string      `json:"name"`
	Result     ResultValue `json:"result"`
	ResultType ResultType  `json:"resultType"`
	Unit       string      `json:"unit,omitempty"`
	Threshold  *float64    `json:"threshold,omitempty"`
	Photo      string      `json:"photo,omitempty"`
}

// NormalizedName returns the lowercase, trimmed analysis name.
func (a Analysis) NormalizedName() string {
	return NormalizeName(a.Name)
}

// MedicalHistoryItem is a past condition. Accepted but not scored.
type MedicalHistoryItem struct {
	Name    string   `json:"name"`
	Details []Detail `json:"details,omitempty"`
}

// FlexibleDate accepts either an integer epoch or an encoded date string.
type FlexibleDate struct {
	Epoch int64
	Text  string
}

func (d *FlexibleDate) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*d = FlexibleDate{}
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return fmt.Errorf("decode date: %w", err)
		}
		*d = FlexibleDate{Text: s}
		if n, err := strconv.ParseInt(s, 10, 64); err == nil {
			d.Epoch = n
		}
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("decode date: %w", err)
	}
	epoch, err := n.Int64()
	if err != nil {
		f, ferr := n.Float64()
		if ferr != nil {
			return fmt.Errorf("decode date: %w", err)
		}
		epoch = int64(f)
	}
	*d = FlexibleDate{Epoch: epoch, Text: n.String()}
	return nil
}

func (d FlexibleDate) MarshalJSON() ([]byte, error) {
	if d.Text != "" && d.Epoch == 0 {
		return json.Marshal(d.Text)
	}
	return json.Marshal(d.Epoch)
}

func (d FlexibleDate) String() string {
	if d.Text != "" {
		return d.Text
	}
	return strconv.FormatInt(d.Epoch, 10)
}

// RecentDisease is a disease the patient had recently. Accepted but not scored.
type RecentDisease struct {
	Name string       `json:"name"`
	Date FlexibleDate `json:"date"`
}

// PatientInfo carries optional demographic data forwarded to the AI service.
type PatientInfo struct {
	Name   string `json:"name,omitempty"`
	Age    *int   `json:"age,omitempty"`
	Gender string `json:"gender,omitempty"`
}

// PatientCase is the full request body shared by the diagnostic endpoints.
type PatientCase struct {
	Symptoms       []Symptom            `json:"symptoms"`
	Analyses       []Analysis           `json:"analyses"`
	MedicalHistory []MedicalHistoryItem `json:"medicalHistory"`
	RecentDiseases []RecentDisease      `json:"recentDiseases"`
	PatientInfo    *PatientInfo         `json:"patientInfo,omitempty"`
}
