package isamurai

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

// JobID identifies a remote job. The API treats it as opaque.
type JobID string

// State is the raw status string reported by the status endpoint.
type State string

const (
	StatePending    State = "Pending"
	StateProcessing State = "Processing"
	StateDone       State = "Done"
	StateComplete   State = "complete"
	StateFailed     State = "Failed"
	StateFailedLow  State = "failed"
	StateCancelled  State = "Cancelled"
)

// Quality is the output resolution requested for a swap.
type Quality string

const (
	Quality480p  Quality = "480p"
	Quality720p  Quality = "720p"
	Quality1080p Quality = "1080p"
)

// DefaultQuality matches the server-side default.
const DefaultQuality = Quality720p

func (q Quality) valid() bool {
	switch q {
	case Quality480p, Quality720p, Quality1080p:
		return true
	}
	return false
}

// JobStatus is one observation of a job's progress.
type JobStatus struct {
	ID                 JobID    `json:"id,omitempty"`
	Status             State    `json:"status"`
	ProgressPercentage *float64 `json:"progress_percentage,omitempty"`
	OutputMediaURL     string   `json:"output_media_url,omitempty"`
	Error              string   `json:"error,omitempty"`

	// Raw is the full object as returned by the server.
	Raw json.RawMessage `json:"-"`
}

func (s *JobStatus) UnmarshalJSON(data []byte) error {
	var wire struct {
		ID                 flexString `json:"id"`
		Status             State      `json:"status"`
		ProgressPercentage flexFloat  `json:"progress_percentage"`
		OutputMediaURL     *string    `json:"output_media_url"`
		Error              *string    `json:"error"`
	}
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}

	*s = JobStatus{
		ID:                 JobID(wire.ID),
		Status:             wire.Status,
		ProgressPercentage: wire.ProgressPercentage.ptr(),
		Raw:                append(json.RawMessage(nil), data...),
	}
	if wire.OutputMediaURL != nil {
		s.OutputMediaURL = *wire.OutputMediaURL
	}
	if wire.Error != nil {
		s.Error = *wire.Error
	}
	return nil
}

// Progress returns the reported percentage, or 0 when the server omitted it.
func (s *JobStatus) Progress() float64 {
	if s == nil || s.ProgressPercentage == nil {
		return 0
	}
	return *s.ProgressPercentage
}

// Credits is the account balance returned by GetCredits.
type Credits struct {
	Credits float64 `json:"credits"`
	Plan    string  `json:"plan"`
}

func (c *Credits) UnmarshalJSON(data []byte) error {
	var wire struct {
		Credits flexFloat `json:"credits"`
		Plan    string    `json:"plan"`
	}
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}
	c.Credits = wire.Credits.value
	c.Plan = wire.Plan
	return nil
}

// flexString accepts a JSON string or number. Job ids come back as either
// depending on the endpoint.
type flexString string

func (f *flexString) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*f = ""
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = flexString(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("id must be a string or number: %w", err)
	}
	*f = flexString(n.String())
	return nil
}

// flexFloat accepts a JSON number, a numeric string or null.
type flexFloat struct {
	value float64
	set   bool
}

func (f *flexFloat) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*f = flexFloat{}
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		if s == "" {
			*f = flexFloat{}
			return nil
		}
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return fmt.Errorf("not a number: %q", s)
		}
		*f = flexFloat{value: v, set: true}
		return nil
	}
	var v float64
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*f = flexFloat{value: v, set: true}
	return nil
}

func (f flexFloat) ptr() *float64 {
	if !f.set {
		return nil
	}
	v := f.value
	return &v
}
