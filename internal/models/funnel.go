// internal/models/funnel.go
package models

import "encoding/json"

// MaxQuestions is the question ceiling of a funnel. The player only runs
// funnels holding exactly this many.
const MaxQuestions = 6

// MaxAnswers is the number of answer slots of a question.
const MaxAnswers = 4

// Funnel is the aggregate root: a named quiz plus redirect configuration.
type Funnel struct {
	ID   string     `json:"id"`
	Name string     `json:"name"`
	Data FunnelData `json:"data"`
}

// FunnelData is the editable payload of a funnel.
type FunnelData struct {
	Questions         []Question `json:"questions"`
	FinalRedirectLink string     `json:"finalRedirectLink"`
	Tracking          string     `json:"tracking"`
	ConversionGoal    string     `json:"conversionGoal"`
	PrimaryColor      string     `json:"primaryColor"`
	ButtonColor       string     `json:"buttonColor"`
	BackgroundColor   string     `json:"backgroundColor"`
	TextColor         string     `json:"textColor"`
}

// DefaultFunnelData returns the data of a freshly created funnel.
func DefaultFunnelData() FunnelData {
	return FunnelData{
		Questions:         []Question{},
		FinalRedirectLink: "",
		Tracking:          "",
		ConversionGoal:    "Product Purchase",
		PrimaryColor:      "#007bff",
		ButtonColor:       "#28a745",
		BackgroundColor:   "#f8f9fa",
		TextColor:         "#333333",
	}
}

// MergeFunnelData decodes a stored data document on top of the defaults, so
// every field absent from raw keeps its default value.
func MergeFunnelData(raw []byte) (FunnelData, error) {
	data := DefaultFunnelData()
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &data); err != nil {
			return DefaultFunnelData(), err
		}
	}
	if data.Questions == nil {
		data.Questions = []Question{}
	}
	return data, nil
}

// Clone returns a deep copy.
func (d FunnelData) Clone() FunnelData {
	out := d
	out.Questions = make([]Question, len(d.Questions))
	for i, q := range d.Questions {
		out.Questions[i] = q.Clone()
	}
	return out
}
