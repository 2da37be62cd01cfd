package bridge

import (
	"encoding/json"

	"github.com/thruflo/turnlink/internal/route"
)

// Message is the payload shown on the device for one step.
type Message struct {
	Index        int            `json:"index"`
	Instruction  string         `json:"instruction"`
	DistanceText string         `json:"distance_text"`
	Maneuver     route.Maneuver `json:"maneuver"`
}

// NewMessage builds the device message for step index.
func NewMessage(index int, step route.Step) Message {
	return Message{
		Index:        index,
		Instruction:  step.Instruction,
		DistanceText: route.FormatDistance(step.Distance),
		Maneuver:     route.Classify(step.Instruction),
	}
}

// Marshal encodes m as compact JSON.
func (m Message) Marshal() ([]byte, error) {
	return json.Marshal(m)
}
