package live

import (
	"encoding/json"
	"fmt"

	"github.com/goliatone/go-inlineform/pkg/values"
)

// Event announces the current state of a record.
type Event struct {
	Record string      `json:"record"`
	Values values.Tree `json:"values"`
}

func encodeEvent(ev Event) ([]byte, error) {
	data, err := json.Marshal(ev)
	if err != nil {
		return nil, fmt.Errorf("live: encode event: %w", err)
	}
	return data, nil
}

func decodeEvent(data []byte) (Event, error) {
	var ev Event
	if err := json.Unmarshal(data, &ev); err != nil {
		return Event{}, fmt.Errorf("live: decode event: %w", err)
	}
	if ev.Values == nil {
		ev.Values = values.Tree{}
	}
	return ev, nil
}
