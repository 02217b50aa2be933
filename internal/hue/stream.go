package hue

import (
	"encoding/json"
	"fmt"
	"strings"
)

// DataPrefix marks event stream lines that carry a JSON payload.
const DataPrefix = "data: "

// ParseLine decodes one event stream line. ok is false for lines without
// the data marker (comments, ids, blank keep-alives).
func ParseLine(line string) (events []Event, ok bool, err error) {
	payload, found := strings.CutPrefix(strings.TrimRight(line, "\r"), DataPrefix)
	if !found {
		return nil, false, nil
	}

	if err := json.Unmarshal([]byte(payload), &events); err != nil {
		return nil, true, fmt.Errorf("%w: %w", ErrMalformedFrame, err)
	}
	return events, true, nil
}
