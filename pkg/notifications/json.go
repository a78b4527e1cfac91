package notifications

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"
)

var _ json.Marshaler = &Data{}

// errMarshalFailed indicates a failure to marshal notification data to JSON.
var errMarshalFailed = errors.New("failed to marshal notification data")

// jsonMap is a type alias for a JSON-compatible map.
type jsonMap = map[string]any

// MarshalJSON implements json.Marshaler for Data.
//
// Returns:
//   - []byte: JSON-encoded data.
//   - error: Non-nil if marshaling fails, nil on success.
func (d Data) MarshalJSON() ([]byte, error) {
	clog := logrus.WithFields(logrus.Fields{
		"title":   d.Title,
		"host":    d.Host,
		"entries": len(d.Entries),
	})
	clog.Trace("Marshaling notification data to JSON")

	entries := make([]jsonMap, len(d.Entries))
	for i, entry := range d.Entries {
		entries[i] = jsonMap{
			"level":   entry.Level,
			"message": entry.Message,
			"data":    entry.Data,
			"time":    entry.Time,
		}
	}

	var change jsonMap

	if d.Change != nil {
		change = jsonMap{
			"branch":  d.Change.Branch,
			"kind":    d.Change.Kind,
			"commit":  d.Change.Current.ID.String(),
			"message": d.Change.Current.Message,
			"paths":   d.Paths(),
		}

		if len(d.Change.Prior) > 0 {
			change["prior"] = d.Change.Prior.String()
		}
	}

	data := jsonMap{
		"title":   d.Title,
		"host":    d.Host,
		"repo":    d.Repo,
		"change":  change,
		"state":   d.State,
		"entries": entries,
	}

	bytes, err := json.Marshal(data)
	if err != nil {
		clog.WithError(err).Error("Failed to marshal notification data to JSON")

		return nil, fmt.Errorf("%w: %w", errMarshalFailed, err)
	}

	return bytes, nil
}
