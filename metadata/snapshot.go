package metadata

import (
	"encoding/json"
)

// Snapshot is the persisted point-in-time view of a scan: model name ->
// metadata. time.Time defaults serialize as RFC 3339 strings through the
// standard JSON encoding.
type Snapshot map[string]*ModelMeta

// Marshal renders the snapshot as indented UTF-8 JSON.
func (s Snapshot) Marshal() ([]byte, error) {
	return json.MarshalIndent(s, "", "  ")
}

// UnmarshalSnapshot parses a snapshot document.
func UnmarshalSnapshot(data []byte) (Snapshot, error) {
	var s Snapshot
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, err
	}
	if s == nil {
		s = Snapshot{}
	}
	return s, nil
}
