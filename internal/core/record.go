package core

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

var ErrInvalidRecordID = errors.New("invalid record id")

// RecordID identifies a database record as table plus id, e.g. post:⟨0190b8c2-...⟩.
type RecordID struct {
	Table string
	ID    string
}

func NewRecordID(table, id string) RecordID {
	return RecordID{Table: table, ID: id}
}

// ParseRecordID accepts the forms the database prints: tb:id, tb:⟨id⟩, tb:`id`, tb:u'id' and tb:u"id".
func ParseRecordID(s string) (RecordID, error) {
	table, id, ok := strings.Cut(s, ":")
	if !ok || table == "" || id == "" {
		return RecordID{}, fmt.Errorf("%w: %q", ErrInvalidRecordID, s)
	}

	switch {
	case strings.HasPrefix(id, "⟨") && strings.HasSuffix(id, "⟩"):
		id = strings.TrimSuffix(strings.TrimPrefix(id, "⟨"), "⟩")
	case len(id) >= 2 && id[0] == '`' && id[len(id)-1] == '`':
		id = id[1 : len(id)-1]
	case len(id) >= 3 && id[0] == 'u' && (id[1] == '\'' || id[1] == '"') && id[len(id)-1] == id[1]:
		id = id[2 : len(id)-1]
	}

	if id == "" {
		return RecordID{}, fmt.Errorf("%w: %q", ErrInvalidRecordID, s)
	}

	return RecordID{Table: table, ID: id}, nil
}

func (r RecordID) IsZero() bool {
	return r.Table == "" && r.ID == ""
}

func (r RecordID) String() string {
	if r.IsZero() {
		return ""
	}
	if isPlainIdent(r.ID) {
		return r.Table + ":" + r.ID
	}
	return r.Table + ":⟨" + r.ID + "⟩"
}

func (r RecordID) MarshalJSON() ([]byte, error) {
	return json.Marshal(r.String())
}

func (r *RecordID) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		return nil
	}

	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidRecordID, err)
	}

	parsed, err := ParseRecordID(s)
	if err != nil {
		return err
	}

	*r = parsed
	return nil
}

func isPlainIdent(s string) bool {
	for i, c := range s {
		switch {
		case c == '_':
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z':
		case c >= '0' && c <= '9':
			if i == 0 {
				return false
			}
		default:
			return false
		}
	}
	return s != ""
}
