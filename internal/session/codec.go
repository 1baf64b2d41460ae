package session

import (
	"encoding/json"
	"fmt"

	"murmur/internal/core"
)

func key(profile string) string {
	return "session." + profile
}

func encode(s core.Session) ([]byte, error) {
	return json.Marshal(s)
}

func decode(data []byte) (core.Session, error) {
	var s core.Session
	if err := json.Unmarshal(data, &s); err != nil {
		return core.Session{}, fmt.Errorf("corrupted session: %w", err)
	}
	if s.Username == "" || s.Token == "" {
		return core.Session{}, core.ErrNoSession
	}
	return s, nil
}
