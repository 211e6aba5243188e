package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

const SchemaVersion = 1

var ErrStateNotFound = errors.New("session state not found")

// State is the persisted login token for one account.
type State struct {
	SchemaVersion int       `json:"schema_version"`
	Provider      string    `json:"provider"`
	BaseURL       string    `json:"base_url"`
	Username      string    `json:"username"`
	Token         string    `json:"token"`
	ObtainedAt    time.Time `json:"obtained_at"`
}

func DecodeState(data []byte) (State, error) {
	var state State
	if err := json.Unmarshal(data, &state); err != nil {
		return State{}, fmt.Errorf("decode state: %w", err)
	}
	if err := state.Validate(); err != nil {
		return State{}, err
	}
	return state, nil
}

func (s State) Validate() error {
	if s.SchemaVersion != SchemaVersion {
		return fmt.Errorf("unsupported schema_version: %d", s.SchemaVersion)
	}
	if s.Username == "" {
		return fmt.Errorf("state missing username")
	}
	if s.Token == "" {
		return fmt.Errorf("state missing token")
	}
	return nil
}

// Matches reports whether the state belongs to the given account.
func (s State) Matches(provider, baseURL, username string) bool {
	return s.Provider == provider && s.BaseURL == baseURL && s.Username == username
}

func encodeState(state State) ([]byte, error) {
	if state.SchemaVersion == 0 {
		state.SchemaVersion = SchemaVersion
	}
	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal state: %w", err)
	}
	return data, nil
}
