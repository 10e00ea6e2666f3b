package model

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
)

// Envelope is the JSON envelope written around a persisted model. The format
// version allows the on-disk layout to evolve without breaking old readers.
type Envelope struct {
	Name          string          `json:"name"`
	FormatVersion string          `json:"format_version"`
	Params        json.RawMessage `json:"params"`
}

// SaveJSON writes a model payload to a file wrapped in an Envelope.
func SaveJSON(name, version string, payload interface{}, filename string) error {
	file, err := os.Create(filename)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer file.Close()

	return SaveJSONToWriter(name, version, payload, file)
}

// SaveJSONToWriter writes a model payload to w wrapped in an Envelope.
func SaveJSONToWriter(name, version string, payload interface{}, w io.Writer) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal model params: %w", err)
	}

	env := Envelope{Name: name, FormatVersion: version, Params: raw}
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(&env); err != nil {
		return fmt.Errorf("failed to encode model: %w", err)
	}
	return nil
}

// LoadJSON reads an Envelope from a file and unmarshals its payload. The
// envelope's name must match the expected name.
func LoadJSON(name string, payload interface{}, filename string) error {
	file, err := os.Open(filename)
	if err != nil {
		return fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	return LoadJSONFromReader(name, payload, file)
}

// LoadJSONFromReader reads an Envelope from r and unmarshals its payload.
func LoadJSONFromReader(name string, payload interface{}, r io.Reader) error {
	var env Envelope
	decoder := json.NewDecoder(r)
	if err := decoder.Decode(&env); err != nil {
		return fmt.Errorf("failed to decode model: %w", err)
	}
	if env.Name != name {
		return fmt.Errorf("model type mismatch: expected %q, got %q", name, env.Name)
	}
	if err := json.Unmarshal(env.Params, payload); err != nil {
		return fmt.Errorf("failed to unmarshal model params: %w", err)
	}
	return nil
}
