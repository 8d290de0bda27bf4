package problem

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// MaxDeckSize bounds the size of a YAML deck read by LoadDeck.
const MaxDeckSize = 1 << 20

// LoadDeck decodes and validates a YAML problem deck. Unknown fields are
// rejected so that misspelled cross-section names do not silently default
// to zero.
func LoadDeck(r io.Reader) (Definition, error) {
	data, err := io.ReadAll(io.LimitReader(r, MaxDeckSize+1))
	if err != nil {
		return Definition{}, fmt.Errorf("problem: reading deck: %w", err)
	}
	if len(data) > MaxDeckSize {
		return Definition{}, fmt.Errorf("%w: deck exceeds %d bytes", ErrInvalidDefinition, MaxDeckSize)
	}
	var def Definition
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&def); err != nil {
		if errors.Is(err, io.EOF) {
			return Definition{}, fmt.Errorf("%w: empty deck", ErrInvalidDefinition)
		}
		return Definition{}, fmt.Errorf("%w: %v", ErrInvalidDefinition, err)
	}
	if err := def.Validate(); err != nil {
		return Definition{}, err
	}
	return def, nil
}

// LoadDeckFile reads a deck from path.
func LoadDeckFile(path string) (Definition, error) {
	f, err := os.Open(path)
	if err != nil {
		return Definition{}, err
	}
	defer f.Close()
	def, err := LoadDeck(f)
	if err != nil {
		return Definition{}, fmt.Errorf("%s: %w", path, err)
	}
	return def, nil
}

// WriteDeck encodes def as a YAML deck readable by LoadDeck.
func WriteDeck(w io.Writer, def Definition) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(def); err != nil {
		return fmt.Errorf("problem: encoding deck: %w", err)
	}
	return enc.Close()
}
