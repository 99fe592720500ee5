package types

import (
	"encoding/json"
	"fmt"
)

// UnknownPartKindError is returned when a part carries a kind outside the
// supported text/data/file set.
type UnknownPartKindError struct {
	Kind string
}

func (e *UnknownPartKindError) Error() string {
	return fmt.Sprintf("unknown part kind: %q", e.Kind)
}

// partUnmarshalHelper mirrors Part without its UnmarshalJSON method so the
// raw payload can be decoded before validation.
type partUnmarshalHelper struct {
	Kind     string         `json:"kind"`
	Text     *string        `json:"text,omitempty"`
	Data     map[string]any `json:"data,omitempty"`
	File     *FileContent   `json:"file,omitempty"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// UnmarshalJSON decodes a Part and enforces the tagged union: the kind must
// be one of the supported values and the matching payload must be present.
func (p *Part) UnmarshalJSON(data []byte) error {
	var helper partUnmarshalHelper
	if err := json.Unmarshal(data, &helper); err != nil {
		return err
	}

	kind := PartKind(helper.Kind)
	if !kind.IsValid() {
		return &UnknownPartKindError{Kind: helper.Kind}
	}

	switch kind {
	case PartKindText:
		if helper.Text == nil {
			return fmt.Errorf("text part missing text payload")
		}
	case PartKindData:
		if helper.Data == nil {
			return fmt.Errorf("data part missing data payload")
		}
	case PartKindFile:
		if helper.File == nil {
			return fmt.Errorf("file part missing file payload")
		}
	}

	p.Kind = kind
	p.Text = helper.Text
	p.Data = helper.Data
	p.File = helper.File
	p.Metadata = helper.Metadata

	return nil
}

// UnmarshalParts decodes a JSON array of parts with union validation.
func UnmarshalParts(data []byte) ([]Part, error) {
	var rawParts []json.RawMessage
	if err := json.Unmarshal(data, &rawParts); err != nil {
		return nil, fmt.Errorf("failed to unmarshal raw parts: %w", err)
	}

	parts := make([]Part, len(rawParts))
	for i, rawPart := range rawParts {
		if err := json.Unmarshal(rawPart, &parts[i]); err != nil {
			return nil, fmt.Errorf("failed to unmarshal part at index %d: %w", i, err)
		}
	}

	return parts, nil
}
