package graph

import (
	"bytes"
	"encoding/json"
	"errors"
	"regexp"
	"strconv"
	"strings"

	"github.com/OFFIS-RIT/kiwi-insure/pkg/ai"
)

// Score is a model supplied number that may arrive as a JSON number or as a
// numeric string.
type Score float64

func (s *Score) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var str string
		if err := json.Unmarshal(b, &str); err != nil {
			return err
		}
		str = strings.TrimSuffix(strings.TrimSpace(str), "%")
		f, err := strconv.ParseFloat(str, 64)
		if err != nil {
			return err
		}
		*s = Score(f)
		return nil
	}
	var f float64
	if err := json.Unmarshal(b, &f); err != nil {
		return err
	}
	*s = Score(f)
	return nil
}

type extractEntity struct {
	Name        string         `json:"name" jsonschema_description:"Name of the entity exactly as written in the text"`
	Type        string         `json:"type" jsonschema_description:"One of the provided entity types"`
	Description string         `json:"description" jsonschema_description:"Everything the text says about the entity"`
	Confidence  *Score         `json:"confidence,omitempty" jsonschema_description:"Extraction certainty between 0.0 and 1.0"`
	Properties  map[string]any `json:"properties,omitempty" jsonschema_description:"Optional key/value attributes of the entity"`
}

type extractRelationship struct {
	Source      string `json:"source" jsonschema_description:"Name of the source entity, as written in entities"`
	Target      string `json:"target" jsonschema_description:"Name of the target entity, as written in entities"`
	Type        string `json:"type" jsonschema_description:"Uppercase relationship token such as LIVES_IN or HAS_RISK"`
	Description string `json:"description" jsonschema_description:"Why the entities are related, based on the text"`
	Confidence  *Score `json:"confidence,omitempty" jsonschema_description:"Extraction certainty between 0.0 and 1.0"`
	Weight      *Score `json:"weight,omitempty" jsonschema_description:"Optional numeric strength of the relationship"`
}

// ExtractionPayload is the JSON object the model is asked to return.
type ExtractionPayload struct {
	Entities      []extractEntity       `json:"entities" jsonschema_description:"Entities identified in the text"`
	Relationships []extractRelationship `json:"relationships" jsonschema_description:"Relationships identified in the text"`
}

var (
	payloadPattern = regexp.MustCompile(`(?s)\{.*\}`)

	errNoJSONObject = errors.New("no JSON object in response")
)

// ParseExtractionPayload finds the first greedy {...} span in raw and decodes
// it, repairing malformed JSON where possible. The returned error is an
// *ExtractionParseError without UnitID; callers fill it in.
func ParseExtractionPayload(raw string) (*ExtractionPayload, error) {
	match := payloadPattern.FindString(raw)
	if match == "" {
		return nil, &ExtractionParseError{Raw: raw, Err: errNoJSONObject}
	}

	var payload ExtractionPayload
	if err := ai.UnmarshalFlexible(match, &payload); err != nil {
		return nil, &ExtractionParseError{Raw: raw, Err: err}
	}
	return &payload, nil
}
