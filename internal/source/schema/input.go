package schema

import (
	"encoding/json"
	"strings"
)

// Input is the polymorphic source input accepted by every adapter. Callers
// either fill the structured fields or supply a bare string via Raw; the
// adapter decides what a bare string means for its source.
type Input struct {
	SpaceKey    string `json:"space_key,omitempty"`
	PageID      string `json:"page_id,omitempty"`
	SearchQuery string `json:"search_query,omitempty"`
	PageURL     string `json:"page_url,omitempty"`
	TitleFilter string `json:"title_filter,omitempty"`
	LabelFilter string `json:"label_filter,omitempty"`
	FilePath    string `json:"file_path,omitempty"`
	Repository  string `json:"repository,omitempty"`

	// Raw carries a bare string input that has not been classified yet.
	Raw string `json:"-"`
}

// UnmarshalJSON accepts either a JSON string (stored in Raw) or a JSON
// object with the structured fields.
func (in *Input) UnmarshalJSON(data []byte) error {
	trimmed := strings.TrimSpace(string(data))
	if strings.HasPrefix(trimmed, `"`) {
		var raw string
		if err := json.Unmarshal(data, &raw); err != nil {
			return err
		}
		*in = Input{Raw: raw}
		return nil
	}

	type alias Input
	var structured alias
	if err := json.Unmarshal(data, &structured); err != nil {
		return err
	}
	*in = Input(structured)
	return nil
}

// MarshalJSON keeps the wire form symmetric: a pure Raw input marshals back
// to a JSON string.
func (in Input) MarshalJSON() ([]byte, error) {
	if in.Raw != "" && in == (Input{Raw: in.Raw}) {
		return json.Marshal(in.Raw)
	}
	type alias Input
	return json.Marshal(alias(in))
}

// IsZero reports whether nothing at all was supplied. Whitespace-only raw
// strings count as empty.
func (in Input) IsZero() bool {
	if strings.TrimSpace(in.Raw) != "" {
		return false
	}
	in.Raw = ""
	return in == Input{}
}
