package schema

// Capabilities is a read-only description of what a source adapter can do.
// It is served by the capability discovery endpoint without initializing
// the adapter.
type Capabilities struct {
	SourceType       string   `json:"source_type"`
	Description      string   `json:"description"`
	Features         []string `json:"features"`
	SupportedInputs  []string `json:"supported_inputs"`
	SupportedFormats []string `json:"supported_formats,omitempty"`
}
