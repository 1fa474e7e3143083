// Package descriptor derives the display fields written into a folder's
// edition block and decides when two renderings of them are equivalent.
package descriptor

import (
	"strings"

	"github.com/javi11/metadatarr/internal/config"
)

// Kind identifies a descriptor field.
type Kind string

const (
	KindRating     Kind = config.FieldRating
	KindResolution Kind = config.FieldResolution
	KindCodec      Kind = config.FieldCodec
	KindLanguage   Kind = config.FieldLanguage
)

// Separator joins field values inside an edition block.
const Separator = " - "

// Field is one formatted descriptor value.
type Field struct {
	Kind  Kind
	Value string
}

// Descriptor is an ordered sequence of formatted fields.
type Descriptor struct {
	Fields []Field
}

// Len returns the number of fields.
func (d Descriptor) Len() int {
	return len(d.Fields)
}

// Values returns the formatted values in order.
func (d Descriptor) Values() []string {
	values := make([]string, len(d.Fields))
	for i, f := range d.Fields {
		values[i] = f.Value
	}
	return values
}

// Text renders the descriptor as it appears inside an edition block.
func (d Descriptor) Text() string {
	return strings.Join(d.Values(), Separator)
}

// SplitText splits edition block text back into its formatted components.
// The components are not re-parsed into typed fields.
func SplitText(text string) []string {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	parts := strings.Split(text, Separator)
	for i, p := range parts {
		parts[i] = strings.TrimSpace(p)
	}
	return parts
}

// Status describes the outcome of building a descriptor.
type Status int

const (
	// StatusComplete means every enabled field was derived.
	StatusComplete Status = iota
	// StatusPartial means some enabled fields are missing and the best-effort
	// policy emitted the rest.
	StatusPartial
	// StatusEmpty means no enabled field could be derived under best effort.
	StatusEmpty
	// StatusIncomplete means an enabled field is missing under the strict
	// policy, so no descriptor is emitted.
	StatusIncomplete
	// StatusUnconfigured means every field is disabled.
	StatusUnconfigured
)

func (s Status) String() string {
	switch s {
	case StatusComplete:
		return "complete"
	case StatusPartial:
		return "partial"
	case StatusEmpty:
		return "empty"
	case StatusIncomplete:
		return "incomplete"
	case StatusUnconfigured:
		return "unconfigured"
	default:
		return "unknown"
	}
}

// Result is the output of Builder.Build.
type Result struct {
	Descriptor Descriptor
	Status     Status
	Missing    []Kind
}

// Usable reports whether the result carries fields that should be written.
func (r Result) Usable() bool {
	return r.Status == StatusComplete || r.Status == StatusPartial
}

// StripsBlock reports whether the result means the folder should carry no block.
func (r Result) StripsBlock() bool {
	return r.Status == StatusUnconfigured || r.Status == StatusEmpty
}
