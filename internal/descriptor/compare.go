package descriptor

import (
	"strings"

	"golang.org/x/text/cases"
)

// Comparator decides descriptor equality under kind-specific equivalence
// rules. Values are case-folded; codec values are first mapped through the
// alias table so labels for the same compression standard compare equal.
type Comparator struct {
	aliases map[string]string
}

// NewComparator creates a comparator with the given codec alias table
// (raw label -> canonical label). Keys are matched case-insensitively.
func NewComparator(codecAliases map[string]string) *Comparator {
	aliases := make(map[string]string, len(codecAliases))
	for raw, canonical := range codecAliases {
		aliases[fold(raw)] = fold(canonical)
	}
	return &Comparator{aliases: aliases}
}

// Equal compares two descriptors positionally. Descriptors with a different
// number of fields or different kinds at a position are never equal.
func (c *Comparator) Equal(a, b Descriptor) bool {
	if a.Len() != b.Len() {
		return false
	}
	for i := range a.Fields {
		if a.Fields[i].Kind != b.Fields[i].Kind {
			return false
		}
		if !c.Equivalent(a.Fields[i].Kind, a.Fields[i].Value, b.Fields[i].Value) {
			return false
		}
	}
	return true
}

// MatchesText reports whether edition block text read from disk renders the
// same descriptor as candidate. The text is split into components and each is
// compared under the equivalence rule of the candidate's kind at that position.
func (c *Comparator) MatchesText(text string, candidate Descriptor) bool {
	parts := SplitText(text)
	if len(parts) != candidate.Len() {
		return false
	}
	for i, f := range candidate.Fields {
		if !c.Equivalent(f.Kind, parts[i], f.Value) {
			return false
		}
	}
	return true
}

// Equivalent compares two formatted values of the given kind.
func (c *Comparator) Equivalent(kind Kind, a, b string) bool {
	return c.normalize(kind, a) == c.normalize(kind, b)
}

func (c *Comparator) normalize(kind Kind, value string) string {
	v := fold(value)
	if kind == KindCodec {
		if canonical, ok := c.aliases[v]; ok {
			return canonical
		}
	}
	return v
}

func fold(s string) string {
	return cases.Fold().String(strings.TrimSpace(s))
}
