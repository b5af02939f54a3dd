package contract

import "slices"

// Field names used by the generation endpoint.
const (
	FieldStyle           = "style"
	FieldClothing        = "clothing"
	FieldAngle           = "angle"
	FieldBackground      = "background"
	FieldBackgroundColor = "bgColor"
	FieldBeautify        = "beautify"
	FieldGender          = "gender"
)

// Choice is one enumerated option of the generation request.
type Choice struct {
	Field    string
	Values   []string
	Default  string
	Required bool
}

// Allows reports whether value is one of the choice's values.
func (c Choice) Allows(value string) bool {
	return slices.Contains(c.Values, value)
}

// Catalog lists the enumerated options in declaration order (required fields
// first).
type Catalog struct {
	choices []Choice
}

// NewCatalog builds a catalog from explicit choices. Useful for tests and for
// callers that do not load the contract.
func NewCatalog(choices ...Choice) Catalog {
	out := make([]Choice, len(choices))
	for i, c := range choices {
		c.Values = append([]string(nil), c.Values...)
		out[i] = c
	}
	return Catalog{choices: out}
}

// Choices returns a copy of every choice.
func (c Catalog) Choices() []Choice {
	out := make([]Choice, len(c.choices))
	for i, choice := range c.choices {
		choice.Values = append([]string(nil), choice.Values...)
		out[i] = choice
	}
	return out
}

// Choice returns the choice for field.
func (c Catalog) Choice(field string) (Choice, bool) {
	for _, choice := range c.choices {
		if choice.Field == field {
			choice.Values = append([]string(nil), choice.Values...)
			return choice, true
		}
	}
	return Choice{}, false
}

// Default returns the default value declared for field, if any.
func (c Catalog) Default(field string) string {
	choice, ok := c.Choice(field)
	if !ok {
		return ""
	}
	return choice.Default
}

// Empty reports whether the catalog has no choices.
func (c Catalog) Empty() bool {
	return len(c.choices) == 0
}
