package extraction

import (
	"errors"
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// Top-level sections of an AI reply and the JSON type each must have.
var sections = []struct {
	name     string
	jsonType string
}{
	{"invoice_metadata", "object"},
	{"vendor_details", "object"},
	{"customer_details", "object"},
	{"line_items", "array"},
	{"summary", "object"},
	{"payment_info", "object"},
	{"additional_info", "object"},
}

// sectionSchema only constrains section types. Leaf fields are coerced
// leniently afterwards, so the schema never rejects a reply over a single
// badly typed value.
var sectionSchema = mustCompileSectionSchema()

func mustCompileSectionSchema() *jsonschema.Schema {
	props := make([]string, 0, len(sections))
	for _, s := range sections {
		props = append(props, fmt.Sprintf(`%q: {"type": ["%s", "null"]}`, s.name, s.jsonType))
	}
	doc := fmt.Sprintf(`{"type": "object", "properties": {%s}}`, strings.Join(props, ", "))

	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("sections.json", strings.NewReader(doc)); err != nil {
		panic(fmt.Sprintf("add section schema: %v", err))
	}
	schema, err := compiler.Compile("sections.json")
	if err != nil {
		panic(fmt.Sprintf("compile section schema: %v", err))
	}
	return schema
}

// invalidSections returns the names of sections whose JSON type is wrong.
func invalidSections(doc map[string]any) map[string]bool {
	invalid := map[string]bool{}

	err := sectionSchema.Validate(doc)
	if err == nil {
		return invalid
	}
	var verr *jsonschema.ValidationError
	if !errors.As(err, &verr) {
		return invalid
	}

	var walk func(e *jsonschema.ValidationError)
	walk = func(e *jsonschema.ValidationError) {
		if name := strings.TrimPrefix(e.InstanceLocation, "/"); name != "" && !strings.Contains(name, "/") {
			invalid[name] = true
		}
		for _, cause := range e.Causes {
			walk(cause)
		}
	}
	walk(verr)
	return invalid
}
