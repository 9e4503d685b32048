package domain

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

var sectionsSchema = gojsonschema.NewStringLoader(SectionsJSONSchema)

// ValidateSectionsJSON checks a parser manifest against SectionsJSONSchema
// and decodes it. Schema failures are reported as a ValidationError.
func ValidateSectionsJSON(raw []byte) (SectionManifest, error) {
	result, err := gojsonschema.Validate(sectionsSchema, gojsonschema.NewBytesLoader(raw))
	if err != nil {
		return SectionManifest{}, NewValidationError("manifest", fmt.Sprintf("unreadable manifest: %v", err))
	}
	if !result.Valid() {
		return SectionManifest{}, schemaError(result.Errors())
	}

	var manifest SectionManifest
	if err := json.Unmarshal(raw, &manifest); err != nil {
		return SectionManifest{}, NewValidationError("manifest", err.Error())
	}
	return manifest, ValidateSections(manifest.Sections)
}

// ValidateSections rejects sections without a title.
func ValidateSections(sections []Section) error {
	for i, s := range sections {
		if strings.TrimSpace(s.Title) == "" {
			return NewValidationError(fmt.Sprintf("sections[%d].title", i), "section title is required")
		}
	}
	return nil
}

func schemaError(errs []gojsonschema.ResultError) error {
	if len(errs) == 0 {
		return NewValidationError("manifest", "does not match schema")
	}
	first := errs[0]
	field := first.Field()
	if field == "(root)" {
		field = "manifest"
	}
	parts := make([]string, 0, len(errs))
	for _, e := range errs {
		parts = append(parts, e.String())
	}
	return NewValidationError(field, strings.Join(parts, "; "))
}
