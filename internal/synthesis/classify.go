package synthesis

import (
	"strings"
	"unicode"

	"doc-approval-engine/internal/domain"
)

type rule struct {
	department domain.Department
	anyOf      []string
	// allOf groups match when every keyword in one group is present.
	allOf [][]string
}

// titleRules are evaluated in order; the first matching rule wins.
var titleRules = []rule{
	{
		department: domain.DeptEngineering,
		anyOf:      []string{"engineering", "engineered", "design", "technical", "specification", "drawing", "blueprint", "schematic", "tolerance", "cad"},
	},
	{
		department: domain.DeptQuality,
		anyOf:      []string{"quality", "inspection", "defect", "nonconformance", "calibration", "test", "testing", "capa", "qa", "qc"},
	},
	{
		department: domain.DeptManufacturing,
		anyOf:      []string{"manufacturing", "manufactured", "production", "assembly", "fabrication", "machining", "work order"},
		allOf:      [][]string{{"process", "production"}, {"process", "manufacturing"}},
	},
	{
		department: domain.DeptProcurement,
		anyOf:      []string{"procurement", "purchase", "purchasing", "supplier", "vendor", "sourcing", "bill of materials", "rfq", "po"},
	},
	{
		department: domain.DeptOperations,
		anyOf:      []string{"operations", "operational", "logistics", "inventory", "warehouse", "shipping", "shipment", "maintenance"},
	},
	{
		department: domain.DeptResearch,
		anyOf:      []string{"research", "development", "innovation", "experiment", "experimental", "prototype", "prototyping", "r&d"},
	},
	{
		department: domain.DeptFinance,
		anyOf:      []string{"finance", "financial", "budget", "cost", "invoice", "payment", "payable", "accounting", "expense", "pricing"},
	},
	{
		department: domain.DeptSafety,
		anyOf:      []string{"safety", "hazard", "risk", "incident", "emergency", "ppe", "hazardous", "ehs"},
	},
	{
		department: domain.DeptRegulatory,
		anyOf:      []string{"regulatory", "regulation", "compliance", "compliant", "certification", "permit", "legal", "iso", "fda"},
	},
}

var fieldRules = []rule{
	{department: domain.DeptQuality, anyOf: []string{"quality", "inspection", "defect", "qa", "qc"}},
	{department: domain.DeptEngineering, anyOf: []string{"engineering", "engineered", "design", "specification", "drawing", "tolerance", "dimension"}},
	{department: domain.DeptProcurement, anyOf: []string{"supplier", "vendor", "purchase", "procurement"}},
	{department: domain.DeptManufacturing, anyOf: []string{"manufacturing", "manufactured", "production", "assembly", "batch"}},
}

// Classify maps a section to a department. It never fails: sections that
// match no rule belong to Engineering.
func Classify(section domain.Section) domain.Department {
	if d, ok := match(titleRules, newText(section.Title)); ok {
		return d
	}
	for _, f := range section.Fields {
		if d, ok := match(fieldRules, newText(f.Label)); ok {
			return d
		}
	}
	return domain.DeptEngineering
}

func match(rules []rule, t text) (domain.Department, bool) {
	for _, r := range rules {
		if r.matches(t) {
			return r.department, true
		}
	}
	return "", false
}

func (r rule) matches(t text) bool {
	for _, kw := range r.anyOf {
		if t.has(kw) {
			return true
		}
	}
	for _, group := range r.allOf {
		all := true
		for _, kw := range group {
			if !t.has(kw) {
				all = false
				break
			}
		}
		if all {
			return true
		}
	}
	return false
}

type text struct {
	tokens []string
	joined string
}

func newText(s string) text {
	tokens := strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '&'
	})
	return text{tokens: tokens, joined: " " + strings.Join(tokens, " ") + " "}
}

// has matches multi-word keywords as a phrase and single keywords as a
// whole token or its plural. Other inflections are listed as keywords.
func (t text) has(kw string) bool {
	if strings.Contains(kw, " ") {
		return strings.Contains(t.joined, " "+kw+" ")
	}
	for _, tok := range t.tokens {
		if tok == kw || isPlural(tok, kw) {
			return true
		}
	}
	return false
}

func isPlural(tok, kw string) bool {
	switch {
	case tok == kw+"s", tok == kw+"es":
		return true
	case strings.HasSuffix(kw, "y") && len(kw) > 1:
		return tok == kw[:len(kw)-1]+"ies"
	}
	return false
}
