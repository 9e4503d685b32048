package domain

type Department string

const (
	DeptEngineering   Department = "Engineering"
	DeptQuality       Department = "Quality Assurance"
	DeptManufacturing Department = "Manufacturing"
	DeptProcurement   Department = "Procurement"
	DeptOperations    Department = "Operations"
	DeptResearch      Department = "Research & Development"
	DeptFinance       Department = "Finance"
	DeptSafety        Department = "Safety"
	DeptRegulatory    Department = "Regulatory Affairs"
	DeptManagement    Department = "Management"
)

var AllDepartments = []Department{
	DeptEngineering,
	DeptQuality,
	DeptManufacturing,
	DeptProcurement,
	DeptOperations,
	DeptResearch,
	DeptFinance,
	DeptSafety,
	DeptRegulatory,
	DeptManagement,
}

var departmentRoles = map[Department]string{
	DeptEngineering:   "Engineering Manager",
	DeptQuality:       "QA Manager",
	DeptManufacturing: "Production Manager",
	DeptProcurement:   "Procurement Manager",
	DeptOperations:    "Operations Manager",
	DeptResearch:      "R&D Lead",
	DeptFinance:       "Finance Controller",
	DeptSafety:        "Safety Officer",
	DeptRegulatory:    "Regulatory Specialist",
	DeptManagement:    "Department Head",
}

const (
	RoleTitleDepartmentHead    = "Department Head"
	RoleTitleExecutiveDirector = "Executive Director"
)

// RoleFor returns the approving role title for a department. Unknown
// departments fall back to the Engineering role.
func RoleFor(d Department) string {
	if role, ok := departmentRoles[d]; ok {
		return role
	}
	return departmentRoles[DeptEngineering]
}

func (d Department) Valid() bool {
	_, ok := departmentRoles[d]
	return ok
}
