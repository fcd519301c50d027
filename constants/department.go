package constants

import (
	"strings"
	"unicode"
)

type Department string

const (
	Engineering Department = "Engineering"
	Operations  Department = "Operations"
	Maintenance Department = "Maintenance"
	Safety      Department = "Safety"
	Finance     Department = "Finance"
	HR          Department = "HR"
	Legal       Department = "Legal"
	Procurement Department = "Procurement"

	// General is used when the model omits a department.
	General Department = "General"
)

var allDepartments = []Department{
	Engineering,
	Operations,
	Maintenance,
	Safety,
	Finance,
	HR,
	Legal,
	Procurement,
}

// DepartmentDescriptions is the rubric embedded in the classification prompt.
var DepartmentDescriptions = map[Department]string{
	Engineering: "Technical drawings, infrastructure plans, track maintenance, electrical systems, signaling, construction projects",
	Operations:  "Train schedules, passenger services, station operations, service disruptions, operational procedures",
	Maintenance: "Rolling stock maintenance, infrastructure upkeep, preventive maintenance, repair schedules, equipment servicing",
	Safety:      "Safety protocols, incident reports, emergency procedures, safety training, compliance with metro safety standards",
	Finance:     "Invoices, payments, budgets, financial reports, procurement costs, revenue analysis",
	HR:          "Employee policies, recruitment, training programs, staff schedules, personnel matters",
	Legal:       "Contracts, legal opinions, regulatory compliance, legal notices, policy documents",
	Procurement: "Vendor management, purchase orders, supplier contracts, equipment procurement",
}

var departmentColors = map[Department]string{
	Engineering: "#FF6B6B",
	HR:          "#4ECDC4",
	Finance:     "#45B7D1",
	Safety:      "#FFA07A",
	Legal:       "#98D8C8",
	Procurement: "#F7DC6F",
	Operations:  "#BB8FCE",
	Maintenance: "#85C1E9",
}

// FallbackColor is used for unknown departments and levels.
const FallbackColor = "#95A5A6"

func Departments() []Department {
	out := make([]Department, len(allDepartments))
	copy(out, allDepartments)
	return out
}

func DepartmentNames() []string {
	result := make([]string, len(allDepartments))
	for i, d := range allDepartments {
		result[i] = string(d)
	}
	return result
}

// DepartmentColor returns the display colour for a department.
func DepartmentColor(d Department) string {
	if c, ok := departmentColors[d]; ok {
		return c
	}
	return FallbackColor
}

// CanonicalizeDepartment maps free-form model output onto the fixed enumeration.
// The second return value is false when nothing matched; the input is then returned trimmed.
func CanonicalizeDepartment(input string) (Department, bool) {
	trimmed := strings.TrimSpace(input)
	if trimmed == "" {
		return General, false
	}
	normalized := strings.ToLower(trimmed)

	synonyms := map[string]Department{
		"human resources":   HR,
		"personnel":         HR,
		"accounts":          Finance,
		"accounting":        Finance,
		"purchase":          Procurement,
		"purchasing":        Procurement,
		"operation":         Operations,
		"ops":               Operations,
		"legal affairs":     Legal,
		"safety & security": Safety,
		"rolling stock":     Maintenance,
	}
	if d, ok := synonyms[normalized]; ok {
		return d, true
	}

	for _, d := range allDepartments {
		if normalized == strings.ToLower(string(d)) {
			return d, true
		}
	}
	// "Finance Department", "KMRL Engineering", ...
	words := strings.FieldsFunc(normalized, func(r rune) bool {
		return !unicode.IsLetter(r) && r != '&'
	})
	for _, d := range allDepartments {
		name := strings.ToLower(string(d))
		for _, w := range words {
			if w == name {
				return d, true
			}
		}
		if len(name) > 2 && strings.Contains(normalized, name) {
			return d, true
		}
	}
	return Department(trimmed), false
}
