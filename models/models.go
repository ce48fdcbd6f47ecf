package models

// StudentRecord represents one student on the roster
type StudentRecord struct {
	Roll         int    `json:"roll"`         // Roll number, the lookup key (first match wins)
	Name         string `json:"name"`         // Student name
	StudentClass string `json:"studentClass"` // Grade/section label, e.g. "5A"
	ParentPhone  string `json:"parentPhone"`  // Parent contact number, not validated
}

// ClassSummary groups the roster by class label
type ClassSummary struct {
	Name  string `json:"name"`  // Class label as typed by the user
	Count int    `json:"count"` // Number of students carrying that label
}
