package models

import "strings"

// Sensitivity classifies how restricted a catalogued asset is.
type Sensitivity string

const (
	SensitivityPublic       Sensitivity = "public"
	SensitivityInternal     Sensitivity = "internal"
	SensitivityConfidential Sensitivity = "confidential"
	SensitivityPII          Sensitivity = "pii"
)

// TableType classifies the modelling role of a catalogued table.
type TableType string

const (
	TableTypeFact      TableType = "fact"
	TableTypeDimension TableType = "dimension"
	TableTypeReference TableType = "reference"
	TableTypeStaging   TableType = "staging"
	TableTypeRaw       TableType = "raw"
	TableTypeView      TableType = "view"
)

// Cardinality buckets a column's distinct-to-total value ratio.
type Cardinality string

const (
	CardinalityEmpty   Cardinality = "empty"
	CardinalityUnique  Cardinality = "unique"
	CardinalityLow     Cardinality = "low"
	CardinalityMedium  Cardinality = "medium"
	CardinalityHigh    Cardinality = "high"
	CardinalityUnknown Cardinality = "unknown"
)

// ParseSensitivity decodes a sensitivity string case-insensitively.
// Unrecognized values (including empty) decode to SensitivityInternal.
func ParseSensitivity(s string) Sensitivity {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "public":
		return SensitivityPublic
	case "internal":
		return SensitivityInternal
	case "confidential":
		return SensitivityConfidential
	case "pii":
		return SensitivityPII
	default:
		return SensitivityInternal
	}
}

// ParseTableType decodes a table type string case-insensitively.
// Unrecognized values decode to TableTypeRaw.
func ParseTableType(s string) TableType {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "fact":
		return TableTypeFact
	case "dimension":
		return TableTypeDimension
	case "reference":
		return TableTypeReference
	case "staging":
		return TableTypeStaging
	case "raw":
		return TableTypeRaw
	case "view":
		return TableTypeView
	default:
		return TableTypeRaw
	}
}
