package enricher

import (
	"fmt"
	"strings"

	"github.com/jinzhu/inflection"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/cataloghq/catalog-engine/pkg/extractor"
	"github.com/cataloghq/catalog-engine/pkg/models"
)

var titleCaser = cases.Title(language.English)

// humanizeName turns a snake_case identifier into a display name,
// e.g. "order_items" becomes "Order Items".
func humanizeName(name string) string {
	return titleCaser.String(strings.ReplaceAll(name, "_", " "))
}

// entityName turns a table name into a singular entity phrase,
// e.g. "order_items" becomes "order item".
func entityName(tableName string) string {
	return inflection.Singular(strings.ReplaceAll(tableName, "_", " "))
}

// FallbackDatabaseEnrichment derives database metadata from structural facts
// alone. It seeds newly created records when no backend enrichment is
// available; existing records are never overwritten with it.
func FallbackDatabaseEnrichment(info *extractor.DatabaseInfo) *DatabaseEnrichment {
	return &DatabaseEnrichment{
		BusinessDomain: "Unknown",
		Description:    fmt.Sprintf("Database: %s", info.DatabaseName),
		Sensitivity:    models.SensitivityInternal,
	}
}

// FallbackTableEnrichment derives table metadata from the table name alone.
func FallbackTableEnrichment(info *extractor.TableInfo) *TableEnrichment {
	return &TableEnrichment{
		DisplayName:     humanizeName(info.TableName),
		Description:     fmt.Sprintf("Table: %s", info.TableName),
		TableType:       models.TableTypeRaw,
		BusinessPurpose: fmt.Sprintf("Data storage for %s records", entityName(info.TableName)),
		Sensitivity:     models.SensitivityInternal,
	}
}

// FallbackColumnEnrichment derives column metadata from the column's name
// and type.
func FallbackColumnEnrichment(info *extractor.ColumnInfo) *ColumnEnrichment {
	isPII := false
	return &ColumnEnrichment{
		Description:     fmt.Sprintf("Column: %s (%s)", info.ColumnName, info.DataType),
		IsPII:           &isPII,
		DownstreamUsage: "General purpose column",
	}
}
