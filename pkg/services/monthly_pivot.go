package services

import (
	"regexp"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/pharmaflow/pharmaflow-engine/pkg/models"
)

// monthlyPivotMinColumns is how many YYYYMM columns a sheet needs before it
// is treated as a wide month-as-column layout.
const monthlyPivotMinColumns = 10

var yyyymmPattern = regexp.MustCompile(`^\d{6}$`)

// subtotalKeywords mark aggregate rows that must not become individual
// sales facts.
var subtotalKeywords = []string{"합계", "총합계", "total", "sum"}

// PivotedSale is one (row, month) cell of a wide sheet flattened into an
// individual sales fact. Names are unresolved; the upsert engine turns them
// into foreign keys.
type PivotedSale struct {
	EmployeeName   string
	EmployeeNumber string
	CustomerName   string
	ProductName    string
	SaleAmount     float64
	SaleDate       time.Time
}

// MonthlyPivotExpander flattens "wide" sales sheets whose columns are
// months (202401, 202402, ...) into one record per positive month cell.
type MonthlyPivotExpander struct {
	logger *zap.Logger
}

// NewMonthlyPivotExpander creates a MonthlyPivotExpander.
func NewMonthlyPivotExpander(logger *zap.Logger) *MonthlyPivotExpander {
	return &MonthlyPivotExpander{logger: logger.Named("monthly-pivot")}
}

// IsMonthlyPivot reports whether the sheet is a wide month layout: at least
// monthlyPivotMinColumns distinct YYYYMM columns across the raw columns and
// the mapped source columns.
func (e *MonthlyPivotExpander) IsMonthlyPivot(columns []string, mapping map[string]string) bool {
	months := make(map[string]struct{})
	for _, col := range columns {
		if yyyymmPattern.MatchString(strings.TrimSpace(col)) {
			months[strings.TrimSpace(col)] = struct{}{}
		}
	}
	for source := range mapping {
		if yyyymmPattern.MatchString(strings.TrimSpace(source)) {
			months[strings.TrimSpace(source)] = struct{}{}
		}
	}

	if len(months) >= monthlyPivotMinColumns {
		e.logger.Info("monthly pivot layout detected", zap.Int("month_columns", len(months)))
		return true
	}
	return false
}

// Expand flattens the sheet. mapping is source column -> target field; the
// employee/customer/product columns are found through it. Rules:
// rows without an employee or product are dropped, subtotal rows are
// dropped, a blank customer inherits the nearest non-blank customer above,
// and only positive numeric month cells produce records.
// Returns the records and the number of dropped rows.
func (e *MonthlyPivotExpander) Expand(table models.Table, mapping map[string]string) ([]PivotedSale, int) {
	source := invertMapping(mapping)

	var (
		sales            []PivotedSale
		skippedRows      int
		lastCustomerName string
	)

	for _, row := range table.Rows {
		employeeName := row.Cell(source["employee_name"])
		employeeNumber := row.Cell(source["employee_number"])
		customerName := row.Cell(source["customer_name"])
		productName := row.Cell(source["product_name"])

		if employeeName == "" || productName == "" {
			skippedRows++
			continue
		}
		if isSubtotal(productName) || isSubtotal(customerName) {
			skippedRows++
			continue
		}

		// Merged cells export as blanks on continuation rows.
		if customerName != "" {
			lastCustomerName = customerName
		} else {
			customerName = lastCustomerName
		}

		for _, col := range table.Columns {
			month := strings.TrimSpace(col)
			if !yyyymmPattern.MatchString(month) {
				continue
			}

			saleDate, ok := monthStart(month)
			if !ok {
				continue
			}

			amount, ok := parseNumeric(row.Cell(col))
			if !ok || amount <= 0 {
				continue
			}

			sales = append(sales, PivotedSale{
				EmployeeName:   employeeName,
				EmployeeNumber: employeeNumber,
				CustomerName:   customerName,
				ProductName:    productName,
				SaleAmount:     amount,
				SaleDate:       saleDate,
			})
		}
	}

	e.logger.Info("monthly pivot expanded",
		zap.Int("source_rows", len(table.Rows)),
		zap.Int("skipped_rows", skippedRows),
		zap.Int("sales_records", len(sales)))

	return sales, skippedRows
}

// monthStart converts "202403" to 2024-03-01. Month digits outside 01-12
// reject the column.
func monthStart(yyyymm string) (time.Time, bool) {
	year := (int(yyyymm[0]-'0')*1000 + int(yyyymm[1]-'0')*100 + int(yyyymm[2]-'0')*10 + int(yyyymm[3]-'0'))
	month := int(yyyymm[4]-'0')*10 + int(yyyymm[5]-'0')
	if month < 1 || month > 12 {
		return time.Time{}, false
	}
	return time.Date(year, time.Month(month), 1, 0, 0, 0, 0, time.UTC), true
}

func isSubtotal(value string) bool {
	lower := strings.ToLower(value)
	for _, kw := range subtotalKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

// pivotIdentityMapping maps a wide sheet's identity columns onto sales-record
// fields directly from the headers, for when the classifier aimed the sheet
// at another table. Month columns need no mapping; Expand reads them from the
// raw headers.
func pivotIdentityMapping(columns []string) map[string]string {
	schema := SchemaFor(models.TableSalesRecords)
	mapping := make(map[string]string)

	for _, col := range columns {
		if yyyymmPattern.MatchString(strings.TrimSpace(col)) {
			continue
		}
		for i := range schema.Fields {
			if columnMatchesField(col, &schema.Fields[i]) {
				mapping[col] = schema.Fields[i].Target
				break
			}
		}
	}
	return mapping
}

// invertMapping flips source->target to target->source. When two source
// columns map to the same target, the first in iteration order wins; wide
// sheets do not legitimately duplicate identity columns.
func invertMapping(mapping map[string]string) map[string]string {
	inverse := make(map[string]string, len(mapping))
	for source, target := range mapping {
		if _, exists := inverse[target]; !exists {
			inverse[target] = source
		}
	}
	return inverse
}
