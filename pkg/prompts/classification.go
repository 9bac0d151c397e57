package prompts

import (
	"fmt"
	"strings"
)

// TableClassificationSystemMessage frames the model as a CRM data steward.
const TableClassificationSystemMessage = `You are a data steward for a pharmaceutical sales CRM. ` +
	`You classify uploaded spreadsheet tables into known database tables and map their columns. ` +
	`Column headers may be in Korean or English. Respond with JSON only.`

// TargetTable describes one candidate destination table for classification.
type TargetTable struct {
	Name        string
	Description string
	Columns     []string
}

// SampleRow is one uploaded row rendered as header -> value text.
type SampleRow map[string]string

// BuildTableClassificationPrompt creates the prompt asking the model to pick
// a destination table for an uploaded sheet and map its source columns onto
// destination columns. The response contract is a single JSON object.
func BuildTableClassificationPrompt(columns []string, samples []SampleRow, targets []TargetTable) string {
	var prompt strings.Builder

	prompt.WriteString("# Table Classification\n\n")
	prompt.WriteString("An uploaded spreadsheet must be routed to exactly one CRM table.\n\n")

	prompt.WriteString("## Uploaded Columns\n\n")
	for _, col := range columns {
		prompt.WriteString(fmt.Sprintf("- %s\n", col))
	}
	prompt.WriteString("\n")

	if len(samples) > 0 {
		prompt.WriteString("## Sample Rows\n\n")
		for i, row := range samples {
			prompt.WriteString(fmt.Sprintf("Row %d:\n", i+1))
			for _, col := range columns {
				if v, ok := row[col]; ok && v != "" {
					prompt.WriteString(fmt.Sprintf("  %s: %s\n", col, v))
				}
			}
		}
		prompt.WriteString("\n")
	}

	prompt.WriteString("## Candidate Tables\n\n")
	for _, target := range targets {
		prompt.WriteString(fmt.Sprintf("### %s\n", target.Name))
		if target.Description != "" {
			prompt.WriteString(target.Description + "\n")
		}
		prompt.WriteString(fmt.Sprintf("Columns: %s\n\n", strings.Join(target.Columns, ", ")))
	}

	prompt.WriteString("## Instructions\n\n")
	prompt.WriteString("1. Pick the single best target_table, or \"unknown\" if none fits.\n")
	prompt.WriteString("2. Map each uploaded column you can place onto a target column. ")
	prompt.WriteString("Only use uploaded columns that actually appear above; never invent source columns.\n")
	prompt.WriteString("3. Give a confidence between 0.0 and 1.0.\n\n")

	prompt.WriteString("Respond with JSON in exactly this shape:\n")
	prompt.WriteString(`{"target_table": "employees", "confidence": 0.9, "reasoning": "short explanation", "column_mapping": {"uploaded column": "target_column"}}`)
	prompt.WriteString("\n")

	return prompt.String()
}

// DocumentAnalysisSystemMessage frames the model as a document librarian.
const DocumentAnalysisSystemMessage = `You are a document librarian for a pharmaceutical sales CRM. ` +
	`You categorize uploaded documents and identify which CRM entities they concern. ` +
	`Respond with JSON only.`

// BuildDocumentAnalysisPrompt asks the model to categorize a document and
// assign it one of the known document types.
func BuildDocumentAnalysisPrompt(title, excerpt string) string {
	var prompt strings.Builder

	prompt.WriteString("# Document Analysis\n\n")
	prompt.WriteString(fmt.Sprintf("Title: %s\n\n", title))
	if excerpt != "" {
		prompt.WriteString("Excerpt:\n")
		prompt.WriteString(excerpt)
		prompt.WriteString("\n\n")
	}

	prompt.WriteString("## Instructions\n\n")
	prompt.WriteString("1. category is \"table\" for row/column data, \"text\" for prose documents.\n")
	prompt.WriteString("2. doc_type is one of: performance_data, customer_info, hr_data, regulation, report.\n")
	prompt.WriteString("3. Give a confidence between 0 and 100.\n\n")

	prompt.WriteString("Respond with JSON in exactly this shape:\n")
	prompt.WriteString(`{"category": "text", "doc_type": "regulation", "confidence": 85, "reasoning": "short explanation"}`)
	prompt.WriteString("\n")

	return prompt.String()
}
