package models

import "time"

// Employee is a sales rep's HR record. EmployeeNumber is the natural key:
// it is optional in source data but required for any lookup, because two
// employees may legitimately share a name.
type Employee struct {
	EmployeeID       int64     `json:"employee_id"`
	EmployeeNumber   *string   `json:"employee_number,omitempty"`
	Name             string    `json:"name"`
	Team             *string   `json:"team,omitempty"`
	Position         *string   `json:"position,omitempty"`
	BusinessUnit     *string   `json:"business_unit,omitempty"`
	Branch           *string   `json:"branch,omitempty"`
	ContactNumber    *string   `json:"contact_number,omitempty"`
	BaseSalary       *int64    `json:"base_salary,omitempty"`
	IncentivePay     *int64    `json:"incentive_pay,omitempty"`
	AvgMonthlyBudget *int64    `json:"avg_monthly_budget,omitempty"`
	LatestEvaluation *string   `json:"latest_evaluation,omitempty"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}
