package services

import (
	"github.com/pharmaflow/pharmaflow-engine/pkg/models"
)

// FieldSpec binds one destination column to the source header keywords that
// indicate it. Headers are canonical; ColumnSynonyms widens each of them.
type FieldSpec struct {
	Target   string
	Required bool
	Headers  []string
}

// EntitySchema is the classification catalog entry for one destination table.
// ClassificationKeywords is a coarser set than the field headers, used only
// for composite-sheet detection, never for final column mapping.
type EntitySchema struct {
	Kind                   models.TableKind
	Description            string
	Fields                 []FieldSpec
	ClassificationKeywords []string
}

// ColumnSynonyms maps a canonical source header to spellings that mean the
// same thing. Uploaded sheets mix Korean and English freely.
var ColumnSynonyms = map[string][]string{
	// Employee headers
	"성명":   {"직원명", "사원명", "이름", "직원이름", "사원이름", "name"},
	"이름":   {"성명", "직원명", "사원명", "직원이름", "사원이름", "name"},
	"부서":   {"팀", "소속", "부서명", "팀명", "소속부서", "team"},
	"직급":   {"직책", "포지션", "position"},
	"사업부":  {"비즈니스유닛", "business_unit"},
	"연락처":  {"전화번호", "contact_number"},
	"지점":   {"branch", "지사"},

	// Customer headers
	"고객명":   {"거래처명", "기관명", "병원명", "고객이름", "거래처이름", "customer_name"},
	"기관명":   {"고객명", "거래처명", "병원명", "기관이름", "customer_name"},
	"주소":    {"address", "소재지"},
	"담당의사명": {"doctor_name", "담당자"},
	"고객등급":  {"customer_grade", "등급"},
	"메모":    {"notes", "비고", "특이사항"},
	"총환자수":  {"total_patients", "환자수"},

	// Sales headers
	"매출": {"판매금액", "금액", "매출액", "판매액", "매출금", "sale_amount"},
	"날짜": {"판매일", "매출일", "거래일", "일자", "sale_date"},

	// Product headers
	"제품명":  {"상품명", "품목명", "제품이름", "상품이름", "product_name"},
	"설명":   {"description", "제품설명", "상세정보"},
	"카테고리": {"category", "분류"},

	// Interaction headers
	"방문일":    {"상호작용일", "방문날짜", "상호작용날짜", "일자", "interacted_at"},
	"상호작용유형": {"interaction_type", "유형", "방문유형"},
	"요약":     {"summary", "내용"},
	"감정분석":   {"sentiment", "감정"},
	"준법위험도":  {"compliance_risk", "위험도"},
}

// tableCatalog enumerates every classifiable destination table.
var tableCatalog = []EntitySchema{
	{
		Kind:        models.TableEmployees,
		Description: "Sales rep HR records (name, team, position, salary).",
		Fields: []FieldSpec{
			{Target: "name", Required: true, Headers: []string{"성명", "이름"}},
			{Target: "employee_number", Headers: []string{"사번"}},
			{Target: "team", Headers: []string{"부서", "팀"}},
			{Target: "position", Headers: []string{"직급"}},
			{Target: "business_unit", Headers: []string{"사업부"}},
			{Target: "branch", Headers: []string{"지점"}},
			{Target: "contact_number", Headers: []string{"연락처"}},
			{Target: "base_salary", Headers: []string{"기본급(₩)", "기본급"}},
			{Target: "incentive_pay", Headers: []string{"성과급(₩)", "성과급"}},
			{Target: "avg_monthly_budget", Headers: []string{"월평균사용예산"}},
			{Target: "latest_evaluation", Headers: []string{"최근 평가", "최근평가"}},
		},
		ClassificationKeywords: []string{
			"사번", "직원명", "성명", "부서", "직급", "사업부", "지점", "연락처", "기본급", "성과급", "책임업무",
		},
	},
	{
		Kind:        models.TableCustomers,
		Description: "Medical institution records (name, address, patients, grade).",
		Fields: []FieldSpec{
			{Target: "customer_name", Required: true, Headers: []string{"고객명", "기관명"}},
			{Target: "address", Headers: []string{"주소"}},
			{Target: "doctor_name", Headers: []string{"담당의사명"}},
			{Target: "total_patients", Headers: []string{"총환자수"}},
			{Target: "customer_grade", Headers: []string{"고객등급"}},
			{Target: "notes", Headers: []string{"메모"}},
		},
		ClassificationKeywords: []string{
			"거래처ID", "고객명", "기관명", "주소", "총환자수", "담당자",
		},
	},
	{
		Kind:        models.TableSalesRecords,
		Description: "Sales facts (amount, date, product, customer, rep).",
		Fields: []FieldSpec{
			{Target: "sale_amount", Required: true, Headers: []string{"매출"}},
			{Target: "sale_date", Required: true, Headers: []string{"날짜"}},
			{Target: "product_name", Headers: []string{"제품명"}},
			{Target: "customer_name", Headers: []string{"고객명"}},
			{Target: "employee_name", Headers: []string{"직원명"}},
			{Target: "employee_number", Headers: []string{"사번"}},
		},
		ClassificationKeywords: []string{
			"매출", "날짜", "제품명", "수량", "단가",
		},
	},
	{
		Kind:        models.TableProducts,
		Description: "Pharmaceutical product master data.",
		Fields: []FieldSpec{
			{Target: "product_name", Required: true, Headers: []string{"제품명", "상품명"}},
			{Target: "description", Headers: []string{"설명"}},
			{Target: "category", Headers: []string{"카테고리"}},
		},
		ClassificationKeywords: []string{
			"제품명", "상품명", "가격", "단가", "카테고리",
		},
	},
	{
		Kind:        models.TableInteractionLogs,
		Description: "Employee-customer contact records.",
		Fields: []FieldSpec{
			{Target: "interacted_at", Required: true, Headers: []string{"방문일", "상호작용일", "날짜"}},
			{Target: "customer_name", Headers: []string{"고객명"}},
			{Target: "employee_name", Headers: []string{"직원명"}},
			{Target: "employee_number", Headers: []string{"사번"}},
			{Target: "interaction_type", Headers: []string{"상호작용유형"}},
			{Target: "summary", Headers: []string{"요약", "내용"}},
			{Target: "sentiment", Headers: []string{"감정분석"}},
			{Target: "compliance_risk", Headers: []string{"준법위험도"}},
		},
		ClassificationKeywords: []string{
			"방문일", "상호작용일", "내용", "결과",
		},
	},
}

// Catalog returns the classification catalog.
func Catalog() []EntitySchema {
	return tableCatalog
}

// SchemaFor returns the catalog entry for kind, or nil when kind is not a
// classifiable destination.
func SchemaFor(kind models.TableKind) *EntitySchema {
	for i := range tableCatalog {
		if tableCatalog[i].Kind == kind {
			return &tableCatalog[i]
		}
	}
	return nil
}

// TargetColumns lists the destination columns of a schema, for prompts.
func (s *EntitySchema) TargetColumns() []string {
	cols := make([]string, 0, len(s.Fields))
	for _, f := range s.Fields {
		cols = append(cols, f.Target)
	}
	return cols
}
