package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/pharmaflow/pharmaflow-engine/pkg/models"
)

func TestCompositeSplitter_IsComposite(t *testing.T) {
	splitter := NewCompositeSplitter(zap.NewNop())

	tests := []struct {
		name    string
		columns []string
		want    bool
	}{
		{
			name:    "employee and customer columns interleaved",
			columns: []string{"성명", "사번", "고객명", "주소"},
			want:    true,
		},
		{
			name:    "pure employee sheet",
			columns: []string{"성명", "사번", "부서", "직급"},
			want:    false,
		},
		{
			name:    "second entity claims only one column",
			columns: []string{"성명", "사번", "고객명"},
			want:    false,
		},
		{
			name:    "nothing recognized",
			columns: []string{"alpha", "beta"},
			want:    false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, splitter.IsComposite(tt.columns))
		})
	}
}

func TestCompositeSplitter_Split(t *testing.T) {
	splitter := NewCompositeSplitter(zap.NewNop())

	table := models.NewTable([]string{"성명", "사번", "고객명", "주소"}, []models.Row{
		{"성명": "김철수", "사번": "EMP-001", "고객명": "중앙병원", "주소": "서울시 강남구"},
		{"성명": "이영희", "사번": "EMP-002", "고객명": "", "주소": ""},
	})

	result := splitter.Split(table)

	employees, ok := result[models.TableEmployees]
	require.True(t, ok, "employee sub-table missing")
	assert.ElementsMatch(t, []string{"성명", "사번"}, employees.Columns)
	assert.Len(t, employees.Rows, 2)

	customers, ok := result[models.TableCustomers]
	require.True(t, ok, "customer sub-table missing")
	assert.ElementsMatch(t, []string{"고객명", "주소"}, customers.Columns)
	// The second row contributes nothing to the customer side.
	assert.Len(t, customers.Rows, 1)
	assert.Equal(t, "중앙병원", customers.Rows[0].Cell("고객명"))
}

func TestCompositeSplitter_ColumnCanServeTwoEntities(t *testing.T) {
	splitter := NewCompositeSplitter(zap.NewNop())

	// 제품명 is a keyword for both sales_records and products.
	table := models.NewTable([]string{"제품명", "단가", "매출", "날짜"}, []models.Row{
		{"제품명": "타이레놀", "단가": "1200", "매출": "36000", "날짜": "2024-02-01"},
	})

	require.True(t, splitter.IsComposite(table.Columns))
	result := splitter.Split(table)

	products, ok := result[models.TableProducts]
	require.True(t, ok)
	assert.Contains(t, products.Columns, "제품명")

	sales, ok := result[models.TableSalesRecords]
	require.True(t, ok)
	assert.Contains(t, sales.Columns, "제품명")
}
