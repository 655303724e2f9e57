package product

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ============================================
// FromRecord Tests
// ============================================

func TestFromRecord_Valid(t *testing.T) {
	record := map[string]any{
		"id":            "LL-001",
		"name":          " Llanta 205/55 R16 ",
		"price":         120.5,
		"discount":      10,
		"stock":         "8",
		"brand":         "Continental",
		"empresaId":     "EMP1",
		"lineaNegocio":  "LLANTAS",
		"DMA_CATEGORIA": "AUTO",
		"DMA_RIN":       16,
	}

	p, ok := FromRecord(record)

	require.True(t, ok)
	assert.Equal(t, "LL-001", p.ID)
	assert.Equal(t, "Llanta 205/55 R16", p.Name)
	require.NotNil(t, p.Price)
	assert.Equal(t, 120.5, *p.Price)
	assert.Equal(t, 10.0, p.Discount)
	assert.Equal(t, 8, p.Stock)
	assert.Equal(t, "EMP1", p.EmpresaID)
	assert.Equal(t, "LLANTAS", p.LineaNegocio)
	assert.Equal(t, "AUTO", p.Field(FieldCategoria))
	assert.Equal(t, "16", p.Field(FieldRin))
}

func TestFromRecord_MissingRequiredFields(t *testing.T) {
	tests := []struct {
		name   string
		record map[string]any
	}{
		{"nil record", nil},
		{"missing id", map[string]any{"name": "X"}},
		{"blank id", map[string]any{"id": "  ", "name": "X"}},
		{"missing name", map[string]any{"id": "1"}},
		{"wrong type for stock", map[string]any{"id": "1", "name": "X", "stock": []string{"a"}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, ok := FromRecord(tt.record)
			assert.False(t, ok)
		})
	}
}

func TestFromRecord_NullPrice(t *testing.T) {
	p, ok := FromRecord(map[string]any{"id": "1", "name": "Sin precio", "price": nil})

	require.True(t, ok)
	assert.False(t, p.HasPrice())
	assert.Equal(t, 0.0, p.PriceValue())
}

func TestFromRecord_LineFallsBackToUpstreamField(t *testing.T) {
	p, ok := FromRecord(map[string]any{"id": "1", "name": "Aceite", "DMA_LINEANEGOCIO": "LUBRICANTES"})

	require.True(t, ok)
	assert.Equal(t, "LUBRICANTES", p.LineaNegocio)
}

func TestFromRecord_DiscountClamped(t *testing.T) {
	p, ok := FromRecord(map[string]any{"id": "1", "name": "X", "discount": 150})
	require.True(t, ok)
	assert.Equal(t, 100.0, p.Discount)

	p, ok = FromRecord(map[string]any{"id": "2", "name": "Y", "discount": -5})
	require.True(t, ok)
	assert.Equal(t, 0.0, p.Discount)
}

func TestFromRecord_JSONNumbers(t *testing.T) {
	var record map[string]any
	dec := json.NewDecoder(strings.NewReader(`{"id":"9","name":"Filtro","price":15.75,"stock":3,"DMA_CODIGO":12345678901}`))
	dec.UseNumber()
	require.NoError(t, dec.Decode(&record))

	p, ok := FromRecord(record)

	require.True(t, ok)
	assert.Equal(t, 15.75, p.PriceValue())
	assert.Equal(t, 3, p.Stock)
	assert.Equal(t, "12345678901", p.Field("DMA_CODIGO"))
}

func TestFromRecords_SkipsBadRecords(t *testing.T) {
	records := []map[string]any{
		{"id": "1", "name": "A"},
		{"name": "no id"},
		{"id": "3", "name": "C"},
	}

	products := FromRecords(records)

	require.Len(t, products, 2)
	assert.Equal(t, "1", products[0].ID)
	assert.Equal(t, "3", products[1].ID)
}

// ============================================
// Accessor Tests
// ============================================

func TestProduct_Field(t *testing.T) {
	p := Product{OriginalData: map[string]any{
		"DMA_MARCA": "  Shell ",
		"DMA_NULL":  nil,
		"DMA_NUM":   10.5,
	}}

	assert.Equal(t, "Shell", p.Field("DMA_MARCA"))
	assert.Equal(t, "", p.Field("DMA_NULL"))
	assert.Equal(t, "", p.Field("DMA_MISSING"))
	assert.Equal(t, "10.5", p.Field("DMA_NUM"))
}

func TestProduct_CategoryName(t *testing.T) {
	p := Product{OriginalData: map[string]any{FieldCategoria: "MOTO"}}
	assert.Equal(t, "MOTO", p.CategoryName())

	p.Category = "Motocicleta"
	assert.Equal(t, "Motocicleta", p.CategoryName())
}

func TestProduct_Classification(t *testing.T) {
	p := Product{OriginalData: map[string]any{FieldClasificacion: "b"}}
	assert.Equal(t, "B", p.Classification())
}
