package product

import (
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/mitchellh/mapstructure"
)

var ErrProductNotFound = errors.New("product not found")

// Upstream fields consumed by the catalog flow and the grid.
const (
	FieldCategoria     = "DMA_CATEGORIA"
	FieldAplicacion    = "DMA_APLICACION"
	FieldSubaplicacion = "DMA_SUBAPLICACION"
	FieldRin           = "DMA_RIN"
	FieldClase         = "DMA_CLASE"
	FieldViscosidad    = "DMA_VISCOSIDAD"
	FieldGrupo         = "DMA_GRUPO"
	FieldSubgrupo      = "DMA_SUBGRUPO"
	FieldMarca         = "DMA_MARCA"
	FieldAncho         = "DMA_ANCHO"
	FieldSerie         = "DMA_SERIE"
	FieldPresentacion  = "DMA_PRESENTACION"
	FieldLineaNegocio  = "DMA_LINEANEGOCIO"
	FieldClasificacion = "DMA_CLASIFICACION"
)

// Product is a catalog item already normalized from the backend record.
// OriginalData keeps the full upstream record for pass-through fields.
type Product struct {
	ID            string              `json:"id" mapstructure:"id"`
	Name          string              `json:"name" mapstructure:"name"`
	Price         *float64            `json:"price" mapstructure:"price"`
	Discount      float64             `json:"discount" mapstructure:"discount"`
	Stock         int                 `json:"stock" mapstructure:"stock"`
	Brand         string              `json:"brand" mapstructure:"brand"`
	EmpresaID     string              `json:"empresaId" mapstructure:"empresaId"`
	LineaNegocio  string              `json:"lineaNegocio" mapstructure:"lineaNegocio"`
	Category      string              `json:"category,omitempty" mapstructure:"category"`
	Description   string              `json:"description,omitempty" mapstructure:"description"`
	Rating        float64             `json:"rating,omitempty" mapstructure:"rating"`
	Specs         map[string]string   `json:"specs,omitempty" mapstructure:"specs"`
	FiltersByType map[string][]string `json:"filtersByType,omitempty" mapstructure:"filtersByType"`
	OriginalData  map[string]any      `json:"originalData,omitempty" mapstructure:"-"`
}

// Field returns the trimmed string form of an upstream field, or "" when absent.
func (p Product) Field(name string) string {
	v, ok := p.OriginalData[name]
	if !ok || v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return strings.TrimSpace(s)
	}
	return strings.TrimSpace(fmt.Sprint(v))
}

// CategoryName prefers the normalized category and falls back to DMA_CATEGORIA.
func (p Product) CategoryName() string {
	if p.Category != "" {
		return p.Category
	}
	return p.Field(FieldCategoria)
}

// Classification returns the A/B/C class used by the default sort.
func (p Product) Classification() string {
	return strings.ToUpper(p.Field(FieldClasificacion))
}

func (p Product) HasPrice() bool {
	return p.Price != nil
}

// PriceValue returns the price, treating a missing price as zero.
func (p Product) PriceValue() float64 {
	if p.Price == nil {
		return 0
	}
	return *p.Price
}

// FromRecord decodes a backend record. It reports false for records
// missing an id or a name so callers can drop them.
func FromRecord(record map[string]any) (Product, bool) {
	if record == nil {
		return Product{}, false
	}

	var p Product
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		WeaklyTypedInput: true,
		Result:           &p,
	})
	if err != nil {
		return Product{}, false
	}
	if err := decoder.Decode(record); err != nil {
		return Product{}, false
	}

	p.ID = strings.TrimSpace(p.ID)
	p.Name = strings.TrimSpace(p.Name)
	if p.ID == "" || p.Name == "" {
		return Product{}, false
	}

	p.OriginalData = make(map[string]any, len(record))
	for k, v := range record {
		p.OriginalData[k] = v
	}
	if p.LineaNegocio == "" {
		p.LineaNegocio = p.Field(FieldLineaNegocio)
	}
	if p.Discount < 0 {
		p.Discount = 0
	}
	if p.Discount > 100 {
		p.Discount = 100
	}
	return p, true
}

// FromRecords normalizes a list, skipping malformed records.
func FromRecords(records []map[string]any) []Product {
	products := make([]Product, 0, len(records))
	skipped := 0
	for _, rec := range records {
		p, ok := FromRecord(rec)
		if !ok {
			skipped++
			continue
		}
		products = append(products, p)
	}
	if skipped > 0 {
		log.Printf("[Product] Skipped %d malformed records out of %d", skipped, len(records))
	}
	return products
}
