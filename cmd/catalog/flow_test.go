package main

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/b2b-storefront/internal/catalog"
)

// ============================================
// Options Output Tests
// ============================================

func TestPrintOptions(t *testing.T) {
	rin := &catalog.Step{ID: "rin", DisplayName: "Rin"}
	facets := []catalog.AdditionalFilter{
		{Key: "marca", DisplayName: "Marca", Options: []catalog.Option{{Value: "CONTI", Count: 3}}},
	}

	tests := []struct {
		name     string
		view     catalog.View
		contains []string
		absent   []string
	}{
		{
			name: "last step at product view prints facets",
			view: catalog.View{
				CurrentStep:        rin,
				CurrentStepOptions: []catalog.Option{{Value: "R15", Count: 3}},
				IsAtProductView:    true,
				AdditionalFilters:  facets,
			},
			contains: []string{"product view", "Marca: CONTI (3)"},
			absent:   []string{"Step rin"},
		},
		{
			name: "mid flow prints step options",
			view: catalog.View{
				CurrentStep:        rin,
				CurrentStepOptions: []catalog.Option{{Value: "R15", Count: 3}},
				AdditionalFilters:  facets,
			},
			contains: []string{"Step rin (Rin)", "R15"},
			absent:   []string{"Marca"},
		},
		{
			name:     "no line selected",
			view:     catalog.View{},
			contains: []string{"No line selected"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			require.NoError(t, printOptions(&buf, tt.view))

			out := buf.String()
			for _, s := range tt.contains {
				assert.Contains(t, out, s)
			}
			for _, s := range tt.absent {
				assert.NotContains(t, out, s)
			}
		})
	}
}
