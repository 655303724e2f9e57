package catalog

import (
	"sort"
	"strings"

	"github.com/example/b2b-storefront/internal/domain/product"
)

// AvailableLine is a business line present in the product list.
type AvailableLine struct {
	Key         string `json:"key"`
	DisplayName string `json:"displayName"`
	Icon        string `json:"icon,omitempty"`
	Description string `json:"description,omitempty"`
	Count       int    `json:"count"`
}

// Option is a selectable value with the number of products behind it.
type Option struct {
	Value string `json:"value"`
	Count int    `json:"count"`
}

// AdditionalFilter is a facet surfaced at the product view.
type AdditionalFilter struct {
	Key         string   `json:"key"`
	DisplayName string   `json:"displayName"`
	Options     []Option `json:"options"`
	Selected    string   `json:"selected,omitempty"`
}

// View bundles the derived values for one state.
type View struct {
	AvailableLines     []AvailableLine    `json:"availableLines"`
	CurrentStep        *Step              `json:"currentStep,omitempty"`
	CurrentStepOptions []Option           `json:"currentStepOptions"`
	IsAtProductView    bool               `json:"isAtProductView"`
	FilteredProducts   []product.Product  `json:"-"`
	AdditionalFilters  []AdditionalFilter `json:"additionalFilters"`
}

// Derive computes every derived value. It is pure: the same inputs always
// give the same output.
func Derive(cfg *Config, products []product.Product, state State) View {
	v := View{
		AvailableLines:     AvailableLines(cfg, products),
		CurrentStepOptions: CurrentStepOptions(cfg, products, state),
		IsAtProductView:    IsAtProductView(cfg, state),
		FilteredProducts:   FilteredProducts(cfg, products, state),
		AdditionalFilters:  AdditionalFilters(cfg, products, state),
	}
	if step, ok := CurrentStep(cfg, state); ok {
		v.CurrentStep = &step
	}
	return v
}

func AvailableLines(cfg *Config, products []product.Product) []AvailableLine {
	counts := make(map[string]int)
	for _, p := range products {
		if p.LineaNegocio == "" {
			continue
		}
		counts[p.LineaNegocio]++
	}

	lines := make([]AvailableLine, 0, len(counts))
	for key, count := range counts {
		display := cfg.LineDisplay(key)
		lines = append(lines, AvailableLine{
			Key:         key,
			DisplayName: display.DisplayName,
			Icon:        display.Icon,
			Description: display.Description,
			Count:       count,
		})
	}
	sort.Slice(lines, func(i, j int) bool { return lines[i].Key < lines[j].Key })
	return lines
}

// CurrentStep returns the step at StepIndex for the selected line.
func CurrentStep(cfg *Config, state State) (Step, bool) {
	if state.SelectedLine == "" {
		return Step{}, false
	}
	steps := cfg.Steps(state.SelectedLine)
	if state.StepIndex < 0 || state.StepIndex >= len(steps) {
		return Step{}, false
	}
	return steps[state.StepIndex], true
}

// CurrentStepOptions lists the values of the current step's field among
// products of the line that match every other selected main-flow value.
func CurrentStepOptions(cfg *Config, products []product.Product, state State) []Option {
	step, ok := CurrentStep(cfg, state)
	if !ok {
		return []Option{}
	}
	field := cfg.FieldFor(step.ID)

	counts := make(map[string]int)
	for _, p := range products {
		if p.LineaNegocio != state.SelectedLine {
			continue
		}
		if !matchesMainFlow(cfg, state, p, step.ID) {
			continue
		}
		if v := p.Field(field); v != "" {
			counts[v]++
		}
	}
	return sortedOptions(counts)
}

// IsAtProductView reports whether filtering is complete.
func IsAtProductView(cfg *Config, state State) bool {
	if state.SelectedLine == "" {
		return false
	}
	if len(cfg.Steps(state.SelectedLine)) == 0 {
		return true
	}
	step, ok := CurrentStep(cfg, state)
	if !ok || step.NextStep != "" {
		return false
	}
	_, selected := state.SelectedValues[step.ID]
	return selected && state.EditingFilter == ""
}

// FilteredProducts applies the line, main-flow values, facets and free-text
// search. Duplicate ids collapse to their first occurrence. With no line
// selected only the search applies.
func FilteredProducts(cfg *Config, products []product.Product, state State) []product.Product {
	seen := make(map[string]bool)
	out := make([]product.Product, 0)
	for _, p := range products {
		if state.SelectedLine != "" && p.LineaNegocio != state.SelectedLine {
			continue
		}
		if !matchesMainFlow(cfg, state, p, "") {
			continue
		}
		if !matchesFacets(cfg, state, p, "") {
			continue
		}
		if !MatchesSearch(p, state.SearchQuery) {
			continue
		}
		if seen[p.ID] {
			continue
		}
		seen[p.ID] = true
		out = append(out, p)
	}
	return out
}

// AdditionalFilters computes the facets for the product view. Each facet's
// counts honour the main flow and every other chosen facet. Facets with a
// single distinct value are suppressed.
func AdditionalFilters(cfg *Config, products []product.Product, state State) []AdditionalFilter {
	if !IsAtProductView(cfg, state) {
		return []AdditionalFilter{}
	}

	base := make([]product.Product, 0)
	for _, p := range products {
		if p.LineaNegocio == state.SelectedLine && matchesMainFlow(cfg, state, p, "") {
			base = append(base, p)
		}
	}

	filters := make([]AdditionalFilter, 0)
	for _, facet := range cfg.Facets(state.SelectedLine) {
		counts := make(map[string]int)
		for _, p := range base {
			if !matchesFacets(cfg, state, p, facet.Key) {
				continue
			}
			if v := p.Field(facet.Key); v != "" {
				counts[v]++
			}
		}
		if len(counts) <= 1 {
			continue
		}
		name := facet.DisplayName
		if name == "" {
			name = facet.Key
		}
		filters = append(filters, AdditionalFilter{
			Key:         facet.Key,
			DisplayName: name,
			Options:     sortedOptions(counts),
			Selected:    state.SelectedValues[facet.Key],
		})
	}
	return filters
}

// MatchesSearch is a case-insensitive substring match on name, brand,
// category and description.
func MatchesSearch(p product.Product, query string) bool {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return true
	}
	for _, s := range []string{p.Name, p.Brand, p.CategoryName(), p.Description} {
		if strings.Contains(strings.ToLower(s), q) {
			return true
		}
	}
	return false
}

func matchesMainFlow(cfg *Config, state State, p product.Product, skipStep string) bool {
	for _, step := range cfg.Steps(state.SelectedLine) {
		if step.ID == skipStep {
			continue
		}
		want, ok := state.SelectedValues[step.ID]
		if !ok {
			continue
		}
		if p.Field(cfg.FieldFor(step.ID)) != want {
			return false
		}
	}
	return true
}

func matchesFacets(cfg *Config, state State, p product.Product, skipKey string) bool {
	for key, want := range state.SelectedValues {
		if key == skipKey || cfg.isStep(state.SelectedLine, key) {
			continue
		}
		if p.Field(key) != want {
			return false
		}
	}
	return true
}

func sortedOptions(counts map[string]int) []Option {
	opts := make([]Option, 0, len(counts))
	for v, c := range counts {
		opts = append(opts, Option{Value: v, Count: c})
	}
	sort.Slice(opts, func(i, j int) bool { return opts[i].Value < opts[j].Value })
	return opts
}
