package catalog

import (
	"maps"
	"time"

	"github.com/example/b2b-storefront/internal/domain/product"
)

// State is the mutable flow state. SelectedLine "" means no line is chosen.
// SelectedValues holds main-flow values keyed by step id and facet values
// keyed by product field; the two key spaces never overlap.
type State struct {
	SelectedLine   string            `json:"selectedLine"`
	StepIndex      int               `json:"stepIndex"`
	SelectedValues map[string]string `json:"selectedValues"`
	SearchQuery    string            `json:"searchQuery"`
	EditingFilter  string            `json:"editingFilter,omitempty"`
}

func (s State) clone() State {
	s.SelectedValues = maps.Clone(s.SelectedValues)
	if s.SelectedValues == nil {
		s.SelectedValues = make(map[string]string)
	}
	return s
}

// Snapshot is the persisted catalogState document.
type Snapshot struct {
	SelectedLinea    *string           `json:"selectedLinea"`
	CurrentStepIndex int               `json:"currentStepIndex"`
	SelectedValues   map[string]string `json:"selectedValues"`
	SearchQuery      string            `json:"searchQuery"`
	Timestamp        int64             `json:"timestamp"`
}

// Engine drives the cascading filter wizard over an immutable product snapshot.
// It is not safe for concurrent use; callers serialize access.
type Engine struct {
	cfg      *Config
	products []product.Product
	state    State
}

func NewEngine(cfg *Config, products []product.Product) *Engine {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	return &Engine{
		cfg:      cfg,
		products: products,
		state:    State{SelectedValues: make(map[string]string)},
	}
}

// SetProducts swaps the product snapshot without touching the flow state.
func (e *Engine) SetProducts(products []product.Product) {
	e.products = products
}

func (e *Engine) Products() []product.Product {
	return e.products
}

func (e *Engine) Config() *Config {
	return e.cfg
}

// State returns a copy of the current state.
func (e *Engine) State() State {
	return e.state.clone()
}

// SelectLine resets the flow onto a line; "" returns to line selection.
func (e *Engine) SelectLine(line string) {
	e.state = State{
		SelectedLine:   line,
		SelectedValues: make(map[string]string),
		SearchQuery:    e.state.SearchQuery,
	}
}

// SelectFilterValue records a value for the current step and advances.
// Without a current step it does nothing.
func (e *Engine) SelectFilterValue(value string) {
	step, ok := CurrentStep(e.cfg, e.state)
	if !ok {
		return
	}
	e.state.SelectedValues[step.ID] = value
	e.state.EditingFilter = ""
	if step.NextStep != "" {
		e.state.StepIndex++
	}
}

// GoToPreviousStep steps back one stage, dropping the left step's value and
// everything after it. At the first step it returns to line selection.
func (e *Engine) GoToPreviousStep() {
	if e.state.StepIndex <= 0 {
		e.SelectLine("")
		return
	}
	leaving := e.state.StepIndex
	e.state.StepIndex--
	e.clearFrom(leaving)
	e.clearFacets()
	e.state.EditingFilter = ""
}

// GoToFilterStep reopens an earlier step for editing. Unknown ids are ignored.
func (e *Engine) GoToFilterStep(stepID string) {
	idx := e.cfg.stepIndex(e.state.SelectedLine, stepID)
	if idx < 0 {
		return
	}
	e.state.StepIndex = idx
	e.state.EditingFilter = stepID
	e.clearFrom(idx)
	e.clearFacets()
}

// ApplyAdditionalFilter sets a facet value. It only applies at the product
// view and never to a main-flow key; an empty value clears the facet.
func (e *Engine) ApplyAdditionalFilter(key, value string) {
	if key == "" || e.cfg.isStep(e.state.SelectedLine, key) {
		return
	}
	if !IsAtProductView(e.cfg, e.state) {
		return
	}
	if value == "" {
		delete(e.state.SelectedValues, key)
		return
	}
	e.state.SelectedValues[key] = value
}

func (e *Engine) ClearAdditionalFilter(key string) {
	if e.cfg.isStep(e.state.SelectedLine, key) {
		return
	}
	delete(e.state.SelectedValues, key)
}

func (e *Engine) HandleSearchChange(query string) {
	e.state.SearchQuery = query
}

// View recomputes every derived value from the current state.
func (e *Engine) View() View {
	return Derive(e.cfg, e.products, e.state)
}

// Snapshot captures the state for persistence.
func (e *Engine) Snapshot(now time.Time) Snapshot {
	snap := Snapshot{
		CurrentStepIndex: e.state.StepIndex,
		SelectedValues:   maps.Clone(e.state.SelectedValues),
		SearchQuery:      e.state.SearchQuery,
		Timestamp:        now.UnixMilli(),
	}
	if e.state.SelectedLine != "" {
		line := e.state.SelectedLine
		snap.SelectedLinea = &line
	}
	if snap.SelectedValues == nil {
		snap.SelectedValues = make(map[string]string)
	}
	return snap
}

// Restore rehydrates from a snapshot. Main-flow values after the first gap
// are dropped and the step index is recomputed from the surviving prefix.
// Facets survive only if the restored state is at the product view.
func (e *Engine) Restore(snap Snapshot) {
	line := ""
	if snap.SelectedLinea != nil {
		line = *snap.SelectedLinea
	}
	state := State{
		SelectedLine:   line,
		SelectedValues: make(map[string]string),
		SearchQuery:    snap.SearchQuery,
	}

	steps := e.cfg.Steps(line)
	prefix := 0
	for _, step := range steps {
		v, ok := snap.SelectedValues[step.ID]
		if !ok || v == "" {
			break
		}
		state.SelectedValues[step.ID] = v
		prefix++
	}
	switch {
	case len(steps) == 0:
		state.StepIndex = 0
	case prefix >= len(steps):
		state.StepIndex = len(steps) - 1
	default:
		state.StepIndex = prefix
	}

	if IsAtProductView(e.cfg, state) {
		for k, v := range snap.SelectedValues {
			if v == "" || e.cfg.isStep(line, k) {
				continue
			}
			state.SelectedValues[k] = v
		}
	}
	e.state = state
}

func (e *Engine) clearFrom(idx int) {
	steps := e.cfg.Steps(e.state.SelectedLine)
	for i := idx; i < len(steps); i++ {
		delete(e.state.SelectedValues, steps[i].ID)
	}
}

func (e *Engine) clearFacets() {
	for k := range e.state.SelectedValues {
		if !e.cfg.isStep(e.state.SelectedLine, k) {
			delete(e.state.SelectedValues, k)
		}
	}
}
