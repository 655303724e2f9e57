package persistence

import (
	"net/url"
	"sort"
	"strconv"

	"github.com/example/b2b-storefront/internal/catalog"
	"github.com/example/b2b-storefront/internal/grid"
)

// Query parameters owned by the grid and the catalog flow.
const (
	ParamSort   = "sort"
	ParamPage   = "page"
	ParamLimit  = "limit"
	ParamStock  = "stock"
	ParamLine   = "linea"
	ParamSearch = "q"
)

var gridParams = []string{ParamSort, ParamPage, ParamLimit, ParamStock}

func reservedParam(key string) bool {
	switch key {
	case ParamSort, ParamPage, ParamLimit, ParamStock, ParamLine, ParamSearch:
		return true
	}
	return false
}

// HasGridParams reports whether any grid parameter is present.
func HasGridParams(v url.Values) bool {
	for _, k := range gridParams {
		if _, ok := v[k]; ok {
			return true
		}
	}
	return false
}

// MergeGrid copies the grid params present in src into dst.
func MergeGrid(dst, src url.Values) {
	for _, k := range gridParams {
		if vals, ok := src[k]; ok {
			dst[k] = append([]string(nil), vals...)
		}
	}
}

// EncodeGrid writes the grid state into v, replacing existing grid params.
func EncodeGrid(s grid.State, v url.Values) {
	v.Set(ParamSort, string(s.SortBy))
	v.Set(ParamPage, strconv.Itoa(s.CurrentPage))
	v.Set(ParamLimit, strconv.Itoa(s.ItemsPerPage))
	v.Set(ParamStock, string(s.StockFilter))
}

// DecodeGrid reads the grid state, filling gaps from defaults and applying
// the page size floor. Malformed numbers fall back to the defaults.
func DecodeGrid(v url.Values, defaults grid.State) grid.State {
	s := defaults
	if sortBy := v.Get(ParamSort); sortBy != "" {
		s.SortBy = grid.SortBy(sortBy)
	}
	if stock := v.Get(ParamStock); stock != "" {
		s.StockFilter = grid.StockFilter(stock)
	}
	if page, err := strconv.Atoi(v.Get(ParamPage)); err == nil {
		s.CurrentPage = page
	}
	if limit, err := strconv.Atoi(v.Get(ParamLimit)); err == nil {
		s.ItemsPerPage = limit
	}
	return s.Normalize()
}

// gridQuery returns only the grid params of v in canonical form.
func gridQuery(v url.Values) string {
	sub := url.Values{}
	for _, k := range gridParams {
		if val := v.Get(k); val != "" {
			sub.Set(k, val)
		}
	}
	return sub.Encode()
}

// EncodeFlow writes the catalog flow state: the line, the search and one
// parameter per selected step or facet.
func EncodeFlow(st catalog.State, v url.Values) {
	for k := range v {
		if !reservedParam(k) {
			v.Del(k)
		}
	}
	v.Del(ParamLine)
	v.Del(ParamSearch)

	if st.SelectedLine != "" {
		v.Set(ParamLine, st.SelectedLine)
	}
	if st.SearchQuery != "" {
		v.Set(ParamSearch, st.SearchQuery)
	}
	keys := make([]string, 0, len(st.SelectedValues))
	for k := range st.SelectedValues {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if reservedParam(k) {
			continue
		}
		v.Set(k, st.SelectedValues[k])
	}
}

// HasFlowParams reports whether the query carries a catalog line.
func HasFlowParams(v url.Values) bool {
	return v.Get(ParamLine) != ""
}

// DecodeFlow builds a snapshot from the query. Restoring it into an engine
// enforces the step prefix rule.
func DecodeFlow(v url.Values) catalog.Snapshot {
	snap := catalog.Snapshot{
		SelectedValues: make(map[string]string),
		SearchQuery:    v.Get(ParamSearch),
	}
	if line := v.Get(ParamLine); line != "" {
		snap.SelectedLinea = &line
	}
	for k := range v {
		if reservedParam(k) {
			continue
		}
		if val := v.Get(k); val != "" {
			snap.SelectedValues[k] = val
		}
	}
	return snap
}
