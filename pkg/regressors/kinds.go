// Package regressors builds the nuisance-regressor matrix and the
// retained-sample mask for one run from its confound table and
// outlier list.
package regressors

// Kind describes one selectable nuisance regressor family: the alias
// used in configuration, the concrete confound columns it expands to,
// and whether missing values in those columns are filled with zero.
// Fill applies to frame-difference measures whose first volumes have
// no defined value; for every other kind a missing value is an input
// error.
type Kind struct {
	Alias   string
	Columns []string
	Fill    bool
}

// ScrubAlias is not a column kind: requesting it enables scrubbing of
// detected outlier volumes from the retained sample set.
const ScrubAlias = "art"

// kinds is the closed set of supported regressor kinds. Column order
// within a kind is fixed so the design matrix is reproducible.
var kinds = []Kind{
	{
		Alias:   "FD",
		Columns: []string{"framewise_displacement"},
		Fill:    true,
	},
	{
		Alias:   "DVARS",
		Columns: []string{"std_dvars"},
		Fill:    true,
	},
	{
		Alias: "aCompCor",
		Columns: []string{
			"a_comp_cor_00",
			"a_comp_cor_01",
			"a_comp_cor_02",
			"a_comp_cor_03",
			"a_comp_cor_04",
		},
	},
}

// Lookup resolves a configuration alias to its Kind.
func Lookup(alias string) (Kind, bool) {
	for _, k := range kinds {
		if k.Alias == alias {
			return k, true
		}
	}
	return Kind{}, false
}

// Aliases returns the supported column-kind aliases in fixed order.
func Aliases() []string {
	out := make([]string, len(kinds))
	for i, k := range kinds {
		out[i] = k.Alias
	}
	return out
}
