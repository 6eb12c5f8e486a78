package utils

import (
	"strings"

	"github.com/go-gota/gota/dataframe"
)

func ContainsString(slice []string, s string) bool {
	for _, v := range slice {
		if v == s {
			return true
		}
	}
	return false
}

// MissingColumns returns the names in cols that df does not have.
func MissingColumns(df *dataframe.DataFrame, cols []string) []string {
	names := df.Names()
	var missing []string
	for _, c := range cols {
		if !ContainsString(names, c) {
			missing = append(missing, c)
		}
	}
	return missing
}

// ColumnValues returns the trimmed string values of a column, or nil when the column is
// absent. NaN cells come back as "".
func ColumnValues(col string, df *dataframe.DataFrame) []string {
	if df == nil || !ContainsString(df.Names(), col) {
		return nil
	}
	records := df.Col(col).Records()
	for i, v := range records {
		v = strings.TrimSpace(v)
		if isNaN(v) {
			v = ""
		}
		records[i] = v
	}
	return records
}
