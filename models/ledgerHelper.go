package models

import (
	"sort"
	"strconv"
	"strings"

	"gorm.io/gorm/clause"
)

// SELECT ... FOR UPDATE; sqlite ignores it
var lockForUpdate = clause.Locking{Strength: "UPDATE"}

func joinInts(values []int) string {
	parts := make([]string, len(values))
	for i, v := range values {
		parts[i] = "#" + strconv.Itoa(v)
	}
	return strings.Join(parts, ", ")
}

func sortStrings(values []string) {
	sort.Strings(values)
}
