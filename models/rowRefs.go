package models

import (
	"strconv"
	"strings"
)

// FormatRowRefs renders ids as a comma separated list ("12,13,14").
func FormatRowRefs(ids []RowID) string {
	parts := make([]string, 0, len(ids))
	for _, id := range ids {
		parts = append(parts, strconv.Itoa(int(id)))
	}
	return strings.Join(parts, ",")
}

// ParseRowRefs parses a comma separated id list, skipping anything that is not an integer.
func ParseRowRefs(s string) []RowID {
	var ids []RowID
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		n, err := strconv.Atoi(part)
		if err != nil {
			continue
		}
		ids = append(ids, RowID(n))
	}
	return ids
}
