package logging

import (
	"fmt"
	"strings"

	"github.com/vvka-141/dynis/pkg/dynis"
)

// Interpolate replaces {name} placeholders with the matching field values.
// Unknown placeholders are left untouched.
func Interpolate(message string, fields dynis.Fields) string {
	if len(fields) == 0 || !strings.Contains(message, "{") {
		return message
	}
	pairs := make([]string, 0, len(fields)*2)
	for k, v := range fields {
		pairs = append(pairs, "{"+k+"}", fmt.Sprint(v))
	}
	return strings.NewReplacer(pairs...).Replace(message)
}

func merge(base, extra dynis.Fields) dynis.Fields {
	if len(base) == 0 {
		return extra
	}
	if len(extra) == 0 {
		return base
	}
	out := make(dynis.Fields, len(base)+len(extra))
	for k, v := range base {
		out[k] = v
	}
	for k, v := range extra {
		out[k] = v
	}
	return out
}
