package scoring

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// parseNumber reads a numeric response. ok is false for text that is not a
// finite number; err is set only for values of an unusable shape.
func parseNumber(response any) (v float64, ok bool, err error) {
	switch t := response.(type) {
	case string:
		v, ok = parseFloatLoose(t)
	case json.Number:
		v, ok = parseFloatLoose(t.String())
	case float64:
		v, ok = t, true
	case float32:
		v, ok = float64(t), true
	case int:
		v, ok = float64(t), true
	case int64:
		v, ok = float64(t), true
	case int32:
		v, ok = float64(t), true
	default:
		return 0, false, fmt.Errorf("unsupported value %T", response)
	}
	if ok && (math.IsNaN(v) || math.IsInf(v, 0)) {
		return 0, false, nil
	}
	return v, ok, nil
}

func parseFloatLoose(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	if v, err := strconv.ParseFloat(s, 64); err == nil {
		return v, true
	}
	return 0, false
}
