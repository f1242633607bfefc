package settings

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// assign writes raw into the location f points at, converting the loose
// wire representation (the UI posts numbers as strings) into the typed value.
func (f field) assign(c *Config, raw any) error {
	if f.num != nil {
		n, ok := toInt(raw)
		if !ok {
			return &InvalidValueError{Key: f.key, Value: raw}
		}
		*f.num(c) = n
		return nil
	}

	s, ok := toString(raw)
	if !ok {
		return &InvalidValueError{Key: f.key, Value: raw}
	}
	*f.str(c) = s
	return nil
}

func toInt(raw any) (int, bool) {
	switch v := raw.(type) {
	case int:
		return v, true
	case int64:
		return int(v), true
	case float64:
		if v != math.Trunc(v) || math.IsInf(v, 0) {
			return 0, false
		}
		return int(v), true
	case json.Number:
		n, err := strconv.Atoi(v.String())
		return n, err == nil
	case string:
		n, err := strconv.Atoi(strings.TrimSpace(v))
		return n, err == nil
	default:
		return 0, false
	}
}

func toString(raw any) (string, bool) {
	switch v := raw.(type) {
	case string:
		return v, true
	case json.Number:
		return v.String(), true
	case int:
		return strconv.Itoa(v), true
	case int64:
		return strconv.FormatInt(v, 10), true
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64), true
	default:
		return "", false
	}
}
