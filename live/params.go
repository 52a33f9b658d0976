package live

import "strconv"

// Params event params.
type Params map[string]any

// String helper to get a string from the params.
func (p Params) String(key string) string {
	v, ok := p[key]
	if !ok {
		return ""
	}
	out, ok := v.(string)
	if !ok {
		return ""
	}
	return out
}

// Int helper to return an int from the params.
func (p Params) Int(key string) int {
	v, ok := p[key]
	if !ok {
		return 0
	}
	switch out := v.(type) {
	case int:
		return out
	case float64:
		return int(out)
	case string:
		i, err := strconv.Atoi(out)
		if err != nil {
			return 0
		}
		return i
	}
	return 0
}
