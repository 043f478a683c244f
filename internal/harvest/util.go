package harvest

import "time"

func getString(item map[string]any, key, defaultVal string) string {
	if v, ok := item[key]; ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return defaultVal
}

func getFloat(item map[string]any, key string, defaultVal float64) float64 {
	if v, ok := item[key]; ok {
		switch f := v.(type) {
		case float64:
			return f
		case int:
			return float64(f)
		case int64:
			return float64(f)
		}
	}
	return defaultVal
}

func getBool(item map[string]any, key string, defaultVal bool) bool {
	if v, ok := item[key]; ok {
		if b, ok := v.(bool); ok {
			return b
		}
	}
	return defaultVal
}

// getTime parses RFC3339 or date-only timestamps out of raw source items.
// Returns the zero time when the field is missing or malformed.
func getTime(item map[string]any, key string) time.Time {
	s := getString(item, key, "")
	if s == "" {
		return time.Time{}
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}

func firstString(item map[string]any, keys ...string) string {
	for _, k := range keys {
		if s := getString(item, k, ""); s != "" {
			return s
		}
	}
	return ""
}

func firstFloat(item map[string]any, keys ...string) float64 {
	for _, k := range keys {
		if v := getFloat(item, k, -1); v >= 0 {
			return v
		}
	}
	return 0
}
