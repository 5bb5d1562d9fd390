package lib

import "strings"

// Settings is a generic configuration map, used throughout memfit instead of
// typed config structs so that arena, chunk-cache, and VM tunables can be
// mixed from multiple sources (defaults, environment string, caller
// overrides) before being consumed.
type Settings map[string]interface{}

// Section creates a new Settings object with parameters starting with prefix.
func (setts Settings) Section(prefix string) Settings {
	section := make(Settings)
	for key, value := range setts {
		if strings.HasPrefix(key, prefix) {
			section[key] = value
		}
	}
	return section
}

// Mixin overrides setts with the supplied Settings/map values, in order.
func (setts Settings) Mixin(settings ...interface{}) Settings {
	update := func(arg map[string]interface{}) {
		for key, value := range arg {
			setts[key] = value
		}
	}
	for _, arg := range settings {
		switch cnf := arg.(type) {
		case Settings:
			update(map[string]interface{}(cnf))
		case map[string]interface{}:
			update(cnf)
		}
	}
	return setts
}

// Bool returns the boolean value for key.
func (setts Settings) Bool(key string) bool {
	value, ok := setts[key]
	if !ok {
		panicerr("missing settings %q", key)
	}
	val, ok := value.(bool)
	if !ok {
		panicerr("settings %q not a bool: %T", key, value)
	}
	return val
}

// Int64 returns the int64 value for key, converting from any numeric type.
func (setts Settings) Int64(key string) int64 {
	value, ok := setts[key]
	if !ok {
		panicerr("missing settings %q", key)
	}
	switch val := value.(type) {
	case float64:
		return int64(val)
	case float32:
		return int64(val)
	case uint:
		return int64(val)
	case uint64:
		return int64(val)
	case uint32:
		return int64(val)
	case uint16:
		return int64(val)
	case uint8:
		return int64(val)
	case int:
		return int64(val)
	case int64:
		return val
	case int32:
		return int64(val)
	case int16:
		return int64(val)
	case int8:
		return int64(val)
	}
	panicerr("settings %v not a number: %T", key, value)
	return 0
}

// String returns the string value for key.
func (setts Settings) String(key string) string {
	value, ok := setts[key]
	if !ok {
		panicerr("missing settings %q", key)
	}
	val, ok := value.(string)
	if !ok {
		panicerr("settings %q not a string: %T", key, value)
	}
	return val
}
