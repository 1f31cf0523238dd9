package validate

import (
	"reflect"
	"strconv"
	"strings"

	"github.com/dalemusser/mailcheck/emailsyntax"
)

func builtinRules() map[string]RuleFunc {
	return map[string]RuleFunc{
		"required": ruleRequired,
		"email":    ruleEmail,
		"min":      ruleMin,
		"max":      ruleMax,
		"len":      ruleLen,
		"oneof":    ruleOneOf,
	}
}

func ruleRequired(value any, _ string) string {
	if value == nil {
		return "required"
	}

	val := reflect.ValueOf(value)
	switch val.Kind() {
	case reflect.String:
		if strings.TrimSpace(val.String()) == "" {
			return "required"
		}
	case reflect.Slice, reflect.Map, reflect.Array:
		if val.Len() == 0 {
			return "required"
		}
	case reflect.Ptr, reflect.Interface:
		if val.IsNil() {
			return "required"
		}
	}
	// Zero numbers and false are valid.
	return ""
}

// ruleEmail applies the emailsyntax check. Empty values pass so that
// "email" composes with "required" and "omitempty"; non-text values fail.
func ruleEmail(value any, _ string) string {
	if value == nil {
		return ""
	}
	switch emailsyntax.Check(value) {
	case emailsyntax.OK, emailsyntax.Empty:
		return ""
	}
	return "email"
}

func ruleMin(value any, param string) string {
	return compareSize(value, param, "min", func(size, limit float64) bool { return size >= limit })
}

func ruleMax(value any, param string) string {
	return compareSize(value, param, "max", func(size, limit float64) bool { return size <= limit })
}

func ruleLen(value any, param string) string {
	return compareSize(value, param, "len", func(size, limit float64) bool { return size == limit })
}

// compareSize measures value (rune count for strings, length for
// collections, the number itself for numerics) and returns key when ok
// reports false. Unparseable params and unsupported kinds pass.
func compareSize(value any, param, key string, ok func(size, limit float64) bool) string {
	if value == nil {
		return ""
	}
	limit, err := strconv.ParseFloat(param, 64)
	if err != nil {
		return ""
	}

	var size float64
	val := reflect.ValueOf(value)
	switch val.Kind() {
	case reflect.String:
		size = float64(len([]rune(val.String())))
	case reflect.Slice, reflect.Map, reflect.Array:
		size = float64(val.Len())
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		size = float64(val.Int())
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		size = float64(val.Uint())
	case reflect.Float32, reflect.Float64:
		size = val.Float()
	default:
		return ""
	}

	if !ok(size, limit) {
		return key
	}
	return ""
}

// ruleOneOf takes a space-separated list of allowed values: oneof=text json yaml.
func ruleOneOf(value any, param string) string {
	if value == nil {
		return ""
	}
	s := toString(value)
	if s == "" {
		return ""
	}
	for _, allowed := range strings.Fields(param) {
		if s == allowed {
			return ""
		}
	}
	return "oneof"
}

func toString(value any) string {
	val := reflect.ValueOf(value)
	switch val.Kind() {
	case reflect.String:
		return val.String()
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return strconv.FormatInt(val.Int(), 10)
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return strconv.FormatUint(val.Uint(), 10)
	}
	return ""
}
