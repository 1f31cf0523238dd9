// Package validate provides struct validation using struct tags, with
// pluggable rules and templated error messages.
//
//	type signup struct {
//	    Name  string   `json:"name"  validate:"required,max=80"`
//	    Email string   `json:"email" validate:"required,email"`
//	    CC    []string `json:"cc"    validate:"max=10,dive,email"`
//	}
//
//	if err := validate.Struct(s); err != nil {
//	    for field, msgs := range err.(validate.Errors).ToMap() {
//	        fmt.Println(field, msgs)
//	    }
//	}
package validate

import (
	"fmt"
	"reflect"
	"strings"
	"sync"
)

// RuleFunc is a validation rule. It receives the field value and the rule
// parameter (the part after '=' in the tag), and returns a message key when
// validation fails or "" when the value passes.
type RuleFunc func(value any, param string) string

// Validator validates struct fields using tags.
type Validator struct {
	tagName     string
	stopOnFirst bool

	mu       sync.RWMutex
	rules    map[string]RuleFunc
	messages *MessageProvider
}

// Option configures the validator.
type Option func(*Validator)

// New creates a validator with the built-in rules.
func New(opts ...Option) *Validator {
	v := &Validator{
		tagName:  "validate",
		rules:    builtinRules(),
		messages: DefaultMessages(),
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// WithTagName sets a custom tag name (default: "validate").
func WithTagName(name string) Option {
	return func(v *Validator) { v.tagName = name }
}

// WithMessages sets a custom message provider.
func WithMessages(m *MessageProvider) Option {
	return func(v *Validator) { v.messages = m }
}

// WithStopOnFirstError stops validation after the first error.
func WithStopOnFirstError() Option {
	return func(v *Validator) { v.stopOnFirst = true }
}

// RegisterRule registers or replaces a rule.
func (v *Validator) RegisterRule(name string, fn RuleFunc) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.rules[name] = fn
}

// Struct validates a struct (or pointer to struct) using its tags.
// It returns Errors, or nil when everything passes.
func (v *Validator) Struct(s any) error {
	val := reflect.ValueOf(s)
	for val.Kind() == reflect.Ptr {
		if val.IsNil() {
			return fmt.Errorf("validate: nil %s", val.Type())
		}
		val = val.Elem()
	}
	if val.Kind() != reflect.Struct {
		return fmt.Errorf("validate: expected struct, got %s", val.Kind())
	}

	if errs := v.validateStruct(val, ""); len(errs) > 0 {
		return errs
	}
	return nil
}

// Var validates a single value against tag, e.g. Var(addr, "required,email").
func (v *Validator) Var(value any, tag string) error {
	if errs := v.validateValue(reflect.ValueOf(value), "", tag); len(errs) > 0 {
		return errs
	}
	return nil
}

func (v *Validator) validateStruct(val reflect.Value, prefix string) Errors {
	var errs Errors
	typ := val.Type()

	for i := 0; i < val.NumField(); i++ {
		field := typ.Field(i)
		if !field.IsExported() {
			continue
		}

		name := fieldName(field)
		if prefix != "" {
			name = prefix + "." + name
		}

		fv := val.Field(i)
		errs = append(errs, v.validateValue(fv, name, field.Tag.Get(v.tagName))...)
		if v.stopOnFirst && len(errs) > 0 {
			return errs
		}

		// Nested structs
		for fv.Kind() == reflect.Ptr && !fv.IsNil() {
			fv = fv.Elem()
		}
		if fv.Kind() == reflect.Struct {
			errs = append(errs, v.validateStruct(fv, name)...)
		}
	}

	return errs
}

// fieldName prefers the json name so errors line up with request payloads.
func fieldName(f reflect.StructField) string {
	if tag := f.Tag.Get("json"); tag != "" {
		if name, _, _ := strings.Cut(tag, ","); name != "" && name != "-" {
			return name
		}
	}
	return f.Name
}

func (v *Validator) validateValue(val reflect.Value, name, tag string) Errors {
	if tag == "" || tag == "-" {
		return nil
	}

	rules := parseTag(tag)
	for _, r := range rules {
		if r.name == "omitempty" && isEmpty(val) {
			return nil
		}
	}

	var value any
	if val.IsValid() && val.CanInterface() {
		value = val.Interface()
	}

	var errs Errors
	for i, r := range rules {
		switch r.name {
		case "omitempty":
			continue
		case "dive":
			errs = append(errs, v.dive(val, name, rules[i+1:])...)
			return errs
		}

		v.mu.RLock()
		fn, ok := v.rules[r.name]
		msgs := v.messages
		v.mu.RUnlock()
		if !ok {
			continue
		}

		if key := fn(value, r.param); key != "" {
			errs = append(errs, &Error{
				Field:   name,
				Rule:    r.name,
				Param:   r.param,
				Value:   value,
				Message: msgs.Get(key, name, r.param),
			})
			if v.stopOnFirst {
				return errs
			}
		}
	}
	return errs
}

// dive applies rest to every element of a slice or array.
func (v *Validator) dive(val reflect.Value, name string, rest []rule) Errors {
	for val.Kind() == reflect.Ptr || val.Kind() == reflect.Interface {
		if val.IsNil() {
			return nil
		}
		val = val.Elem()
	}
	if val.Kind() != reflect.Slice && val.Kind() != reflect.Array {
		return nil
	}

	tag := joinRules(rest)
	var errs Errors
	for i := 0; i < val.Len(); i++ {
		errs = append(errs, v.validateValue(val.Index(i), fmt.Sprintf("%s[%d]", name, i), tag)...)
		if v.stopOnFirst && len(errs) > 0 {
			return errs
		}
	}
	return errs
}

type rule struct {
	name  string
	param string
}

func parseTag(tag string) []rule {
	var rules []rule
	for _, part := range strings.Split(tag, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		name, param, _ := strings.Cut(part, "=")
		rules = append(rules, rule{name: name, param: param})
	}
	return rules
}

func joinRules(rules []rule) string {
	parts := make([]string, len(rules))
	for i, r := range rules {
		parts[i] = r.name
		if r.param != "" {
			parts[i] += "=" + r.param
		}
	}
	return strings.Join(parts, ",")
}

func isEmpty(val reflect.Value) bool {
	if !val.IsValid() {
		return true
	}
	switch val.Kind() {
	case reflect.String, reflect.Slice, reflect.Map, reflect.Array:
		return val.Len() == 0
	case reflect.Ptr, reflect.Interface:
		return val.IsNil()
	}
	return val.IsZero()
}

// Error is a single failed rule on a single field.
type Error struct {
	Field   string
	Rule    string
	Param   string
	Value   any
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

// Errors is a collection of validation errors.
type Errors []*Error

func (e Errors) Error() string {
	msgs := make([]string, len(e))
	for i, err := range e {
		msgs[i] = err.Message
	}
	return strings.Join(msgs, "; ")
}

// FieldErrors returns all errors for one field.
func (e Errors) FieldErrors(field string) Errors {
	var out Errors
	for _, err := range e {
		if err.Field == field {
			out = append(out, err)
		}
	}
	return out
}

// ToMap groups messages by field.
func (e Errors) ToMap() map[string][]string {
	out := make(map[string][]string)
	for _, err := range e {
		out[err.Field] = append(out[err.Field], err.Message)
	}
	return out
}

var defaultValidator = New()

// Struct validates s with the default validator.
func Struct(s any) error {
	return defaultValidator.Struct(s)
}

// Var validates a single value with the default validator.
func Var(value any, tag string) error {
	return defaultValidator.Var(value, tag)
}
