package schema

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"reflect"
	"slices"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
)

// Tags registered on top of validator's baked-in ones. JSON payloads decode
// into interface values, so type checks look at the dynamic kind.
const (
	tagString  = "is_string"
	tagInteger = "is_integer"
	tagBoolean = "is_boolean"
	tagArray   = "is_array"
	tagIn      = "in_list"
	// tagSized guards min and max, which validator only defines for strings,
	// numbers and collections.
	tagSized = "sized"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	register := func(tag string, fn validator.Func) {
		if err := v.RegisterValidation(tag, fn); err != nil {
			panic(err)
		}
	}

	register(tagString, func(fl validator.FieldLevel) bool {
		return fl.Field().Kind() == reflect.String
	})
	register(tagInteger, func(fl validator.FieldLevel) bool {
		_, ok := AsInt(fl.Field().Interface())
		return ok
	})
	register(tagBoolean, func(fl validator.FieldLevel) bool {
		switch x := fl.Field().Interface().(type) {
		case bool:
			return true
		case float64:
			return x == 0 || x == 1
		}
		return false
	})
	register(tagArray, func(fl validator.FieldLevel) bool {
		k := fl.Field().Kind()
		return k == reflect.Slice || k == reflect.Array
	})
	register(tagIn, func(fl validator.FieldLevel) bool {
		return slices.Contains(strings.Fields(fl.Param()), fmt.Sprint(fl.Field().Interface()))
	})
	register(tagSized, func(fl validator.FieldLevel) bool {
		switch fl.Field().Kind() {
		case reflect.String, reflect.Slice, reflect.Array, reflect.Map,
			reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
			reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
			reflect.Float32, reflect.Float64:
			return true
		}
		return false
	})
	return v
}

type rule struct {
	name string
	args []string
}

func parseRule(s string) (rule, error) {
	name, rawArgs, _ := strings.Cut(strings.TrimSpace(s), ":")
	r := rule{name: name}
	if rawArgs != "" {
		r.args = strings.Split(rawArgs, ",")
	}

	switch r.name {
	case "required", "nullable", "string", "integer", "numeric", "boolean", "array":
		if len(r.args) != 0 {
			return rule{}, fmt.Errorf("rule %q takes no arguments", r.name)
		}
	case "min", "max":
		if len(r.args) != 1 {
			return rule{}, fmt.Errorf("rule %q takes one argument", r.name)
		}
		if _, err := strconv.ParseInt(r.args[0], 10, 64); err != nil {
			return rule{}, fmt.Errorf("rule %q: bound %q must be an integer", r.name, r.args[0])
		}
	case "in":
		if len(r.args) == 0 {
			return rule{}, fmt.Errorf("rule %q needs at least one value", r.name)
		}
		for _, a := range r.args {
			if a == "" || strings.ContainsAny(a, " \t|=") {
				return rule{}, fmt.Errorf("rule %q: invalid value %q", r.name, a)
			}
		}
	default:
		return rule{}, fmt.Errorf("unknown rule %q", s)
	}
	return r, nil
}

// tag renders r in validator syntax. required and nullable render empty; they
// decide the leading tag instead.
func (r rule) tag() string {
	switch r.name {
	case "string":
		return tagString
	case "integer":
		return tagInteger
	case "numeric":
		return "numeric"
	case "boolean":
		return tagBoolean
	case "array":
		return tagArray
	case "min", "max":
		return r.name + "=" + r.args[0]
	case "in":
		return tagIn + "=" + strings.Join(r.args, " ")
	}
	return ""
}

// tagsFor translates the shape rules of sf in mode into one validator tag
// string, e.g. "is_string,sized,max=50". "required" is reported separately:
// validator treats 0 and false as missing, so presence is decided by
// normalize instead. numeric reports whether sizes compare by value.
func tagsFor(sf SubField, mode Mode) (tags string, required, numeric bool, err error) {
	sized := false
	var parts []string
	for _, raw := range sf.RulesFor(mode) {
		r, err := parseRule(raw)
		if err != nil {
			return "", false, false, err
		}
		switch r.name {
		case "required":
			required = true
			continue
		case "nullable":
			continue
		case "integer", "numeric":
			numeric = true
		case "min", "max":
			if !sized {
				parts = append(parts, tagSized)
				sized = true
			}
		}
		parts = append(parts, r.tag())
	}
	return strings.Join(parts, ","), required, numeric, nil
}

// Validate checks payload against form in the given mode and returns a
// *ValidationError holding the messages of every failing field, or nil.
//
// In Creation mode every sub-field is checked. In Update mode only keys present
// in the payload are checked, so partial updates do not trip "required".
// Empty values only answer to "required".
func Validate(payload map[string]any, form Form, mode Mode) error {
	verr := &ValidationError{}
	data := make(map[string]any, len(form.Fields))
	rules := make(map[string]any, len(form.Fields))

	for _, sf := range form.Fields {
		raw, present := payload[sf.Name]
		if mode == Update && !present {
			continue
		}
		tags, required, numeric, err := tagsFor(sf, mode)
		if err != nil {
			verr.Add(sf.Name, err.Error())
			continue
		}
		v := normalize(raw, numeric)
		switch {
		case v == nil && required:
			tags = "required"
		case v == nil, tags == "":
			continue
		}
		data[sf.Name] = v
		rules[sf.Name] = tags
	}

	for name, res := range validate.ValidateMap(data, rules) {
		err, _ := res.(error)
		var fieldErrs validator.ValidationErrors
		if !errors.As(err, &fieldErrs) {
			verr.Add(name, fmt.Sprintf("The %s is invalid.", name))
			continue
		}
		for _, fe := range fieldErrs {
			verr.Add(name, message(name, fe))
		}
	}

	if len(verr.Fields) > 0 {
		return verr
	}
	return nil
}

// normalize maps blank strings and empty arrays to nil so they count as
// missing, and numeric strings to numbers when sizes compare by value.
func normalize(v any, numeric bool) any {
	switch x := v.(type) {
	case string:
		if strings.TrimSpace(x) == "" {
			return nil
		}
		if numeric {
			if f, ok := asFloat(x); ok {
				return f
			}
		}
	case []any:
		if len(x) == 0 {
			return nil
		}
	}
	return v
}

func message(name string, fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("The %s field is required.", name)
	case tagString:
		return fmt.Sprintf("The %s must be a string.", name)
	case tagInteger:
		return fmt.Sprintf("The %s must be an integer.", name)
	case "numeric":
		return fmt.Sprintf("The %s must be a number.", name)
	case tagBoolean:
		return fmt.Sprintf("The %s field must be true or false.", name)
	case tagArray:
		return fmt.Sprintf("The %s must be an array.", name)
	case tagSized:
		return fmt.Sprintf("The %s must be a string, number or array.", name)
	case "min":
		return fmt.Sprintf("The %s must be at least %s.", name, fe.Param())
	case "max":
		return fmt.Sprintf("The %s may not be greater than %s.", name, fe.Param())
	case tagIn:
		return fmt.Sprintf("The selected %s is invalid.", name)
	}
	return fmt.Sprintf("The %s is invalid.", name)
}

// AsInt converts a decoded JSON value to an integer. Integral floats within the
// int64 range, json.Number and digit strings are accepted.
func AsInt(v any) (int64, bool) {
	switch x := v.(type) {
	case int:
		return int64(x), true
	case int64:
		return x, true
	case float64:
		// NaN fails the Trunc comparison, infinities the range check.
		if x != math.Trunc(x) || x < -(1<<63) || x >= 1<<63 {
			return 0, false
		}
		return int64(x), true
	case json.Number:
		n, err := x.Int64()
		return n, err == nil
	case string:
		n, err := strconv.ParseInt(strings.TrimSpace(x), 10, 64)
		return n, err == nil
	}
	return 0, false
}

func asFloat(v any) (float64, bool) {
	switch x := v.(type) {
	case int:
		return float64(x), true
	case int64:
		return float64(x), true
	case float64:
		return x, true
	case json.Number:
		f, err := x.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(x), 64)
		return f, err == nil
	}
	return 0, false
}
