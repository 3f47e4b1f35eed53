// Package validate wraps go-playground/validator with the messages providers put
// into failed Responses and ConfigErrors.
package validate

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

var v = newValidator()

func newValidator() *validator.Validate {
	vv := validator.New(validator.WithRequiredStructEnabled())
	// report option names as callers spell them in option maps
	vv.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("mapstructure"), ",")
		if name == "-" {
			return ""
		}
		if name == "" {
			return f.Name
		}
		return name
	})
	return vv
}

// Key rejects empty keys.
func Key(op, key string) error {
	return field(op, "key", key, "required")
}

// Namespace rejects empty namespaces (Flush).
func Namespace(op, ns string) error {
	return field(op, "namespace", ns, "required")
}

// TTL rejects negative durations.
func TTL(op, name string, d time.Duration) error {
	return field(op, name, int64(d), "gte=0")
}

// Increment checks step > 0 and initial >= 0.
func Increment(op string, step, initial int64) error {
	if err := field(op, "step", step, "gt=0"); err != nil {
		return err
	}
	return field(op, "initial", initial, "gte=0")
}

// Struct validates a config struct and joins every field failure.
func Struct(s any) error {
	err := v.Struct(s)
	if err == nil {
		return nil
	}
	var ves validator.ValidationErrors
	if !errors.As(err, &ves) {
		return err
	}
	errs := make([]error, 0, len(ves))
	for _, fe := range ves {
		errs = append(errs, fmt.Errorf("option %q %s, got %v", fe.Field(), describe(fe.Tag(), fe.Param()), fe.Value()))
	}
	return errors.Join(errs...)
}

func field(op, name string, value any, tag string) error {
	err := v.Var(value, tag)
	if err == nil {
		return nil
	}
	var ves validator.ValidationErrors
	if errors.As(err, &ves) && len(ves) > 0 {
		fe := ves[0]
		return fmt.Errorf("%s: %s %s", op, name, describe(fe.Tag(), fe.Param()))
	}
	return fmt.Errorf("%s: %s: %w", op, name, err)
}

func describe(tag, param string) string {
	switch tag {
	case "required":
		return "must be a non-empty string"
	case "gt":
		return "must be greater than " + param
	case "gte":
		return "must be greater than or equal to " + param
	case "lte":
		return "must be less than or equal to " + param
	case "oneof":
		return "must be one of [" + param + "]"
	default:
		return fmt.Sprintf("failed %q validation", tag)
	}
}
