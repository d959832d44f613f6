package validator

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
)

var (
	once     sync.Once
	validate *validator.Validate
)

// ValidationError represents a single field validation failure.
type ValidationError struct {
	Field string `json:"field"`
	Tag   string `json:"tag"`
	Param string `json:"param"`
}

// ValidationErrors collects multiple validation failures.
type ValidationErrors []ValidationError

func (v ValidationErrors) Error() string {
	if len(v) == 0 {
		return "validation failed"
	}

	parts := make([]string, len(v))
	for i, err := range v {
		if err.Param != "" {
			parts[i] = err.Field + " failed on " + err.Tag + "=" + err.Param
		} else {
			parts[i] = err.Field + " failed on " + err.Tag
		}
	}
	return strings.Join(parts, "; ")
}

// ValidateStruct validates a struct using registered rules.
func ValidateStruct(s interface{}) error {
	err := getValidator().Struct(s)
	if err == nil {
		return nil
	}

	var ve validator.ValidationErrors
	if errors.As(err, &ve) {
		failures := make(ValidationErrors, 0, len(ve))
		for _, fe := range ve {
			failures = append(failures, ValidationError{
				Field: fe.Field(),
				Tag:   fe.Tag(),
				Param: fe.Param(),
			})
		}
		return failures
	}

	return err
}

// Describe renders the first validation failure as a client-facing sentence.
func Describe(err error) string {
	var failures ValidationErrors
	if !errors.As(err, &failures) || len(failures) == 0 {
		if err == nil {
			return ""
		}
		return err.Error()
	}

	f := failures[0]
	switch f.Tag {
	case "required":
		return fmt.Sprintf("%s is required", f.Field)
	case "min", "gte":
		return fmt.Sprintf("%s must be at least %s", f.Field, f.Param)
	case "max", "lte":
		return fmt.Sprintf("%s must be at most %s", f.Field, f.Param)
	case "safefilename":
		return fmt.Sprintf("%s must not contain path separators", f.Field)
	default:
		return fmt.Sprintf("%s is invalid", f.Field)
	}
}

// RegisterValidation exposes underlying validator custom rules.
func RegisterValidation(tag string, fn validator.Func) error {
	return getValidator().RegisterValidation(tag, fn)
}

// IsSafeFilename reports whether name is a single path segment. Separators are
// refused, so "." and ".." are the only names that could escape a key prefix.
func IsSafeFilename(name string) bool {
	if name == "" || name == "." || name == ".." {
		return false
	}
	if strings.ContainsAny(name, `/\`) {
		return false
	}
	return !strings.ContainsRune(name, 0)
}

func getValidator() *validator.Validate {
	once.Do(func() {
		validate = validator.New()
		validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name := fld.Tag.Get("json")
			if name == "" {
				return fld.Name
			}

			comma := strings.Index(name, ",")
			if comma != -1 {
				name = name[:comma]
			}

			if name == "-" || name == "" {
				return fld.Name
			}
			return name
		})
		_ = validate.RegisterValidation("safefilename", func(fl validator.FieldLevel) bool {
			return IsSafeFilename(fl.Field().String())
		})
	})
	return validate
}
