package validator

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

// Validator wraps go-playground validation with the domain rules of this
// service. One instance is shared by all services.
type Validator struct {
	validate *validator.Validate
}

// ValidationError describes one failed rule on one field.
type ValidationError struct {
	Field   string      `json:"field"`
	Message string      `json:"message"`
	Value   interface{} `json:"value,omitempty"`
	Rule    string      `json:"rule,omitempty"`
}

type ValidationErrors []ValidationError

func (ve ValidationErrors) Error() string {
	if len(ve) == 0 {
		return "validation failed"
	}
	if len(ve) == 1 {
		return fmt.Sprintf("validation failed: %s %s", ve[0].Field, ve[0].Message)
	}
	return fmt.Sprintf("validation failed: %d field errors", len(ve))
}

// New creates a validator with all domain rules registered.
func New() *Validator {
	validate := validator.New()

	// Report the json field name, not the Go field name.
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	v := &Validator{validate: validate}
	v.registerDomainRules()

	return v
}

// Validate checks a struct and returns nil or ValidationErrors.
func (v *Validator) Validate(s interface{}) error {
	err := v.validate.Struct(s)
	if err == nil {
		return nil
	}

	var fieldErrors validator.ValidationErrors
	if !errors.As(err, &fieldErrors) {
		return ValidationErrors{{Field: "", Message: err.Error(), Rule: "struct"}}
	}

	out := make(ValidationErrors, 0, len(fieldErrors))
	for _, fe := range fieldErrors {
		out = append(out, ValidationError{
			Field:   fe.Field(),
			Message: errorMessage(fe),
			Value:   fe.Value(),
			Rule:    fe.Tag(),
		})
	}
	return out
}

func (v *Validator) registerDomainRules() {
	v.validate.RegisterValidation("test_title", func(fl validator.FieldLevel) bool {
		title := strings.TrimSpace(fl.Field().String())
		return len(title) >= 1 && len(title) <= 200
	})

	// Duration is seconds: 30 seconds up to 4 hours.
	v.validate.RegisterValidation("test_duration", func(fl validator.FieldLevel) bool {
		d := fl.Field().Int()
		return d >= 30 && d <= 14400
	})

	// CorrectOption must index into Options.
	v.validate.RegisterStructValidation(func(sl validator.StructLevel) {
		req := sl.Current().Interface().(QuestionCreateRequest)
		if req.CorrectOption < 0 || req.CorrectOption >= len(req.Options) {
			sl.ReportError(req.CorrectOption, "correct_option", "CorrectOption", "option_range", "")
		}
	}, QuestionCreateRequest{})
}

func errorMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "min":
		return fmt.Sprintf("must be at least %s", fe.Param())
	case "max":
		return fmt.Sprintf("must be at most %s", fe.Param())
	case "oneof":
		return fmt.Sprintf("must be one of: %s", fe.Param())
	case "test_title":
		return "must be between 1 and 200 characters"
	case "test_duration":
		return "must be between 30 and 14400 seconds"
	case "option_range":
		return "must index into the options list"
	default:
		return fmt.Sprintf("failed rule %q", fe.Tag())
	}
}
