package validation

import (
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"

	"whatado/event-service/internal/errs"
	"whatado/event-service/internal/models"
)

// Validator wraps go-playground validator with the event domain rules
type Validator struct {
	validate *validator.Validate
}

// New creates a validator with the custom rules registered
func New() *Validator {
	v := validator.New()

	// report json field names rather than Go field names
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return f.Name
		}
		return name
	})

	v.RegisterValidation("privacy", validatePrivacy)
	v.RegisterValidation("gender_filter", validateGenderFilter)
	v.RegisterValidation("sort_mode", validateSortMode)

	return &Validator{validate: v}
}

// Validate validates a struct. Field failures are returned as a FieldErrors
// in the InvalidArgument category.
func (v *Validator) Validate(i interface{}) error {
	err := v.validate.Struct(i)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return errs.Invalid(err)
	}
	fields := make(FieldErrors, len(verrs))
	for _, fe := range verrs {
		fields[fe.Field()] = message(fe)
	}
	return errs.Invalid(fields)
}

// Var validates a single value against tag
func (v *Validator) Var(field string, value interface{}, tag string) error {
	if err := v.validate.Var(value, tag); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			return errs.Invalid(FieldErrors{field: message(verrs[0])})
		}
		return errs.Invalid(err)
	}
	return nil
}

func validatePrivacy(fl validator.FieldLevel) bool {
	return models.Privacy(fl.Field().String()).Valid()
}

func validateGenderFilter(fl validator.FieldLevel) bool {
	return models.Gender(fl.Field().String()).ValidFilter()
}

func validateSortMode(fl validator.FieldLevel) bool {
	return models.SortMode(fl.Field().String()).Valid()
}

func message(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("The %s field is required", fe.Field())
	case "max":
		return fmt.Sprintf("The %s field must not exceed %s", fe.Field(), fe.Param())
	case "min", "gte":
		return fmt.Sprintf("The %s field must be at least %s", fe.Field(), fe.Param())
	case "lte":
		return fmt.Sprintf("The %s field must be at most %s", fe.Field(), fe.Param())
	case "gtefield":
		return fmt.Sprintf("The %s field must not be less than %s", fe.Field(), fe.Param())
	case "url":
		return fmt.Sprintf("The %s field must be a valid URL", fe.Field())
	case "privacy":
		return fmt.Sprintf("The %s field must be one of: PUBLIC GROUP PRIVATE", fe.Field())
	case "gender_filter":
		return fmt.Sprintf("The %s field must be one of: FEMALE MALE BOTH", fe.Field())
	case "sort_mode":
		return fmt.Sprintf("The %s field must be one of: SOONEST NEWEST", fe.Field())
	}
	return fmt.Sprintf("The %s field is invalid", fe.Field())
}

// FieldErrors maps a json field name to its message
type FieldErrors map[string]string

// Error encodes the fields as JSON so they survive a gRPC status message
func (f FieldErrors) Error() string {
	data, err := json.Marshal(struct {
		Fields map[string]string `json:"fields"`
	}{Fields: f})
	if err != nil {
		keys := make([]string, 0, len(f))
		for k := range f {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		if len(keys) > 0 {
			return f[keys[0]]
		}
		return "validation error"
	}
	return string(data)
}

// Decode parses a message produced by FieldErrors.Error
func Decode(msg string) (FieldErrors, bool) {
	var data struct {
		Fields map[string]string `json:"fields"`
	}
	if err := json.Unmarshal([]byte(msg), &data); err != nil || len(data.Fields) == 0 {
		return nil, false
	}
	return FieldErrors(data.Fields), true
}
