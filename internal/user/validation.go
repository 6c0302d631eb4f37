package user

import (
	"errors"
	"reflect"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
)

const msgEmptyPatch = "At least one field must be provided"

var mobilePattern = regexp.MustCompile(`^[0-9]{10}$`)

var fieldLabels = map[string]string{
	"firstName": "First name",
	"lastName":  "Last name",
	"email":     "Email",
	"mobile":    "Mobile number",
	"gender":    "Gender",
	"status":    "Status",
	"location":  "Location",
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	if err := v.RegisterValidation("mobile", func(fl validator.FieldLevel) bool {
		return mobilePattern.MatchString(fl.Field().String())
	}); err != nil {
		panic(err)
	}
	return v
}

// ValidateCreate normalizes in and checks it against the create schema.
// Status defaults to Active when omitted. The returned error, when non-nil,
// is a *ValidationError holding one message per invalid field.
func ValidateCreate(in CreateInput) (CreateInput, error) {
	in.FirstName = strings.TrimSpace(in.FirstName)
	in.LastName = strings.TrimSpace(in.LastName)
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	in.Location = strings.TrimSpace(in.Location)

	if msgs := check(in); len(msgs) > 0 {
		return in, &ValidationError{Messages: msgs}
	}
	if in.Status == "" {
		in.Status = StatusActive
	}
	return in, nil
}

// ValidatePatch normalizes the supplied fields of p and checks them against
// the update schema. A patch without any field is rejected.
func ValidatePatch(p Patch) (Patch, error) {
	return validatePatch(p, false)
}

func validatePatch(p Patch, allowEmpty bool) (Patch, error) {
	if p.Empty() && !allowEmpty {
		return p, &ValidationError{Messages: []string{msgEmptyPatch}}
	}

	p.FirstName = trimmed(p.FirstName)
	p.LastName = trimmed(p.LastName)
	p.Location = trimmed(p.Location)
	if p.Email != nil {
		email := strings.ToLower(strings.TrimSpace(*p.Email))
		p.Email = &email
	}

	if msgs := check(p); len(msgs) > 0 {
		return p, &ValidationError{Messages: msgs}
	}
	return p, nil
}

// ValidateStatus checks a raw status value from a status-only update.
func ValidateStatus(raw string) (Status, error) {
	s := Status(raw)
	if !s.Valid() {
		return "", ErrInvalidStatus
	}
	return s, nil
}

func trimmed(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	return &v
}

// check runs the struct validator and renders its errors in field order.
func check(v any) []string {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return []string{err.Error()}
	}

	msgs := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		msgs = append(msgs, message(fe))
	}
	return msgs
}

func message(fe validator.FieldError) string {
	label, ok := fieldLabels[fe.Field()]
	if !ok {
		label = fe.Field()
	}

	switch fe.Tag() {
	case "required":
		return label + " is required"
	case "min":
		return label + " must be at least " + fe.Param() + " characters"
	case "max":
		return label + " cannot exceed " + fe.Param() + " characters"
	case "email":
		return "Please enter a valid email address"
	case "mobile":
		return "Please enter a valid 10-digit mobile number"
	case "oneof":
		return label + " must be either " + strings.Join(strings.Fields(fe.Param()), " or ")
	default:
		return label + " is invalid"
	}
}

// messagesOf extracts the messages of a *ValidationError, or nil.
func messagesOf(err error) []string {
	var ve *ValidationError
	if errors.As(err, &ve) {
		return ve.Messages
	}
	return nil
}
