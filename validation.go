package authcore

import (
	"regexp"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	"github.com/goliatone/go-errors"
	"github.com/nyaruka/phonenumbers"
)

var (
	reLowercase = regexp.MustCompile(`[a-z]`)
	reUppercase = regexp.MustCompile(`[A-Z]`)
	reDigit     = regexp.MustCompile(`[0-9]`)
	reSpecial   = regexp.MustCompile(`[@$!%*?&#._\-]`)
	reUsername  = regexp.MustCompile(`^[a-zA-Z0-9]+$`)
)

// RegistrationInput carries the fields a caller submits to open an account.
type RegistrationInput struct {
	Email     string `json:"email"`
	Password  string `json:"password"`
	Username  string `json:"username"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Phone     string `json:"phone,omitempty"`
}

// registrationFieldOrder fixes the order violations are reported in, so the
// first failing field is deterministic regardless of map iteration.
var registrationFieldOrder = []string{
	"email", "password", "username", "first_name", "last_name", "phone",
}

// FieldViolation names a single field that failed validation and why.
type FieldViolation struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// Validate runs the registration rules and returns nil or a categorized
// validation error carrying the ordered violation list in its metadata.
func (r RegistrationInput) Validate() error {
	err := validation.ValidateStruct(&r,
		validation.Field(
			&r.Email,
			validation.Required.Error("email is required"),
			is.Email.Error("must be a valid email address"),
		),
		validation.Field(
			&r.Password,
			validation.Required.Error("password is required"),
			validation.Length(8, 72).Error("must be between 8 and 72 characters"),
			validation.Match(reLowercase).Error("must contain a lowercase letter"),
			validation.Match(reUppercase).Error("must contain an uppercase letter"),
			validation.Match(reDigit).Error("must contain a digit"),
			validation.Match(reSpecial).Error("must contain a special character"),
		),
		validation.Field(
			&r.Username,
			validation.Required.Error("username is required"),
			validation.Length(3, 30).Error("must be between 3 and 30 characters"),
			validation.Match(reUsername).Error("must be alphanumeric"),
		),
		validation.Field(
			&r.FirstName,
			validation.Required.Error("first name is required"),
			validation.Length(2, 50).Error("must be between 2 and 50 characters"),
		),
		validation.Field(
			&r.LastName,
			validation.Required.Error("last name is required"),
			validation.Length(2, 50).Error("must be between 2 and 50 characters"),
		),
		validation.Field(
			&r.Phone,
			validation.By(validPhoneNumber),
		),
	)
	if err == nil {
		return nil
	}

	violations := violationsFrom(err)

	return errors.New("registration input failed validation", errors.CategoryValidation).
		WithTextCode(TextCodeInvalidRegistration).
		WithCode(errors.CodeBadRequest).
		WithMetadata(map[string]any{"violations": violations})
}

// validPhoneNumber accepts an empty value; registration does not require a
// phone. Non-empty values must parse as a real number in E.164 form.
func validPhoneNumber(value any) error {
	phone, _ := value.(string)
	if phone == "" {
		return nil
	}

	parsed, err := phonenumbers.Parse(phone, "")
	if err != nil {
		return errors.New("must be a valid phone number in international format", errors.CategoryValidation)
	}
	if !phonenumbers.IsValidNumber(parsed) {
		return errors.New("must be a valid phone number", errors.CategoryValidation)
	}
	return nil
}

func violationsFrom(err error) []FieldViolation {
	verrs, ok := err.(validation.Errors)
	if !ok {
		return []FieldViolation{{Field: "input", Message: err.Error()}}
	}

	fieldMessages := map[string]string{}
	for field, ferr := range verrs {
		fieldMessages[strings.ToLower(field)] = ferr.Error()
	}

	out := make([]FieldViolation, 0, len(fieldMessages))
	for _, field := range registrationFieldOrder {
		if msg, ok := fieldMessages[field]; ok {
			out = append(out, FieldViolation{Field: field, Message: msg})
		}
	}
	for field, msg := range fieldMessages {
		if !containsField(out, field) {
			out = append(out, FieldViolation{Field: field, Message: msg})
		}
	}
	return out
}

func containsField(violations []FieldViolation, field string) bool {
	for _, v := range violations {
		if v.Field == field {
			return true
		}
	}
	return false
}

// ViolationsFromError extracts the ordered violation list from a validation
// error, or nil when err is not one of ours.
func ViolationsFromError(err error) []FieldViolation {
	var rich *errors.Error
	if !errors.As(err, &rich) {
		return nil
	}
	if rich.Category != errors.CategoryValidation || rich.Metadata == nil {
		return nil
	}
	violations, _ := rich.Metadata["violations"].([]FieldViolation)
	return violations
}
