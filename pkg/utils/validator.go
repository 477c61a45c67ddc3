package utils

import (
	"errors"
	"reflect"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
)

var (
	EventIDPattern   = regexp.MustCompile(`^[a-z0-9-]{3,80}$`)
	EventDatePattern = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)
)

type Validator struct {
	validate *validator.Validate
}

func NewValidator() *Validator {
	v := validator.New()

	// Report json field names so messages match the request payload.
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return fld.Name
		}
		return name
	})

	// Custom validations
	_ = v.RegisterValidation("eventid", validateEventID)
	_ = v.RegisterValidation("eventdate", validateEventDate)
	_ = v.RegisterValidation("image_mime", validateImageMime)

	return &Validator{
		validate: v,
	}
}

func (v *Validator) Struct(s interface{}) error {
	return v.validate.Struct(s)
}

// Message turns the first validation failure into the client-facing text.
func (v *Validator) Message(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return "Invalid request"
	}

	fe := verrs[0]
	switch fe.Tag() {
	case "required":
		return "Missing " + fe.Field()
	case "eventid":
		return "Invalid eventId"
	case "eventdate":
		return "Invalid date format (YYYY-MM-DD)"
	case "image_mime":
		return "Only image uploads allowed"
	default:
		return "Invalid " + fe.Field()
	}
}

func IsValidEventID(id string) bool {
	return EventIDPattern.MatchString(id)
}

func validateEventID(fl validator.FieldLevel) bool {
	return IsValidEventID(fl.Field().String())
}

func validateEventDate(fl validator.FieldLevel) bool {
	return EventDatePattern.MatchString(fl.Field().String())
}

// Any image/* type is accepted; the extension map decides the stored suffix.
func validateImageMime(fl validator.FieldLevel) bool {
	return strings.HasPrefix(fl.Field().String(), "image/")
}
