package validator

import (
	"brokerage/pkg/logger"
	"brokerage/pkg/model"
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (v ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", v.Field, v.Message)
}

type ValidationErrors []ValidationError

func (v ValidationErrors) Error() string {
	if len(v) == 0 {
		return ""
	}
	var messages []string
	for _, err := range v {
		messages = append(messages, err.Error())
	}
	return fmt.Sprintf("validation failed: %d error(s): [%s]", len(v), strings.Join(messages, "; "))
}

// Fields flattens the errors into a details map for the HTTP error body.
func (v ValidationErrors) Fields() map[string]any {
	fields := make(map[string]any, len(v))
	for _, err := range v {
		fields[err.Field] = err.Message
	}
	return fields
}

// VisitValidator checks request shape only. Whether a time is in the
// future or a slot is free is decided by the service against its clock
// and the store.
type VisitValidator struct {
	validate *validator.Validate
	logger   *logger.Logger
}

func NewVisitValidator(log *logger.Logger) *VisitValidator {
	v := validator.New(validator.WithRequiredStructEnabled())

	if err := v.RegisterValidation("visit_status", validateVisitStatus); err != nil {
		log.Fatal("Failed to register 'visit_status' validator",
			"error", err,
		)
	}

	log.Info("Visit validator initialized successfully")

	return &VisitValidator{
		validate: v,
		logger:   log,
	}
}

func validateVisitStatus(fl validator.FieldLevel) bool {
	status, ok := fl.Field().Interface().(model.VisitStatus)
	if !ok {
		return false
	}
	return status.Valid()
}

func (v *VisitValidator) ValidateCreate(input *model.CreateVisitInput) error {
	return v.validateStruct(input)
}

func (v *VisitValidator) ValidateSchedule(input *model.ScheduleVisitInput) error {
	return v.validateStruct(input)
}

func (v *VisitValidator) ValidateReschedule(input *model.RescheduleInput) error {
	return v.validateStruct(input)
}

func (v *VisitValidator) ValidateStatus(input *model.StatusInput) error {
	return v.validateStruct(input)
}

func (v *VisitValidator) ValidateUpdate(update *model.VisitUpdate) error {
	if update.Empty() {
		return ValidationErrors{
			ValidationError{
				Field:   "VisitUpdate",
				Message: "at least one field must be provided",
			},
		}
	}
	if update.VisitDateTime != nil && update.VisitDateTime.IsZero() {
		return ValidationErrors{
			ValidationError{
				Field:   "VisitDateTime",
				Message: "VisitDateTime is required",
			},
		}
	}
	return v.validateStruct(update)
}

func (v *VisitValidator) validateStruct(s any) error {
	if err := v.validate.Struct(s); err != nil {
		var validationErrs validator.ValidationErrors
		if errors.As(err, &validationErrs) {
			return v.translateValidationErrors(validationErrs)
		}
		return err
	}
	return nil
}

func (v *VisitValidator) translateValidationErrors(errs validator.ValidationErrors) ValidationErrors {
	var validationErrors ValidationErrors

	for _, err := range errs {
		message := err.Error()

		switch err.Tag() {
		case "required":
			message = fmt.Sprintf("%s is required", err.Field())
		case "gt":
			message = fmt.Sprintf("%s must be greater than %s", err.Field(), err.Param())
		case "visit_status":
			message = fmt.Sprintf("%s must be one of: %s", err.Field(), joinStatuses())
		}

		validationErrors = append(validationErrors, ValidationError{
			Field:   err.Field(),
			Message: message,
		})
	}

	return validationErrors
}

func joinStatuses() string {
	names := make([]string, 0, len(model.AllStatuses))
	for _, s := range model.AllStatuses {
		names = append(names, s.String())
	}
	return strings.Join(names, " ")
}
