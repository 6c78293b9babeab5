// Package validator registers domain validations with gin's binding engine,
// so enum fields are rejected at bind time with a field-level message.
package validator

import (
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	"github.com/iosifidis/msc-pims/internal/model"
)

// Register installs the custom validations. Call once at startup.
func Register() error {
	v, ok := binding.Validator.Engine().(*validator.Validate)
	if !ok {
		return nil
	}

	if err := v.RegisterValidation("appointment_type", func(fl validator.FieldLevel) bool {
		return model.AppointmentType(fl.Field().String()).Valid()
	}); err != nil {
		return err
	}
	if err := v.RegisterValidation("appointment_status", func(fl validator.FieldLevel) bool {
		return model.AppointmentStatus(fl.Field().String()).Valid()
	}); err != nil {
		return err
	}
	return nil
}
