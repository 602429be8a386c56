package httpserver

import (
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
)

type CustomValidator struct {
	V *validator.Validate
}

func NewValidator(v *validator.Validate) *CustomValidator {
	if v == nil {
		v = validator.New()
	}
	return &CustomValidator{V: v}
}

func (cv *CustomValidator) Validate(i any) error {
	return cv.V.Struct(i)
}

var _ echo.Validator = (*CustomValidator)(nil)
