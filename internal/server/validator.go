package server

import (
	"github.com/go-playground/validator/v10"
)

// Validator проверяет тела запросов по тегам validate
type Validator struct {
	validate *validator.Validate
}

// NewValidator создает валидатор для echo
func NewValidator() *Validator {
	return &Validator{validate: validator.New()}
}

// Validate implements echo.Validator
func (v *Validator) Validate(i interface{}) error {
	return v.validate.Struct(i)
}
