package handlers

import (
	"math"
	"reflect"
	"sync"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

var registerOnce sync.Once

// RegisterValidators installs the engine's custom binding tags on gin's validator
func RegisterValidators() {
	registerOnce.Do(func() {
		if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
			_ = v.RegisterValidation("money", validateMoney)
		}
	})
}

// validateMoney accepts finite, non-negative amounts with at most two decimals
func validateMoney(fl validator.FieldLevel) bool {
	field := fl.Field()
	if field.Kind() != reflect.Float64 && field.Kind() != reflect.Float32 {
		return false
	}
	v := field.Float()
	if v < 0 || math.IsNaN(v) || math.IsInf(v, 0) {
		return false
	}
	cents := v * 100
	return math.Abs(cents-math.Round(cents)) < 1e-6
}
