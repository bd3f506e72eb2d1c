package api

import (
	"reflect"

	"github.com/gin-gonic/gin/binding"

	"github.com/p-n-ai/pai-learn/internal/platform/validation"
)

// structValidator runs the shared validator (validate tags, English
// messages) inside gin's binding, so bind errors carry field details.
type structValidator struct{}

func (structValidator) ValidateStruct(obj any) error {
	v := reflect.ValueOf(obj)
	for v.Kind() == reflect.Pointer {
		if v.IsNil() {
			return nil
		}
		v = v.Elem()
	}
	if v.Kind() != reflect.Struct {
		return nil
	}
	return validation.Struct(obj)
}

func (structValidator) Engine() any {
	return validation.Validator()
}

func init() {
	binding.Validator = structValidator{}
}
