package chat

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	// 错误里用 json 字段名
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	_ = v.RegisterValidation("notblank", func(fl validator.FieldLevel) bool {
		return strings.TrimSpace(fl.Field().String()) != ""
	})
	return v
}

// validateRequest checks a decoded request against its validate tags. Any
// failure wraps ErrInvalidData, a missing roomId is ErrRoomIDRequired.
func validateRequest(req interface{}) error {
	err := validate.Struct(req)
	if err == nil {
		return nil
	}
	var fields validator.ValidationErrors
	if !errors.As(err, &fields) {
		return fmt.Errorf("%w: %v", ErrInvalidData, err)
	}
	parts := make([]string, 0, len(fields))
	for _, fe := range fields {
		if fe.Field() == "roomId" && fe.Tag() == "required" {
			return ErrRoomIDRequired
		}
		parts = append(parts, fe.Field()+" "+fe.Tag())
	}
	return fmt.Errorf("%w: %s", ErrInvalidData, strings.Join(parts, ", "))
}

func requireRoomID(roomID int64) error {
	if validate.Var(roomID, "required") != nil {
		return ErrRoomIDRequired
	}
	return nil
}
