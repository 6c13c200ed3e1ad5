package sonar

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/teilomillet/reprompt/errors"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	// The pattern must compile as an ECMAScript regular expression.
	_ = v.RegisterValidation("regexp", func(fl validator.FieldLevel) bool {
		_, err := compilePattern(fl.Field().String())
		return err == nil
	})
	return v
}

// Validate checks the request before it is sent. It returns a validation
// error listing every failed field.
func (r *ChatRequest) Validate() error {
	details := map[string]interface{}{}

	if err := validate.Struct(r); err != nil {
		verrs, ok := err.(validator.ValidationErrors)
		if !ok {
			return errors.NewValidationError("", "invalid chat request", map[string]interface{}{"error": err.Error()})
		}
		for _, fe := range verrs {
			details[trimNamespace(fe.Namespace())] = fe.Tag()
		}
	}

	for i, m := range r.Messages {
		if i > 0 && m.Role == RoleSystem {
			details[fmt.Sprintf("messages[%d].role", i)] = "system message must be first"
		}
	}

	if len(details) == 0 {
		return nil
	}
	return errors.NewValidationError("", "invalid chat request", details)
}

// trimNamespace drops the leading struct name from a validator namespace.
func trimNamespace(ns string) string {
	if i := strings.Index(ns, "."); i >= 0 {
		return ns[i+1:]
	}
	return ns
}
