package validator

import (
	"errors"
	"reflect"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	govalidator "github.com/go-playground/validator/v10"
	en_translations "github.com/go-playground/validator/v10/translations/en"
)

const (
	maxQuestionIDLen = 64
	maxAnswerLen     = 10000
	maxAnswerEntries = 500
)

// trans is the singleton English translator for validation errors.
var trans ut.Translator

// Setup registers the validator with English translations on Gin's binding engine.
// Call once during application startup.
func Setup() {
	if v, ok := binding.Validator.Engine().(*govalidator.Validate); ok {
		// Use JSON tag name for field names in error messages.
		v.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			return name
		})

		enLocale := en.New()
		uni := ut.New(enLocale, enLocale)
		trans, _ = uni.GetTranslator("en")
		en_translations.RegisterDefaultTranslations(v, trans)

		registerAnswerMap(v)
	}
}

// registerAnswerMap adds the "answer_map" tag, which bounds the size of an
// answer map and the length of each question id and answer.
func registerAnswerMap(v *govalidator.Validate) {
	_ = v.RegisterValidation("answer_map", func(fl govalidator.FieldLevel) bool {
		field := fl.Field()
		if field.Kind() != reflect.Map {
			return false
		}
		if field.Len() > maxAnswerEntries {
			return false
		}
		iter := field.MapRange()
		for iter.Next() {
			k := iter.Key().String()
			if k == "" || len(k) > maxQuestionIDLen {
				return false
			}
			if len(iter.Value().String()) > maxAnswerLen {
				return false
			}
		}
		return true
	})

	_ = v.RegisterTranslation("answer_map", trans,
		func(ut ut.Translator) error {
			return ut.Add("answer_map", "{0} contains an invalid question id or an oversized answer", true)
		},
		func(ut ut.Translator, fe govalidator.FieldError) string {
			t, _ := ut.T("answer_map", fe.Field())
			return t
		},
	)
}

// TranslateErrors takes a binding/validation error and returns a map of
// field name to human-readable error message. If the error is not a
// validation error, it returns a single-key map with "detail".
func TranslateErrors(err error) map[string]string {
	fields := make(map[string]string)

	var ve govalidator.ValidationErrors
	if errors.As(err, &ve) {
		for _, fe := range ve {
			fields[fe.Field()] = fe.Translate(trans)
		}
		return fields
	}

	// Not a validation error (e.g., JSON syntax error).
	fields["detail"] = err.Error()
	return fields
}

// Bind binds and validates the request body into dst.
// Returns nil on success or a translated field error map on failure.
func Bind(c *gin.Context, dst interface{}) map[string]string {
	if err := c.ShouldBindJSON(dst); err != nil {
		return TranslateErrors(err)
	}
	return nil
}

// Validate runs the binding rules on a value that did not arrive as an
// HTTP body, such as a WebSocket message.
func Validate(v interface{}) map[string]string {
	if err := binding.Validator.ValidateStruct(v); err != nil {
		return TranslateErrors(err)
	}
	return nil
}
