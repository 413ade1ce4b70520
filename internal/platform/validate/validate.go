// Package validate holds the process-wide struct validator with english messages
package validate

import (
	"reflect"
	"strings"
	"sync"

	perr "contribot/internal/platform/errors"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	en_translations "github.com/go-playground/validator/v10/translations/en"
)

// Svc bundles the validator and its translator
type Svc struct {
	Validator  *validator.Validate
	Translator ut.Translator
}

var (
	once sync.Once
	svc  *Svc
)

// Get returns the singleton, building it on first use
func Get() *Svc {
	once.Do(func() {
		enLoc := en.New()
		uni := ut.New(enLoc, enLoc)
		trans, _ := uni.GetTranslator("en")

		v := validator.New(validator.WithRequiredStructEnabled())

		// json tag names read better in messages than Go field names
		v.RegisterTagNameFunc(func(fld reflect.StructField) string {
			tag := fld.Tag.Get("json")
			if tag == "-" || tag == "" {
				return fld.Name
			}
			if idx := strings.Index(tag, ","); idx >= 0 {
				tag = tag[:idx]
			}
			return tag
		})
		_ = en_translations.RegisterDefaultTranslations(v, trans)

		registerShort(v, trans, "min", "{0} must be at least {1}")
		registerShort(v, trans, "max", "{0} must be at most {1}")
		_ = v.RegisterValidation("repo_slug", repoSlug)
		registerShort(v, trans, "repo_slug", "{0} must look like owner/name")

		svc = &Svc{Validator: v, Translator: trans}
	})
	return svc
}

// Struct validates v and maps failures to a Validation error naming the first bad field
func Struct(v any) error {
	err := Get().Validator.Struct(v)
	if err == nil {
		return nil
	}
	field, msg := FieldAndMessage(err)
	return perr.WithField(perr.Wrap(err, perr.ErrorCodeValidation, msg), field)
}

// FieldAndMessage returns the first failing field and its translated message
func FieldAndMessage(err error) (field, message string) {
	if err == nil {
		return "", ""
	}
	if inv, ok := err.(*validator.InvalidValidationError); ok {
		return "", inv.Error()
	}
	if verrs, ok := err.(validator.ValidationErrors); ok && len(verrs) > 0 {
		fe := verrs[0]
		return fe.Field(), fe.Translate(Get().Translator)
	}
	return "", err.Error()
}

func registerShort(v *validator.Validate, trans ut.Translator, tag, text string) {
	_ = v.RegisterTranslation(tag, trans,
		func(t ut.Translator) error { return t.Add(tag, text, true) },
		func(t ut.Translator, fe validator.FieldError) string {
			msg, _ := t.T(tag, fe.Field(), fe.Param())
			return msg
		},
	)
}

// repoSlug accepts owner/name using GitHub's character rules: owners are
// alphanumeric with inner hyphens, names also allow dot and underscore
func repoSlug(fl validator.FieldLevel) bool {
	owner, name, ok := strings.Cut(fl.Field().String(), "/")
	if !ok || owner == "" || name == "" || len(owner) > 39 || len(name) > 100 {
		return false
	}
	if owner[0] == '-' || owner[len(owner)-1] == '-' || name == "." || name == ".." {
		return false
	}
	for _, r := range owner {
		if !isAlnum(r) && r != '-' {
			return false
		}
	}
	for _, r := range name {
		if !isAlnum(r) && r != '-' && r != '.' && r != '_' {
			return false
		}
	}
	return true
}

func isAlnum(r rune) bool {
	return (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9')
}
