package validate

import (
	"reflect"
	"strings"

	"github.com/go-playground/locales/en"
	"github.com/go-playground/locales/zh"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	en_translations "github.com/go-playground/validator/v10/translations/en"
	zh_translations "github.com/go-playground/validator/v10/translations/zh"
)

// PlaygroundV10 Validator implementation using go-playground
type PlaygroundV10 struct {
	core *validator.Validate
	uni  *ut.UniversalTranslator
}

var _ Validator = &PlaygroundV10{}

// NewValidator create a new Validator, en is the default locale
func NewValidator() *PlaygroundV10 {
	enLocale := en.New()
	uni := ut.New(enLocale, enLocale, zh.New())

	validate := validator.New()
	enTrans, _ := uni.GetTranslator("en")
	en_translations.RegisterDefaultTranslations(validate, enTrans)
	zhTrans, _ := uni.GetTranslator("zh")
	zh_translations.RegisterDefaultTranslations(validate, zhTrans)

	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		for _, tag := range []string{"json", "query", "param"} {
			name := strings.SplitN(fld.Tag.Get(tag), ",", 2)[0]
			if name == "-" {
				return ""
			}
			if name != "" {
				return name
			}
		}
		return ""
	})
	return &PlaygroundV10{
		core: validate,
		uni:  uni,
	}
}

// Struct validate struct
func (v *PlaygroundV10) Struct(s interface{}) []*FieldError {
	return v.StructLocale(s, "en")
}

// StructLocale validate struct, locale may be an Accept-Language header value
func (v *PlaygroundV10) StructLocale(s interface{}, locale string) []*FieldError {
	err := v.core.Struct(s)
	if err == nil {
		return nil
	}
	errs, ok := err.(validator.ValidationErrors)
	if !ok {
		return []*FieldError{NewFieldError("", err.Error())}
	}

	trans, _ := v.uni.FindTranslator(parseLocales(locale)...)
	result := make([]*FieldError, 0, len(errs))
	for _, item := range errs {
		result = append(result, NewFieldError(item.Field(), item.Translate(trans)))
	}
	return result
}

// parseLocales "zh-CN,zh;q=0.9,en;q=0.8" -> [zh_CN zh en]
func parseLocales(header string) []string {
	var locales []string
	for _, part := range strings.Split(header, ",") {
		tag := strings.TrimSpace(strings.SplitN(part, ";", 2)[0])
		if tag == "" || tag == "*" {
			continue
		}
		tag = strings.Replace(tag, "-", "_", -1)
		locales = append(locales, tag)
		if i := strings.IndexByte(tag, '_'); i > 0 {
			locales = append(locales, tag[:i])
		}
	}
	return locales
}
