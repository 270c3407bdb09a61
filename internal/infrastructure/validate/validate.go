package validate

// FieldError field error to be nested by other errors
type FieldError struct {
	Domain string `json:"domain"`
	Reason string `json:"reason"`
}

// NewFieldError create new field error
func NewFieldError(domain string, reason string) *FieldError {
	return &FieldError{domain, reason}
}

// Validator .
type Validator interface {
	// Struct validate s with messages in the default locale
	Struct(s interface{}) []*FieldError
	// StructLocale validate s with messages in locale, unknown locales fall back to the default
	StructLocale(s interface{}, locale string) []*FieldError
}
