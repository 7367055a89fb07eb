package validator

// Validator validates struct fields based on their tags.
type Validator interface {
	// Validate checks the given struct and returns an error describing the
	// failing fields, or nil when every rule passes.
	Validate(data any) error
}
