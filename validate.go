package relay

import (
	"github.com/go-playground/validator/v10"
)

// Validator is implemented by every value a Reference holds. Validate rejects
// a decoded document before it reaches the apply pipeline.
type Validator interface {
	Validate() error
}

// structValidator is the shared validator instance.
var structValidator = validator.New()

// ValidateStruct checks the `validate:"..."` struct tags of v using
// go-playground/validator. It is a convenience for Validate implementations:
//
//	type Config struct {
//	    Port int `json:"port" validate:"min=1,max=65535"`
//	}
//
//	func (c Config) Validate() error { return relay.ValidateStruct(c) }
func ValidateStruct(v any) error {
	return structValidator.Struct(v)
}
