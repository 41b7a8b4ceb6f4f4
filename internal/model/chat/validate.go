package chat

import (
	"errors"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

var errBlank = errors.New("no puede estar vacío")

func notBlank(value any) error {
	s, _ := value.(string)
	if strings.TrimSpace(s) == "" {
		return errBlank
	}
	return nil
}

// Validate checks the query fields.
func (r QueryRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Message, validation.By(notBlank)),
		validation.Field(&r.Kind, validation.In(KindGeneral, KindCategory)),
		validation.Field(&r.MaxLength, validation.Min(MinMaxLength), validation.Max(MaxMaxLength)),
	)
}

// Validate checks the direct chat message.
func (r DirectRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Message, validation.By(notBlank)),
	)
}

// Validate requires a message or a previous answer to extend.
func (r ContinueRequest) Validate() error {
	if strings.TrimSpace(r.Context) != "" {
		return nil
	}
	return validation.ValidateStruct(&r,
		validation.Field(&r.Message, validation.By(notBlank)),
	)
}

// MessageMissing reports whether err flags the mensaje field.
func MessageMissing(err error) bool {
	var errs validation.Errors
	if !errors.As(err, &errs) {
		return false
	}
	_, ok := errs["mensaje"]
	return ok
}
