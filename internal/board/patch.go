package board

import (
	"errors"

	"kanban-board/internal/validation"

	"github.com/go-playground/validator/v10"
)

var ErrEmptyPatch = errors.New("patch changes nothing")

// ColumnPatch lists the mutable column fields. Nil fields are left alone.
type ColumnPatch struct {
	Title *string  `json:"title,omitempty" validate:"omitempty,min=1,max=100"`
	Order *float64 `json:"order,omitempty" validate:"omitempty,min=0"`
}

func (p ColumnPatch) IsEmpty() bool {
	return p.Title == nil && p.Order == nil
}

func (p ColumnPatch) Validate() error {
	if p.IsEmpty() {
		return ErrEmptyPatch
	}
	return Validate(p)
}

func (p ColumnPatch) apply(c *Column) {
	if p.Title != nil {
		c.Title = *p.Title
	}
	if p.Order != nil {
		c.Order = *p.Order
	}
}

// CardPatch lists the mutable card fields. Setting ColumnID moves the card.
type CardPatch struct {
	Title    *string  `json:"title,omitempty" validate:"omitempty,min=1,max=200"`
	Content  *string  `json:"content,omitempty"`
	ColumnID *uint    `json:"columnId,omitempty" validate:"omitempty,min=1"`
	Order    *float64 `json:"order,omitempty" validate:"omitempty,min=0"`
}

func (p CardPatch) IsEmpty() bool {
	return p.Title == nil && p.Content == nil && p.ColumnID == nil && p.Order == nil
}

func (p CardPatch) Validate() error {
	if p.IsEmpty() {
		return ErrEmptyPatch
	}
	return Validate(p)
}

func (p CardPatch) apply(c *Card) {
	if p.Title != nil {
		c.Title = *p.Title
	}
	if p.Content != nil {
		c.Content = *p.Content
	}
	if p.ColumnID != nil {
		c.ColumnID = *p.ColumnID
	}
	if p.Order != nil {
		c.Order = *p.Order
	}
}

// ValidationError names the first field that failed local validation.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(validation.JSONName)
	return v
}

// Validate checks a struct's validate tags and reports the first failure in
// the same words the server uses.
func Validate(v interface{}) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return err
	}
	fe := verrs[0]
	return &ValidationError{Field: fe.Field(), Message: validation.Message(fe)}
}
