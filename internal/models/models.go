package models

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
)

// CourseID identifies a course on the remote API.
// The API may encode it as a JSON number or a JSON string; numeric ids are
// written back as numbers.
type CourseID string

// UnmarshalJSON accepts both `42` and `"42"`
func (id *CourseID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*id = ""
		return nil
	}

	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return fmt.Errorf("invalid course id: %w", err)
		}
		*id = CourseID(s)
		return nil
	}

	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("invalid course id: %w", err)
	}
	*id = CourseID(n.String())
	return nil
}

// MarshalJSON writes numeric ids as numbers and everything else as strings
func (id CourseID) MarshalJSON() ([]byte, error) {
	if id == "" {
		return []byte("null"), nil
	}
	if _, err := strconv.ParseInt(string(id), 10, 64); err == nil {
		return []byte(id), nil
	}
	return json.Marshal(string(id))
}

func (id CourseID) String() string {
	return string(id)
}

// Course represents a course record owned by the remote API
type Course struct {
	ID            CourseID `json:"id"`
	Nome          *string  `json:"nome"`
	Descricao     *string  `json:"descricao"`
	Nota          *float64 `json:"nota"`
	NomeProfessor *string  `json:"nomeProfessor"`
}

// CourseInput is the request body for course creation.
// Absent fields are sent as null, never omitted.
type CourseInput struct {
	Nome          *string  `json:"nome"`
	Descricao     *string  `json:"descricao"`
	Nota          *float64 `json:"nota" validate:"omitempty,gte=0,lte=5"`
	NomeProfessor *string  `json:"nomeProfessor"`
}

// CourseForm holds the raw text a user typed for a new course
type CourseForm struct {
	Nome          string
	Descricao     string
	Nota          string
	NomeProfessor string
}

var validate = validator.New()

// Input converts the form into a request body. Empty fields are sent as null,
// and so is a nota that does not parse as a number.
func (f *CourseForm) Input() CourseInput {
	in := CourseInput{
		Nome:          optionalString(f.Nome),
		Descricao:     optionalString(f.Descricao),
		NomeProfessor: optionalString(f.NomeProfessor),
	}

	if nota := strings.TrimSpace(f.Nota); nota != "" {
		// NaN and infinities have no JSON encoding, the API sees null
		if v, err := strconv.ParseFloat(nota, 64); err == nil && !math.IsNaN(v) && !math.IsInf(v, 0) {
			in.Nota = &v
		}
	}

	return in
}

// Reset clears every field of the form
func (f *CourseForm) Reset() {
	*f = CourseForm{}
}

// Validate checks the input against the constraints the API expects
func (in CourseInput) Validate() error {
	if err := validate.Struct(in); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 && verrs[0].Field() == "Nota" {
			return fmt.Errorf("nota must be between 0 and 5")
		}
		return err
	}
	return nil
}

// optionalString maps only the empty string to null. Whitespace is text.
func optionalString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// Profile is the signed-in user's identity as reported by the identity provider
type Profile struct {
	Subject string `json:"sub"`
	Name    string `json:"name"`
	Email   string `json:"email"`
	Picture string `json:"picture"`
}
