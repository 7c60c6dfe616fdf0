package validation

import (
	"errors"
	"fmt"
	"testing"

	"github.com/aarondl/null/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type form struct {
	Name    string       `json:"name" validate:"required,min=2"`
	LOB     string       `json:"lob" validate:"oneof=auto fire"`
	Count   int          `json:"count" validate:"gte=0"`
	Day     null.String  `json:"day" validate:"omitempty,datetime=2006-01-02"`
	Premium null.Float64 `json:"premium" validate:"omitempty,gte=0"`
}

func TestStruct(t *testing.T) {
	valid := form{Name: "Acme", LOB: "auto"}

	tests := []struct {
		name string
		mut  func(f *form)
		want string
	}{
		{"valid", func(*form) {}, ""},
		{"missing name", func(f *form) { f.Name = "" }, "name is required."},
		{"short name", func(f *form) { f.Name = "A" }, "name must be at least 2 characters."},
		{"bad lob", func(f *form) { f.LOB = "boat" }, "lob must be one of: auto, fire."},
		{"negative", func(f *form) { f.Count = -1 }, "count must be at least 0."},
		{"bad date", func(f *form) { f.Day = null.StringFrom("10/16/2026") }, "day must be a date (YYYY-MM-DD)."},
		{"null date", func(f *form) { f.Day = null.String{} }, ""},
		{"negative premium", func(f *form) { f.Premium = null.Float64From(-5) }, "premium must be at least 0."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := valid
			tt.mut(&f)
			err := Struct(f)
			if tt.want == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.True(t, IsValidation(err))
			assert.Equal(t, tt.want, err.Error())
		})
	}
}

func TestIsValidation(t *testing.T) {
	assert.True(t, IsValidation(fmt.Errorf("save: %w", Errorf("%s is required.", "name"))))
	assert.False(t, IsValidation(errors.New("boom")))
	assert.False(t, IsValidation(nil))
}
