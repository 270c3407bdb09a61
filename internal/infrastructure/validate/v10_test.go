package validate

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type accessQuery struct {
	Module int    `query:"module" validate:"min=0"`
	Course string `json:"course_id" validate:"required"`
}

func TestPlaygroundV10_Struct(t *testing.T) {
	v := NewValidator()

	assert.Nil(t, v.Struct(&accessQuery{Module: 1, Course: "c1"}))

	errs := v.Struct(&accessQuery{Module: -1})
	require.Len(t, errs, 2)
	assert.Equal(t, "module", errs[0].Domain)
	assert.Equal(t, "course_id", errs[1].Domain)
	assert.Equal(t, "course_id is a required field", errs[1].Reason)
}

func TestPlaygroundV10_StructLocale(t *testing.T) {
	v := NewValidator()
	tests := []struct {
		name   string
		locale string
		want   string
	}{
		{"default", "", "course_id is a required field"},
		{"english", "en-US,en;q=0.9", "course_id is a required field"},
		{"chinese", "zh-CN,zh;q=0.9", "course_id为必填字段"},
		{"unknown", "fr-FR", "course_id is a required field"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			errs := v.StructLocale(&accessQuery{}, tt.locale)
			require.Len(t, errs, 1)
			assert.Equal(t, tt.want, errs[0].Reason)
		})
	}
}

func Test_parseLocales(t *testing.T) {
	assert.Equal(t, []string{"zh_CN", "zh", "zh", "en"}, parseLocales("zh-CN,zh;q=0.9,en;q=0.8"))
	assert.Empty(t, parseLocales("*"))
}
