package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFilter_Match(t *testing.T) {
	f := &File{FileType: 1, DataType: 7, Tags: []string{"a", "b"}, SecurityGroup: "owner"}

	tests := []struct {
		name   string
		filter Filter
		want   bool
	}{
		{name: "empty matches", filter: Filter{}, want: true},
		{name: "file type", filter: Filter{FileTypes: []int{2, 1}}, want: true},
		{name: "wrong file type", filter: Filter{FileTypes: []int{2}}, want: false},
		{name: "data type", filter: Filter{DataTypes: []int{7}}, want: true},
		{name: "any tag", filter: Filter{Tags: []string{"z", "b"}}, want: true},
		{name: "no tag", filter: Filter{Tags: []string{"z"}}, want: false},
		{name: "excluded group", filter: Filter{ExcludeGroup: "owner"}, want: false},
		{name: "other group", filter: Filter{ExcludeGroup: "anonymous"}, want: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.filter.Match(f))
		})
	}
}

func TestFile_CloneIsDeep(t *testing.T) {
	f := &File{Tags: []string{"a"}, Metadata: []byte(`{}`)}
	c := f.Clone()
	c.Tags[0] = "x"
	c.Metadata[0] = '['
	assert.Equal(t, "a", f.Tags[0])
	assert.Equal(t, `{}`, string(f.Metadata))
}
