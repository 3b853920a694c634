package drive

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestContent_WrapParse(t *testing.T) {
	tests := []Content{
		Article{Title: "Release notes", Caption: "v2", Body: "long text", Media: []string{"hdr"}},
		Post{Caption: "sunset", Media: []string{"pst_mdi0"}},
		ProfileAttribute{AttributeType: "name", Priority: 1, Data: map[string]string{"givenName": "Frodo"}},
	}
	for _, c := range tests {
		t.Run(string(c.Kind()), func(t *testing.T) {
			raw, err := WrapContent(c)
			require.NoError(t, err)
			require.Contains(t, raw, `"kind":"`+string(c.Kind())+`"`)

			got, err := ParseContent([]byte(raw))
			require.NoError(t, err)
			require.Equal(t, c, got)
		})
	}
}

func TestContent_Errors(t *testing.T) {
	_, err := ParseContent([]byte(`{"kind":"tweet","data":{}}`))
	require.ErrorIs(t, err, ErrUnknownContentKind)

	_, err = ParseContent([]byte(`not json`))
	require.ErrorIs(t, err, ErrInvalidContent)

	_, err = ParseContent([]byte(`{"kind":"article","data":{"body":"no title"}}`))
	require.ErrorIs(t, err, ErrInvalidContent)

	_, err = ParseContent([]byte(`{"kind":"post","data":"oops"}`))
	require.ErrorIs(t, err, ErrInvalidContent)

	_, err = WrapContent(Post{})
	require.ErrorIs(t, err, ErrInvalidContent)

	_, err = WrapContent(ProfileAttribute{})
	require.ErrorIs(t, err, ErrInvalidContent)
}
