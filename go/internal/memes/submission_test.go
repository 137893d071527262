package memes

import (
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSubmissionLink_Default(t *testing.T) {
	link := SubmissionLink(DefaultSubmission())

	require.True(t, strings.HasPrefix(link, "mailto:turbogeek641@gmail.com?"))
	assert.NotContains(t, link, "+", "spaces must not be form-encoded")

	u, err := url.Parse(link)
	require.NoError(t, err)
	q, err := url.ParseQuery(u.RawQuery)
	require.NoError(t, err)
	assert.Equal(t, "Meme Submission for 'Spanked'", q.Get("subject"))
	assert.Equal(t, "Hey there! I have a meme for you. Here it is:", q.Get("body"))
}

func TestSubmissionLink_EscapesSeparators(t *testing.T) {
	link := SubmissionLink(Submission{
		Recipient: "a@b.c",
		Subject:   "this & that?",
	})

	assert.Equal(t, "mailto:a@b.c?subject=this%20%26%20that%3F", link)
}

func TestSubmissionLink_NoParams(t *testing.T) {
	assert.Equal(t, "mailto:a@b.c", SubmissionLink(Submission{Recipient: "a@b.c"}))
}

func TestSubmission_Validate(t *testing.T) {
	tests := []struct {
		name    string
		s       Submission
		wantErr bool
	}{
		{"default", DefaultSubmission(), false},
		{"empty recipient", Submission{}, true},
		{"not an address", Submission{Recipient: "nobody"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.s.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
