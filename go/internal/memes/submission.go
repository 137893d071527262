package memes

import (
	"fmt"
	"net/url"
	"strings"
)

// Submission is the fixed template of the "submit a meme" email
type Submission struct {
	Recipient string `yaml:"recipient" json:"recipient"`
	Subject   string `yaml:"subject" json:"subject"`
	Body      string `yaml:"body" json:"body"`
}

// DefaultSubmission returns the stock meme submission template
func DefaultSubmission() Submission {
	return Submission{
		Recipient: "turbogeek641@gmail.com",
		Subject:   "Meme Submission for 'Spanked'",
		Body:      "Hey there! I have a meme for you. Here it is:",
	}
}

// Validate requires a plausible recipient address
func (s Submission) Validate() error {
	if s.Recipient == "" {
		return fmt.Errorf("submission recipient is required")
	}
	if !strings.Contains(s.Recipient, "@") {
		return fmt.Errorf("submission recipient %q is not an email address", s.Recipient)
	}
	return nil
}

// SubmissionLink builds the mailto: link for a submission.
// Subject and body are percent-encoded with %20 for spaces, which mail clients expect.
func SubmissionLink(s Submission) string {
	link := "mailto:" + s.Recipient

	var params []string
	if s.Subject != "" {
		params = append(params, "subject="+escape(s.Subject))
	}
	if s.Body != "" {
		params = append(params, "body="+escape(s.Body))
	}
	if len(params) > 0 {
		link += "?" + strings.Join(params, "&")
	}
	return link
}

func escape(s string) string {
	return strings.ReplaceAll(url.QueryEscape(s), "+", "%20")
}
