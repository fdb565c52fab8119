package verification

import (
	"net/url"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/mikey/newsletter-filter/internal/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testRequest() *core.VerificationRequest {
	return &core.VerificationRequest{
		ID:        "req-1",
		UserID:    "bob@example.com",
		EmailID:   "e1",
		Sender:    "news@acme.com",
		Subject:   "Weekly <Digest>",
		Token:     "deadbeef",
		Status:    core.StatusPending,
		ExpiresAt: time.Date(2025, 6, 8, 12, 0, 0, 0, time.UTC),
	}
}

func TestFormatVerificationEmailLinks(t *testing.T) {
	msg := FormatVerificationEmail(testRequest(), "https://filter.example.com")

	linkPattern := regexp.MustCompile(`https://filter\.example\.com/verify\?[^\s"<]+`)
	links := linkPattern.FindAllString(msg.Text, -1)
	require.Len(t, links, 3)

	actions := make([]string, 0, 3)
	for _, link := range links {
		parsed, err := url.Parse(link)
		require.NoError(t, err)

		query := parsed.Query()
		// Each link carries exactly the token and the action
		assert.Len(t, query, 2)
		assert.Equal(t, "deadbeef", query.Get("token"))
		actions = append(actions, query.Get("action"))
	}
	assert.ElementsMatch(t, []string{ActionConfirm, ActionReject, ActionIgnore}, actions)
}

func TestFormatVerificationEmailHTMLEscapes(t *testing.T) {
	msg := FormatVerificationEmail(testRequest(), "https://filter.example.com")

	assert.Contains(t, msg.HTML, "Weekly &lt;Digest&gt;")
	assert.NotContains(t, msg.HTML, "Weekly <Digest>")
}

func TestFormatVerificationEmailSubjectAndExpiry(t *testing.T) {
	msg := FormatVerificationEmail(testRequest(), "https://filter.example.com")

	assert.Equal(t, `Is "Weekly <Digest>" a newsletter?`, msg.Subject)
	assert.Contains(t, msg.Text, "Jun 8, 2025")
	assert.True(t, strings.Contains(msg.Text, "news@acme.com"))
}
