package filter

import (
	"net/mail"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractTextFromPlainMessage(t *testing.T) {
	raw := "From: alice@example.com\r\n" +
		"Subject: hi\r\n" +
		"\r\n" +
		"Just a plain body.\r\n"

	msg, err := mail.ReadMessage(strings.NewReader(raw))
	require.NoError(t, err)

	text, err := extractTextFromMessage(msg)
	require.NoError(t, err)
	assert.Contains(t, text, "Just a plain body.")
}

func TestExtractTextFromMultipart(t *testing.T) {
	raw := "From: news@acme.com\r\n" +
		"Content-Type: multipart/alternative; boundary=SPLIT\r\n" +
		"\r\n" +
		"--SPLIT\r\n" +
		"Content-Type: text/plain; charset=utf-8\r\n" +
		"\r\n" +
		"plain part here\r\n" +
		"--SPLIT\r\n" +
		"Content-Type: text/html; charset=utf-8\r\n" +
		"\r\n" +
		"<p>html part here</p>\r\n" +
		"--SPLIT\r\n" +
		"Content-Type: image/png\r\n" +
		"\r\n" +
		"NOTTEXT\r\n" +
		"--SPLIT--\r\n"

	msg, err := mail.ReadMessage(strings.NewReader(raw))
	require.NoError(t, err)

	text, err := extractTextFromMessage(msg)
	require.NoError(t, err)
	assert.Contains(t, text, "plain part here")
	assert.Contains(t, text, "html part here")
	assert.NotContains(t, text, "NOTTEXT")
}

func TestExtractTextDecodesQuotedPrintableLatin1(t *testing.T) {
	// "café" with an ISO-8859-1 e-acute in quoted-printable
	raw := "From: news@acme.fr\r\n" +
		"Content-Type: text/plain; charset=iso-8859-1\r\n" +
		"Content-Transfer-Encoding: quoted-printable\r\n" +
		"\r\n" +
		"caf=E9 du matin\r\n"

	msg, err := mail.ReadMessage(strings.NewReader(raw))
	require.NoError(t, err)

	text, err := extractTextFromMessage(msg)
	require.NoError(t, err)
	assert.Contains(t, text, "café du matin")
}

func TestInsertHeadersPrepends(t *testing.T) {
	raw := []byte("From: a@b.c\r\n\r\nbody\r\n")

	out := insertHeaders(raw, map[string]string{
		"X-Newsletter-Status": "yes",
		"X-Newsletter-Score":  "0.8123",
	}, []string{"X-Newsletter-Status", "X-Newsletter-Score"})

	text := string(out)
	assert.True(t, strings.HasPrefix(text, "X-Newsletter-Status: yes\r\nX-Newsletter-Score: 0.8123\r\n"))
	assert.True(t, strings.HasSuffix(text, "From: a@b.c\r\n\r\nbody\r\n"))
}

func TestPrefixSubject(t *testing.T) {
	raw := []byte("From: a@b.c\r\nSubject: Weekly Digest\r\n\r\nbody\r\n")

	out := prefixSubject(raw, "[Newsletter] ")
	assert.Contains(t, string(out), "Subject: [Newsletter] Weekly Digest\r\n")
	assert.Contains(t, string(out), "body")

	// Already prefixed subjects stay untouched
	again := prefixSubject(out, "[Newsletter] ")
	assert.Equal(t, string(out), string(again))
}

func TestPrefixSubjectWithoutSubjectHeader(t *testing.T) {
	raw := []byte("From: a@b.c\r\n\r\nbody\r\n")

	out := prefixSubject(raw, "[Newsletter] ")
	assert.Equal(t, string(raw), string(out))
}
