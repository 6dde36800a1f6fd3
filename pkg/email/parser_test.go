package email

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func crlf(s string) string {
	return strings.ReplaceAll(s, "\n", "\r\n")
}

func TestParsePlainMessage(t *testing.T) {
	raw := crlf(`From: Promo <promo@example.com>
To: alice@example.com, bob@example.com
Subject: Win a free car now!

Click here for a limited time offer
`)

	email, err := NewParser().ParseBytes([]byte(raw))
	require.NoError(t, err)

	assert.Equal(t, "Promo <promo@example.com>", email.From)
	assert.Equal(t, []string{"alice@example.com", "bob@example.com"}, email.To)
	assert.Equal(t, "Win a free car now!", email.Subject)
	assert.Equal(t, "Click here for a limited time offer", email.Body)
	assert.Equal(t, "Win a free car now!\n\nClick here for a limited time offer", email.Text())
}

func TestParseEncodedHeaderAndQuotedPrintable(t *testing.T) {
	raw := crlf(`From: a@example.com
Subject: =?UTF-8?B?R3LDvMOfZQ==?=
Content-Type: text/plain; charset=utf-8
Content-Transfer-Encoding: quoted-printable

Caf=C3=A9 meeting minutes
`)

	email, err := NewParser().ParseBytes([]byte(raw))
	require.NoError(t, err)

	assert.Equal(t, "Grüße", email.Subject)
	assert.Equal(t, "Café meeting minutes", email.Body)
}

func TestParseMultipartPrefersPlainText(t *testing.T) {
	raw := crlf(`From: a@example.com
Subject: Offer
Content-Type: multipart/mixed; boundary="outer"

--outer
Content-Type: multipart/alternative; boundary="inner"

--inner
Content-Type: text/plain

plain version
--inner
Content-Type: text/html

<html><body><p>html version</p></body></html>
--inner--
--outer
Content-Type: application/pdf
Content-Disposition: attachment; filename="invoice.pdf"
Content-Transfer-Encoding: base64

JVBERi0xLjQK
--outer--
`)

	email, err := NewParser().ParseBytes([]byte(raw))
	require.NoError(t, err)

	assert.Equal(t, "plain version", email.Body)
	require.Len(t, email.Attachments, 1)
	assert.Equal(t, "invoice.pdf", email.Attachments[0].Filename)
	assert.Equal(t, "application/pdf", email.Attachments[0].ContentType)
	assert.Equal(t, int64(9), email.Attachments[0].Size)
}

func TestParseHTMLOnly(t *testing.T) {
	raw := crlf(`From: a@example.com
Subject: Deal
Content-Type: text/html; charset=utf-8

<html><head><style>p { color: red; }</style></head><body><p>Claim your prize today</p></body></html>
`)

	email, err := NewParser().ParseBytes([]byte(raw))
	require.NoError(t, err)

	assert.Contains(t, email.Body, "Claim your prize today")
	assert.NotContains(t, email.Body, "<p>")
}

func TestParseMultipartWithoutBoundary(t *testing.T) {
	raw := crlf(`From: a@example.com
Content-Type: multipart/mixed

body
`)
	_, err := NewParser().ParseBytes([]byte(raw))
	assert.Error(t, err)
}

func TestParseLimitsPartSize(t *testing.T) {
	raw := crlf(`Subject: long

0123456789
`)
	p := NewParser()
	p.MaxPartBytes = 4

	email, err := p.ParseBytes([]byte(raw))
	require.NoError(t, err)
	assert.Equal(t, "0123", email.Body)
}

func TestParseFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "msg.eml")
	require.NoError(t, os.WriteFile(path, []byte(crlf("Subject: Hello\n\nlet's catch up tomorrow\n")), 0644))

	email, err := NewParser().ParseFromFile(path)
	require.NoError(t, err)
	assert.Equal(t, "Hello\n\nlet's catch up tomorrow", email.Text())

	_, err = NewParser().ParseFromFile(filepath.Join(t.TempDir(), "missing.eml"))
	assert.Error(t, err)
}

func TestTextWithoutSubject(t *testing.T) {
	assert.Equal(t, "body", (&Email{Body: "body"}).Text())
	assert.Equal(t, "subject", (&Email{Subject: "subject"}).Text())
}
