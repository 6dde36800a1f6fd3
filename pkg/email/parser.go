package email

import (
	"bytes"
	"encoding/base64"
	"io"
	"mime"
	"mime/multipart"
	"mime/quotedprintable"
	"net/mail"
	"os"
	"strings"

	"github.com/jaytaylor/html2text"
	"github.com/pkg/errors"
)

// Email is a parsed message reduced to the text a classifier sees
type Email struct {
	From        string
	To          []string
	Subject     string
	Body        string
	Headers     map[string]string
	Attachments []Attachment
}

// Attachment represents an email attachment
type Attachment struct {
	Filename    string
	ContentType string
	Size        int64
}

// Text returns the subject and body joined the way messages are scored
func (e *Email) Text() string {
	switch {
	case e.Subject == "":
		return e.Body
	case e.Body == "":
		return e.Subject
	default:
		return e.Subject + "\n\n" + e.Body
	}
}

// Parser extracts scoring text from RFC 5322 messages
type Parser struct {
	// Upper bound on bytes read from each body part, 0 = unlimited
	MaxPartBytes int64

	decoder *mime.WordDecoder
}

// NewParser creates a new email parser
func NewParser() *Parser {
	return &Parser{decoder: new(mime.WordDecoder)}
}

// ParseFromFile parses an email from a file
func (p *Parser) ParseFromFile(path string) (*Email, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to open file")
	}
	defer file.Close()

	return p.Parse(file)
}

// Parse parses an email from a reader
func (p *Parser) Parse(reader io.Reader) (*Email, error) {
	msg, err := mail.ReadMessage(reader)
	if err != nil {
		return nil, errors.Wrap(err, "failed to parse email")
	}

	email := &Email{
		Headers: make(map[string]string),
		From:    p.decodeHeader(msg.Header.Get("From")),
		Subject: p.decodeHeader(msg.Header.Get("Subject")),
	}

	if to := msg.Header.Get("To"); to != "" {
		for _, addr := range strings.Split(to, ",") {
			if addr = strings.TrimSpace(addr); addr != "" {
				email.To = append(email.To, addr)
			}
		}
	}

	for key, values := range msg.Header {
		email.Headers[key] = strings.Join(values, "; ")
	}

	var plain, html []string
	err = p.walk(msg.Body, msg.Header.Get("Content-Type"), msg.Header.Get("Content-Transfer-Encoding"), "", email, &plain, &html)
	if err != nil {
		return nil, errors.Wrap(err, "failed to parse body")
	}

	// Plain parts win; HTML is converted only when nothing else is available
	switch {
	case len(plain) > 0:
		email.Body = strings.Join(plain, "\n")
	case len(html) > 0:
		email.Body = strings.Join(html, "\n")
	}
	email.Body = strings.TrimSpace(email.Body)

	return email, nil
}

// ParseBytes parses a raw message
func (p *Parser) ParseBytes(raw []byte) (*Email, error) {
	return p.Parse(bytes.NewReader(raw))
}

func (p *Parser) walk(body io.Reader, contentType, encoding, disposition string, email *Email, plain, html *[]string) error {
	mediaType, params, err := mime.ParseMediaType(contentType)
	if contentType == "" || err != nil {
		mediaType = "text/plain"
	}

	if strings.HasPrefix(mediaType, "multipart/") {
		boundary := params["boundary"]
		if boundary == "" {
			return errors.New("multipart message without boundary")
		}
		reader := multipart.NewReader(body, boundary)
		for {
			part, err := reader.NextPart()
			if err == io.EOF {
				return nil
			}
			if err != nil {
				return err
			}
			err = p.walk(part, part.Header.Get("Content-Type"), part.Header.Get("Content-Transfer-Encoding"),
				part.Header.Get("Content-Disposition"), email, plain, html)
			part.Close()
			if err != nil {
				return err
			}
		}
	}

	content, err := p.readPart(body, encoding)
	if err != nil {
		return err
	}

	if isAttachment(disposition) || !strings.HasPrefix(mediaType, "text/") {
		email.Attachments = append(email.Attachments, Attachment{
			Filename:    filename(disposition, params),
			ContentType: mediaType,
			Size:        int64(len(content)),
		})
		return nil
	}

	if mediaType == "text/html" {
		text, err := html2text.FromString(string(content), html2text.Options{OmitLinks: true})
		if err != nil {
			return errors.Wrap(err, "failed to convert html part")
		}
		*html = append(*html, text)
		return nil
	}

	*plain = append(*plain, string(content))
	return nil
}

func (p *Parser) readPart(body io.Reader, encoding string) ([]byte, error) {
	switch strings.ToLower(strings.TrimSpace(encoding)) {
	case "base64":
		body = base64.NewDecoder(base64.StdEncoding, body)
	case "quoted-printable":
		body = quotedprintable.NewReader(body)
	}
	if p.MaxPartBytes > 0 {
		body = io.LimitReader(body, p.MaxPartBytes)
	}
	return io.ReadAll(body)
}

func (p *Parser) decodeHeader(value string) string {
	decoded, err := p.decoder.DecodeHeader(value)
	if err != nil {
		return value
	}
	return decoded
}

func isAttachment(disposition string) bool {
	return strings.HasPrefix(strings.ToLower(strings.TrimSpace(disposition)), "attachment")
}

func filename(disposition string, typeParams map[string]string) string {
	if _, params, err := mime.ParseMediaType(disposition); err == nil && params["filename"] != "" {
		return params["filename"]
	}
	return typeParams["name"]
}
