// Package notify delivers generated documents to the candidate by email.
package notify

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"mime"
	"mime/multipart"
	"net/mail"
	"net/textproto"
	"regexp"
	"strings"
	"time"
)

// Attachment is a file attached to a Message.
type Attachment struct {
	Name        string
	ContentType string
	Data        []byte
}

type Message struct {
	From        string
	To          string
	Subject     string
	Body        string
	Attachments []Attachment
}

// Validate checks the addresses.
func (m *Message) Validate() error {
	if _, err := mail.ParseAddress(m.To); err != nil {
		return fmt.Errorf("invalid recipient %q: %w", m.To, err)
	}
	if m.From != "" {
		if _, err := mail.ParseAddress(m.From); err != nil {
			return fmt.Errorf("invalid sender %q: %w", m.From, err)
		}
	}
	if strings.ContainsAny(m.Subject, "\r\n") {
		return errors.New("subject must be a single line")
	}
	return nil
}

const lineLength = 76

// Build renders the message as a multipart/mixed MIME document with a
// plain text body and base64 encoded attachments.
func Build(m *Message, now time.Time) ([]byte, error) {
	if err := m.Validate(); err != nil {
		return nil, err
	}

	var body bytes.Buffer
	w := multipart.NewWriter(&body)

	textPart, err := w.CreatePart(textproto.MIMEHeader{
		"Content-Type":              {"text/plain; charset=utf-8"},
		"Content-Transfer-Encoding": {"base64"},
	})
	if err != nil {
		return nil, err
	}
	if err := writeBase64(textPart, []byte(m.Body)); err != nil {
		return nil, err
	}

	for _, a := range m.Attachments {
		contentType := a.ContentType
		if contentType == "" {
			contentType = "application/octet-stream"
		}
		part, err := w.CreatePart(textproto.MIMEHeader{
			"Content-Type":              {contentType},
			"Content-Transfer-Encoding": {"base64"},
			"Content-Disposition":       {mime.FormatMediaType("attachment", map[string]string{"filename": a.Name})},
		})
		if err != nil {
			return nil, err
		}
		if err := writeBase64(part, a.Data); err != nil {
			return nil, err
		}
	}
	if err := w.Close(); err != nil {
		return nil, err
	}

	var out bytes.Buffer
	header := func(k, v string) { fmt.Fprintf(&out, "%s: %s\r\n", k, v) }
	if m.From != "" {
		header("From", m.From)
	}
	header("To", m.To)
	header("Subject", mime.QEncoding.Encode("utf-8", m.Subject))
	header("Date", now.Format(time.RFC1123Z))
	header("MIME-Version", "1.0")
	header("Content-Type", fmt.Sprintf("multipart/mixed; boundary=%q", w.Boundary()))
	out.WriteString("\r\n")
	out.Write(body.Bytes())

	return out.Bytes(), nil
}

func writeBase64(w interface{ Write([]byte) (int, error) }, data []byte) error {
	encoded := base64.StdEncoding.EncodeToString(data)
	for len(encoded) > lineLength {
		if _, err := fmt.Fprintf(w, "%s\r\n", encoded[:lineLength]); err != nil {
			return err
		}
		encoded = encoded[lineLength:]
	}
	_, err := fmt.Fprintf(w, "%s\r\n", encoded)
	return err
}

var reFullName = regexp.MustCompile(`\p{Lu}\p{Ll}+(?:\s\p{Lu}\p{Ll}+)+`)

const defaultCandidateName = "Candidate"

// CandidateName finds the candidate's name on the first résumé line that
// mentions "name", falling back to the first line when it looks like a full
// name, then to "Candidate".
func CandidateName(resume string) string {
	lines := strings.Split(resume, "\n")
	for _, line := range lines {
		if !strings.Contains(strings.ToLower(line), "name") {
			continue
		}
		// "Full Name: Jane Smith" names the field before the colon.
		if _, value, ok := strings.Cut(line, ":"); ok {
			line = value
		}
		if m := reFullName.FindString(line); m != "" {
			return strings.TrimSpace(m)
		}
	}

	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if m := reFullName.FindString(line); m == line {
			return m
		}
		break
	}

	return defaultCandidateName
}
