package render

import (
	"fmt"
	"io"
	"strings"

	// Registers decoders for non-UTF-8 charsets.
	_ "github.com/emersion/go-message/charset"
	"github.com/emersion/go-message/mail"

	"github.com/nhle/meltmail/internal/model"
)

// HeaderField is a single decoded header line.
type HeaderField struct {
	Key   string
	Value string
}

// Source is a parsed raw message.
type Source struct {
	Headers     []HeaderField
	Text        string
	HTML        string
	Attachments []model.Attachment
	Raw         string
}

// Header returns the first value of the named header, or "".
func (s *Source) Header(key string) string {
	for _, h := range s.Headers {
		if strings.EqualFold(h.Key, key) {
			return h.Value
		}
	}
	return ""
}

// ParseSource parses a raw RFC 822 message into its headers, bodies and
// attachment metadata.
func ParseSource(raw string) (*Source, error) {
	mr, err := mail.CreateReader(strings.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("parsing message source: %w", err)
	}
	defer mr.Close()

	src := &Source{Raw: raw}

	fields := mr.Header.Fields()
	for fields.Next() {
		value, err := fields.Text()
		if err != nil {
			value = fields.Value()
		}
		src.Headers = append(src.Headers, HeaderField{Key: fields.Key(), Value: value})
	}

	for {
		part, err := mr.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			return src, fmt.Errorf("reading message part: %w", err)
		}

		switch h := part.Header.(type) {
		case *mail.InlineHeader:
			contentType, _, _ := h.ContentType()
			body, readErr := io.ReadAll(part.Body)
			if readErr != nil {
				continue
			}

			switch {
			case strings.HasPrefix(contentType, "text/plain"):
				src.Text = string(body)
			case strings.HasPrefix(contentType, "text/html"):
				src.HTML = string(body)
			}

		case *mail.AttachmentHeader:
			filename, _ := h.Filename()
			contentType, _, _ := h.ContentType()

			// Read to get size without storing content
			n, readErr := io.Copy(io.Discard, part.Body)
			if readErr != nil {
				continue
			}

			src.Attachments = append(src.Attachments, model.Attachment{
				Filename:    filename,
				ContentType: contentType,
				Size:        int(n),
			})
		}
	}

	return src, nil
}
