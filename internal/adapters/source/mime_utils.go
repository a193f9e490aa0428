package source

import (
	"bytes"
	"io"
	"strings"

	"github.com/emersion/go-message"
	_ "github.com/emersion/go-message/charset"
	"github.com/emersion/go-message/mail"
	"golang.org/x/net/html"
)

// canonicalHeaders are looked up case-insensitively and stored under these
// exact keys, which is how the feature extractor reads them.
var canonicalHeaders = []string{
	"From", "Reply-To", "Return-Path", "Sender", "Subject", "Date", "Message-ID", "Authentication-Results",
}

// parsedMessage is the result of walking one MIME message
type parsedMessage struct {
	headers     map[string]string
	text        string
	attachments []string
}

// parseMessage reads the headers of a message and walks its parts. Body text
// is only collected when withBody is set; attachment file names always are.
func parseMessage(r io.Reader, withBody bool) (*parsedMessage, error) {
	mr, err := mail.CreateReader(r)
	if err != nil && !message.IsUnknownCharset(err) {
		return nil, err
	}
	defer mr.Close()

	out := &parsedMessage{headers: headerMap(mr.Header)}

	var parts []string
	for {
		p, err := mr.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			if message.IsUnknownCharset(err) {
				continue
			}
			// Keep whatever was read before the malformed part
			break
		}

		switch h := p.Header.(type) {
		case *mail.AttachmentHeader:
			if name, err := h.Filename(); err == nil && name != "" {
				out.attachments = append(out.attachments, name)
			}
		case *mail.InlineHeader:
			if !withBody {
				continue
			}
			contentType, _, _ := h.ContentType()
			switch strings.ToLower(contentType) {
			case "text/plain":
				b, err := io.ReadAll(p.Body)
				if err != nil {
					continue
				}
				parts = append(parts, string(b))
			case "text/html":
				b, err := io.ReadAll(p.Body)
				if err != nil {
					continue
				}
				parts = append(parts, htmlToText(b))
			}
		}
	}

	out.text = strings.Join(parts, "\n")
	return out, nil
}

// headerMap keeps the first value of every field under its received key and
// adds the canonical spellings of the headers the extractor reads.
func headerMap(h mail.Header) map[string]string {
	headers := make(map[string]string)
	fields := h.Fields()
	for fields.Next() {
		key := fields.Key()
		if _, seen := headers[key]; seen {
			continue
		}
		headers[key] = fieldText(fields.Text, fields.Value)
	}

	for _, key := range canonicalHeaders {
		if !h.Has(key) {
			continue
		}
		headers[key] = fieldText(func() (string, error) { return h.Text(key) }, func() string { return h.Get(key) })
	}
	return headers
}

// fieldText decodes RFC 2047 encoded words, falling back to the raw value
func fieldText(decoded func() (string, error), raw func() string) string {
	if s, err := decoded(); err == nil {
		return s
	}
	return raw()
}

// htmlToText returns the visible text of an HTML document, with runs of
// whitespace collapsed and text nodes joined by single spaces.
func htmlToText(doc []byte) string {
	z := html.NewTokenizer(bytes.NewReader(doc))
	var words []string
	skip := 0

	for {
		switch z.Next() {
		case html.ErrorToken:
			return strings.Join(words, " ")
		case html.StartTagToken:
			if name, _ := z.TagName(); isHiddenElement(string(name)) {
				skip++
			}
		case html.EndTagToken:
			if name, _ := z.TagName(); isHiddenElement(string(name)) && skip > 0 {
				skip--
			}
		case html.TextToken:
			if skip > 0 {
				continue
			}
			if text := strings.Join(strings.Fields(string(z.Text())), " "); text != "" {
				words = append(words, text)
			}
		}
	}
}

func isHiddenElement(tag string) bool {
	return tag == "script" || tag == "style" || tag == "head" || tag == "title"
}
