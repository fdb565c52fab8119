package filter

import (
	"bytes"
	"encoding/base64"
	"io"
	"mime"
	"mime/multipart"
	"mime/quotedprintable"
	"net/mail"
	"strings"

	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/transform"
)

// extractTextFromMessage extracts the decoded text content from an email
// message. Multipart messages are walked for text/* parts; single-part
// bodies are decoded according to their transfer encoding and charset.
func extractTextFromMessage(msg *mail.Message) (string, error) {
	contentType := msg.Header.Get("Content-Type")
	mediaType, params, err := mime.ParseMediaType(contentType)
	if err != nil || !strings.HasPrefix(mediaType, "multipart/") {
		return decodePart(msg.Body, msg.Header.Get("Content-Transfer-Encoding"), params["charset"])
	}

	boundary, ok := params["boundary"]
	if !ok {
		return decodePart(msg.Body, msg.Header.Get("Content-Transfer-Encoding"), params["charset"])
	}

	mr := multipart.NewReader(msg.Body, boundary)
	var textContent bytes.Buffer

	for {
		part, err := mr.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			// Return whatever was collected before the malformed part
			return textContent.String(), nil
		}

		partType, partParams, err := mime.ParseMediaType(part.Header.Get("Content-Type"))
		if err != nil {
			continue
		}
		if !strings.HasPrefix(partType, "text/") {
			continue
		}

		decoded, err := decodePart(part, part.Header.Get("Content-Transfer-Encoding"), partParams["charset"])
		if err != nil {
			continue
		}
		textContent.WriteString(decoded)
		textContent.WriteString("\n")
	}

	return textContent.String(), nil
}

// decodePart reads a body applying its transfer encoding and charset
func decodePart(r io.Reader, transferEncoding, charset string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(transferEncoding)) {
	case "quoted-printable":
		r = quotedprintable.NewReader(r)
	case "base64":
		r = base64.NewDecoder(base64.StdEncoding, r)
	}

	if decoder := charsetDecoder(charset); decoder != nil {
		r = transform.NewReader(r, decoder)
	}

	data, err := io.ReadAll(r)
	if err != nil {
		return string(data), err
	}
	return string(data), nil
}

// charsetDecoder maps common legacy charsets to a decoding transformer.
// UTF-8 and unknown charsets pass through untouched.
func charsetDecoder(charset string) transform.Transformer {
	switch strings.ToLower(strings.TrimSpace(charset)) {
	case "iso-8859-1", "latin1":
		return charmap.ISO8859_1.NewDecoder()
	case "iso-8859-15":
		return charmap.ISO8859_15.NewDecoder()
	case "windows-1252", "cp1252":
		return charmap.Windows1252.NewDecoder()
	default:
		return nil
	}
}

// insertHeaders prepends header lines to a raw message. The raw data is
// otherwise untouched so the re-injected message stays byte-identical.
func insertHeaders(rawData []byte, headers map[string]string, order []string) []byte {
	var buf bytes.Buffer
	for _, name := range order {
		if value, ok := headers[name]; ok {
			buf.WriteString(name)
			buf.WriteString(": ")
			buf.WriteString(value)
			buf.WriteString("\r\n")
		}
	}
	buf.Write(rawData)
	return buf.Bytes()
}

// prefixSubject rewrites the Subject header line with a prefix, leaving
// the rest of the raw message untouched
func prefixSubject(rawData []byte, prefix string) []byte {
	if prefix == "" {
		return rawData
	}

	headerEnd := bytes.Index(rawData, []byte("\r\n\r\n"))
	sep := []byte("\r\n")
	if headerEnd < 0 {
		headerEnd = bytes.Index(rawData, []byte("\n\n"))
		sep = []byte("\n")
		if headerEnd < 0 {
			headerEnd = len(rawData)
		}
	}

	head := rawData[:headerEnd]
	lines := bytes.Split(head, sep)
	for i, line := range lines {
		if len(line) >= 8 && strings.EqualFold(string(line[:8]), "subject:") {
			subject := strings.TrimSpace(string(line[8:]))
			if !strings.HasPrefix(subject, prefix) {
				lines[i] = []byte("Subject: " + prefix + subject)
			}
			break
		}
	}

	var buf bytes.Buffer
	buf.Write(bytes.Join(lines, sep))
	buf.Write(rawData[headerEnd:])
	return buf.Bytes()
}
