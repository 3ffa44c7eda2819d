// Package extract turns uploaded files into plain text suitable for storing
// as thread documents. The file type is sniffed from content, with the file
// name used only to pick markdown handling for plain text.
package extract

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	htmltomarkdown "github.com/JohannesKaufmann/html-to-markdown/v2"
	"github.com/gabriel-vasile/mimetype"
	pdf "github.com/ledongthuc/pdf"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/tbourn/smartlang-chat/internal/search"
)

var (
	// ErrExtraction means the file could not be decoded or parsed.
	ErrExtraction = errors.New("file could not be read")

	// ErrEmptyExtraction means parsing succeeded but produced no usable text.
	ErrEmptyExtraction = errors.New("file contains no extractable text")
)

// Kind is the extraction strategy chosen for a file.
type Kind string

const (
	KindPDF      Kind = "pdf"
	KindHTML     Kind = "html"
	KindMarkdown Kind = "markdown"
	KindText     Kind = "text"
	KindMedia    Kind = "media"
	KindBinary   Kind = "binary"
)

// Detect classifies data. name only distinguishes markdown from other text.
func Detect(name string, data []byte) (Kind, *mimetype.MIME) {
	mt := mimetype.Detect(data)
	switch {
	case mt.Is("application/pdf"):
		return KindPDF, mt
	case mt.Is("text/html"):
		return KindHTML, mt
	case isMedia(mt):
		return KindMedia, mt
	case isText(mt):
		switch strings.ToLower(filepath.Ext(name)) {
		case ".md", ".markdown":
			return KindMarkdown, mt
		}
		return KindText, mt
	}
	return KindBinary, mt
}

// Text extracts the text of an uploaded file. Failures wrap ErrExtraction;
// a successful parse without text returns ErrEmptyExtraction.
func Text(name string, data []byte) (string, error) {
	if len(data) == 0 {
		return "", ErrEmptyExtraction
	}

	kind, mt := Detect(name, data)
	var (
		out string
		err error
	)
	switch kind {
	case KindPDF:
		out, err = pdfText(data)
	case KindHTML:
		out, err = htmltomarkdown.ConvertString(decodeUTF8(data))
	case KindMarkdown:
		var b []byte
		b, err = search.FlattenMarkdown(bytes.NewReader(data))
		out = decodeUTF8(b)
	case KindText:
		out = decodeUTF8(data)
	case KindMedia:
		// Images and audio carry no text layer.
		return "", ErrEmptyExtraction
	default:
		return "", fmt.Errorf("%w: unsupported type %s", ErrExtraction, mt.String())
	}
	if err != nil {
		return "", fmt.Errorf("%w: %s: %v", ErrExtraction, kind, err)
	}
	if strings.TrimSpace(out) == "" {
		return "", ErrEmptyExtraction
	}
	return out, nil
}

// pdfText returns the plain text of every page, pages separated by a blank
// line.
func pdfText(data []byte) (text string, err error) {
	// The parser panics on some malformed inputs.
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("pdf parser panic: %v", r)
		}
	}()

	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("pdf reader: %w", err)
	}
	n := r.NumPage()
	if n == 0 {
		plain, err := r.GetPlainText()
		if err != nil {
			return "", fmt.Errorf("pdf plaintext: %w", err)
		}
		b, err := io.ReadAll(plain)
		if err != nil {
			return "", fmt.Errorf("pdf read: %w", err)
		}
		return string(b), nil
	}

	pages := make([]string, 0, n)
	for i := 1; i <= n; i++ {
		p := r.Page(i)
		if p.V.IsNull() {
			pages = append(pages, "")
			continue
		}
		s, err := p.GetPlainText(nil)
		if err != nil {
			return "", fmt.Errorf("pdf page %d: %w", i, err)
		}
		pages = append(pages, s)
	}
	return strings.Join(pages, "\n\n"), nil
}

// decodeUTF8 drops invalid byte sequences and NULs and returns NFC text.
// A UTF-16 byte order mark switches decoding to UTF-16.
func decodeUTF8(b []byte) string {
	if bytes.HasPrefix(b, []byte{0xff, 0xfe}) || bytes.HasPrefix(b, []byte{0xfe, 0xff}) {
		if u, _, err := transform.Bytes(unicode.BOMOverride(unicode.UTF8.NewDecoder()), b); err == nil {
			b = u
		}
	}
	s := strings.ReplaceAll(strings.ToValidUTF8(string(b), ""), "\x00", "")
	return norm.NFC.String(s)
}

func isText(mt *mimetype.MIME) bool {
	for m := mt; m != nil; m = m.Parent() {
		if m.Is("text/plain") {
			return true
		}
	}
	return false
}

func isMedia(mt *mimetype.MIME) bool {
	s := mt.String()
	return strings.HasPrefix(s, "image/") || strings.HasPrefix(s, "audio/") || strings.HasPrefix(s, "video/")
}
