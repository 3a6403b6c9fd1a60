// Package upload accepts syllabus files: it checks size and type, and pulls
// plain text out of PDFs for prompt packing and the tutor.
package upload

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/gabriel-vasile/mimetype"
	pdf "github.com/ledongthuc/pdf"

	"github.com/rcliao/studymap/internal/apperr"
	"github.com/rcliao/studymap/internal/chunker"
	"github.com/rcliao/studymap/internal/genai"
)

// MaxFileSize is the largest accepted upload.
const MaxFileSize = 5 << 20

// Accepted MIME types.
const (
	TypePDF  = "application/pdf"
	TypeText = "text/plain"
)

var (
	ErrTooLarge = apperr.New(apperr.KindValidation, "file_too_large",
		fmt.Errorf("file size must be less than %s", humanize.IBytes(MaxFileSize)))
	ErrUnsupportedType = apperr.New(apperr.KindValidation, "unsupported_file_type",
		fmt.Errorf("only PDF and plain text files are accepted"))
	ErrEmpty = apperr.New(apperr.KindValidation, "empty_file", fmt.Errorf("the file is empty"))
)

// File is a validated upload.
type File struct {
	Name     string
	MIMEType string
	Data     []byte
}

// Open reads and validates the file at path.
func Open(path string) (File, error) {
	info, err := os.Stat(path)
	if err != nil {
		return File{}, fmt.Errorf("open %s: %w", path, err)
	}
	if info.Size() > MaxFileSize {
		return File{}, fmt.Errorf("%w: %s is %s", ErrTooLarge, filepath.Base(path), humanize.IBytes(uint64(info.Size())))
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return File{}, fmt.Errorf("read %s: %w", path, err)
	}
	return FromBytes(filepath.Base(path), data)
}

// Read consumes at most MaxFileSize+1 bytes from r and validates them.
func Read(name string, r io.Reader) (File, error) {
	data, err := io.ReadAll(io.LimitReader(r, MaxFileSize+1))
	if err != nil {
		return File{}, fmt.Errorf("read upload: %w", err)
	}
	return FromBytes(name, data)
}

// FromBytes sniffs the content type of data and validates the result. The
// declared extension is not trusted.
func FromBytes(name string, data []byte) (File, error) {
	f := File{Name: name, Data: data}
	if len(data) > 0 {
		mt := mimetype.Detect(data)
		switch {
		case mt.Is(TypePDF):
			f.MIMEType = TypePDF
		case mt.Is(TypeText):
			f.MIMEType = TypeText
		default:
			f.MIMEType = mt.String()
		}
	}
	if err := Validate(f); err != nil {
		return File{}, err
	}
	return f, nil
}

// Validate checks size and type.
func Validate(f File) error {
	switch {
	case len(f.Data) == 0:
		return ErrEmpty
	case len(f.Data) > MaxFileSize:
		return fmt.Errorf("%w: %s is %s", ErrTooLarge, f.Name, humanize.IBytes(uint64(len(f.Data))))
	case f.MIMEType != TypePDF && f.MIMEType != TypeText:
		return fmt.Errorf("%w: %s looks like %s", ErrUnsupportedType, f.Name, f.MIMEType)
	}
	return nil
}

// DataURI encodes the file as data:<mime>;base64,<data>.
func (f File) DataURI() string {
	return genai.Document{MIMEType: f.MIMEType, Data: f.Data}.DataURI()
}

// Size is the human-readable file size.
func (f File) Size() string { return humanize.IBytes(uint64(len(f.Data))) }

// Stem is the file name without its extension, used as the default
// syllabus name.
func (f File) Stem() string {
	return strings.TrimSuffix(f.Name, filepath.Ext(f.Name))
}

// ExtractText returns the plain text of f. Text files are returned exactly
// as uploaded; that is the stored source text. PDFs whose text cannot be
// extracted (scanned pages, odd encodings) yield "" and no error; the
// document itself is still usable for deconstruction.
func ExtractText(f File) (string, error) {
	switch f.MIMEType {
	case TypeText:
		return string(f.Data), nil
	case TypePDF:
		text, err := extractPDF(f.Data)
		if err != nil {
			return "", nil
		}
		return text, nil
	}
	return "", ErrUnsupportedType
}

// Document converts the file for the generator, attaching extracted text.
func (f File) Document() (genai.Document, error) {
	text, err := ExtractText(f)
	if err != nil {
		return genai.Document{}, err
	}
	return genai.Document{Name: f.Name, MIMEType: f.MIMEType, Data: f.Data, Text: text}, nil
}

func extractPDF(data []byte) (text string, err error) {
	defer func() {
		// The parser panics on some malformed cross-reference tables.
		if r := recover(); r != nil {
			text, err = "", fmt.Errorf("pdf parse: %v", r)
		}
	}()
	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("pdf reader: %w", err)
	}
	plain, err := r.GetPlainText()
	if err != nil {
		return "", fmt.Errorf("pdf plaintext: %w", err)
	}
	b, err := io.ReadAll(plain)
	if err != nil {
		return "", fmt.Errorf("pdf read: %w", err)
	}
	return chunker.Normalize(string(b)), nil
}
