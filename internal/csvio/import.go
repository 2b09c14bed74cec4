// Package csvio converts between uploaded CSV files and customer rows.
package csvio

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/jmehdipour/customers-api/internal/model"
)

const DefaultMaxKB = 2048

// Row is one data line of an import file. Missing columns are empty.
type Row struct {
	Line  int
	Name  string
	Email string
	Phone string
}

// Complete reports whether all three columns carry a value.
func (r Row) Complete() bool {
	return r.Name != "" && r.Email != "" && r.Phone != ""
}

func (r Row) Fields() model.CustomerFields {
	return model.CustomerFields{Name: r.Name, Email: r.Email, Phone: r.Phone}
}

var allowedTypes = map[string]bool{
	"text/plain": true,
	"text/csv":   true,
}

// CheckUpload applies the file rules of the import endpoint: present, a
// csv/txt text file, and at most maxKB kilobytes. It returns the violations
// keyed by "file", or nil.
func CheckUpload(fh *multipart.FileHeader, maxKB int) map[string][]string {
	if fh == nil {
		return map[string][]string{"file": {"The file field is required."}}
	}
	if maxKB <= 0 {
		maxKB = DefaultMaxKB
	}

	var msgs []string
	if !acceptedType(fh) {
		msgs = append(msgs, "The file field must be a file of type: csv, txt.")
	}
	if fh.Size > int64(maxKB)*1024 {
		msgs = append(msgs, fmt.Sprintf("The file field must not be greater than %d kilobytes.", maxKB))
	}
	if len(msgs) == 0 {
		return nil
	}
	return map[string][]string{"file": msgs}
}

// acceptedType sniffs the first bytes of the upload; the declared name only
// breaks ties between text subtypes.
func acceptedType(fh *multipart.FileHeader) bool {
	f, err := fh.Open()
	if err != nil {
		return false
	}
	defer f.Close()

	head := make([]byte, 512)
	n, err := io.ReadFull(f, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return false
	}

	sniffed, _, _ := mime.ParseMediaType(http.DetectContentType(head[:n]))
	if allowedTypes[sniffed] {
		return true
	}
	if strings.HasPrefix(sniffed, "text/") && sniffed != "text/html" && sniffed != "text/xml" {
		ext := strings.ToLower(filepath.Ext(fh.Filename))
		return ext == ".csv" || ext == ".txt"
	}
	return false
}

// ParseImport reads the whole file. The first record is a header and is
// discarded without inspection; columns 0, 1, 2 of every later record are
// name, email, phone.
func ParseImport(r io.Reader) ([]Row, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true
	cr.ReuseRecord = true

	if _, err := cr.Read(); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil
		}
		return nil, fmt.Errorf("read header: %w", err)
	}

	var rows []Row
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read csv: %w", err)
		}
		line, _ := cr.FieldPos(0)
		rows = append(rows, Row{
			Line:  line,
			Name:  column(rec, 0),
			Email: column(rec, 1),
			Phone: column(rec, 2),
		})
	}
	return rows, nil
}

func column(rec []string, i int) string {
	if i >= len(rec) {
		return ""
	}
	return CleanCell(rec[i])
}

// CleanCell trims surrounding whitespace and a UTF-8 byte order mark.
func CleanCell(s string) string {
	return strings.TrimSpace(strings.TrimPrefix(s, "\ufeff"))
}
