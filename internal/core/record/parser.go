package record

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/agenthands/clinigraph/internal/core/dedupe"
	"github.com/agenthands/clinigraph/internal/core/model"
)

// DefaultMaxLineSize bounds a single record line, newline included.
// Clinical notes with all their extractions comfortably fit.
const DefaultMaxLineSize = 16 * 1024 * 1024

var validate = validator.New()

// Scanner reads extraction records from line-delimited JSON. Blank lines are
// skipped. A line that fails to decode or validate, or is longer than
// MaxLineSize, yields a *MalformedRecordError and scanning can continue with
// the next line; any other error is an I/O failure and ends the stream.
type Scanner struct {
	MaxLineSize int

	r    *bufio.Reader
	line int
}

func NewScanner(r io.Reader) *Scanner {
	return &Scanner{
		MaxLineSize: DefaultMaxLineSize,
		r:           bufio.NewReaderSize(r, 64*1024),
	}
}

// Line is the 1-based number of the line last returned by Next.
func (s *Scanner) Line() int {
	return s.line
}

// Next returns the next record, or io.EOF once the input is exhausted.
func (s *Scanner) Next() (*model.ExtractionRecord, error) {
	for {
		raw, tooLong, err := s.readLine()
		if errors.Is(err, io.EOF) {
			return nil, io.EOF
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read records: %w", err)
		}
		s.line++
		if tooLong {
			return nil, &MalformedRecordError{Line: s.line, Err: ErrLineTooLong}
		}

		raw = bytes.TrimSpace(raw)
		if len(raw) == 0 {
			continue
		}
		rec, err := Parse(raw)
		if err != nil {
			var docID string
			if rec != nil {
				docID = rec.DocumentID
			}
			return nil, &MalformedRecordError{Line: s.line, DocumentID: docID, Err: err}
		}
		return rec, nil
	}
}

// readLine returns the next line. An oversized line is read to its end and
// dropped so the following line starts clean. A final line without a
// newline is still returned; io.EOF means nothing was left.
func (s *Scanner) readLine() ([]byte, bool, error) {
	var (
		buf     []byte
		n       int
		tooLong bool
	)
	for {
		chunk, err := s.r.ReadSlice('\n')
		n += len(chunk)
		if n > s.MaxLineSize {
			tooLong, buf = true, nil
		} else {
			buf = append(buf, chunk...)
		}

		switch {
		case errors.Is(err, bufio.ErrBufferFull):
			continue
		case errors.Is(err, io.EOF) && n > 0:
			return buf, tooLong, nil
		default:
			return buf, tooLong, err
		}
	}
}

// Parse decodes and validates a single record. On a validation failure the
// partially decoded record is returned along with the error so callers can
// report its document id.
func Parse(raw []byte) (*model.ExtractionRecord, error) {
	var rec model.ExtractionRecord
	if err := json.Unmarshal(raw, &rec); err != nil {
		return nil, fmt.Errorf("invalid JSON: %w", err)
	}
	if err := Validate(&rec); err != nil {
		return &rec, err
	}
	return &rec, nil
}

// Validate checks the required fields of a record, the text of its
// known-class entities and the endpoints of its relationship extractions.
func Validate(rec *model.ExtractionRecord) error {
	if err := validate.Struct(rec); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			fields := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				fields = append(fields, fe.Namespace())
			}
			return fmt.Errorf("missing required fields: %s", strings.Join(fields, ", "))
		}
		return err
	}
	for i, ex := range rec.Extractions {
		if !ex.IsRelationship() {
			if dedupe.IsKnownClass(ex.ExtractionClass) && strings.TrimSpace(ex.ExtractionText) == "" {
				return fmt.Errorf("extraction %d: %w", i, dedupe.ErrBlankText)
			}
			continue
		}
		if _, _, err := RelationshipEndpoints(ex); err != nil {
			return fmt.Errorf("extraction %d: %w", i, err)
		}
	}
	return nil
}

// RelationshipEndpoints returns the entity_1 and entity_2 attributes of a
// relationship extraction as free text.
func RelationshipEndpoints(ex model.Extraction) (string, string, error) {
	a, okA := endpoint(ex.Attributes, "entity_1")
	b, okB := endpoint(ex.Attributes, "entity_2")
	switch {
	case !okA && !okB:
		return "", "", errors.New("relationship is missing entity_1 and entity_2")
	case !okA:
		return "", "", errors.New("relationship is missing entity_1")
	case !okB:
		return "", "", errors.New("relationship is missing entity_2")
	}
	return a, b, nil
}

func endpoint(attrs map[string]model.AttributeValue, name string) (string, bool) {
	v, ok := attrs[name]
	if !ok || v.Kind() == model.AttributeList {
		return "", false
	}
	s := strings.TrimSpace(v.String())
	return s, s != ""
}

// ReadAll eagerly parses every line of r. Malformed lines are collected and
// do not stop parsing; an I/O error does.
func ReadAll(r io.Reader) ([]*model.ExtractionRecord, []*MalformedRecordError, error) {
	sc := NewScanner(r)
	var (
		records   []*model.ExtractionRecord
		malformed []*MalformedRecordError
	)
	for {
		rec, err := sc.Next()
		if errors.Is(err, io.EOF) {
			return records, malformed, nil
		}
		var mErr *MalformedRecordError
		if errors.As(err, &mErr) {
			malformed = append(malformed, mErr)
			continue
		}
		if err != nil {
			return records, malformed, err
		}
		records = append(records, rec)
	}
}

// ReadFile is ReadAll over a file on disk.
func ReadFile(path string) ([]*model.ExtractionRecord, []*MalformedRecordError, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, err
	}
	defer f.Close()
	return ReadAll(f)
}
