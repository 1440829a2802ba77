package tabular

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"unicode/utf8"

	"github.com/bryanwahyu/survey-insight/internal/domain/survey"
)

// RowPolicy decides what happens when a data row does not have as many
// cells as the header.
type RowPolicy string

const (
	// Strict rejects the whole upload on the first mismatched row.
	Strict RowPolicy = "strict"
	// Lenient pads missing cells with "" and drops extra cells.
	Lenient RowPolicy = "lenient"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

var (
	errEmpty     = errors.New("input is empty")
	errNotUTF8   = errors.New("input is not valid UTF-8 text")
	errBinary    = errors.New("input contains NUL bytes")
	errRowLength = errors.New("row length does not match header")
)

// Decoder turns raw CSV bytes into a survey.Table using the first row as header.
type Decoder struct {
	Policy RowPolicy
}

func NewDecoder(policy RowPolicy) *Decoder {
	if policy == "" {
		policy = Strict
	}
	return &Decoder{Policy: policy}
}

// Decode implementasi survey.Decoder
func (d *Decoder) Decode(raw []byte) (survey.Table, error) {
	content := bytes.TrimPrefix(raw, utf8BOM)
	if len(bytes.TrimSpace(content)) == 0 {
		return survey.Table{}, &survey.DecodeError{Cause: errEmpty}
	}
	if bytes.IndexByte(content, 0) >= 0 {
		return survey.Table{}, &survey.DecodeError{Cause: errBinary}
	}
	if !utf8.Valid(content) {
		return survey.Table{}, &survey.DecodeError{Cause: errNotUTF8}
	}

	r := csv.NewReader(bytes.NewReader(content))
	// row length is checked below so both policies share one reader setup
	r.FieldsPerRecord = -1

	header, err := r.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return survey.Table{}, &survey.DecodeError{Cause: errEmpty}
		}
		return survey.Table{}, decodeErr(err)
	}

	keys, slot := collapseHeader(header)
	table := survey.Table{Header: keys}

	for {
		row, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return survey.Table{}, decodeErr(err)
		}
		if len(row) != len(header) {
			if d.Policy != Lenient {
				line, _ := r.FieldPos(0)
				return survey.Table{}, &survey.DecodeError{
					Line:  line,
					Cause: fmt.Errorf("%w: got %d fields, want %d", errRowLength, len(row), len(header)),
				}
			}
			row = fit(row, len(header))
		}

		values := make([]string, len(keys))
		for i, cell := range row {
			values[slot[i]] = cell
		}
		table.Records = append(table.Records, survey.NewRecord(keys, values))
	}

	return table, nil
}

// collapseHeader removes duplicate column names. The first occurrence fixes
// the position; slot maps every raw column index to its key index, so a later
// duplicate overwrites the earlier cell.
func collapseHeader(header []string) ([]survey.Question, []int) {
	pos := make(map[string]int, len(header))
	keys := make([]survey.Question, 0, len(header))
	slot := make([]int, len(header))
	for i, h := range header {
		if p, ok := pos[h]; ok {
			slot[i] = p
			continue
		}
		pos[h] = len(keys)
		slot[i] = len(keys)
		keys = append(keys, survey.Question(h))
	}
	return keys, slot
}

func fit(row []string, n int) []string {
	if len(row) > n {
		return row[:n]
	}
	out := make([]string, n)
	copy(out, row)
	return out
}

func decodeErr(err error) error {
	var pe *csv.ParseError
	if errors.As(err, &pe) {
		return &survey.DecodeError{Line: pe.Line, Cause: pe.Err}
	}
	return &survey.DecodeError{Cause: err}
}
