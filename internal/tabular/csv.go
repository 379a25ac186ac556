package tabular

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/rpattn/shopsync/internal/domain"
)

var byteOrderMark = []byte{0xEF, 0xBB, 0xBF}

// EncodeCSV renders columns and rows as comma separated text. A value is
// quoted only when it contains a comma, a double quote or a line break.
// Lines are joined by a single newline with no trailing newline.
func EncodeCSV(columns []string, rows []domain.Row) string {
	var b strings.Builder
	writeLine(&b, columns)
	for _, row := range rows {
		b.WriteByte('\n')
		writeLine(&b, row.Values(columns))
	}
	return b.String()
}

// WriteCSV streams EncodeCSV output to w.
func WriteCSV(w io.Writer, columns []string, rows []domain.Row) error {
	bw := bufio.NewWriter(w)
	if _, err := bw.WriteString(EncodeCSV(columns, rows)); err != nil {
		return fmt.Errorf("write csv: %w", err)
	}
	if err := bw.Flush(); err != nil {
		return fmt.Errorf("flush csv: %w", err)
	}
	return nil
}

func writeLine(b *strings.Builder, values []string) {
	for i, value := range values {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(quoteField(value))
	}
}

func quoteField(value string) string {
	if !strings.ContainsAny(value, ",\"\n\r") {
		return value
	}
	return `"` + strings.ReplaceAll(value, `"`, `""`) + `"`
}

// DecodeCSV parses comma separated text. The first record is the header;
// every later record with a different field count is dropped with a warning.
// Carriage returns inside quoted fields are kept as written, so a value
// holding "\r\n" survives an export and import cycle.
func DecodeCSV(payload []byte) (Table, error) {
	payload, restore := protectQuotedCR(bytes.TrimPrefix(payload, byteOrderMark))

	csvReader := csv.NewReader(bytes.NewReader(payload))
	csvReader.FieldsPerRecord = -1
	csvReader.LazyQuotes = true

	header, err := csvReader.Read()
	if errors.Is(err, io.EOF) {
		return Table{}, ErrMissingHeader
	}
	if err != nil {
		return Table{}, fmt.Errorf("read csv header: %w", err)
	}

	restore(header)
	table, err := newTable(header)
	if err != nil {
		return Table{}, err
	}

	for {
		record, err := csvReader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			line := 0
			var parseErr *csv.ParseError
			if errors.As(err, &parseErr) {
				line = parseErr.StartLine
			}
			table.drop(line, err.Error())
			continue
		}
		restore(record)
		line, _ := csvReader.FieldPos(0)
		table.addRecord(line, record, false)
	}
	return table, nil
}

// crSentinels are private use runes that stand in for a quoted carriage
// return while encoding/csv reads the payload; the reader folds "\r\n" to
// "\n" even inside quotes.
var crSentinels = []rune{'\uE000', '\uE001', '\uE002', '\uE003'}

// protectQuotedCR replaces every carriage return inside a quoted field with
// a sentinel absent from payload and returns a func that puts them back. The
// quote rules follow csv.Reader with LazyQuotes: a quote opens a field only
// at its start, "" is an escaped quote, and a quote closes the field only
// before a comma, a line break or the end of input.
func protectQuotedCR(payload []byte) ([]byte, func([]string)) {
	noop := func([]string) {}
	if !bytes.Contains(payload, []byte{'\r'}) {
		return payload, noop
	}
	sentinel := rune(-1)
	for _, r := range crSentinels {
		if !bytes.ContainsRune(payload, r) {
			sentinel = r
			break
		}
	}
	if sentinel < 0 {
		return payload, noop
	}

	var out bytes.Buffer
	out.Grow(len(payload))
	quoted, fieldStart, replaced := false, true, false
	for i := 0; i < len(payload); i++ {
		c := payload[i]
		if !quoted {
			if c == '"' && fieldStart {
				quoted = true
			}
			fieldStart = c == ',' || c == '\n'
			out.WriteByte(c)
			continue
		}
		switch c {
		case '\r':
			out.WriteRune(sentinel)
			replaced = true
		case '"':
			out.WriteByte(c)
			if i+1 < len(payload) && payload[i+1] == '"' {
				out.WriteByte('"')
				i++
				continue
			}
			if closesQuote(payload[i+1:]) {
				quoted = false
			}
		default:
			out.WriteByte(c)
		}
	}
	if !replaced {
		return payload, noop
	}

	old := string(sentinel)
	return out.Bytes(), func(fields []string) {
		for i, field := range fields {
			if strings.Contains(field, old) {
				fields[i] = strings.ReplaceAll(field, old, "\r")
			}
		}
	}
}

func closesQuote(rest []byte) bool {
	return len(rest) == 0 || rest[0] == ',' || rest[0] == '\n' ||
		(rest[0] == '\r' && len(rest) > 1 && rest[1] == '\n') ||
		(rest[0] == '\r' && len(rest) == 1)
}
