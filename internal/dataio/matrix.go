package dataio

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"

	"gonum.org/v1/gonum/mat"
)

// Digits is the number of decimals written for every expression value.
const Digits = 7

const timeColumn = "Time"

var ErrShape = errors.New("row length does not match header")

// WriteMatrix writes a header line followed by one line per row, values
// formatted with Digits decimals.
func WriteMatrix(w io.Writer, header []string, rows [][]float64) error {
	writer := csv.NewWriter(w)
	writer.Comma = '\t'

	if err := writer.Write(header); err != nil {
		return err
	}
	record := make([]string, len(header))
	for i, row := range rows {
		if len(row) != len(header) {
			return fmt.Errorf("%w: row %d has %d values, header %d", ErrShape, i, len(row), len(header))
		}
		for j, v := range row {
			record[j] = FormatValue(v)
		}
		if err := writer.Write(record); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

// WriteDense writes m under the gene header. When times is non-nil a Time
// column is prepended.
func WriteDense(w io.Writer, genes []string, m *mat.Dense, times []float64) error {
	rows, cols := m.Dims()
	if cols != len(genes) {
		return fmt.Errorf("%w: matrix has %d columns, %d genes", ErrShape, cols, len(genes))
	}
	if times != nil && len(times) != rows {
		return fmt.Errorf("%w: %d times for %d rows", ErrShape, len(times), rows)
	}

	header := genes
	if times != nil {
		header = append([]string{timeColumn}, genes...)
	}
	out := make([][]float64, rows)
	for i := range out {
		row := m.RawRowView(i)
		if times != nil {
			out[i] = append([]float64{times[i]}, row...)
		} else {
			out[i] = row
		}
	}
	return WriteMatrix(w, header, out)
}

// ReadMatrix reads what WriteMatrix writes.
func ReadMatrix(r io.Reader) ([]string, [][]float64, error) {
	reader := csv.NewReader(r)
	reader.Comma = '\t'

	header, err := reader.Read()
	if err != nil {
		return nil, nil, fmt.Errorf("read header: %w", err)
	}
	reader.FieldsPerRecord = len(header)

	var rows [][]float64
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, nil, err
		}
		row := make([]float64, len(record))
		for j, field := range record {
			v, err := strconv.ParseFloat(field, 64)
			if err != nil {
				line, col := reader.FieldPos(j)
				return nil, nil, fmt.Errorf("line %d column %d: %w", line, col, err)
			}
			row[j] = v
		}
		rows = append(rows, row)
	}
	return header, rows, nil
}

func FormatValue(v float64) string {
	return strconv.FormatFloat(v, 'f', Digits, 64)
}
