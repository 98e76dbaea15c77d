package caravel

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
)

// CSVBatchReader reads CSV data in fixed-size row batches. Column types are
// locked in from the first batch, so every batch shares one schema.
type CSVBatchReader struct {
	reader    *csv.Reader
	closer    io.Closer
	headers   []string
	dtypes    []DType
	opt       CSVReadOptions
	batchSize int
	schema    *Schema
	rowOffset int
	done      bool
}

// CSVBatchOptions configures CSV batch reading.
type CSVBatchOptions struct {
	// BatchSize is the number of rows per batch
	BatchSize int

	// Read carries the per-cell parsing options (delimiter, null values,
	// decimal separator, forced types)
	Read CSVReadOptions
}

// DefaultCSVBatchOptions returns default options.
func DefaultCSVBatchOptions() CSVBatchOptions {
	return CSVBatchOptions{
		BatchSize: 65536,
		Read:      DefaultCSVReadOptions(),
	}
}

// NewCSVBatchReader creates a new CSV batch reader.
// Column types are detected from the first batch unless forced via
// CSVReadOptions.ColumnTypes.
func NewCSVBatchReader(r io.Reader, opts ...CSVBatchOptions) (*CSVBatchReader, error) {
	opt := DefaultCSVBatchOptions()
	if len(opts) > 0 {
		opt = opts[0]
	}
	if opt.BatchSize <= 0 {
		opt.BatchSize = DefaultCSVBatchOptions().BatchSize
	}
	if opt.Read.DecimalComma && opt.Read.Delimiter == ',' {
		return nil, fmt.Errorf("decimal comma requires a field delimiter other than ','")
	}

	csvReader, err := newCSVReader(r, opt.Read)
	if err != nil {
		return nil, err
	}
	headers, err := readCSVHeader(csvReader, opt.Read)
	if err != nil {
		return nil, err
	}

	var closer io.Closer
	if c, ok := r.(io.Closer); ok {
		closer = c
	}

	return &CSVBatchReader{
		reader:    csvReader,
		closer:    closer,
		headers:   headers,
		opt:       opt.Read,
		batchSize: opt.BatchSize,
	}, nil
}

// readBatch pulls up to batchSize raw rows off the reader.
func (r *CSVBatchReader) readBatch(ctx context.Context) ([][]string, error) {
	records := make([][]string, 0, r.batchSize)
	for len(records) < r.batchSize {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		record, err := r.reader.Read()
		if err == io.EOF {
			r.done = true
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read row %d: %w", r.rowOffset+len(records), err)
		}
		records = append(records, record)
	}
	return records, nil
}

// Next reads the next batch of data.
func (r *CSVBatchReader) Next(ctx context.Context) (*DataFrame, error) {
	if r.done {
		return nil, io.EOF
	}

	records, err := r.readBatch(ctx)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		r.done = true
		return nil, io.EOF
	}

	if r.headers == nil {
		r.headers = positionalHeaders(len(records[0]))
	}

	// Types from the first batch bind all later batches
	if r.dtypes == nil {
		r.dtypes = resolveColumnTypes(r.headers, records, r.opt)
		r.schema, _ = NewSchema(r.headers, r.dtypes)
	}

	columns := make([]*Series, len(r.headers))
	for i, name := range r.headers {
		col, err := buildColumn(name, r.dtypes[i], records, i, r.opt)
		if err != nil {
			return nil, err
		}
		columns[i] = col
	}
	r.rowOffset += len(records)

	return NewDataFrame(columns...)
}

// Schema returns the schema of the data.
func (r *CSVBatchReader) Schema() *Schema {
	return r.schema
}

// Close releases resources.
func (r *CSVBatchReader) Close() error {
	if r.closer != nil {
		return r.closer.Close()
	}
	return nil
}
