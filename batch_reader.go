package caravel

import (
	"context"
	"fmt"
	"io"
)

// BatchReader is an interface for reading data in batches.
// This enables processing of datasets larger than RAM.
type BatchReader interface {
	// Next reads the next batch of data.
	// Returns io.EOF when there are no more batches.
	Next(ctx context.Context) (*DataFrame, error)

	// Schema returns the schema of the data.
	// May return nil if schema is unknown until first read.
	Schema() *Schema

	// Close releases any resources held by the reader.
	Close() error
}

// BatchOptions configures batch reading behavior.
type BatchOptions struct {
	// BatchSize is the number of rows per batch.
	// Default: 65536 (matches typical columnar chunk size)
	BatchSize int
}

// DefaultBatchOptions returns default batch reading options.
func DefaultBatchOptions() BatchOptions {
	return BatchOptions{
		BatchSize: 65536,
	}
}

// ============================================================================
// Streaming Pipeline
// ============================================================================

// BatchPipeline processes batches from a BatchReader through a chain of
// filters and transforms without materializing the whole input.
type BatchPipeline struct {
	reader     BatchReader
	transforms []func(*DataFrame) (*DataFrame, error)
	filters    []Expr
	limit      int
	hasLimit   bool
}

// NewBatchPipeline creates a streaming pipeline over a batch reader.
func NewBatchPipeline(reader BatchReader) *BatchPipeline {
	return &BatchPipeline{
		reader: reader,
	}
}

// Filter adds a filter predicate to the pipeline.
func (p *BatchPipeline) Filter(pred Expr) *BatchPipeline {
	p.filters = append(p.filters, pred)
	return p
}

// Transform adds a transformation function to the pipeline.
func (p *BatchPipeline) Transform(fn func(*DataFrame) (*DataFrame, error)) *BatchPipeline {
	p.transforms = append(p.transforms, fn)
	return p
}

// Limit sets a maximum number of rows to process.
func (p *BatchPipeline) Limit(n int) *BatchPipeline {
	p.limit = n
	p.hasLimit = true
	return p
}

// run drives the reader until EOF, applying filters and transforms and
// handing each surviving batch to emit. emit returns false to stop
// early.
func (p *BatchPipeline) run(ctx context.Context, emit func(*DataFrame) (bool, error)) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		batch, err := p.reader.Next(ctx)
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}

		if batch, err = p.processBatch(batch); err != nil {
			return err
		}

		more, err := emit(batch)
		if err != nil || !more {
			return err
		}
	}
}

// Collect processes all batches and combines the results into a single
// DataFrame.
func (p *BatchPipeline) Collect(ctx context.Context) (*DataFrame, error) {
	var results []*DataFrame
	totalRows := 0

	err := p.run(ctx, func(batch *DataFrame) (bool, error) {
		if p.hasLimit {
			remaining := p.limit - totalRows
			if remaining <= 0 {
				return false, nil
			}
			if batch.Height() > remaining {
				batch = batch.Head(remaining)
			}
		}
		results = append(results, batch)
		totalRows += batch.Height()
		return !p.hasLimit || totalRows < p.limit, nil
	})
	if err != nil {
		return nil, err
	}

	if len(results) == 0 {
		// Preserve the schema when nothing survived
		if schema := p.reader.Schema(); schema != nil {
			return emptyFrameFromSchema(schema)
		}
		return NewDataFrame()
	}

	return ConcatFrames(results...)
}

// ForEach processes each batch without combining results.
// Useful for aggregations or side effects.
func (p *BatchPipeline) ForEach(ctx context.Context, fn func(*DataFrame) error) error {
	return p.run(ctx, func(batch *DataFrame) (bool, error) {
		return true, fn(batch)
	})
}

func (p *BatchPipeline) processBatch(batch *DataFrame) (*DataFrame, error) {
	var err error
	for _, pred := range p.filters {
		// Route through the lazy layer so optimizer rewrites apply
		batch, err = batch.Lazy().Filter(pred).Collect()
		if err != nil {
			return nil, err
		}
	}
	for _, transform := range p.transforms {
		batch, err = transform(batch)
		if err != nil {
			return nil, err
		}
	}
	return batch, nil
}

// emptySeries builds a zero-row column of the given dtype. Unhandled
// dtypes fall back to string.
func emptySeries(name string, dtype DType) *Series {
	switch dtype {
	case Float64:
		return NewSeriesFloat64(name, nil)
	case Float32:
		return NewSeriesFloat32(name, nil)
	case Int64:
		return NewSeriesInt64(name, nil)
	case Int32:
		return NewSeriesInt32(name, nil)
	case Bool:
		return NewSeriesBool(name, nil)
	case Categorical:
		return NewSeriesCategorical(name, nil)
	}
	return NewSeriesString(name, nil)
}

// emptyFrameFromSchema creates a zero-row DataFrame with the given schema
func emptyFrameFromSchema(schema *Schema) (*DataFrame, error) {
	dtypes := schema.DTypes()
	cols := make([]*Series, 0, len(dtypes))
	for i, name := range schema.Names() {
		cols = append(cols, emptySeries(name, dtypes[i]))
	}
	return NewDataFrame(cols...)
}

// ConcatFrames concatenates multiple DataFrames vertically. All frames must
// share column names and dtypes.
func ConcatFrames(dfs ...*DataFrame) (*DataFrame, error) {
	if len(dfs) == 0 {
		return NewDataFrame()
	}
	out := dfs[0]
	var err error
	for i, df := range dfs[1:] {
		out, err = out.VStack(df)
		if err != nil {
			return nil, fmt.Errorf("frame %d: %w", i+1, err)
		}
	}
	return out, nil
}
