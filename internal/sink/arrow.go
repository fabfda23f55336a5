package sink

import (
	"fmt"
	"io"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	arrowcsv "github.com/apache/arrow-go/v18/arrow/csv"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/apache/arrow-go/v18/parquet"
	"github.com/apache/arrow-go/v18/parquet/compress"
	"github.com/apache/arrow-go/v18/parquet/pqarrow"
	"github.com/vk/assetgrid/internal/table"
)

// arrowType maps a column kind to its Arrow type.
func arrowType(k table.Kind) arrow.DataType {
	switch k {
	case table.Float:
		return arrow.PrimitiveTypes.Float64
	case table.Date:
		return arrow.FixedWidthTypes.Date32
	default:
		return arrow.BinaryTypes.String
	}
}

// Schema returns the Arrow schema of d. Every field is nullable.
func Schema(d *table.Dataset) *arrow.Schema {
	cols := d.Columns()
	fields := make([]arrow.Field, len(cols))
	for i, c := range cols {
		fields[i] = arrow.Field{Name: c.Name(), Type: arrowType(c.Kind()), Nullable: true}
	}
	return arrow.NewSchema(fields, nil)
}

// Record converts d into a single Arrow record. Missing values, including NaN
// floats, become Arrow nulls. The caller must release the record.
func Record(mem memory.Allocator, d *table.Dataset) arrow.Record {
	b := array.NewRecordBuilder(mem, Schema(d))
	defer b.Release()

	for i, c := range d.Columns() {
		switch fb := b.Field(i).(type) {
		case *array.Float64Builder:
			fb.Reserve(c.Len())
			for r := 0; r < c.Len(); r++ {
				if c.IsNull(r) {
					fb.AppendNull()
					continue
				}
				fb.Append(c.Float(r))
			}
		case *array.Date32Builder:
			fb.Reserve(c.Len())
			for r := 0; r < c.Len(); r++ {
				if c.IsNull(r) {
					fb.AppendNull()
					continue
				}
				fb.Append(arrow.Date32FromTime(c.Date(r)))
			}
		case *array.StringBuilder:
			fb.Reserve(c.Len())
			for r := 0; r < c.Len(); r++ {
				if c.IsNull(r) {
					fb.AppendNull()
					continue
				}
				fb.Append(c.Str(r))
			}
		}
	}
	return b.NewRecord()
}

// EncodeCSV writes d as CSV with a header row. Missing values are empty
// cells and dates use the YYYY-MM-DD form.
func EncodeCSV(w io.Writer, d *table.Dataset) error {
	rec := Record(memory.NewGoAllocator(), d)
	defer rec.Release()

	cw := arrowcsv.NewWriter(w, rec.Schema(), arrowcsv.WithHeader(true), arrowcsv.WithNullWriter(""))
	if err := cw.Write(rec); err != nil {
		return fmt.Errorf("failed to write csv: %w", err)
	}
	if err := cw.Flush(); err != nil {
		return fmt.Errorf("failed to flush csv: %w", err)
	}
	return nil
}

// EncodeParquet writes d as a Snappy-compressed Parquet file that stores its
// Arrow schema.
func EncodeParquet(w io.Writer, d *table.Dataset) error {
	rec := Record(memory.NewGoAllocator(), d)
	defer rec.Release()

	props := parquet.NewWriterProperties(parquet.WithCompression(compress.Codecs.Snappy))
	arrowProps := pqarrow.NewArrowWriterProperties(pqarrow.WithStoreSchema())

	fw, err := pqarrow.NewFileWriter(rec.Schema(), w, props, arrowProps)
	if err != nil {
		return fmt.Errorf("failed to create parquet writer: %w", err)
	}
	if err := fw.Write(rec); err != nil {
		_ = fw.Close()
		return fmt.Errorf("failed to write parquet: %w", err)
	}
	if err := fw.Close(); err != nil {
		return fmt.Errorf("failed to close parquet writer: %w", err)
	}
	return nil
}

// Encode writes d in format f.
func Encode(w io.Writer, f Format, d *table.Dataset) error {
	switch f {
	case FormatCSV:
		return EncodeCSV(w, d)
	case FormatParquet:
		return EncodeParquet(w, d)
	default:
		return fmt.Errorf("unsupported output format %q", f)
	}
}
