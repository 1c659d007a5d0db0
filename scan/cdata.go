//go:build cgo

package scan

import (
	"github.com/apache/arrow-go/v18/arrow/cdata"
)

// ExportSchema writes the schema of caps to out for a C data interface
// consumer. out must be zero initialized.
func ExportSchema(caps Capabilities, out *cdata.CArrowSchema) error {
	if caps.GetSchema == nil {
		return ErrNilCapability
	}
	schema := caps.GetSchema()
	if err := checkSchema(schema); err != nil {
		return err
	}
	cdata.ExportArrowSchema(schema, out)
	return nil
}

// ExportStream hands s to a C data interface consumer as an array stream.
// The consumer owns s from then on and closes it through the stream's
// release callback. out must be zero initialized.
func ExportStream(s *Stream, out *cdata.CArrowArrayStream) {
	r := s.RecordReader()
	cdata.ExportRecordReader(r, out)
	r.Release()
}
