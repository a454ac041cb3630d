package operations

import (
	"encoding/json"
	"fmt"

	"github.com/apache/arrow/go/v17/arrow"
	"github.com/apache/arrow/go/v17/arrow/array"
	"github.com/linkedin/goavro/v2"
)

/*
* Encodes single rows of an arrow record into avro binary. Two rows encode
* to the same bytes exactly when every column holds the same value or is
* null in both, which makes the encoding usable as a full-row identity.
 */
type RowEncoder struct {
	codec   *goavro.Codec
	schema  *arrow.Schema
	names   []string
	avroTys []string
	checked *arrow.Schema

	native map[string]interface{}
	buf    []byte
}

func NewRowEncoder(arrowSchema *arrow.Schema) (*RowEncoder, error) {
	codec, avroTys, err := ArrowToAvroSchema(arrowSchema)
	if err != nil {
		return nil, err
	}

	names := make([]string, arrowSchema.NumFields())
	for i := range names {
		names[i] = avroFieldName(i)
	}

	return &RowEncoder{
		codec:   codec,
		schema:  arrowSchema,
		names:   names,
		avroTys: avroTys,
		native:  make(map[string]interface{}, arrowSchema.NumFields()),
	}, nil
}

// EncodeRow returns the avro encoding of row idx. The returned slice is a
// fresh copy and stays valid after later calls.
func (obj *RowEncoder) EncodeRow(record arrow.Record, idx int) ([]byte, error) {
	if record.Schema() != obj.checked {
		if !record.Schema().Equal(obj.schema) {
			return nil, fmt.Errorf("%w| encoder schema %s, record schema %s", ErrRecordSchemaMismatch, obj.schema, record.Schema())
		}
		obj.checked = record.Schema()
	}

	for colIdx, col := range record.Columns() {
		if col.IsNull(idx) {
			obj.native[obj.names[colIdx]] = nil
			continue
		}
		val, err := ArrowArrayValueToAvroValue(col, idx)
		if err != nil {
			return nil, err
		}
		obj.native[obj.names[colIdx]] = goavro.Union(obj.avroTys[colIdx], val)
	}

	data, err := obj.codec.BinaryFromNative(obj.buf[:0], obj.native)
	if err != nil {
		return nil, err
	}
	obj.buf = data

	out := make([]byte, len(data))
	copy(out, data)
	return out, nil
}

func ArrowArrayValueToAvroValue(arr arrow.Array, idx int) (interface{}, error) {
	switch arr.DataType().ID() {
	case arrow.BOOL:
		return arr.(*array.Boolean).Value(idx), nil
	case arrow.INT64:
		return arr.(*array.Int64).Value(idx), nil
	case arrow.FLOAT64:
		return arr.(*array.Float64).Value(idx), nil
	case arrow.STRING:
		return arr.(*array.String).Value(idx), nil
	default:
		return nil, fmt.Errorf("%w| %s", ErrUnsupportedArrowToAvroTypeConversion, arr.DataType())
	}
}

// ArrowToAvroSchema builds a record codec whose fields are nullable unions.
// Field names are positional since column names need not be valid avro names.
func ArrowToAvroSchema(arrowSchema *arrow.Schema) (*goavro.Codec, []string, error) {
	type avroField struct {
		Name string   `json:"name"`
		Type []string `json:"type"`
	}
	type avroSchemaTemplate struct {
		Type   string      `json:"type"`
		Name   string      `json:"name"`
		Fields []avroField `json:"fields"`
	}

	avroSchema := avroSchemaTemplate{
		Type:   "record",
		Name:   "row",
		Fields: make([]avroField, 0, arrowSchema.NumFields()),
	}

	avroTys := make([]string, arrowSchema.NumFields())
	for i, field := range arrowSchema.Fields() {
		avroType, err := ArrowToAvroType(field.Type)
		if err != nil {
			return nil, nil, fmt.Errorf("%w| field %s", err, field.Name)
		}
		avroTys[i] = avroType
		avroSchema.Fields = append(avroSchema.Fields, avroField{
			Name: avroFieldName(i),
			Type: []string{"null", avroType},
		})
	}

	codecData, err := json.Marshal(avroSchema)
	if err != nil {
		return nil, nil, err
	}
	codec, err := goavro.NewCodec(string(codecData))
	if err != nil {
		return nil, nil, err
	}

	return codec, avroTys, nil
}

func ArrowToAvroType(arrowType arrow.DataType) (string, error) {
	switch arrowType.ID() {
	case arrow.BOOL:
		return "boolean", nil
	case arrow.INT64:
		return "long", nil
	case arrow.FLOAT64:
		return "double", nil
	case arrow.STRING:
		return "string", nil
	default:
		return "", ErrUnsupportedArrowToAvroTypeConversion
	}
}

func avroFieldName(idx int) string {
	return fmt.Sprintf("c%d", idx)
}
