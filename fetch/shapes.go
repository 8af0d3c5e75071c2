package fetch

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/warp/custody-engine/generic"
)

// WrapperKeys are the object keys an array of records may be wrapped under,
// in the order they are tried.
var WrapperKeys = []string{"data", "custody_records", "records"}

// Shape decodes one known response layout.
type Shape struct {
	Name   string
	Decode func(body []byte) ([]generic.CustodyRecord, error)
}

// DefaultShapes is the negotiation order: a bare array, a single record, then
// an object wrapping an array. Older and newer backends each answer with one
// of these.
var DefaultShapes = []Shape{
	{Name: "array", Decode: decodeArray},
	{Name: "single", Decode: decodeSingle},
	{Name: "wrapped", Decode: decodeWrapped},
}

var errNoWrapperKey = errors.New("no known wrapper key")

// Decoder tries shapes in order; the first that decodes and validates wins.
type Decoder struct {
	shapes   []Shape
	validate *validator.Validate
}

func NewDecoder(shapes ...Shape) *Decoder {
	if len(shapes) == 0 {
		shapes = DefaultShapes
	}
	return &Decoder{
		shapes:   shapes,
		validate: validator.New(validator.WithRequiredStructEnabled()),
	}
}

// Decode returns the records and the name of the shape that matched. A
// wrapper object also unmarshals into a single record, so validation (the
// date is required) is what tells the two apart.
func (d *Decoder) Decode(body []byte) ([]generic.CustodyRecord, string, error) {
	tried := make([]string, 0, len(d.shapes))
	var errs []error
	for _, shape := range d.shapes {
		tried = append(tried, shape.Name)
		records, err := shape.Decode(body)
		if err == nil {
			err = d.validateAll(records)
		}
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", shape.Name, err))
			continue
		}
		return records, shape.Name, nil
	}
	return nil, "", &generic.DecodeError{Tried: tried, Err: errors.Join(errs...)}
}

func (d *Decoder) validateAll(records []generic.CustodyRecord) error {
	for i := range records {
		if err := d.validate.Struct(records[i]); err != nil {
			return fmt.Errorf("record %d: %w", i, err)
		}
	}
	return nil
}

func decodeArray(body []byte) ([]generic.CustodyRecord, error) {
	var records []generic.CustodyRecord
	if err := json.Unmarshal(body, &records); err != nil {
		return nil, err
	}
	return records, nil
}

func decodeSingle(body []byte) ([]generic.CustodyRecord, error) {
	var record generic.CustodyRecord
	if err := json.Unmarshal(body, &record); err != nil {
		return nil, err
	}
	return []generic.CustodyRecord{record}, nil
}

func decodeWrapped(body []byte) ([]generic.CustodyRecord, error) {
	var wrapper map[string]json.RawMessage
	if err := json.Unmarshal(body, &wrapper); err != nil {
		return nil, err
	}
	lastErr := errNoWrapperKey
	for _, key := range WrapperKeys {
		raw, ok := wrapper[key]
		if !ok {
			continue
		}
		records, err := decodeArray(raw)
		if err == nil {
			return records, nil
		}
		lastErr = err
	}
	return nil, lastErr
}
