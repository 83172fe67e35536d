package conversation

import (
	"fmt"

	"github.com/valyala/fastjson"
)

// PayloadKind identifies which presentation branch a Payload takes.
type PayloadKind string

const (
	// PayloadRows is a non-empty sequence of key→value records.
	PayloadRows PayloadKind = "rows"
	// PayloadError is an object carrying a message-like field.
	PayloadError PayloadKind = "error"
	// PayloadEmptyRows is a sequence with zero elements.
	PayloadEmptyRows PayloadKind = "empty_rows"
	// PayloadCatalog is an object whose only informative fields are
	// empty sequences, e.g. {"database": "x", "tables": []}.
	PayloadCatalog PayloadKind = "catalog"
	// PayloadScalar is anything else, rendered as plain text.
	PayloadScalar PayloadKind = "scalar"
)

// errorMessageFields are checked in order when detecting an error object.
var errorMessageFields = []string{"message", "errorMessage"}

// Payload is the classified result data of one observation.
type Payload struct {
	Kind PayloadKind `json:"kind"`

	// Columns and Rows are set for PayloadRows. Columns follow the key
	// order of the first record; each row has one cell per column.
	Columns []string   `json:"columns,omitempty"`
	Rows    [][]string `json:"rows,omitempty"`

	// Message is set for PayloadError.
	Message string `json:"message,omitempty"`

	// Text is the textual form of the payload, always set.
	Text string `json:"text"`
}

// ParsePayload parses observation text as JSON and classifies it.
func ParsePayload(text string) (*Payload, error) {
	var p fastjson.Parser
	v, err := p.Parse(text)
	if err != nil {
		return nil, fmt.Errorf("parse observation: %w", err)
	}
	return classify(v), nil
}

// classify picks the payload kind in render priority order: rows,
// error object, empty rows, catalog object, scalar.
func classify(v *fastjson.Value) *Payload {
	pl := &Payload{Kind: PayloadScalar, Text: cellText(v)}

	switch v.Type() {
	case fastjson.TypeArray:
		items, _ := v.Array()
		if len(items) == 0 {
			pl.Kind = PayloadEmptyRows
			return pl
		}
		if cols, rows, ok := tabulate(items); ok {
			pl.Kind = PayloadRows
			pl.Columns = cols
			pl.Rows = rows
		}
	case fastjson.TypeObject:
		obj, _ := v.Object()
		for _, field := range errorMessageFields {
			if m := obj.Get(field); m != nil && m.Type() == fastjson.TypeString {
				pl.Kind = PayloadError
				pl.Message = string(m.GetStringBytes())
				return pl
			}
		}
		if isCatalogObject(obj) {
			pl.Kind = PayloadCatalog
		}
	}
	return pl
}

// tabulate turns a sequence of objects into header + rows. The header is
// the key set of the first record in first-seen order. A first record
// without keys gives no table.
func tabulate(items []*fastjson.Value) ([]string, [][]string, bool) {
	first, err := items[0].Object()
	if err != nil {
		return nil, nil, false
	}
	var cols []string
	first.Visit(func(key []byte, _ *fastjson.Value) {
		cols = append(cols, string(key))
	})
	if len(cols) == 0 {
		return nil, nil, false
	}

	rows := make([][]string, 0, len(items))
	for _, item := range items {
		obj, err := item.Object()
		if err != nil {
			return nil, nil, false
		}
		row := make([]string, len(cols))
		for i, c := range cols {
			if cell := obj.Get(c); cell != nil {
				row[i] = cellText(cell)
			}
		}
		rows = append(rows, row)
	}
	return cols, rows, true
}

// isCatalogObject reports whether every array-valued field of obj is
// empty and at least one such field exists.
func isCatalogObject(obj *fastjson.Object) bool {
	arrays, nonEmpty := 0, 0
	obj.Visit(func(_ []byte, v *fastjson.Value) {
		if v.Type() != fastjson.TypeArray {
			return
		}
		arrays++
		if items, _ := v.Array(); len(items) > 0 {
			nonEmpty++
		}
	})
	return arrays > 0 && nonEmpty == 0
}

func cellText(v *fastjson.Value) string {
	switch v.Type() {
	case fastjson.TypeString:
		return string(v.GetStringBytes())
	case fastjson.TypeNull:
		return ""
	default:
		return v.String()
	}
}
