package fair

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Document types written to the "type" field.
const (
	ModelDocumentType     = "FairModel"
	MetaModelDocumentType = "FairMetaModel"
)

// Document metadata keys.
const (
	KeyName         = "name"
	KeySimulations  = "n_simulations"
	KeySeed         = "random_seed"
	KeyUUID         = "model_uuid"
	KeyType         = "type"
	KeyCreationDate = "creation_date"
)

// CreationDateLayout formats creation dates. Parsing also accepts RFC 3339.
const CreationDateLayout = "2006-01-02 15:04:05.000000"

// DocumentField is one top-level member of a serialised model.
type DocumentField struct {
	Key   string
	Value json.RawMessage
}

// Document is a JSON object whose member order is preserved. Inputs are
// replayed in document order, so order matters for reproducibility.
type Document []DocumentField

// Get returns the value stored under key.
func (d Document) Get(key string) (json.RawMessage, bool) {
	for _, f := range d {
		if f.Key == key {
			return f.Value, true
		}
	}
	return nil, false
}

// Set replaces the value under key, or appends it.
func (d *Document) Set(key string, value any) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode %q: %w", key, err)
	}
	for i := range *d {
		if (*d)[i].Key == key {
			(*d)[i].Value = raw
			return nil
		}
	}
	*d = append(*d, DocumentField{Key: key, Value: raw})
	return nil
}

// MarshalJSON writes the members in order.
func (d Document) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, f := range d {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(f.Key)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		if len(f.Value) == 0 {
			buf.WriteString("null")
			continue
		}
		buf.Write(f.Value)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON reads a JSON object keeping member order. A repeated key
// keeps its first position and its last value.
func (d *Document) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return fmt.Errorf("%w: expected a JSON object", ErrInvalidDocument)
	}
	var out Document
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		key, ok := tok.(string)
		if !ok {
			return fmt.Errorf("%w: expected an object key, got %v", ErrInvalidDocument, tok)
		}
		var value json.RawMessage
		if err := dec.Decode(&value); err != nil {
			return fmt.Errorf("%w: member %q: %v", ErrInvalidDocument, key, err)
		}
		replaced := false
		for i := range out {
			if out[i].Key == key {
				out[i].Value = value
				replaced = true
				break
			}
		}
		if !replaced {
			out = append(out, DocumentField{Key: key, Value: value})
		}
	}
	if _, err := dec.Token(); err != nil {
		return err
	}
	*d = out
	return nil
}

// Indent renders d as indented JSON.
func (d Document) Indent() ([]byte, error) {
	raw, err := d.MarshalJSON()
	if err != nil {
		return nil, err
	}
	var out bytes.Buffer
	if err := json.Indent(&out, raw, "", "    "); err != nil {
		return nil, err
	}
	return out.Bytes(), nil
}

// Field decodes the value under key into v.
func (d Document) Field(key string, v any) error {
	raw, ok := d.Get(key)
	if !ok {
		return fmt.Errorf("%w: missing %q", ErrInvalidDocument, key)
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("%w: field %q: %v", ErrInvalidDocument, key, err)
	}
	return nil
}

// IsMetadata reports whether key is one of the document metadata keys.
func IsMetadata(key string) bool {
	switch key {
	case KeyName, KeySimulations, KeySeed, KeyUUID, KeyType, KeyCreationDate:
		return true
	}
	return false
}

// FormatCreationDate renders t with CreationDateLayout.
func FormatCreationDate(t time.Time) string {
	return t.Format(CreationDateLayout)
}

// ParseCreationDate accepts CreationDateLayout, with or without fractional
// seconds, or RFC 3339.
func ParseCreationDate(s string) (time.Time, error) {
	if t, err := time.Parse(time.DateTime, s); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: creation date %q", ErrInvalidDocument, s)
	}
	return t, nil
}

// Document returns the model's inputs, oldest first, followed by its
// metadata.
func (m *Model) Document() (Document, error) {
	var doc Document
	for _, in := range m.sampler.Inputs() {
		var err error
		switch in.Kind {
		case KindRaw:
			err = doc.Set(in.Factor.String(), map[string][]float64{ParamRaw: in.Raw})
		case KindMulti:
			err = doc.Set(MultiPrefix+in.Factor.String(), in.Multi)
		default:
			err = doc.Set(in.Factor.String(), in.Params)
		}
		if err != nil {
			return nil, err
		}
	}
	meta := []struct {
		key   string
		value any
	}{
		{KeyName, m.name},
		{KeySimulations, m.simulations},
		{KeySeed, m.seed},
		{KeyUUID, m.id},
		{KeyType, ModelDocumentType},
		{KeyCreationDate, FormatCreationDate(m.createdAt)},
	}
	for _, kv := range meta {
		if err := doc.Set(kv.key, kv.value); err != nil {
			return nil, err
		}
	}
	return doc, nil
}

// ToJSON serialises everything needed to rebuild the model: inputs,
// simulation count, seed and identity.
//
// Only the latest input for each node is kept. A model whose nodes were
// supplied more than once consumed extra random draws that the document
// does not record, so ReadJSON rebuilds the model those latest inputs
// alone produce, and its vectors can differ from the original's.
func (m *Model) ToJSON() ([]byte, error) {
	doc, err := m.Document()
	if err != nil {
		return nil, err
	}
	return doc.Indent()
}

// ReadJSON rebuilds a model from ToJSON output, replaying its inputs in
// document order. The model is calculated when its inputs allow it.
// Options in opts apply before the document's own settings.
func ReadJSON(data []byte, opts ...Option) (*Model, error) {
	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidDocument, err)
	}
	return FromDocument(doc, opts...)
}

// FromDocument rebuilds a model from a parsed document.
func FromDocument(doc Document, opts ...Option) (*Model, error) {
	var docType string
	if err := doc.Field(KeyType, &docType); err != nil {
		return nil, err
	}
	if docType != ModelDocumentType {
		return nil, fmt.Errorf("%w: type %q is not %q", ErrInvalidDocument, docType, ModelDocumentType)
	}

	var (
		name        string
		simulations int
		seed        int64
		id          string
		created     string
	)
	for key, dst := range map[string]any{
		KeyName:         &name,
		KeySimulations:  &simulations,
		KeySeed:         &seed,
		KeyUUID:         &id,
		KeyCreationDate: &created,
	} {
		if err := doc.Field(key, dst); err != nil {
			return nil, err
		}
	}
	createdAt, err := ParseCreationDate(created)
	if err != nil {
		return nil, err
	}

	opts = append(opts, WithSimulations(simulations), WithSeed(seed), WithIdentity(id, createdAt))
	m, err := New(name, opts...)
	if err != nil {
		return nil, err
	}

	for _, f := range doc {
		if IsMetadata(f.Key) {
			continue
		}
		if err := m.applyField(f); err != nil {
			return nil, err
		}
	}
	if m.ReadyForCalculation() {
		if err := m.CalculateAll(); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func (m *Model) applyField(f DocumentField) error {
	if strings.HasPrefix(f.Key, MultiPrefix) {
		var items MultiParams
		if err := json.Unmarshal(f.Value, &items); err != nil {
			return fmt.Errorf("%w: field %q: %v", ErrInvalidDocument, f.Key, err)
		}
		return m.InputMulti(f.Key, items)
	}

	var members map[string]json.RawMessage
	if err := json.Unmarshal(f.Value, &members); err != nil {
		return fmt.Errorf("%w: field %q: %v", ErrInvalidDocument, f.Key, err)
	}
	if raw, ok := members[ParamRaw]; ok && len(members) == 1 {
		var values []float64
		if err := json.Unmarshal(raw, &values); err != nil {
			return fmt.Errorf("%w: field %q: %v", ErrInvalidDocument, f.Key, err)
		}
		return m.InputRaw(f.Key, values)
	}
	var params Params
	if err := json.Unmarshal(f.Value, &params); err != nil {
		return fmt.Errorf("%w: field %q: %v", ErrInvalidDocument, f.Key, err)
	}
	return m.Input(f.Key, params)
}
