// Package dataset models a category document and merges ingested domains into it.
//
// A category document is a single JSON object. The pipeline owns the union
// lists (domains, ip4, ip6); every other field, known or not, is carried
// through a merge verbatim.
package dataset

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
)

// Known top-level keys, in serialization order.
const (
	keyDomains  = "domains"
	keyDNS      = "dns"
	keyIP4      = "ip4"
	keyIP6      = "ip6"
	keyTimeout  = "timeout"
	keyCIDR4    = "cidr4"
	keyCIDR6    = "cidr6"
	keyExternal = "external"
)

const indent = "    "

// ErrMalformedDocument is returned when stored content is not a category document.
var ErrMalformedDocument = errors.New("malformed category document")

// emptyExternal is the external block of a freshly created document, already
// laid out at field depth since raw values are written as they are.
var emptyExternal = json.RawMessage("{\n" +
	indent + indent + `"domains": [],` + "\n" +
	indent + indent + `"ip4": [],` + "\n" +
	indent + indent + `"ip6": [],` + "\n" +
	indent + indent + `"cidr4": [],` + "\n" +
	indent + indent + `"cidr6": []` + "\n" +
	indent + "}")

// Document is one category's dataset.
//
// Nil DNS, CIDR4, CIDR6, Timeout and External mean the key was absent in the
// stored document and stays absent on output. Domains, IP4 and IP6 are always
// written.
type Document struct {
	Domains  []string
	DNS      []string
	IP4      []string
	IP6      []string
	Timeout  *int
	CIDR4    []string
	CIDR6    []string
	External json.RawMessage

	// Extra holds unknown top-level fields as stored.
	Extra map[string]json.RawMessage
}

// Defaults seed a document created by the first ingestion into a category.
type Defaults struct {
	DNS     []string
	Timeout int
}

// NewSkeleton returns an empty document with defaults applied.
func NewSkeleton(d Defaults) *Document {
	timeout := d.Timeout
	return &Document{
		Domains:  []string{},
		DNS:      append([]string{}, d.DNS...),
		IP4:      []string{},
		IP6:      []string{},
		Timeout:  &timeout,
		CIDR4:    []string{},
		CIDR6:    []string{},
		External: append(json.RawMessage(nil), emptyExternal...),
	}
}

// Parse decodes stored content.
func Parse(data []byte) (*Document, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedDocument, err)
	}
	if fields == nil {
		return nil, fmt.Errorf("%w: top level is null", ErrMalformedDocument)
	}

	doc := &Document{}
	lists := []struct {
		key string
		dst *[]string
	}{
		{keyDomains, &doc.Domains},
		{keyDNS, &doc.DNS},
		{keyIP4, &doc.IP4},
		{keyIP6, &doc.IP6},
		{keyCIDR4, &doc.CIDR4},
		{keyCIDR6, &doc.CIDR6},
	}
	for _, l := range lists {
		raw, ok := fields[l.key]
		if !ok {
			continue
		}
		delete(fields, l.key)
		list := []string{}
		if err := json.Unmarshal(raw, &list); err != nil {
			return nil, fmt.Errorf("%w: field %q: %v", ErrMalformedDocument, l.key, err)
		}
		if list == nil {
			list = []string{}
		}
		*l.dst = list
	}

	if raw, ok := fields[keyTimeout]; ok {
		delete(fields, keyTimeout)
		var timeout int
		if err := json.Unmarshal(raw, &timeout); err != nil {
			return nil, fmt.Errorf("%w: field %q: %v", ErrMalformedDocument, keyTimeout, err)
		}
		doc.Timeout = &timeout
	}
	if raw, ok := fields[keyExternal]; ok {
		delete(fields, keyExternal)
		doc.External = raw
	}

	if doc.Domains == nil {
		doc.Domains = []string{}
	}
	if doc.IP4 == nil {
		doc.IP4 = []string{}
	}
	if doc.IP6 == nil {
		doc.IP6 = []string{}
	}
	if len(fields) > 0 {
		doc.Extra = fields
	}
	return doc, nil
}

// Clone returns a deep copy.
func (d *Document) Clone() *Document {
	c := &Document{
		Domains:  cloneList(d.Domains),
		DNS:      cloneList(d.DNS),
		IP4:      cloneList(d.IP4),
		IP6:      cloneList(d.IP6),
		CIDR4:    cloneList(d.CIDR4),
		CIDR6:    cloneList(d.CIDR6),
		External: cloneRaw(d.External),
	}
	if d.Timeout != nil {
		t := *d.Timeout
		c.Timeout = &t
	}
	if d.Extra != nil {
		c.Extra = make(map[string]json.RawMessage, len(d.Extra))
		for k, v := range d.Extra {
			c.Extra[k] = cloneRaw(v)
		}
	}
	return c
}

// Marshal serializes the document deterministically: known keys in fixed
// order, unknown keys sorted, four-space indent, trailing newline. External and
// unknown values are written with their stored bytes, whitespace included.
func (d *Document) Marshal() ([]byte, error) {
	type field struct {
		key   string
		value any
		raw   json.RawMessage
	}

	fields := []field{{key: keyDomains, value: nonNil(d.Domains)}}
	if d.DNS != nil {
		fields = append(fields, field{key: keyDNS, value: d.DNS})
	}
	fields = append(fields,
		field{key: keyIP4, value: nonNil(d.IP4)},
		field{key: keyIP6, value: nonNil(d.IP6)},
	)
	if d.Timeout != nil {
		fields = append(fields, field{key: keyTimeout, value: *d.Timeout})
	}
	if d.CIDR4 != nil {
		fields = append(fields, field{key: keyCIDR4, value: d.CIDR4})
	}
	if d.CIDR6 != nil {
		fields = append(fields, field{key: keyCIDR6, value: d.CIDR6})
	}
	if d.External != nil {
		fields = append(fields, field{key: keyExternal, raw: d.External})
	}

	extraKeys := make([]string, 0, len(d.Extra))
	for k := range d.Extra {
		extraKeys = append(extraKeys, k)
	}
	sort.Strings(extraKeys)
	for _, k := range extraKeys {
		fields = append(fields, field{key: k, raw: d.Extra[k]})
	}

	var buf bytes.Buffer
	buf.WriteString("{\n")
	for i, f := range fields {
		key, err := encode(f.key)
		if err != nil {
			return nil, err
		}
		buf.WriteString(indent)
		buf.Write(key)
		buf.WriteString(": ")

		var value []byte
		if f.raw != nil {
			if !json.Valid(f.raw) {
				return nil, fmt.Errorf("field %q: invalid raw JSON", f.key)
			}
			value = f.raw
		} else if value, err = encode(f.value); err != nil {
			return nil, fmt.Errorf("field %q: %w", f.key, err)
		}
		buf.Write(value)

		if i < len(fields)-1 {
			buf.WriteByte(',')
		}
		buf.WriteByte('\n')
	}
	buf.WriteString("}\n")
	return buf.Bytes(), nil
}

// encode marshals v indented one level deep without HTML escaping.
func encode(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent(indent, indent)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

func nonNil(list []string) []string {
	if list == nil {
		return []string{}
	}
	return list
}

func cloneList(list []string) []string {
	if list == nil {
		return nil
	}
	return append([]string{}, list...)
}

func cloneRaw(raw json.RawMessage) json.RawMessage {
	if raw == nil {
		return nil
	}
	return append(json.RawMessage{}, raw...)
}
