package domain

import (
	"bytes"
	"encoding/json"
	"reflect"
	"strings"
)

var (
	productFields = jsonFields(reflect.TypeOf(Product{}))
	orderFields   = jsonFields(reflect.TypeOf(Order{}))
)

// MarshalJSON writes the known fields followed by preserved unknown ones.
func (p Product) MarshalJSON() ([]byte, error) {
	type plain Product
	return marshalWithExtra(plain(p), p.Extra)
}

// UnmarshalJSON decodes the known fields and collects the rest into Extra.
func (p *Product) UnmarshalJSON(data []byte) error {
	if string(bytes.TrimSpace(data)) == "null" {
		return nil
	}
	type plain Product
	var v plain
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	extra, err := unknownFields(data, productFields)
	if err != nil {
		return err
	}
	*p = Product(v)
	p.Extra = extra
	return nil
}

// MarshalJSON writes the known fields followed by preserved unknown ones.
func (o Order) MarshalJSON() ([]byte, error) {
	type plain Order
	return marshalWithExtra(plain(o), o.Extra)
}

// UnmarshalJSON decodes the known fields and collects the rest into Extra.
func (o *Order) UnmarshalJSON(data []byte) error {
	if string(bytes.TrimSpace(data)) == "null" {
		return nil
	}
	type plain Order
	var v plain
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	extra, err := unknownFields(data, orderFields)
	if err != nil {
		return err
	}
	*o = Order(v)
	o.Extra = extra
	return nil
}

// known fields always win over an extra with the same name
func marshalWithExtra(v any, extra map[string]json.RawMessage) ([]byte, error) {
	data, err := json.Marshal(v)
	if err != nil || len(extra) == 0 {
		return data, err
	}
	var out map[string]json.RawMessage
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, err
	}
	for k, raw := range extra {
		if _, ok := out[k]; !ok {
			out[k] = raw
		}
	}
	return json.Marshal(out)
}

func unknownFields(data []byte, known map[string]struct{}) (map[string]json.RawMessage, error) {
	var all map[string]json.RawMessage
	if err := json.Unmarshal(data, &all); err != nil {
		return nil, err
	}
	var extra map[string]json.RawMessage
	for k, v := range all {
		if _, ok := known[k]; ok {
			continue
		}
		if extra == nil {
			extra = make(map[string]json.RawMessage)
		}
		extra[k] = v
	}
	return extra, nil
}

func jsonFields(t reflect.Type) map[string]struct{} {
	out := make(map[string]struct{}, t.NumField())
	for i := 0; i < t.NumField(); i++ {
		name, _, _ := strings.Cut(t.Field(i).Tag.Get("json"), ",")
		if name == "" || name == "-" {
			continue
		}
		out[name] = struct{}{}
	}
	return out
}

func cloneExtra(extra map[string]json.RawMessage) map[string]json.RawMessage {
	if extra == nil {
		return nil
	}
	cp := make(map[string]json.RawMessage, len(extra))
	for k, v := range extra {
		cp[k] = append(json.RawMessage(nil), v...)
	}
	return cp
}
