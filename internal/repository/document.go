package repository

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"storefront/internal/domain"
)

// SkippedRecord describes a collection element Parse could not decode.
type SkippedRecord struct {
	Collection string
	Index      int
	Err        error
}

// Parse decodes a stored document. Collections that are missing or not arrays are
// coerced to empty ones, elements that do not decode are dropped and reported, and
// unknown fields are kept in Extra. Anything that is not a JSON object yields an
// error wrapping ErrCorrupt.
func Parse(raw []byte) (domain.Document, []SkippedRecord, error) {
	d := decoder{}
	doc, err := d.decode(raw)
	return doc, d.skipped, err
}

// ParseStrict is Parse for untrusted input: all three collections must be present
// and be arrays of well-formed records, stock must not be negative and ids must be
// unique per collection. Violations wrap ErrShape.
func ParseStrict(raw []byte) (domain.Document, error) {
	d := decoder{strict: true}
	doc, err := d.decode(raw)
	if err != nil {
		return domain.Document{}, err
	}
	if err := checkInvariants(doc); err != nil {
		return domain.Document{}, err
	}
	return doc, nil
}

type decoder struct {
	strict  bool
	skipped []SkippedRecord
}

func (d *decoder) decode(raw []byte) (domain.Document, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return domain.Document{}, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	if fields == nil {
		return domain.Document{}, fmt.Errorf("%w: root is null", ErrCorrupt)
	}

	doc := domain.NewDocument()
	var err error
	if doc.Products, err = decodeCollection[domain.Product](d, fields, domain.KeyProducts); err != nil {
		return domain.Document{}, err
	}
	if doc.Orders, err = decodeCollection[domain.Order](d, fields, domain.KeyOrders); err != nil {
		return domain.Document{}, err
	}
	if doc.PushSubscriptions, err = decodeCollection[domain.PushSubscription](d, fields, domain.KeyPushSubscriptions); err != nil {
		return domain.Document{}, err
	}
	for k, v := range fields {
		switch k {
		case domain.KeyProducts, domain.KeyOrders, domain.KeyPushSubscriptions:
			continue
		}
		if doc.Extra == nil {
			doc.Extra = make(map[string]json.RawMessage)
		}
		doc.Extra[k] = v
	}
	return doc, nil
}

func decodeCollection[T any](d *decoder, fields map[string]json.RawMessage, key string) ([]T, error) {
	raw, ok := fields[key]
	if !ok || !isArray(raw) {
		if d.strict {
			return nil, fmt.Errorf("%w: %q must be an array", ErrShape, key)
		}
		return []T{}, nil
	}
	var elems []json.RawMessage
	if err := json.Unmarshal(raw, &elems); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrCorrupt, key, err)
	}
	out := make([]T, 0, len(elems))
	for i, elem := range elems {
		var v T
		if err := json.Unmarshal(elem, &v); err != nil {
			if d.strict {
				return nil, fmt.Errorf("%w: %s[%d]: %v", ErrShape, key, i, err)
			}
			d.skipped = append(d.skipped, SkippedRecord{Collection: key, Index: i, Err: err})
			continue
		}
		out = append(out, v)
	}
	return out, nil
}

func checkInvariants(doc domain.Document) error {
	products := make(map[int64]struct{}, len(doc.Products))
	for _, p := range doc.Products {
		if p.Stock < 0 {
			return fmt.Errorf("%w: product %d has negative stock", ErrShape, p.ID)
		}
		if _, dup := products[p.ID]; dup {
			return fmt.Errorf("%w: duplicate product id %d", ErrShape, p.ID)
		}
		products[p.ID] = struct{}{}
	}
	orders := make(map[int64]struct{}, len(doc.Orders))
	for _, o := range doc.Orders {
		if _, dup := orders[o.ID]; dup {
			return fmt.Errorf("%w: duplicate order id %d", ErrShape, o.ID)
		}
		orders[o.ID] = struct{}{}
	}
	return nil
}

func isArray(raw json.RawMessage) bool {
	t := bytes.TrimSpace(raw)
	return len(t) > 0 && t[0] == '['
}

// Encode renders the document the way it is written to disk.
func Encode(doc domain.Document) ([]byte, error) {
	return json.MarshalIndent(doc, "", "  ")
}

// Timestamp formats t for backup file names, e.g. 2025-10-17T12-30-45-123Z.
func Timestamp(t time.Time) string {
	s := t.UTC().Format("2006-01-02T15:04:05.000Z")
	return strings.NewReplacer(":", "-", ".", "-").Replace(s)
}
