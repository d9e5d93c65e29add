// Package jsonop defines the internal representation of an RFC 6902 JSON
// Patch operation and normalizes it to and from the string-keyed shape
// clients send on the wire.
package jsonop

import "encoding/json"

// Operation is the keyed internal representation the OT transformer and the
// patch applier operate on. Unknown wire keys are preserved in Extra so a
// round trip through Normalize/Denormalize never drops data.
type Operation struct {
	Op    string          `json:"op"`
	Path  string          `json:"path"`
	Value json.RawMessage `json:"value,omitempty"`
	From  string          `json:"from,omitempty"`
	Extra map[string]json.RawMessage `json:"-"`
}

// wireOp is the on-wire shape: string keys, exactly RFC 6902's vocabulary
// plus whatever a client tacked on.
type wireOp map[string]json.RawMessage

// Normalize maps a list of on-wire operations (string-keyed maps) into the
// internal Operation representation.
func Normalize(raw []map[string]json.RawMessage) ([]Operation, error) {
	ops := make([]Operation, 0, len(raw))
	for _, w := range raw {
		op, err := normalizeOne(w)
		if err != nil {
			return nil, err
		}
		ops = append(ops, op)
	}
	return ops, nil
}

func normalizeOne(w wireOp) (Operation, error) {
	op := Operation{Extra: map[string]json.RawMessage{}}
	for k, v := range w {
		switch k {
		case "op":
			if err := json.Unmarshal(v, &op.Op); err != nil {
				return Operation{}, err
			}
		case "path":
			if err := json.Unmarshal(v, &op.Path); err != nil {
				return Operation{}, err
			}
		case "value":
			op.Value = v
		case "from":
			if err := json.Unmarshal(v, &op.From); err != nil {
				return Operation{}, err
			}
		default:
			op.Extra[k] = v
		}
	}
	return op, nil
}

// Denormalize turns internal Operations back into the string-keyed wire
// shape expected by RFC 6902 tooling and by clients.
func Denormalize(ops []Operation) []map[string]json.RawMessage {
	out := make([]map[string]json.RawMessage, 0, len(ops))
	for _, op := range ops {
		w := map[string]json.RawMessage{}
		for k, v := range op.Extra {
			w[k] = v
		}
		w["op"] = mustMarshal(op.Op)
		w["path"] = mustMarshal(op.Path)
		if op.Value != nil {
			w["value"] = op.Value
		}
		if op.From != "" {
			w["from"] = mustMarshal(op.From)
		}
		out = append(out, w)
	}
	return out
}

func mustMarshal(s string) json.RawMessage {
	b, _ := json.Marshal(s)
	return b
}

// MarshalPatch encodes a list of operations as the RFC 6902 JSON array a
// json-patch library expects to parse.
func MarshalPatch(ops []Operation) (json.RawMessage, error) {
	return json.Marshal(Denormalize(ops))
}

// ParsePatch decodes a raw JSON Patch document (array of string-keyed
// operation objects) into internal Operations.
func ParsePatch(raw json.RawMessage) ([]Operation, error) {
	var wire []map[string]json.RawMessage
	if err := json.Unmarshal(raw, &wire); err != nil {
		return nil, err
	}
	return Normalize(wire)
}
