package striping

import (
	"encoding/json"

	"github.com/fxamacker/cbor/v2"
	"github.com/pkg/errors"
	"golang.org/x/sys/unix"
)

// descriptor is the key/value record a policy travels as. The stripe size is in KB on
// the wire and in bytes in memory.
type descriptor struct {
	Policy       *string `json:"policy" cbor:"policy"`
	StripeSizeKB *int64  `json:"stripe-size" cbor:"stripe-size"`
	Width        *int    `json:"width" cbor:"width"`
}

func (p Policy) descriptor() descriptor {
	kind := p.Kind.String()
	kb := p.StripeSize / 1024
	width := p.Width
	return descriptor{Policy: &kind, StripeSizeKB: &kb, Width: &width}
}

func (d descriptor) policy() (Policy, error) {
	switch {
	case d.Policy == nil:
		return Policy{}, errors.Wrap(unix.EINVAL, "striping policy descriptor: missing policy")
	case d.StripeSizeKB == nil:
		return Policy{}, errors.Wrap(unix.EINVAL, "striping policy descriptor: missing stripe-size")
	case d.Width == nil:
		return Policy{}, errors.Wrap(unix.EINVAL, "striping policy descriptor: missing width")
	}

	return Policy{
		Kind:       ParseKind(*d.Policy),
		StripeSize: *d.StripeSizeKB * 1024,
		Width:      *d.Width,
	}, nil
}

// ToMap returns the descriptor as a plain map.
func (p Policy) ToMap() map[string]any {
	return map[string]any{
		"policy":      p.Kind.String(),
		"stripe-size": p.StripeSize / 1024,
		"width":       p.Width,
	}
}

// FromMap loads a policy from a descriptor map, as decoded from JSON or CBOR or built by hand.
func FromMap(m map[string]any) (Policy, error) {
	var d descriptor

	if v, ok := m["policy"]; ok {
		kind, ok := v.(string)
		if !ok {
			return Policy{}, errors.Wrapf(unix.EINVAL, "striping policy descriptor: policy %v", v)
		}
		d.Policy = &kind
	}

	if v, ok := m["stripe-size"]; ok {
		kb, err := toInt64(v)
		if err != nil {
			return Policy{}, errors.WithMessage(err, "striping policy descriptor: stripe-size")
		}
		d.StripeSizeKB = &kb
	}

	if v, ok := m["width"]; ok {
		width, err := toInt64(v)
		if err != nil {
			return Policy{}, errors.WithMessage(err, "striping policy descriptor: width")
		}
		w := int(width)
		d.Width = &w
	}

	return d.policy()
}

func toInt64(v any) (int64, error) {
	switch n := v.(type) {
	case int:
		return int64(n), nil
	case int64:
		return n, nil
	case uint64:
		return int64(n), nil
	case float64:
		if n != float64(int64(n)) {
			return 0, errors.Wrapf(unix.EINVAL, "%v is not an integer", n)
		}
		return int64(n), nil
	default:
		return 0, errors.Wrapf(unix.EINVAL, "%v is not a number", v)
	}
}

func (p Policy) MarshalJSON() ([]byte, error) {
	return json.Marshal(p.descriptor())
}

func (p *Policy) UnmarshalJSON(data []byte) error {
	var d descriptor
	if err := json.Unmarshal(data, &d); err != nil {
		return errors.Wrap(err, "striping policy descriptor")
	}

	decoded, err := d.policy()
	if err != nil {
		return err
	}

	*p = decoded
	return nil
}

func (p Policy) MarshalCBOR() ([]byte, error) {
	return cbor.Marshal(p.descriptor())
}

func (p *Policy) UnmarshalCBOR(data []byte) error {
	var d descriptor
	if err := cbor.Unmarshal(data, &d); err != nil {
		return errors.Wrap(err, "striping policy descriptor")
	}

	decoded, err := d.policy()
	if err != nil {
		return err
	}

	*p = decoded
	return nil
}

// ParseXLoc parses an x-location instance, a JSON array holding the striping policy
// descriptor followed by the list of node addresses, one per slot.
func ParseXLoc(data []byte) (Policy, []string, error) {
	var parts []json.RawMessage
	if err := json.Unmarshal(data, &parts); err != nil {
		return Policy{}, nil, errors.Wrap(err, "x-location")
	}

	if len(parts) != 2 {
		return Policy{}, nil, errors.Wrapf(unix.EINVAL, "x-location has %d elements, want 2", len(parts))
	}

	var p Policy
	if err := json.Unmarshal(parts[0], &p); err != nil {
		return Policy{}, nil, err
	}

	var nodes []string
	if err := json.Unmarshal(parts[1], &nodes); err != nil {
		return Policy{}, nil, errors.Wrap(err, "x-location nodes")
	}

	if len(nodes) != p.Width {
		return Policy{}, nil, errors.Wrapf(unix.EINVAL, "x-location lists %d nodes for width %d", len(nodes), p.Width)
	}

	return p, nodes, nil
}

// FormatXLoc is the inverse of ParseXLoc.
func FormatXLoc(p Policy, nodes []string) ([]byte, error) {
	return json.Marshal([]any{p, nodes})
}
