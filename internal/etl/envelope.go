package etl

import (
	"errors"
	"fmt"

	"google.golang.org/protobuf/encoding/protowire"
)

// Field numbers of the wire envelope a pending receive job holds.
const (
	envelopeTypeField   protowire.Number = 1
	envelopeSourceField protowire.Number = 2
)

// envelope is the part of a received wire envelope the import needs.
type envelope struct {
	typ    uint64
	source string
}

// parseEnvelope reads the type and source fields of a serialized envelope,
// skipping every other field.
func parseEnvelope(data []byte) (*envelope, error) {
	if len(data) == 0 {
		return nil, errors.New("empty envelope")
	}
	env := &envelope{}
	var sawType bool
	for len(data) > 0 {
		num, typ, n := protowire.ConsumeTag(data)
		if n < 0 {
			return nil, fmt.Errorf("envelope tag: %w", protowire.ParseError(n))
		}
		data = data[n:]

		switch {
		case num == envelopeTypeField && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(data)
			if n < 0 {
				return nil, fmt.Errorf("envelope type: %w", protowire.ParseError(n))
			}
			env.typ = v
			sawType = true
			data = data[n:]
		case num == envelopeSourceField && typ == protowire.BytesType:
			v, n := protowire.ConsumeString(data)
			if n < 0 {
				return nil, fmt.Errorf("envelope source: %w", protowire.ParseError(n))
			}
			env.source = v
			data = data[n:]
		default:
			n := protowire.ConsumeFieldValue(num, typ, data)
			if n < 0 {
				return nil, fmt.Errorf("envelope field %d: %w", num, protowire.ParseError(n))
			}
			data = data[n:]
		}
	}
	if !sawType {
		return nil, errors.New("envelope has no type")
	}
	return env, nil
}

// threadID returns the thread a received envelope belongs to. Closed group
// envelopes carry the group public key as their source; for other envelopes
// the source is the sender, which is also the contact thread id. nil means
// the envelope names no thread.
func (e *envelope) threadID() *string {
	if e.source == "" {
		return nil
	}
	source := e.source
	return &source
}
