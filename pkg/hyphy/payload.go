package hyphy

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// BuildPayload renders the body for POST /methods/{slug}-start. Empty handles
// and nil parameter fields are left out.
func BuildPayload(alignment, tree string, p Params) (map[string]any, error) {
	if p == nil {
		return nil, fmt.Errorf("%w: parameters are required", ErrInvalidParams)
	}
	info, ok := Lookup(p.Method())
	if !ok {
		return nil, fmt.Errorf("%w: unknown method %q", ErrInvalidParams, p.Method())
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	if info.Alignment == Required && alignment == "" {
		return nil, fmt.Errorf("%w: %s requires an alignment", ErrInvalidParams, info.Name)
	}
	if info.Tree == Required && tree == "" {
		return nil, fmt.Errorf("%w: %s requires a tree", ErrInvalidParams, info.Name)
	}

	payload := p.Fields()
	if alignment != "" && info.Alignment != Unused {
		payload["alignment"] = alignment
	}
	if tree != "" && info.Tree != Unused {
		payload["tree"] = tree
	}
	return payload, nil
}

// Decode parses a JSON object of tool arguments into m's parameter type.
// Unknown keys and mistyped values are rejected. Empty input yields the zero
// parameters.
func Decode(m Method, raw []byte) (Params, error) {
	switch m {
	case ABSREL:
		return decode[ABSRELParams](raw)
	case BGM:
		return decode[BGMParams](raw)
	case BUSTED:
		return decode[BUSTEDParams](raw)
	case ContrastFEL:
		return decode[ContrastFELParams](raw)
	case FADE:
		return decode[FADEParams](raw)
	case FEL:
		return decode[FELParams](raw)
	case FUBAR:
		return decode[FUBARParams](raw)
	case GARD:
		return decode[GARDParams](raw)
	case MEME:
		return decode[MEMEParams](raw)
	case MULTIHIT:
		return decode[MULTIHITParams](raw)
	case NRM:
		return decode[NRMParams](raw)
	case RELAX:
		return decode[RELAXParams](raw)
	case SLAC:
		return decode[SLACParams](raw)
	case SLATKIN:
		return decode[SLATKINParams](raw)
	}
	return nil, fmt.Errorf("%w: unknown method %q", ErrInvalidParams, m)
}

func decode[T Params](raw []byte) (Params, error) {
	var p T
	if len(bytes.TrimSpace(raw)) == 0 {
		return p, nil
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&p); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalidParams, p.Method(), err)
	}
	return p, nil
}
