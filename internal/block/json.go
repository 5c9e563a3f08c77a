package block

import (
	"encoding/binary"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/tos-network/ralite/internal/address"
	"github.com/tos-network/ralite/internal/bigint"
)

// jsonBlock is the wire shape for the textual form: a type discriminator
// plus hex-encoded fields, addresses rendered in the human-readable form
// (spec §6).
type jsonBlock struct {
	Type           string `json:"type"`
	Previous       string `json:"previous,omitempty"`
	Destination    string `json:"destination,omitempty"`
	Balance        string `json:"balance,omitempty"`
	Source         string `json:"source,omitempty"`
	Representative string `json:"representative,omitempty"`
	Account        string `json:"account,omitempty"`
	Signature      string `json:"signature"`
	Work           string `json:"work"`
}

func workHex(work uint64) string {
	var w [8]byte
	binary.LittleEndian.PutUint64(w[:], work)
	return hex.EncodeToString(w[:])
}

func parseWorkHex(s string) (uint64, error) {
	b, err := hex.DecodeString(s)
	if err != nil || len(b) != 8 {
		return 0, ErrBadEncoding
	}
	return binary.LittleEndian.Uint64(b), nil
}

// EncodeJSON renders b as the textual form, encoding account fields with
// the given address prefix.
func EncodeJSON(prefix string, b Block) ([]byte, error) {
	jb := jsonBlock{
		Type:      b.Kind().String(),
		Signature: hex.EncodeToString(b.SignatureValue().Bytes()),
		Work:      workHex(b.WorkValue()),
	}
	switch v := b.(type) {
	case *Send:
		jb.Previous = hex.EncodeToString(v.Previous_[:])
		jb.Destination = address.Encode(prefix, v.Destination)
		jb.Balance = hex.EncodeToString(v.Balance[:])
	case *Receive:
		jb.Previous = hex.EncodeToString(v.Previous_[:])
		jb.Source = hex.EncodeToString(v.Source[:])
	case *Open:
		jb.Source = hex.EncodeToString(v.Source[:])
		jb.Representative = address.Encode(prefix, v.Representative)
		jb.Account = address.Encode(prefix, v.Account)
	case *Change:
		jb.Previous = hex.EncodeToString(v.Previous_[:])
		jb.Representative = address.Encode(prefix, v.Representative)
	default:
		return nil, fmt.Errorf("block: unknown variant %T", b)
	}
	return json.Marshal(jb)
}

// DecodeJSON parses the textual form produced by EncodeJSON.
func DecodeJSON(prefix string, data []byte) (Block, error) {
	var jb jsonBlock
	if err := json.Unmarshal(data, &jb); err != nil {
		return nil, ErrBadEncoding
	}
	work, err := parseWorkHex(jb.Work)
	if err != nil {
		return nil, err
	}
	sigBytes, err := hex.DecodeString(jb.Signature)
	if err != nil || len(sigBytes) != 64 {
		return nil, ErrBadEncoding
	}
	var sig bigint.U512
	copy(sig[:], sigBytes)

	hash32 := func(s string) (bigint.U256, error) {
		var out bigint.U256
		b, err := hex.DecodeString(s)
		if err != nil || len(b) != 32 {
			return out, ErrBadEncoding
		}
		copy(out[:], b)
		return out, nil
	}

	switch jb.Type {
	case "send":
		prev, err := hash32(jb.Previous)
		if err != nil {
			return nil, err
		}
		dst, err := address.Decode(prefix, jb.Destination)
		if err != nil {
			return nil, err
		}
		balBytes, err := hex.DecodeString(jb.Balance)
		if err != nil || len(balBytes) != 16 {
			return nil, ErrBadEncoding
		}
		var bal bigint.U128
		copy(bal[:], balBytes)
		return &Send{Previous_: prev, Destination: dst, Balance: bal, Signature: sig, Work: work}, nil
	case "receive":
		prev, err := hash32(jb.Previous)
		if err != nil {
			return nil, err
		}
		src, err := hash32(jb.Source)
		if err != nil {
			return nil, err
		}
		return &Receive{Previous_: prev, Source: src, Signature: sig, Work: work}, nil
	case "open":
		src, err := hash32(jb.Source)
		if err != nil {
			return nil, err
		}
		rep, err := address.Decode(prefix, jb.Representative)
		if err != nil {
			return nil, err
		}
		acc, err := address.Decode(prefix, jb.Account)
		if err != nil {
			return nil, err
		}
		return &Open{Source: src, Representative: rep, Account: acc, Signature: sig, Work: work}, nil
	case "change":
		prev, err := hash32(jb.Previous)
		if err != nil {
			return nil, err
		}
		rep, err := address.Decode(prefix, jb.Representative)
		if err != nil {
			return nil, err
		}
		return &Change{Previous_: prev, Representative: rep, Signature: sig, Work: work}, nil
	default:
		return nil, ErrBadEncoding
	}
}
