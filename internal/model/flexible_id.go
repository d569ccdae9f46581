package model

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math/big"
)

// FlexibleID is a content identifier that clients may send either as a JSON
// string ("42") or a JSON number (42). The raw text is kept so that values
// beyond float64 precision survive.
type FlexibleID string

func (f *FlexibleID) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*f = ""
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*f = FlexibleID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("secretId must be a string or number: %w", err)
	}
	*f = FlexibleID(n.String())
	return nil
}

// maxIDBits is the width of the contract's uint256 identifiers.
const maxIDBits = 256

// Int parses the identifier as a positive base-10 integer that fits in a
// uint256.
func (f FlexibleID) Int() (*big.Int, bool) {
	n, ok := new(big.Int).SetString(string(f), 10)
	if !ok || n.Sign() <= 0 || n.BitLen() > maxIDBits {
		return nil, false
	}
	return n, true
}
