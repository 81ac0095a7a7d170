/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package keystore

import (
	"encoding/json"
	"fmt"
	"time"
)

// ByteSeq is a byte slice that marshals to a JSON array of 0-255 integers
// instead of base64, for compatibility with storage engines and clients that
// persist byte arrays as plain integer arrays.
type ByteSeq []byte

// MarshalJSON implements json.Marshaler.
func (b ByteSeq) MarshalJSON() ([]byte, error) {
	ints := make([]int, len(b))
	for i, v := range b {
		ints[i] = int(v)
	}

	return json.Marshal(ints)
}

// UnmarshalJSON implements json.Unmarshaler.
func (b *ByteSeq) UnmarshalJSON(data []byte) error {
	var ints []int
	if err := json.Unmarshal(data, &ints); err != nil {
		return err
	}

	out := make([]byte, len(ints))

	for i, v := range ints {
		if v < 0 || v > 255 {
			return fmt.Errorf("byte sequence element %d out of range: %d", i, v)
		}

		out[i] = byte(v)
	}

	*b = out

	return nil
}

// Record is the persisted unit of wrapped private key material. Encrypted is
// only ever the output of a password wrap over a valid PKCS8 private key; Salt
// and IV are fresh per wrap and never reused across records.
type Record struct {
	ID               string    `json:"id"`
	Encrypted        ByteSeq   `json:"encrypted"`
	Salt             ByteSeq   `json:"salt"`
	IV               ByteSeq   `json:"iv"`
	Timestamp        time.Time `json:"timestamp"`
	OrganizationName string    `json:"organizationName"`
	UserID           string    `json:"userId"`
}

// CompositeID builds the store id for a user's private key record within an
// organization: one physical store, partitioned by a stable composite key, so
// a user holds independent key material per organization they belong to.
func CompositeID(userID, organizationName string) string {
	return userID + "_" + organizationName + "_privateKey"
}
