// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package codec

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"github.com/fxamacker/cbor/v2"
)

var (
	encMode cbor.EncMode
	decMode cbor.DecMode
)

func init() {
	options := cbor.CoreDetEncOptions()
	options.Time = cbor.TimeRFC3339Nano
	var err error
	if encMode, err = options.EncMode(); err != nil {
		panic(fmt.Sprintf("codec: building CBOR encoder: %v", err))
	}
	// Unknown fields are skipped so a record written by a newer
	// buildcache still decodes.
	if decMode, err = (cbor.DecOptions{}).DecMode(); err != nil {
		panic(fmt.Sprintf("codec: building CBOR decoder: %v", err))
	}
}

// Marshal encodes v deterministically.
func Marshal(v any) ([]byte, error) {
	return encMode.Marshal(v)
}

// Unmarshal decodes one CBOR item from data into v.
func Unmarshal(data []byte, v any) error {
	return decMode.Unmarshal(data, v)
}

// DecodeSequence decodes a CBOR sequence (back-to-back items) into a
// slice. On a malformed or truncated item it returns the records
// decoded before it along with the error.
func DecodeSequence[T any](data []byte) ([]T, error) {
	decoder := decMode.NewDecoder(bytes.NewReader(data))
	var records []T
	for index := 0; ; index++ {
		var record T
		err := decoder.Decode(&record)
		if errors.Is(err, io.EOF) {
			return records, nil
		}
		if err != nil {
			return records, fmt.Errorf("item %d: %w", index, err)
		}
		records = append(records, record)
	}
}
