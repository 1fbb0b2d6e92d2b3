// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package codec

import (
	"bytes"
	"slices"
	"testing"
	"time"
)

type sampleRecord struct {
	Tool string   `json:"tool"`
	Args []string `json:"args"`
	Dir  string   `json:"dir,omitempty"`
}

func TestMarshalDeterministic(t *testing.T) {
	record := map[string]any{"tool": "swiftc", "args": []string{"-c", "a.swift"}, "dir": "/src"}

	first, err := Marshal(record)
	if err != nil {
		t.Fatalf("first Marshal: %v", err)
	}
	for range 10 {
		again, err := Marshal(record)
		if err != nil {
			t.Fatalf("Marshal: %v", err)
		}
		if !bytes.Equal(first, again) {
			t.Fatalf("map encoding not deterministic: %x != %x", first, again)
		}
	}
}

func TestDecodeSequence(t *testing.T) {
	records := []sampleRecord{
		{Tool: "swiftc", Args: []string{"-module-name", "App"}},
		{Tool: "clang", Args: []string{"-c", "main.m"}, Dir: "/src"},
	}

	var sequence []byte
	for _, record := range records {
		data, err := Marshal(record)
		if err != nil {
			t.Fatalf("Marshal: %v", err)
		}
		sequence = append(sequence, data...)
	}

	decoded, err := DecodeSequence[sampleRecord](sequence)
	if err != nil {
		t.Fatalf("DecodeSequence: %v", err)
	}
	if len(decoded) != len(records) {
		t.Fatalf("decoded %d records, want %d", len(decoded), len(records))
	}
	for i := range records {
		if decoded[i].Tool != records[i].Tool || decoded[i].Dir != records[i].Dir ||
			!slices.Equal(decoded[i].Args, records[i].Args) {
			t.Errorf("record %d = %+v, want %+v", i, decoded[i], records[i])
		}
	}

	empty, err := DecodeSequence[sampleRecord](nil)
	if err != nil || len(empty) != 0 {
		t.Errorf("DecodeSequence(nil) = %v, %v; want empty, nil", empty, err)
	}
}

func TestDecodeSequenceTruncated(t *testing.T) {
	whole, err := Marshal(sampleRecord{Tool: "ld"})
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	partial, err := Marshal(sampleRecord{Tool: "libtool", Args: []string{"-static"}})
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	sequence := append(whole, partial[:len(partial)-2]...)

	decoded, err := DecodeSequence[sampleRecord](sequence)
	if err == nil {
		t.Fatal("DecodeSequence of truncated data succeeded")
	}
	if len(decoded) != 1 || decoded[0].Tool != "ld" {
		t.Errorf("decoded prefix = %+v, want the first record", decoded)
	}
}

func TestTimeRoundtrip(t *testing.T) {
	type stamped struct {
		At time.Time `json:"at"`
	}
	original := stamped{At: time.Date(2026, 3, 4, 5, 6, 7, 8, time.UTC)}

	data, err := Marshal(original)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	var decoded stamped
	if err := Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if !decoded.At.Equal(original.At) {
		t.Errorf("At = %v, want %v", decoded.At, original.At)
	}
}
