// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package depfile

import (
	"bytes"
	"fmt"
	"io"
	"os"
)

const (
	recordVersion byte = 0x00
	recordInput   byte = 0x10
	recordOutput  byte = 0x40
)

// DependencyInfo is the content of a linker dependency-info file.
type DependencyInfo struct {
	Version string
	Inputs  []string
	Outputs []string
}

// WriteDependencyInfo writes info in the binary record format.
func WriteDependencyInfo(w io.Writer, info DependencyInfo) error {
	var buffer bytes.Buffer
	writeRecord(&buffer, recordVersion, info.Version)
	for _, input := range info.Inputs {
		writeRecord(&buffer, recordInput, input)
	}
	for _, output := range info.Outputs {
		writeRecord(&buffer, recordOutput, output)
	}
	if _, err := w.Write(buffer.Bytes()); err != nil {
		return fmt.Errorf("writing dependency info: %w", err)
	}
	return nil
}

// WriteDependencyInfoFile writes info to path.
func WriteDependencyInfoFile(path string, info DependencyInfo) error {
	var buffer bytes.Buffer
	if err := WriteDependencyInfo(&buffer, info); err != nil {
		return err
	}
	if err := os.WriteFile(path, buffer.Bytes(), 0o644); err != nil {
		return fmt.Errorf("writing dependency info %s: %w", path, err)
	}
	return nil
}

func writeRecord(buffer *bytes.Buffer, kind byte, value string) {
	buffer.WriteByte(kind)
	buffer.WriteString(value)
	buffer.WriteByte(0)
}

// ParseDependencyInfo decodes a dependency-info file. Records of
// unknown kinds are skipped.
func ParseDependencyInfo(data []byte) (DependencyInfo, error) {
	var info DependencyInfo
	for len(data) > 0 {
		kind := data[0]
		end := bytes.IndexByte(data[1:], 0)
		if end < 0 {
			return DependencyInfo{}, fmt.Errorf("unterminated dependency info record of kind %#x", kind)
		}
		value := string(data[1 : 1+end])
		data = data[end+2:]
		switch kind {
		case recordVersion:
			info.Version = value
		case recordInput:
			info.Inputs = append(info.Inputs, value)
		case recordOutput:
			info.Outputs = append(info.Outputs, value)
		}
	}
	return info, nil
}
