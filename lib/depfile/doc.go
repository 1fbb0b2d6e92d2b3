// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package depfile reads and writes the dependency records compilers and
// linkers leave for the build system.
//
// Makefile-style ".d" files list, for each output, the files the
// compiler read. Producers parse them to learn a target's dependencies;
// wrappers that mock a compile step must write them so the build
// system's incremental tracking keeps working.
//
// Linker dependency-info files are a binary record format:
//
//	0x00 <tool version> 0x00
//	0x10 <input path> 0x00   (one per input)
//	0x40 <output path> 0x00  (one per output)
//
// The build system checks this format byte for byte, so
// [WriteDependencyInfo] emits exactly these records and nothing else.
package depfile
