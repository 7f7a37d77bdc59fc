// Copyright 2025 KrakLabs
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.
//
// SPDX-License-Identifier: Apache-2.0

// Package ids generates the deterministic integer identifiers the
// storage schema's Int-keyed tables require, the same hash-the-natural-key
// strategy the teacher's string-hash-ID scheme used, adapted to produce
// an int64 instead of a "kind:hexdigest" string.
package ids

import (
	"crypto/sha256"
	"encoding/binary"
	"path/filepath"
	"strconv"
	"strings"
)

// Of hashes parts (already-normalized natural-key components joined by
// "|") into a positive int64, stable across runs so re-parsing an
// unchanged file or definition reproduces the same id.
func Of(parts ...string) int64 {
	sum := sha256.Sum256([]byte(strings.Join(parts, "|")))
	v := binary.BigEndian.Uint64(sum[:8])
	return int64(v &^ (1 << 63)) // clear sign bit: Cozo's Int is signed
}

// NormalizePath mirrors the teacher's normalizePath: forward slashes,
// no leading "./" or "/", so the same file produces the same id
// regardless of how its path was spelled by the caller.
func NormalizePath(path string) string {
	if strings.HasPrefix(path, "./") {
		path = path[2:]
	}
	path = filepath.ToSlash(filepath.Clean(path))
	return strings.TrimPrefix(path, "/")
}

// FileID derives a file's id from its repository and normalized path.
func FileID(repositoryID int64, path string) int64 {
	return Of("file", strconv.FormatInt(repositoryID, 10), NormalizePath(path))
}

// DefinitionID derives a definition's id from its file and the natural
// key the teacher's GenerateFunctionID used (name + full line range),
// which stays stable across parser improvements that only change
// extracted signature text.
func DefinitionID(fileID int64, name string, startLine, endLine int) int64 {
	return Of("definition", strconv.FormatInt(fileID, 10), name,
		strconv.Itoa(startLine), strconv.Itoa(endLine))
}

// ReferenceID derives a reference's id from its (source, target, name)
// triple, so re-resolving the same occurrence twice upserts rather than
// duplicates. targetDefinitionID is 0 for an unresolved reference.
func ReferenceID(sourceDefinitionID, targetDefinitionID int64, symbolName string) int64 {
	return Of("reference", strconv.FormatInt(sourceDefinitionID, 10),
		strconv.FormatInt(targetDefinitionID, 10), symbolName)
}

// PackageID derives a package's id from its repository and path.
func PackageID(repositoryID int64, path string) int64 {
	return Of("package", strconv.FormatInt(repositoryID, 10), NormalizePath(path))
}

// RepositoryID derives a repository's id from its slug (the remote URL
// or local path the CLI was pointed at), so re-running against the same
// project always resolves to the same row.
func RepositoryID(slug string) int64 {
	return Of("repository", slug)
}
