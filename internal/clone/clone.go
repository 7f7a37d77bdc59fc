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

// Package clone shallow-clones a remote repository (or validates a
// local checkout) and diffs commits with the system git binary, the
// same os/exec technique used throughout the ingestion pipeline rather
// than a pure-Go git implementation.
package clone

import (
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"regexp"
	"strings"
	"sync"

	"github.com/atlasgraph/atlas/internal/model"
)

var (
	validRemotePattern   = regexp.MustCompile(`^(https://|git@|ssh://|file://)[a-zA-Z0-9._/@:\-~]+$`)
	dangerousCharsPattern = regexp.MustCompile(`[;&|$` + "`" + `\n\r]`)

	emptyTreeSHA = "4b825dc642cb6eb9a060e54bf8d69288fbee4904"
)

// Repository is a single clone operation's working checkout.
type Repository struct {
	logger *slog.Logger

	mu       sync.Mutex
	path     string
	owned    bool
	Remote   string
	Commit   string
	Branch   string
}

// Open validates remoteURL, shallow-clones it into a temp directory,
// and returns the checkout's remote_origin_url, commit_hash, and
// default_branch. An empty remoteURL treats path as an already-present
// local checkout and only inspects it.
func Open(logger *slog.Logger, path, remoteURL string) (*Repository, error) {
	if logger == nil {
		logger = slog.Default()
	}

	if remoteURL == "" {
		r := &Repository{logger: logger, path: path}
		if err := r.inspect(); err != nil {
			return nil, err
		}
		return r, nil
	}

	if err := validateRemoteURL(remoteURL); err != nil {
		return nil, err
	}

	tmpDir, err := os.MkdirTemp("", "atlas-clone-*")
	if err != nil {
		return nil, fmt.Errorf("create temp dir: %w", err)
	}

	logger.Info("clone.repository.start", "remote", remoteURL)
	cmd := exec.Command("git", "clone", "--depth", "1", "--quiet", remoteURL, tmpDir)
	cmd.Env = append(os.Environ(), "GIT_TERMINAL_PROMPT=0")
	if out, err := cmd.CombinedOutput(); err != nil {
		os.RemoveAll(tmpDir)
		return nil, fmt.Errorf("git clone: %w: %s", err, strings.TrimSpace(string(out)))
	}

	r := &Repository{logger: logger, path: tmpDir, owned: true, Remote: remoteURL}
	if err := r.inspect(); err != nil {
		r.Close()
		return nil, err
	}
	logger.Info("clone.repository.done", "remote", remoteURL, "commit", r.Commit)
	return r, nil
}

// Path returns the checkout's root directory on disk.
func (r *Repository) Path() string {
	return r.path
}

// Close removes the temp directory if Open cloned one.
func (r *Repository) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.owned {
		return nil
	}
	owned := r.owned
	r.owned = false
	if !owned {
		return nil
	}
	return os.RemoveAll(r.path)
}

func (r *Repository) inspect() error {
	commit, err := r.run("rev-parse", "HEAD")
	if err != nil {
		return fmt.Errorf("resolve HEAD: %w", err)
	}
	r.Commit = commit

	branch, err := r.run("symbolic-ref", "--short", "refs/remotes/origin/HEAD")
	if err != nil {
		branch, err = r.run("rev-parse", "--abbrev-ref", "HEAD")
		if err != nil {
			branch = "main"
		}
	}
	r.Branch = strings.TrimPrefix(branch, "origin/")

	if r.Remote == "" {
		if origin, err := r.run("config", "--get", "remote.origin.url"); err == nil {
			r.Remote = origin
		}
	}
	return nil
}

// Changes diffs beforeCommit..afterCommit (an empty beforeCommit means
// "diff against the empty tree", i.e. every file is added) and returns
// the paths touched, restricted to nothing by itself — callers filter
// by extension/exclude-glob downstream.
func (r *Repository) Changes(beforeCommit, afterCommit string) (*model.GitChanges, error) {
	if beforeCommit == "" {
		beforeCommit = emptyTreeSHA
	}
	if afterCommit == "" {
		afterCommit = "HEAD"
	}

	out, err := r.run("diff", "--name-status", "-M", beforeCommit, afterCommit)
	if err != nil {
		return nil, fmt.Errorf("git diff: %w", err)
	}

	changes := &model.GitChanges{}
	for _, line := range strings.Split(out, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		fields := strings.Split(line, "\t")
		if len(fields) < 2 {
			continue
		}
		status := fields[0]
		switch {
		case status == "A":
			changes.Added = append(changes.Added, fields[1])
		case status == "D":
			changes.Deleted = append(changes.Deleted, fields[1])
		case status == "M":
			changes.Modified = append(changes.Modified, fields[1])
		case strings.HasPrefix(status, "R"):
			if len(fields) >= 3 {
				changes.Renamed = append(changes.Renamed, model.RenamedFile{Old: fields[1], New: fields[2]})
			}
		}
	}
	return changes, nil
}

func (r *Repository) run(args ...string) (string, error) {
	cmd := exec.Command("git", args...)
	cmd.Dir = r.path
	out, err := cmd.Output()
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(out)), nil
}

func validateRemoteURL(remoteURL string) error {
	if dangerousCharsPattern.MatchString(remoteURL) {
		return fmt.Errorf("remote url contains disallowed characters")
	}
	if !validRemotePattern.MatchString(remoteURL) {
		return fmt.Errorf("remote url does not match an accepted scheme: %s", remoteURL)
	}
	return nil
}
