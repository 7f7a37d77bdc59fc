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

// Package main implements the atlas CLI: clone, parse, summarize, embed,
// and search a code repository through one embedded CozoDB store.
//
// Usage:
//
//	atlas init                      Create .atlas/project.yaml configuration
//	atlas ingest [--full]           Run the ingestion pipeline
//	atlas status [--json]           Show the last job's status
//	atlas search <query> [--json]   Run a hybrid search
//	atlas delete <path>             Remove a file and its descendants
//	atlas reconcile                 Sweep orphaned embedding rows
//	atlas serve                     Serve job intake + search over HTTP
package main

import (
	"flag"
	"fmt"
	"os"
)

var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

func main() {
	var (
		showVersion = flag.Bool("version", false, "Show version and exit")
		configPath  = flag.String("config", "", "Path to .atlas/project.yaml (default: ./.atlas/project.yaml)")
	)

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, `atlas - code knowledge graph CLI

Usage:
  atlas <command> [options]

Commands:
  init        Create .atlas/project.yaml configuration
  ingest      Run the clone/parse/summarize/embed pipeline
  status      Show the last job's status
  search      Run a hybrid (vector + full-text) search
  delete      Remove a file and its definitions/references
  reconcile   Sweep embedding rows whose entity no longer exists
  serve       Serve job intake and search over HTTP

Global Options:
  --config    Path to .atlas/project.yaml
  --version   Show version and exit

Examples:
  atlas init
  atlas ingest --full
  atlas status --json
  atlas search "parse a changed file"
  atlas serve --addr :8080

`)
	}

	flag.Parse()

	if *showVersion {
		fmt.Printf("atlas version %s\n", version)
		fmt.Printf("commit: %s\n", commit)
		fmt.Printf("built: %s\n", date)
		os.Exit(0)
	}

	args := flag.Args()
	if len(args) == 0 {
		flag.Usage()
		os.Exit(1)
	}

	command := args[0]
	cmdArgs := args[1:]

	switch command {
	case "init":
		runInit(cmdArgs)
	case "ingest":
		runIngest(cmdArgs, *configPath)
	case "status":
		runStatus(cmdArgs, *configPath)
	case "search":
		runSearch(cmdArgs, *configPath)
	case "delete":
		runDelete(cmdArgs, *configPath)
	case "reconcile":
		runReconcile(cmdArgs, *configPath)
	case "serve":
		runServe(cmdArgs, *configPath)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", command)
		flag.Usage()
		os.Exit(1)
	}
}
