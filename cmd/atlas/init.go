// Copyright 2025 KrakLabs
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published
// by the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program. If not, see <https://www.gnu.org/licenses/>.
//
// For commercial licensing, contact: licensing@kraklabs.com
//
// SPDX-License-Identifier: AGPL-3.0-or-later

package main

import (
	"bufio"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/atlasgraph/atlas/internal/bootstrap"
	"github.com/atlasgraph/atlas/internal/ui"
)

// initFlags holds parsed flags for the init command.
type initFlags struct {
	force, nonInteractive, noHook, withHook, removeHook bool
	projectID, remoteURL, localPath                     string
	embeddingProvider, llmProvider, llmURL, llmModel     string
}

// runInit creates .atlas/project.yaml, optionally walking the user
// through an interactive setup, and offers to install a git post-commit
// hook that re-runs 'atlas ingest' after each commit.
func runInit(args []string) {
	flags := parseInitFlags(args)

	cwd, err := os.Getwd()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: cannot get current directory: %v\n", err)
		os.Exit(1)
	}

	if flags.removeHook {
		gitDir, err := findGitDir()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		hookPath := filepath.Join(gitDir, "hooks", "post-commit")
		if err := removeHook(hookPath); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		fmt.Println("Git hook removed.")
		return
	}

	configPath := ConfigPath(cwd)
	if _, err := os.Stat(configPath); err == nil && !flags.force {
		fmt.Fprintf(os.Stderr, "Error: %s already exists. Use --force to overwrite.\n", configPath)
		os.Exit(1)
	}

	cfg := createInitConfig(cwd, flags)
	reader := bufio.NewReader(os.Stdin)
	if !flags.nonInteractive {
		runInteractiveConfig(reader, cfg)
	}

	saveInitConfig(cwd, configPath, cfg)
	handleHookInstallation(reader, flags)
	printNextSteps()
}

func parseInitFlags(args []string) initFlags {
	fs := flag.NewFlagSet("init", flag.ExitOnError)
	var f initFlags
	fs.BoolVar(&f.force, "force", false, "Overwrite existing configuration")
	fs.BoolVar(&f.nonInteractive, "y", false, "Non-interactive mode (use defaults)")
	fs.StringVar(&f.projectID, "project-id", "", "Project identifier")
	fs.StringVar(&f.remoteURL, "remote", "", "Git remote URL to shallow-clone for ingestion")
	fs.StringVar(&f.localPath, "path", "", "Local checkout path to ingest (default: current directory)")
	fs.StringVar(&f.embeddingProvider, "embedding-provider", "", "Embedding provider (mock, ollama, openai)")
	fs.StringVar(&f.llmProvider, "llm-provider", "", "LLM provider for summarization (mock, ollama, openai, anthropic)")
	fs.StringVar(&f.llmURL, "llm-url", "", "LLM API base URL")
	fs.StringVar(&f.llmModel, "llm-model", "", "LLM model name")
	fs.BoolVar(&f.noHook, "no-hook", false, "Skip git hook installation")
	fs.BoolVar(&f.withHook, "hook", false, "Install git hook without prompting (for scripts)")
	fs.BoolVar(&f.removeHook, "remove-hook", false, "Remove a previously installed git hook and exit")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `Usage: atlas init [options]

Creates .atlas/project.yaml configuration file.

Examples:
  atlas init --remote git@github.com:acme/widgets.git
  atlas init -y --embedding-provider ollama
  atlas init --hook

Options:
`)
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}
	return f
}

func createInitConfig(cwd string, f initFlags) *Config {
	pid := f.projectID
	if pid == "" {
		pid = filepath.Base(cwd)
	}
	cfg := DefaultConfig(pid)
	cfg.Repository.RemoteURL = f.remoteURL
	if f.localPath != "" {
		cfg.Repository.LocalPath = f.localPath
	} else {
		cfg.Repository.LocalPath = cwd
	}
	if f.embeddingProvider != "" {
		cfg.Embedding.Provider = f.embeddingProvider
	}
	if f.llmProvider != "" {
		cfg.LLM.Provider = f.llmProvider
	}
	if f.llmURL != "" {
		cfg.LLM.BaseURL = f.llmURL
	}
	if f.llmModel != "" {
		cfg.LLM.Model = f.llmModel
	}
	return cfg
}

func runInteractiveConfig(reader *bufio.Reader, cfg *Config) {
	fmt.Println("atlas project configuration")
	fmt.Println("===========================")
	fmt.Println()

	cfg.ProjectID = prompt(reader, "Project ID", cfg.ProjectID)
	cfg.Repository.LocalPath = prompt(reader, "Local checkout path", cfg.Repository.LocalPath)

	fmt.Println()
	fmt.Println("Embedding providers: mock, ollama, openai")
	cfg.Embedding.Provider = prompt(reader, "Embedding provider", cfg.Embedding.Provider)
	if cfg.Embedding.Provider == "ollama" {
		cfg.Embedding.BaseURL = prompt(reader, "Ollama URL", cfg.Embedding.BaseURL)
		cfg.Embedding.Model = prompt(reader, "Embedding model", cfg.Embedding.Model)
	}

	promptLLMConfig(reader, cfg)
	fmt.Println()
}

func promptLLMConfig(reader *bufio.Reader, cfg *Config) {
	fmt.Println()
	fmt.Println("LLM configuration (for definition and file summaries)")
	fmt.Println("Providers: mock, ollama, openai, anthropic")
	fmt.Println()

	cfg.LLM.Provider = prompt(reader, "LLM provider", cfg.LLM.Provider)
	if cfg.LLM.Provider != "mock" {
		cfg.LLM.BaseURL = prompt(reader, "LLM API URL", cfg.LLM.BaseURL)
		cfg.LLM.Model = prompt(reader, "LLM model name", cfg.LLM.Model)
		cfg.LLM.APIKey = prompt(reader, "LLM API key (optional)", cfg.LLM.APIKey)
	}
}

func saveInitConfig(cwd, configPath string, cfg *Config) {
	dir := ConfigDir(cwd)
	if err := os.MkdirAll(dir, 0750); err != nil {
		fmt.Fprintf(os.Stderr, "Error: cannot create .atlas directory: %v\n", err)
		os.Exit(1)
	}
	if err := SaveConfig(cfg, configPath); err != nil {
		fmt.Fprintf(os.Stderr, "Error: cannot save configuration: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Created %s\n", configPath)
	addToGitignore(cwd)

	dataDir, err := DataDir(cfg.ProjectID)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: cannot resolve data directory: %v\n", err)
		return
	}
	info, err := bootstrap.InitProject(bootstrap.ProjectConfig{ProjectID: cfg.ProjectID, DataDir: dataDir}, slog.Default())
	if err != nil {
		ui.Warning(fmt.Sprintf("cannot initialize database: %v", err))
		return
	}
	ui.Success(fmt.Sprintf("Initialized database at %s", info.DataDir))
}

func handleHookInstallation(reader *bufio.Reader, f initFlags) {
	if f.noHook {
		return
	}
	shouldInstall := f.withHook
	if !f.withHook && !f.nonInteractive {
		fmt.Println()
		answer := strings.ToLower(strings.TrimSpace(prompt(reader, "Install git hook for auto-ingestion? (Y/n)", "y")))
		shouldInstall = answer != "n" && answer != "no"
	} else if f.nonInteractive {
		shouldInstall = true
	}
	if !shouldInstall {
		return
	}

	gitDir, err := findGitDir()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: cannot find .git directory: %v\n", err)
		return
	}
	hookPath := filepath.Join(gitDir, "hooks", "post-commit")
	if err := installHook(hookPath, false); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: cannot install git hook: %v\n", err)
		return
	}
	fmt.Printf("Git hook installed: %s\n", hookPath)
}

func printNextSteps() {
	fmt.Println()
	ui.SubHeader("Next steps:")
	fmt.Println("  1. Review and edit .atlas/project.yaml if needed")
	fmt.Println("  2. Run 'atlas ingest' to build the knowledge graph")
	fmt.Println("  3. Run 'atlas status' to check the job, then 'atlas search <query>'")
}

// prompt shows label with defaultValue in brackets and reads a line from
// reader, returning defaultValue if the user presses Enter.
func prompt(reader *bufio.Reader, label, defaultValue string) string {
	if defaultValue != "" {
		fmt.Printf("%s [%s]: ", label, defaultValue)
	} else {
		fmt.Printf("%s: ", label)
	}
	input, _ := reader.ReadString('\n')
	input = strings.TrimSpace(input)
	if input == "" {
		return defaultValue
	}
	return input
}

// addToGitignore appends .atlas/ to the project's .gitignore if present
// and not already listed; silently no-ops if there's no .gitignore.
func addToGitignore(dir string) {
	gitignorePath := filepath.Join(dir, ".gitignore")
	content, err := os.ReadFile(gitignorePath) //nolint:gosec // G304: gitignorePath built from repo dir
	if err != nil {
		return
	}

	for _, line := range strings.Split(string(content), "\n") {
		line = strings.TrimSpace(line)
		if line == ".atlas/" || line == ".atlas" || line == "/.atlas/" || line == "/.atlas" {
			return
		}
	}

	f, err := os.OpenFile(gitignorePath, os.O_APPEND|os.O_WRONLY, 0600) //nolint:gosec // G304: gitignorePath built from repo dir
	if err != nil {
		return
	}
	defer func() { _ = f.Close() }()

	if len(content) > 0 && content[len(content)-1] != '\n' {
		_, _ = f.WriteString("\n")
	}
	_, _ = f.WriteString("\n# atlas configuration and data\n.atlas/\n")
	fmt.Println("Added .atlas/ to .gitignore")
}
