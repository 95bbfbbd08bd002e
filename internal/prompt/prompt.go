// Package prompt loads the category workflow prompts served to agents.
//
// Every task category has a prompt: a markdown body with optional TOML
// frontmatter between +++ fences. Built-in categories ship embedded;
// projects override or extend them by dropping files into
// {tasks-dir}/prompts/*.md (the file basename is the category name).
package prompt

import (
	"bytes"
	"embed"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/BurntSushi/toml"
)

//go:embed defaults/*.md
var builtinFS embed.FS

// userPromptDir is the subdirectory of the tasks dir holding overrides.
const userPromptDir = "prompts"

const fence = "+++"

// Meta is the optional TOML frontmatter of a prompt file.
type Meta struct {
	Description   string `toml:"description"`
	SuggestedType string `toml:"suggested-type"`
}

// Prompt is one category workflow.
type Prompt struct {
	Category      string
	Description   string
	SuggestedType string
	Body          string
	// Source is "embedded:<file>" for built-ins or the file path for
	// project prompts.
	Source string
}

// Registry holds the prompts for all known categories.
type Registry struct {
	prompts map[string]*Prompt
}

// Load builds the registry: embedded defaults first, then project prompts
// from {tasksDir}/prompts, which override built-ins of the same name.
func Load(tasksDir string) (*Registry, error) {
	r := &Registry{prompts: make(map[string]*Prompt)}

	entries, err := fs.ReadDir(builtinFS, "defaults")
	if err != nil {
		return nil, fmt.Errorf("reading embedded prompts: %w", err)
	}
	for _, entry := range entries {
		name := entry.Name()
		content, err := builtinFS.ReadFile("defaults/" + name)
		if err != nil {
			return nil, fmt.Errorf("reading embedded prompt %s: %w", name, err)
		}
		p, err := parsePrompt(categoryOf(name), content)
		if err != nil {
			return nil, fmt.Errorf("embedded prompt %s: %w", name, err)
		}
		p.Source = "embedded:" + name
		r.prompts[p.Category] = p
	}

	if tasksDir != "" {
		if err := r.loadUserPrompts(filepath.Join(tasksDir, userPromptDir)); err != nil {
			return nil, err
		}
	}
	return r, nil
}

func (r *Registry) loadUserPrompts(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("reading prompt dir %s: %w", dir, err)
	}
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".md") {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		content, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("reading prompt %s: %w", path, err)
		}
		p, err := parsePrompt(categoryOf(entry.Name()), content)
		if err != nil {
			return fmt.Errorf("prompt %s: %w", path, err)
		}
		p.Source = path
		r.prompts[p.Category] = p
	}
	return nil
}

// Get returns the prompt for category, or nil when unknown.
func (r *Registry) Get(category string) *Prompt {
	return r.prompts[category]
}

// Has reports whether category is known.
func (r *Registry) Has(category string) bool {
	_, ok := r.prompts[category]
	return ok
}

// Categories lists all known categories sorted by name.
func (r *Registry) Categories() []string {
	names := make([]string, 0, len(r.prompts))
	for name := range r.prompts {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func categoryOf(filename string) string {
	return strings.TrimSuffix(filename, ".md")
}

// parsePrompt splits optional +++ frontmatter from the markdown body.
func parsePrompt(category string, content []byte) (*Prompt, error) {
	p := &Prompt{Category: category}

	trimmed := bytes.TrimLeft(content, "\r\n")
	if !bytes.HasPrefix(trimmed, []byte(fence)) {
		p.Body = strings.TrimSpace(string(content))
		return p, nil
	}

	rest := trimmed[len(fence):]
	end := bytes.Index(rest, []byte("\n"+fence))
	if end < 0 {
		return nil, fmt.Errorf("unterminated %s frontmatter", fence)
	}
	front := rest[:end]
	body := rest[end+len(fence)+1:]

	var meta Meta
	if err := toml.Unmarshal(front, &meta); err != nil {
		return nil, fmt.Errorf("parsing frontmatter: %w", err)
	}
	p.Description = meta.Description
	p.SuggestedType = meta.SuggestedType
	p.Body = strings.TrimSpace(string(body))
	return p, nil
}
