// Package candidates reads the candidate pool produced by the search stage
// and prepares it for a tournament.
package candidates

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/papernavigator/papernav/internal/domain"
)

// ErrNoPapers is returned when a candidate file holds no papers.
var ErrNoPapers = errors.New("candidate file contains no papers")

var validate = validator.New()

// File is a decoded candidate file. Query is empty when the file is a bare
// list of papers.
type File struct {
	Query  string         `json:"query" yaml:"query"`
	Papers []domain.Paper `json:"papers" yaml:"papers"`
}

// Load reads a candidate file. Files ending in .yaml or .yml are decoded as
// YAML, everything else as JSON.
func Load(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read candidates: %w", err)
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return DecodeYAML(bytes.NewReader(data))
	default:
		return DecodeJSON(bytes.NewReader(data))
	}
}

// DecodeJSON accepts either {"query": ..., "papers": [...]} or a bare array
// of papers.
func DecodeJSON(r io.Reader) (*File, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read candidates: %w", err)
	}
	data = bytes.TrimSpace(data)

	var f File
	if len(data) > 0 && data[0] == '[' {
		if err := json.Unmarshal(data, &f.Papers); err != nil {
			return nil, fmt.Errorf("decode candidate list: %w", err)
		}
	} else if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("decode candidate file: %w", err)
	}
	return &f, f.validate()
}

// DecodeYAML is the YAML counterpart of DecodeJSON.
func DecodeYAML(r io.Reader) (*File, error) {
	var node yaml.Node
	if err := yaml.NewDecoder(r).Decode(&node); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, ErrNoPapers
		}
		return nil, fmt.Errorf("decode candidate file: %w", err)
	}

	var f File
	doc := &node
	if doc.Kind == yaml.DocumentNode && len(doc.Content) > 0 {
		doc = doc.Content[0]
	}
	if doc.Kind == yaml.SequenceNode {
		if err := doc.Decode(&f.Papers); err != nil {
			return nil, fmt.Errorf("decode candidate list: %w", err)
		}
	} else if err := doc.Decode(&f); err != nil {
		return nil, fmt.Errorf("decode candidate file: %w", err)
	}
	return &f, f.validate()
}

func (f *File) validate() error {
	if len(f.Papers) == 0 {
		return ErrNoPapers
	}
	verr := domain.NewValidationError("candidates")
	for i, p := range f.Papers {
		if err := validate.Struct(p); err != nil {
			verr.AddError(fmt.Sprintf("papers[%d]: %v", i, err))
		}
	}
	if verr.HasErrors() {
		return verr
	}
	return nil
}
