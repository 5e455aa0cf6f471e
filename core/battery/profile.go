package battery

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// LoadProfile reads battery Parameters from a JSON or YAML file.
func LoadProfile(path string) (Parameters, error) {
	f, err := os.Open(path)
	if err != nil {
		return Parameters{}, err
	}
	defer func() { _ = f.Close() }()
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")
	return DecodeProfile(f, ext)
}

// DecodeProfile decodes and validates Parameters read from r.
func DecodeProfile(r io.Reader, format string) (Parameters, error) {
	var p Parameters
	switch strings.ToLower(format) {
	case "yaml", "yml":
		if err := yaml.NewDecoder(r).Decode(&p); err != nil {
			return p, err
		}
	case "json":
		if err := json.NewDecoder(r).Decode(&p); err != nil {
			return p, err
		}
	default:
		return p, fmt.Errorf("unsupported profile format: %s", format)
	}
	if err := p.Validate(); err != nil {
		return p, err
	}
	return p, nil
}
