package loader

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

var staticFormats = map[string]Format{
	".toml": FormatTOML,
	".yaml": FormatYAML,
	".yml":  FormatYAML,
	".json": FormatJSON,
}

func (l *Loader) loadStatic(path string, format Format) (*Module, error) {
	data, err := l.fs.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file %s: %w", path, err)
	}

	cfg, err := parseStatic(path, format, data)
	if err != nil {
		return nil, err
	}
	if cfg == nil {
		cfg = make(map[string]any)
	}

	l.logger.Debug("loaded config file %s (%s)", path, format)
	return &Module{
		Path:         path,
		Format:       format,
		Dependencies: []string{path},
		Export:       cfg,
	}, nil
}

func parseStatic(path string, format Format, data []byte) (map[string]any, error) {
	var cfg map[string]any

	switch format {
	case FormatTOML:
		if err := toml.Unmarshal(data, &cfg); err != nil {
			perr := &ParseError{Path: path, Message: err.Error(), Err: err}
			var decErr *toml.DecodeError
			if errors.As(err, &decErr) {
				perr.Line, perr.Column = decErr.Position()
			}
			return nil, perr
		}
	case FormatYAML:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, &ParseError{Path: path, Message: err.Error(), Err: err}
		}
	case FormatJSON:
		if err := json.Unmarshal(data, &cfg); err != nil {
			perr := &ParseError{Path: path, Message: err.Error(), Err: err}
			var synErr *json.SyntaxError
			if errors.As(err, &synErr) {
				perr.Line, perr.Column = position(data, synErr.Offset)
			}
			return nil, perr
		}
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, path)
	}

	return cfg, nil
}

// position converts a byte offset to a 1-based line and column.
func position(data []byte, offset int64) (line, col int) {
	line, col = 1, 1
	for i := int64(0); i < offset && i < int64(len(data)); i++ {
		if data[i] == '\n' {
			line++
			col = 1
			continue
		}
		col++
	}
	return line, col
}
