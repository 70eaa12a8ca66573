package types

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"

	"gopkg.in/yaml.v3"
)

// ErrUnknownGoType is returned for a type mapping naming an unsupported Go type
var ErrUnknownGoType = errors.New("unknown go type")

var goTypes = map[string]reflect.Type{
	"int":       reflect.TypeFor[int](),
	"int32":     reflect.TypeFor[int32](),
	"int64":     int64Type,
	"float32":   reflect.TypeFor[float32](),
	"float64":   float64Type,
	"string":    stringType,
	"bool":      boolType,
	"[]byte":    bytesType,
	"time.Time": timeType,
	"any":       reflect.TypeFor[any](),
}

// Config customizes a SQLite resolver.
//
// Example:
//
//	{"strict": true, "types": {"MONEY": "float64", "UUID": "string"}}
type Config struct {
	Strict bool              `json:"strict" yaml:"strict"`
	Types  map[string]string `json:"types" yaml:"types"`
}

// LoadConfig reads a resolver configuration. Files ending in .yaml or .yml
// are read as YAML, anything else as JSON.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("read type config: %w", err)
	}

	var cfg Config
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &cfg)
	default:
		err = json.Unmarshal(data, &cfg)
	}
	if err != nil {
		return nil, fmt.Errorf("parse type config %s: %w", filepath.Base(path), err)
	}
	return &cfg, nil
}

// Resolver builds a SQLite resolver with the configured mappings applied
func (c *Config) Resolver() (*SQLite, error) {
	r := NewSQLite()
	r.Strict = c.Strict
	for name, goName := range c.Types {
		t, ok := goTypes[goName]
		if !ok {
			return nil, fmt.Errorf("type %s: %w %q", name, ErrUnknownGoType, goName)
		}
		r.Register(name, t)
	}
	return r, nil
}

// GoTypeName returns the configuration spelling of a Go type
func GoTypeName(t reflect.Type) string {
	if t == nil {
		return ""
	}
	for name, gt := range goTypes {
		if gt == t {
			return name
		}
	}
	return t.String()
}
