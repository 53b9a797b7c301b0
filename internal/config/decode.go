package config

import (
	"fmt"
	"reflect"

	"github.com/go-viper/mapstructure/v2"

	"github.com/dshills/kiln/internal/config/merge"
)

// defaults are merged under the working configuration before decoding.
// Lists are left out: merging concatenates them, so list defaults are
// applied to the decoded settings instead.
func defaults() map[string]any {
	return map[string]any{
		"base":        "/",
		"publicDir":   "public",
		"cacheDir":    "lua_modules/.kiln",
		"logLevel":    "info",
		"clearScreen": true,
		"appType":     "spa",
		"server": map[string]any{
			"host":       "localhost",
			"port":       int64(5173),
			"strictPort": false,
		},
		"preview": map[string]any{
			"host": "localhost",
			"port": int64(4173),
		},
		"build": map[string]any{
			"outDir":      "dist",
			"assetsDir":   "assets",
			"sourcemap":   false,
			"minify":      true,
			"emptyOutDir": true,
		},
		"worker": map[string]any{
			"format": "modern",
		},
	}
}

var (
	defaultEnvPrefix  = []string{"KILN_"}
	defaultExtensions = []string{".mlua", ".clua", ".lua", ".json"}
	defaultMainFields = []string{"module", "main"}
	defaultTarget     = []string{"modules"}
)

func applyListDefaults(s *Settings) {
	if len(s.EnvPrefix) == 0 {
		s.EnvPrefix = defaultEnvPrefix
	}
	if len(s.Resolve.Extensions) == 0 {
		s.Resolve.Extensions = defaultExtensions
	}
	if len(s.Resolve.MainFields) == 0 {
		s.Resolve.MainFields = defaultMainFields
	}
	if len(s.Build.Target) == 0 {
		s.Build.Target = defaultTarget
	}
}

var switchType = reflect.TypeOf(Switch{})

// switchHook decodes booleans and variant names into a Switch.
func switchHook(_ reflect.Type, to reflect.Type, data any) (any, error) {
	if to != switchType {
		return data, nil
	}
	switch v := data.(type) {
	case nil:
		return Switch{}, nil
	case bool:
		return Switch{Enabled: v}, nil
	case string:
		switch v {
		case "", "false":
			return Switch{}, nil
		case "true":
			return Switch{Enabled: true}, nil
		}
		return Switch{Enabled: true, Value: v}, nil
	case Switch:
		return v, nil
	default:
		return nil, fmt.Errorf("expected a boolean or a string, got %T", data)
	}
}

// decodeSettings decodes the working configuration over the defaults.
func decodeSettings(working map[string]any) (Settings, map[string]any, error) {
	value := merge.Merge(defaults(), working)

	var s Settings
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			mapstructure.DecodeHookFuncType(switchHook),
		),
		WeaklyTypedInput: true,
		Result:           &s,
		TagName:          "mapstructure",
	})
	if err != nil {
		return Settings{}, nil, err
	}
	if err := dec.Decode(value); err != nil {
		return Settings{}, nil, decodeError(err)
	}

	applyListDefaults(&s)
	return s, value, nil
}

// decodeError turns mapstructure's field errors into validation errors
// named by their dotted config path.
func decodeError(err error) error {
	var errs ValidationErrors
	collectDecodeErrors(&errs, err)
	if len(errs) == 0 {
		return &ValidationError{Field: "config", Message: err.Error()}
	}
	return errs
}

func collectDecodeErrors(errs *ValidationErrors, err error) {
	if de, ok := err.(*mapstructure.DecodeError); ok {
		field := de.Name()
		if field == "" {
			field = "config"
		}
		msg := err.Error()
		if inner := de.Unwrap(); inner != nil {
			msg = inner.Error()
		}
		*errs = append(*errs, &ValidationError{Field: field, Message: msg})
		return
	}
	switch e := err.(type) {
	case interface{ Unwrap() []error }:
		for _, inner := range e.Unwrap() {
			collectDecodeErrors(errs, inner)
		}
	case interface{ Unwrap() error }:
		collectDecodeErrors(errs, e.Unwrap())
	}
}
