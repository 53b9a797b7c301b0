package commands

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"

	"github.com/dshills/kiln/internal/config/loader"
)

func newSetCommand(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "set <path> <value>",
		Short: "Set a value in a JSON config file",
		Long: `Set writes a value into kiln.config.json, keeping the rest of the file
as it is. The value is read as JSON when it parses, otherwise as a string.
Script config files must be edited by hand.`,
		Example: `  kiln set server.port 8080
  kiln set build.target '["es2020"]'
  kiln set base /app/`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := opts.jsonConfigFile()
			if err != nil {
				return err
			}
			if err := setJSONValue(path, args[0], args[1]); err != nil {
				return err
			}
			opts.logger().Info("set %s in %s", args[0], filepath.Base(path))
			return nil
		},
	}
}

// jsonConfigFile returns the JSON config file named by --config or found in
// the project root.
func (o *options) jsonConfigFile() (string, error) {
	path := o.configFile
	if path == "" {
		root := o.root
		if root == "" {
			root = "."
		}
		found, ok := loader.FindConfigFile(root)
		if !ok {
			return "", loader.ErrConfigNotFound
		}
		path = found
	}
	if filepath.Ext(path) != ".json" {
		return "", fmt.Errorf("%s: set only edits JSON config files", path)
	}
	return path, nil
}

func setJSONValue(path, key, raw string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if !gjson.ValidBytes(data) {
		return &loader.ParseError{Path: path, Message: "invalid JSON"}
	}

	var out []byte
	if json.Valid([]byte(raw)) {
		out, err = sjson.SetRawBytes(data, key, []byte(raw))
	} else {
		out, err = sjson.SetBytes(data, key, raw)
	}
	if err != nil {
		return err
	}

	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	return os.WriteFile(path, out, info.Mode().Perm())
}
