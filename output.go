package prorest

import (
	"encoding/json"
	"io"

	"github.com/gwaylib/errors"
	"gopkg.in/yaml.v3"
)

// printResult writes v as indented json or as yaml. For yaml, v goes through
// json first so the keys match the wire names.
func printResult(w io.Writer, format string, v interface{}) error {
	switch format {
	case "yaml":
		data, err := json.Marshal(v)
		if err != nil {
			return errors.As(err)
		}
		var generic interface{}
		if err := json.Unmarshal(data, &generic); err != nil {
			return errors.As(err)
		}
		out, err := yaml.Marshal(generic)
		if err != nil {
			return errors.As(err)
		}
		_, err = w.Write(out)
		return errors.As(err)
	case "", "json":
		out, err := json.MarshalIndent(v, "", "  ")
		if err != nil {
			return errors.As(err)
		}
		_, err = w.Write(append(out, '\n'))
		return errors.As(err)
	}
	return errors.New("unknown output format").As(format)
}
