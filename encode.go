package prorest

import (
	"fmt"
	"io/ioutil"

	"github.com/gwaycc/prorest/config"

	"github.com/gwaylib/errors"
)

var ErrKeyNotMatch = errors.New("Key not match")

type EncodeCommand struct {
	Key string `short:"k" long:"key" description:"Auth key input"`
	Out string `long:"out" description:"File output"`
}

func (v *EncodeCommand) Execute(args []string) error {
	if len(args) < 1 {
		return errors.New("ErrCommand: prorest encode [option] input-file")
	}
	if v.Key != string(config.ConfKey) {
		return ErrKeyNotMatch
	}
	fileData, err := ioutil.ReadFile(args[0])
	if err != nil {
		return errors.As(err, args[0])
	}
	return writeOutput(v.Out, config.Encode(fileData, config.ConfKey))
}

type DecodeCommand struct {
	Key string `short:"k" long:"key" description:"Auth key input"`
	Out string `long:"out" description:"File output"`
}

func (v *DecodeCommand) Execute(args []string) error {
	if len(args) < 1 {
		return errors.New("ErrCommand: prorest decode [option] input-file")
	}
	if v.Key != string(config.ConfKey) {
		return ErrKeyNotMatch
	}
	fileData, err := ioutil.ReadFile(args[0])
	if err != nil {
		return errors.As(err, args[0])
	}
	output, err := config.Decode(fileData, config.ConfKey)
	if err != nil {
		return errors.As(err, args[0])
	}
	return writeOutput(v.Out, output)
}

func writeOutput(out string, data []byte) error {
	if len(out) == 0 {
		_, err := stdout.Write(data)
		return errors.As(err)
	}
	if err := ioutil.WriteFile(out, data, 0600); err != nil {
		return errors.As(err, out)
	}
	fmt.Fprintln(stdout, "has output to: "+out)
	return nil
}

func init() {
	parser.AddCommand(
		"encode",
		"encode ini to dat",
		"encode ini to dat",
		&EncodeCommand{},
	)
	parser.AddCommand(
		"decode",
		"decode dat to ini",
		"decode dat to ini",
		&DecodeCommand{},
	)
}
