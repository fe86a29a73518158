package prorest

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/gwaycc/prorest/config"
	"github.com/gwaycc/prorest/rpcclient"
	"github.com/gwaylib/errors"
)

const outputSuffix = ":out"

var (
	ErrNoCredentials = errors.New("no token or username, use --token or --username/--password")
	ErrBadParameter  = errors.New("bad parameter, expect name=value, name:out or name:out=value")
)

// failed adds the response body of a failed call to err for the user.
func failed(err error) error {
	if f, ok := rpcclient.AsFailure(err); ok && len(f.Body) > 0 {
		return errors.As(err, strings.TrimSpace(string(f.Body)))
	}
	return errors.As(err)
}

// authenticate uses --token when given and logs in otherwise.
func authenticate(client *rpcclient.RPCClient, cfg *config.Config, opts *Options) error {
	if len(opts.Token) > 0 {
		client.SetToken(opts.Token)
		return nil
	}
	if len(cfg.Client.Username) == 0 {
		return ErrNoCredentials
	}
	if _, err := client.Login(cfg.Client.Username, cfg.Client.Password, cfg.Client.TokenExpire); err != nil {
		return failed(err)
	}
	return nil
}

// parseParams turns "name=value" into an input parameter and "name:out" or
// "name:out=value" into an output parameter, keeping the order.
func parseParams(args []string) ([]rpcclient.StoredProcedureParameter, error) {
	params := make([]rpcclient.StoredProcedureParameter, 0, len(args))
	for _, arg := range args {
		name, value, hasValue := strings.Cut(arg, "=")
		if strings.HasSuffix(name, outputSuffix) {
			name = strings.TrimSuffix(name, outputSuffix)
			if len(name) == 0 {
				return nil, ErrBadParameter.As(arg)
			}
			params = append(params, rpcclient.NewOutputParameter(name, value))
			continue
		}
		if len(name) == 0 || !hasValue {
			return nil, ErrBadParameter.As(arg)
		}
		params = append(params, rpcclient.NewParameter(name, value))
	}
	return params, nil
}

type LoginCommand struct{}

func (v *LoginCommand) Execute(args []string) error {
	cfg, closer, err := setup(&options)
	if err != nil {
		return errors.As(err)
	}
	defer closer.Close()

	client, err := newClient(cfg, options.Verbose)
	if err != nil {
		return errors.As(err)
	}
	defer client.Close()
	if len(cfg.Client.Username) == 0 {
		return ErrNoCredentials
	}
	ret, err := client.Login(cfg.Client.Username, cfg.Client.Password, cfg.Client.TokenExpire)
	if err != nil {
		return failed(err)
	}
	return printResult(stdout, options.Output, ret.Raw)
}

type LogoutCommand struct{}

func (v *LogoutCommand) Execute(args []string) error {
	cfg, closer, err := setup(&options)
	if err != nil {
		return errors.As(err)
	}
	defer closer.Close()

	client, err := newClient(cfg, options.Verbose)
	if err != nil {
		return errors.As(err)
	}
	defer client.Close()
	if err := authenticate(client, cfg, &options); err != nil {
		return errors.As(err)
	}
	ret := json.RawMessage{}
	if err := client.Logout(&ret); err != nil {
		return failed(err)
	}
	return printResult(stdout, options.Output, ret)
}

type CallCommand struct {
	Args struct {
		Procedure string   `positional-arg-name:"procedure" required:"yes"`
		Params    []string `positional-arg-name:"name=value"`
	} `positional-args:"yes"`
}

func (v *CallCommand) Execute(args []string) error {
	params, err := parseParams(v.Args.Params)
	if err != nil {
		return errors.As(err)
	}
	cfg, closer, err := setup(&options)
	if err != nil {
		return errors.As(err)
	}
	defer closer.Close()

	client, err := newClient(cfg, options.Verbose)
	if err != nil {
		return errors.As(err)
	}
	defer client.Close()
	if err := authenticate(client, cfg, &options); err != nil {
		return errors.As(err)
	}
	ret := json.RawMessage{}
	if err := client.StoredProcedure(v.Args.Procedure, params, &ret); err != nil {
		return failed(err)
	}
	return printResult(stdout, options.Output, ret)
}

type HashPasswordCommand struct{}

func (v *HashPasswordCommand) Execute(args []string) error {
	if len(args) != 1 {
		return errors.New("ErrCommand: prorest hash-password password")
	}
	hash, err := HashPassword(args[0])
	if err != nil {
		return errors.As(err)
	}
	fmt.Fprintln(stdout, hash)
	return nil
}

type VersionCommand struct{}

func (v *VersionCommand) Execute(args []string) error {
	fmt.Fprintf(stdout, "prorest v%s\n", Version)
	return nil
}

func init() {
	parser.AddCommand(
		"login",
		"log in and print the issued token",
		"log in with --username/--password or the [client] section and print the response",
		&LoginCommand{},
	)
	parser.AddCommand(
		"logout",
		"invalidate a token",
		"invalidate --token, or the token of a fresh login",
		&LogoutCommand{},
	)
	parser.AddCommand(
		"call",
		"execute a stored procedure",
		"execute a stored procedure: prorest call NAME [name=value] [name:out[=value]] ...",
		&CallCommand{},
	)
	parser.AddCommand(
		"hash-password",
		"print a bcrypt password for the [user.NAME] section",
		"print a bcrypt password for the [user.NAME] section",
		&HashPasswordCommand{},
	)
	parser.AddCommand(
		"version",
		"print the version",
		"print the version",
		&VersionCommand{},
	)
}
