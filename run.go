package prorest

import (
	"io"
	"net/http"
	"os"

	"github.com/gwaycc/prorest/config"
	"github.com/gwaycc/prorest/logger"
	"github.com/gwaycc/prorest/rpcclient"
	"github.com/gwaylib/errors"
	"github.com/jessevdk/go-flags"
	"github.com/joho/godotenv"
)

const Version = "1.0.0"

type Options struct {
	Config   string `short:"c" long:"config" env:"PROREST_CONFIG" description:"ini config file"`
	Url      string `short:"u" long:"url" env:"PROREST_URL" description:"base url of the ProREST service, including /api"`
	Token    string `short:"t" long:"token" env:"PROREST_TOKEN" description:"api key to use instead of logging in"`
	Username string `long:"username" env:"PROREST_USERNAME" description:"login user"`
	Password string `long:"password" env:"PROREST_PASSWORD" description:"login password"`
	Expire   int    `long:"expire" env:"PROREST_TOKEN_EXPIRE" description:"token lifetime in minutes"`
	Output   string `short:"o" long:"output" default:"json" choice:"json" choice:"yaml" description:"output format"`
	LogLevel string `long:"log-level" env:"PROREST_LOG_LEVEL" description:"debug, info, warn or error"`
	LogFile  string `long:"log-file" env:"PROREST_LOG_FILE" description:"log file, /dev/stdout, /dev/stderr or /dev/null"`
	Verbose  bool   `short:"v" long:"verbose" description:"log every request"`
}

var (
	options Options
	parser  = flags.NewParser(&options, flags.Default)

	// command output
	stdout io.Writer = os.Stdout
)

// loadConfig merges the config file with the command line; flags win.
func loadConfig(opts *Options) (*config.Config, error) {
	cfg := config.Default()
	if len(opts.Config) > 0 {
		c, err := config.Load(opts.Config)
		if err != nil {
			return nil, errors.As(err)
		}
		cfg = c
	}
	if len(opts.Url) > 0 {
		cfg.Client.Url = opts.Url
	}
	if len(opts.Username) > 0 {
		cfg.Client.Username = opts.Username
	}
	if len(opts.Password) > 0 {
		cfg.Client.Password = opts.Password
	}
	if opts.Expire > 0 {
		cfg.Client.TokenExpire = opts.Expire
	}
	if len(opts.LogLevel) > 0 {
		cfg.Log.Level = opts.LogLevel
	}
	if len(opts.LogFile) > 0 {
		cfg.Log.File = opts.LogFile
	}
	return cfg, nil
}

// setup loads the config and initializes logging. The closer releases the
// log file.
func setup(opts *Options) (*config.Config, io.Closer, error) {
	cfg, err := loadConfig(opts)
	if err != nil {
		return nil, nil, errors.As(err)
	}
	closer, err := logger.Init(logger.Options{
		Level:   cfg.Log.Level,
		File:    cfg.Log.File,
		MaxSize: cfg.Log.MaxSize,
		Backups: cfg.Log.Backups,
	})
	if err != nil {
		return nil, nil, errors.As(err)
	}
	return cfg, closer, nil
}

var ErrNoUrl = errors.New("no service url, use --url or [client] url")

func newClient(cfg *config.Config, verbose bool) (*rpcclient.RPCClient, error) {
	if len(cfg.Client.Url) == 0 {
		return nil, ErrNoUrl
	}
	client := rpcclient.NewRPCClient(cfg.Client.Url, verbose)
	if cfg.Client.Timeout > 0 {
		client.SetHTTPClient(&http.Client{Timeout: cfg.Client.Timeout})
	}
	return client, nil
}

// loadEnv reads PROREST_ENV_FILE, or .env when present, so that the env
// defaults of the options can come from a file.
func loadEnv() error {
	if name := os.Getenv("PROREST_ENV_FILE"); len(name) > 0 {
		return errors.As(godotenv.Load(name), name)
	}
	if _, err := os.Stat(".env"); err != nil {
		return nil
	}
	return errors.As(godotenv.Load())
}

func Run() {
	if err := loadEnv(); err != nil {
		os.Stderr.WriteString(err.Error() + "\n")
		os.Exit(1)
	}
	if _, err := parser.Parse(); err != nil {
		if flagsErr, ok := err.(*flags.Error); ok && flagsErr.Type == flags.ErrHelp {
			os.Exit(0)
		}
		os.Exit(1)
	}
}
