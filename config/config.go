package config

import (
	"encoding/json"
	"io/ioutil"
	"strings"
	"time"

	"github.com/gwaycc/prorest/filebak"
	"github.com/gwaylib/errors"
	ini "gopkg.in/ini.v1"
)

const (
	DefaultTokenExpire = 60
	DefaultTimeout     = 30 * time.Second
	DefaultListen      = "127.0.0.1:8080"
	DefaultLoginRate   = 5.0
	DefaultLoginBurst  = 10

	userPrefix      = "user."
	procedurePrefix = "procedure."
)

var (
	ErrBadConfig = errors.New("bad config")
)

type ClientConfig struct {
	Url         string
	Username    string
	Password    string
	TokenExpire int
	Timeout     time.Duration
}

type LogConfig struct {
	Level   string
	File    string
	MaxSize int64
	Backups int
}

type ServerConfig struct {
	Listen     string
	LoginRate  float64
	LoginBurst int
}

// Procedure is a stored procedure served by the stub server.
type Procedure struct {
	Name   string
	Params []string
	Result json.RawMessage
}

type Config struct {
	Client ClientConfig
	Log    LogConfig
	Server ServerConfig

	// user name -> password, plain or "{BCRYPT}<hash>"
	Users      map[string]string
	Procedures map[string]Procedure
}

func Default() *Config {
	return &Config{
		Client: ClientConfig{
			TokenExpire: DefaultTokenExpire,
			Timeout:     DefaultTimeout,
		},
		Log: LogConfig{
			Level:   "info",
			MaxSize: filebak.DefaultMaxSize,
			Backups: filebak.DefaultBackups,
		},
		Server: ServerConfig{
			Listen:     DefaultListen,
			LoginRate:  DefaultLoginRate,
			LoginBurst: DefaultLoginBurst,
		},
		Users:      map[string]string{},
		Procedures: map[string]Procedure{},
	}
}

// Load reads an ini file. The file content goes through Decode first.
func Load(fileName string) (*Config, error) {
	data, err := ioutil.ReadFile(fileName)
	if err != nil {
		return nil, errors.As(err, fileName)
	}
	plain, err := Decode(data, ConfKey)
	if err != nil {
		return nil, errors.As(err, fileName)
	}
	cfg, err := Parse(plain)
	if err != nil {
		return nil, errors.As(err, fileName)
	}
	return cfg, nil
}

func Parse(data []byte) (*Config, error) {
	// result values are JSON and may contain '#' or ';'
	f, err := ini.LoadSources(ini.LoadOptions{IgnoreInlineComment: true}, data)
	if err != nil {
		return nil, ErrBadConfig.As(err)
	}
	cfg := Default()

	client := f.Section("client")
	cfg.Client.Url = client.Key("url").String()
	cfg.Client.Username = client.Key("username").String()
	cfg.Client.Password = client.Key("password").String()
	cfg.Client.TokenExpire = client.Key("token_expire").MustInt(DefaultTokenExpire)
	cfg.Client.Timeout = client.Key("timeout").MustDuration(DefaultTimeout)
	if cfg.Client.TokenExpire <= 0 {
		return nil, ErrBadConfig.As("client.token_expire", cfg.Client.TokenExpire)
	}

	log := f.Section("log")
	cfg.Log.Level = log.Key("level").MustString(cfg.Log.Level)
	cfg.Log.File = log.Key("file").String()
	cfg.Log.Backups = log.Key("backups").MustInt(cfg.Log.Backups)
	if log.HasKey("max_size") {
		size, err := filebak.StrToSize(log.Key("max_size").String())
		if err != nil {
			return nil, ErrBadConfig.As("log.max_size", err)
		}
		cfg.Log.MaxSize = size
	}

	server := f.Section("server")
	cfg.Server.Listen = server.Key("listen").MustString(DefaultListen)
	cfg.Server.LoginRate = server.Key("login_rate").MustFloat64(DefaultLoginRate)
	cfg.Server.LoginBurst = server.Key("login_burst").MustInt(DefaultLoginBurst)

	for _, sec := range f.Sections() {
		name := sec.Name()
		switch {
		case strings.HasPrefix(name, userPrefix):
			user := strings.TrimPrefix(name, userPrefix)
			if len(user) == 0 {
				return nil, ErrBadConfig.As("empty user name")
			}
			cfg.Users[user] = sec.Key("password").String()
		case strings.HasPrefix(name, procedurePrefix):
			proc, err := parseProcedure(strings.TrimPrefix(name, procedurePrefix), sec)
			if err != nil {
				return nil, errors.As(err)
			}
			cfg.Procedures[proc.Name] = proc
		}
	}
	return cfg, nil
}

func parseProcedure(name string, sec *ini.Section) (Procedure, error) {
	if len(name) == 0 {
		return Procedure{}, ErrBadConfig.As("empty procedure name")
	}
	proc := Procedure{Name: name, Result: json.RawMessage("null")}
	for _, p := range strings.Split(sec.Key("params").String(), ",") {
		if p = strings.TrimSpace(p); len(p) > 0 {
			proc.Params = append(proc.Params, p)
		}
	}
	if result := strings.TrimSpace(sec.Key("result").String()); len(result) > 0 {
		if !json.Valid([]byte(result)) {
			return Procedure{}, ErrBadConfig.As("procedure result is not json", name)
		}
		proc.Result = json.RawMessage(result)
	}
	return proc, nil
}
