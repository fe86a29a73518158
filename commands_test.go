package prorest

import (
	"bytes"
	"encoding/json"
	"io/ioutil"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gwaycc/prorest/rpcclient"
	"github.com/gwaylib/errors"
)

func TestParseParams(t *testing.T) {
	params, err := parseParams([]string{"id=5", "name=a=b", "total:out", "msg:out=init", "empty="})
	if err != nil {
		t.Fatal(err)
	}
	expect := []rpcclient.StoredProcedureParameter{
		{Name: "id", Value: "5"},
		{Name: "name", Value: "a=b"},
		{Name: "total", IsOutput: true},
		{Name: "msg", Value: "init", IsOutput: true},
		{Name: "empty", Value: ""},
	}
	if len(params) != len(expect) {
		t.Fatalf("expect:%d,but:%d", len(expect), len(params))
	}
	for i := range expect {
		if params[i] != expect[i] {
			t.Fatalf("expect:%+v,but:%+v,index:%d", expect[i], params[i], i)
		}
	}

	for i, arg := range []string{"id", "=5", ":out", ":out=1"} {
		if _, err := parseParams([]string{arg}); !errors.Equal(err, ErrBadParameter) {
			t.Fatalf("expect ErrBadParameter,but:%v,index:%d", err, i)
		}
	}
}

func TestPrintResult(t *testing.T) {
	v := json.RawMessage(`{"StoredProcedure":"GetUsers","Result":[{"Id":5}]}`)

	buf := &bytes.Buffer{}
	if err := printResult(buf, "json", v); err != nil {
		t.Fatal(err)
	}
	expect := "{\n  \"StoredProcedure\": \"GetUsers\",\n  \"Result\": [\n    {\n      \"Id\": 5\n    }\n  ]\n}\n"
	if buf.String() != expect {
		t.Fatalf("expect:%q,but:%q", expect, buf.String())
	}

	buf.Reset()
	if err := printResult(buf, "yaml", v); err != nil {
		t.Fatal(err)
	}
	expect = "Result:\n    - Id: 5\nStoredProcedure: GetUsers\n"
	if buf.String() != expect {
		t.Fatalf("expect:%q,but:%q", expect, buf.String())
	}

	if err := printResult(buf, "xml", v); err == nil {
		t.Fatal("expect error")
	}
}

// withOptions runs fn with the global options and output replaced.
func withOptions(t *testing.T, opts Options, fn func(out *bytes.Buffer)) {
	oldOpts, oldOut := options, stdout
	defer func() { options, stdout = oldOpts, oldOut }()
	if len(opts.LogFile) == 0 {
		opts.LogFile = "/dev/null"
	}
	options = opts
	out := &bytes.Buffer{}
	stdout = out
	fn(out)
}

func TestCallCommand(t *testing.T) {
	_, ts, _ := newTestServer(t, testConfig())
	opts := Options{Url: ts.URL + "/", Username: "alice", Password: "secret", Output: "json"}
	withOptions(t, opts, func(out *bytes.Buffer) {
		cmd := &CallCommand{}
		cmd.Args.Procedure = "GetUsers"
		cmd.Args.Params = []string{"id=5", "total:out=0"}
		if err := cmd.Execute(nil); err != nil {
			t.Fatal(err)
		}
		reply := &StoredProcedureReply{}
		if err := json.Unmarshal(out.Bytes(), reply); err != nil {
			t.Fatal(err)
		}
		if reply.StoredProcedure != "GetUsers" || reply.Output["total"] != "0" {
			t.Fatalf("unexpected reply:%+v", reply)
		}
	})
}

func TestCallCommandErrors(t *testing.T) {
	_, ts, _ := newTestServer(t, testConfig())

	withOptions(t, Options{Url: ts.URL, Output: "json"}, func(out *bytes.Buffer) {
		cmd := &CallCommand{}
		cmd.Args.Procedure = "Ping"
		if err := cmd.Execute(nil); !errors.Equal(err, ErrNoCredentials) {
			t.Fatalf("expect ErrNoCredentials,but:%v", err)
		}
	})
	withOptions(t, Options{Output: "json", Token: "x"}, func(out *bytes.Buffer) {
		cmd := &CallCommand{}
		cmd.Args.Procedure = "Ping"
		if err := cmd.Execute(nil); !errors.Equal(err, ErrNoUrl) {
			t.Fatalf("expect ErrNoUrl,but:%v", err)
		}
	})
	withOptions(t, Options{Url: ts.URL, Token: "unknown", Output: "json"}, func(out *bytes.Buffer) {
		cmd := &CallCommand{}
		cmd.Args.Procedure = "Ping"
		err := cmd.Execute(nil)
		if err == nil || !strings.Contains(err.Error(), "invalid or expired api key") {
			t.Fatalf("expect api key error,but:%v", err)
		}
		if out.Len() != 0 {
			t.Fatalf("unexpected output:%s", out.String())
		}
	})
}

func TestLoginLogoutCommand(t *testing.T) {
	srv, ts, _ := newTestServer(t, testConfig())
	opts := Options{Url: ts.URL, Username: "alice", Password: "secret", Expire: 3, Output: "yaml"}
	withOptions(t, opts, func(out *bytes.Buffer) {
		if err := (&LoginCommand{}).Execute(nil); err != nil {
			t.Fatal(err)
		}
		if !strings.HasPrefix(out.String(), "Expires: ") || !strings.Contains(out.String(), "Token: ") {
			t.Fatalf("unexpected output:%s", out.String())
		}
	})
	if srv.Sessions() != 1 {
		t.Fatalf("expect 1 session,but:%d", srv.Sessions())
	}

	opts.Output = "json"
	withOptions(t, opts, func(out *bytes.Buffer) {
		if err := (&LogoutCommand{}).Execute(nil); err != nil {
			t.Fatal(err)
		}
		if strings.TrimSpace(out.String()) != "{\n  \"Success\": true\n}" {
			t.Fatalf("unexpected output:%q", out.String())
		}
	})
	if srv.Sessions() != 1 {
		t.Fatalf("expect the first session to remain,but:%d", srv.Sessions())
	}
}

func TestLoadConfigOverride(t *testing.T) {
	name := filepath.Join(t.TempDir(), "prorest.ini")
	data := "[client]\nurl = http://a/\nusername = alice\npassword = p\ntoken_expire = 5\n"
	if err := ioutil.WriteFile(name, []byte(data), 0600); err != nil {
		t.Fatal(err)
	}
	cfg, err := loadConfig(&Options{Config: name, Url: "http://b/", Expire: 9})
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Client.Url != "http://b/" || cfg.Client.Username != "alice" || cfg.Client.TokenExpire != 9 {
		t.Fatalf("unexpected client:%+v", cfg.Client)
	}
}

func TestEncodeDecodeCommand(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "prorest.ini")
	dat := filepath.Join(dir, "prorest.dat")
	if err := ioutil.WriteFile(in, []byte("[client]\nurl = http://a/\n"), 0600); err != nil {
		t.Fatal(err)
	}
	withOptions(t, Options{}, func(out *bytes.Buffer) {
		if err := (&EncodeCommand{Out: dat}).Execute([]string{in}); err != nil {
			t.Fatal(err)
		}
		out.Reset()
		if err := (&DecodeCommand{}).Execute([]string{dat}); err != nil {
			t.Fatal(err)
		}
		if out.String() != "[client]\nurl = http://a/\n" {
			t.Fatalf("unexpected output:%q", out.String())
		}
		if err := (&EncodeCommand{Key: "wrong"}).Execute([]string{in}); !errors.Equal(err, ErrKeyNotMatch) {
			t.Fatalf("expect ErrKeyNotMatch,but:%v", err)
		}
	})
}
