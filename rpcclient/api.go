package rpcclient

import (
	"encoding/json"
	"fmt"
	"reflect"
	"strings"
)

// checkReply accepts nil or a non-nil pointer, anything json can decode into.
func checkReply(ret interface{}) error {
	if ret == nil {
		return nil
	}
	v := reflect.ValueOf(ret)
	if v.Kind() != reflect.Ptr || v.IsNil() {
		return invalid("reply must be nil or a non-nil pointer, got %T", ret)
	}
	return nil
}

type LoginArg struct {
	Username    string `json:"Username"`
	Password    string `json:"Password"`
	TokenExpire int    `json:"TokenExpire"`
}

type LoginRet struct {
	Token string `json:"Token"`
	// the complete response body
	Raw json.RawMessage `json:"-"`
}

func checkLogin(username, password string, tokenExpire int) error {
	if len(username) == 0 {
		return invalid("empty username")
	}
	if len(password) == 0 {
		return invalid("empty password")
	}
	if tokenExpire <= 0 {
		return invalid("token expire must be positive, got %d", tokenExpire)
	}
	return nil
}

// GoLogin authenticates asynchronously. On success the issued token becomes
// the session token before the call is delivered; on failure it is untouched.
func (r *RPCClient) GoLogin(username, password string, tokenExpire int, done chan *Call) *Call {
	in := &LoginArg{Username: username, Password: password, TokenExpire: tokenExpire}
	ret := &LoginRet{}
	if err := checkLogin(username, password, tokenExpire); err != nil {
		return r.failCall(LoginPath, in, ret, done, err)
	}
	raw := &json.RawMessage{}
	return r.goCallThen(LoginPath, in, ret, done, raw, func(call *Call) error {
		malformed := &Failure{
			Kind:       ErrMalformedResponse,
			Url:        r.Url(LoginPath),
			StatusCode: 200,
			Body:       *raw,
		}
		if err := json.Unmarshal(*raw, ret); err != nil {
			malformed.Err = err
			return malformed
		}
		if len(ret.Token) == 0 {
			malformed.Err = fmt.Errorf("no Token in login response")
			return malformed
		}
		ret.Raw = *raw
		r.SetToken(ret.Token)
		return nil
	})
}

func (r *RPCClient) Login(username, password string, tokenExpire int) (*LoginRet, error) {
	call := r.GoLogin(username, password, tokenExpire, nil)
	if err := wait(call); err != nil {
		return nil, err
	}
	return call.Reply.(*LoginRet), nil
}

type LogoutArg struct {
	Token string `json:"Token"`
}

// GoLogout asks the service to drop the current token. The local token is
// kept; use SetToken to reset it.
func (r *RPCClient) GoLogout(ret interface{}, done chan *Call) *Call {
	token := r.Token()
	in := &LogoutArg{Token: token}
	if err := checkReply(ret); err != nil {
		return r.failCall(LogoutPath, in, ret, done, err)
	}
	return r.goCall(LogoutPath, token, in, ret, done)
}

// Logout decodes the response into ret, which may be nil.
func (r *RPCClient) Logout(ret interface{}) error {
	return wait(r.GoLogout(ret, nil))
}

type StoredProcedureParameter struct {
	Name     string `json:"Name"`
	Value    string `json:"Value"`
	IsOutput bool   `json:"IsOutput"`
}

// NewParameter builds an input parameter.
func NewParameter(name, value string) StoredProcedureParameter {
	return StoredProcedureParameter{Name: name, Value: value}
}

func NewOutputParameter(name, value string) StoredProcedureParameter {
	return StoredProcedureParameter{Name: name, Value: value, IsOutput: true}
}

type StoredProcedureArg struct {
	StoredProcedure string                     `json:"StoredProcedure"`
	Parameters      []StoredProcedureParameter `json:"Parameters"`
}

// NewStoredProcedureArg keeps the parameter order as given. A nil list is
// sent as an empty array.
func NewStoredProcedureArg(name string, params []StoredProcedureParameter) *StoredProcedureArg {
	if params == nil {
		params = []StoredProcedureParameter{}
	}
	return &StoredProcedureArg{StoredProcedure: name, Parameters: params}
}

func (r *RPCClient) GoStoredProcedure(name string, params []StoredProcedureParameter, ret interface{}, done chan *Call) *Call {
	in := NewStoredProcedureArg(name, params)
	if len(strings.TrimSpace(name)) == 0 {
		return r.failCall(StoredProcedurePath, in, ret, done, invalid("empty stored procedure name"))
	}
	if err := checkReply(ret); err != nil {
		return r.failCall(StoredProcedurePath, in, ret, done, err)
	}
	return r.goCall(StoredProcedurePath, r.Token(), in, ret, done)
}

// StoredProcedure executes name and decodes the response into ret. Pass a
// *json.RawMessage to keep the body as is, or nil to discard it.
func (r *RPCClient) StoredProcedure(name string, params []StoredProcedureParameter, ret interface{}) error {
	return wait(r.GoStoredProcedure(name, params, ret, nil))
}
