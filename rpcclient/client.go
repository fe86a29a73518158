package rpcclient

import (
	"context"
	"net/http"
	"sync"
)

// NotLoggedIn is the api key sent before the first successful login.
const NotLoggedIn = "Not yet logged in"

// RPCClient holds the session of one ProREST service: its base url and the
// current token. It is safe for concurrent use; the token is read once when a
// call is issued, so a login still in flight does not affect calls already sent.
type RPCClient struct {
	serverurl string
	verbose   bool

	mux   sync.RWMutex
	token string

	client Client
	ctx    context.Context
}

func NewRPCClient(serverurl string, verbose bool) *RPCClient {
	return &RPCClient{
		serverurl: serverurl,
		verbose:   verbose,
		token:     NotLoggedIn,
		client:    NewHTTPClient(serverurl, verbose),
		ctx:       context.TODO(),
	}
}

// SetHTTPClient replaces the http client used for subsequent calls, e.g. to
// change the timeout or the TLS config.
func (r *RPCClient) SetHTTPClient(hc *http.Client) {
	r.client.SetHTTPClient(hc)
}

func (r *RPCClient) SetToken(token string) {
	r.mux.Lock()
	defer r.mux.Unlock()
	r.token = token
}

func (r *RPCClient) Token() string {
	r.mux.RLock()
	defer r.mux.RUnlock()
	return r.token
}

func (r *RPCClient) Url(path string) string {
	return r.client.Url(path)
}

func (r *RPCClient) Close() error {
	return r.client.Close()
}

// goCall sends with apiKey, which the caller read from the session once.
func (r *RPCClient) goCall(path, apiKey string, in, ret interface{}, done chan *Call) *Call {
	return r.client.Go(r.ctx, path, apiKey, in, ret, done)
}

// goCallThen runs then on a successful call before the call is delivered on
// done. An error from then turns the call into a failure.
func (r *RPCClient) goCallThen(path string, in, ret interface{}, done chan *Call, inner interface{}, then func(*Call) error) *Call {
	outer := newCall(path, r.Token(), in, ret, done)
	sent := r.client.Go(r.ctx, path, outer.ApiKey, in, inner, make(chan *Call, 1))
	go func() {
		c := <-sent.Done
		outer.Error = c.Error
		if outer.Error == nil {
			outer.Error = then(outer)
		}
		outer.done()
	}()
	return outer
}

// failCall delivers err without sending anything.
func (r *RPCClient) failCall(path string, in, ret interface{}, done chan *Call, err error) *Call {
	call := newCall(path, r.Token(), in, ret, done)
	call.Error = err
	call.done()
	return call
}

func wait(call *Call) error {
	return (<-call.Done).Error
}
