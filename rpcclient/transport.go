package rpcclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io/ioutil"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/VictoriaMetrics/metrics"
	"github.com/gwaylib/errors"
	log "github.com/sirupsen/logrus"
)

const (
	LoginPath           = "/Login"
	LogoutPath          = "/Logout"
	StoredProcedurePath = "/StoredProcedure"

	HeaderApiKey      = "ProRest-ApiKey"
	HeaderContentType = "Content-Type"
	ContentTypeJSON   = "application/json"

	DefaultTimeout = 30 * time.Second
)

var (
	// non-200 status or a network level error
	ErrTransport = errors.New("transport failure")
	// status 200 with a body that is not the expected json
	ErrMalformedResponse = errors.New("malformed response")
	// rejected before any request was sent
	ErrInvalidArgument = errors.New("invalid argument")
)

// Failure is the raw result of a call that did not succeed. StatusCode is 0
// when no response was received.
type Failure struct {
	Kind       errors.Error
	Url        string
	StatusCode int
	Status     string
	Header     http.Header
	Body       []byte
	Err        error
}

func (f *Failure) Error() string {
	msg := f.Kind.Code()
	if len(f.Url) > 0 {
		msg += " " + f.Url
	}
	if len(f.Status) > 0 {
		msg += " " + f.Status
	}
	if f.Err != nil {
		msg += ": " + f.Err.Error()
	}
	return msg
}

func invalid(format string, args ...interface{}) *Failure {
	return &Failure{Kind: ErrInvalidArgument, Err: fmt.Errorf(format, args...)}
}

func (f *Failure) label() string {
	switch {
	case f.Is(ErrTransport):
		return "transport"
	case f.Is(ErrMalformedResponse):
		return "malformed"
	case f.Is(ErrInvalidArgument):
		return "invalid"
	}
	return "unknown"
}

func (f *Failure) Is(kind errors.Error) bool {
	return errors.Equal(f.Kind, kind)
}

// AsFailure returns the *Failure carried by a call error. Failures are never
// wrapped by this package so a type assertion is enough.
func AsFailure(err error) (*Failure, bool) {
	f, ok := err.(*Failure)
	return f, ok
}

func IsKind(err error, kind errors.Error) bool {
	f, ok := AsFailure(err)
	return ok && f.Is(kind)
}

// Call is an in-flight or completed request. Done receives the call exactly
// once; Error is nil on success. Several calls may share one Done channel of
// any capacity; a full channel delays delivery until it is read.
type Call struct {
	Path   string
	ApiKey string
	Args   interface{}
	Reply  interface{}
	Error  error
	Done   chan *Call
}

func (call *Call) done() {
	select {
	case call.Done <- call:
	default:
		go func() { call.Done <- call }()
	}
}

func newCall(path, apiKey string, args, reply interface{}, done chan *Call) *Call {
	if done == nil {
		done = make(chan *Call, 1)
	} else if cap(done) == 0 {
		panic("rpcclient: done channel is unbuffered")
	}
	return &Call{Path: path, ApiKey: apiKey, Args: args, Reply: reply, Done: done}
}

type Client interface {
	Close() error
	Url(path string) string
	SetHTTPClient(hc *http.Client)
	// Go posts args as json to path with the given api key. When the call
	// completes it is sent on done; a nil done allocates a new channel.
	Go(ctx context.Context, path, apiKey string, args interface{}, reply interface{}, done chan *Call) *Call
}

type httpClient struct {
	baseUrl string
	verbose bool

	mux    sync.Mutex
	client *http.Client
}

// NewHTTPClient returns a transport for the service at address. A single
// trailing slash of address is dropped.
func NewHTTPClient(address string, verbose bool) Client {
	return &httpClient{
		baseUrl: strings.TrimSuffix(address, "/"),
		verbose: verbose,
		client:  &http.Client{Timeout: DefaultTimeout},
	}
}

func (hc *httpClient) Url(path string) string {
	return hc.baseUrl + path
}

func (hc *httpClient) SetHTTPClient(c *http.Client) {
	hc.mux.Lock()
	defer hc.mux.Unlock()
	hc.client = c
}

func (hc *httpClient) Close() error {
	hc.mux.Lock()
	c := hc.client
	hc.mux.Unlock()
	c.CloseIdleConnections()
	return nil
}

func (hc *httpClient) Go(ctx context.Context, path, apiKey string, args interface{}, reply interface{}, done chan *Call) *Call {
	call := newCall(path, apiKey, args, reply, done)
	body, err := json.Marshal(args)
	if err != nil {
		call.Error = &Failure{Kind: ErrInvalidArgument, Url: hc.Url(path), Err: err}
		call.done()
		return call
	}
	hc.mux.Lock()
	c := hc.client
	hc.mux.Unlock()

	go func() {
		call.Error = hc.send(ctx, c, call, body)
		call.done()
	}()
	return call
}

func (hc *httpClient) send(ctx context.Context, c *http.Client, call *Call, body []byte) (failure error) {
	url := hc.Url(call.Path)
	start := time.Now()
	logger := log.WithFields(log.Fields{"url": url})
	defer func() {
		result := "ok"
		if f, ok := failure.(*Failure); ok {
			result = f.label()
			logger.WithField("status", f.StatusCode).Warn(f.Error())
		}
		metrics.GetOrCreateCounter(fmt.Sprintf(`prorest_client_requests_total{path=%q,result=%q}`, call.Path, result)).Inc()
		metrics.GetOrCreateHistogram(fmt.Sprintf(`prorest_client_request_duration_seconds{path=%q}`, call.Path)).UpdateDuration(start)
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return &Failure{Kind: ErrTransport, Url: url, Err: err}
	}
	req.Header.Set(HeaderContentType, ContentTypeJSON)
	req.Header.Set(HeaderApiKey, call.ApiKey)

	resp, err := c.Do(req)
	if err != nil {
		return &Failure{Kind: ErrTransport, Url: url, Err: err}
	}
	defer resp.Body.Close()

	data, err := ioutil.ReadAll(resp.Body)
	failed := &Failure{
		Kind:       ErrTransport,
		Url:        url,
		StatusCode: resp.StatusCode,
		Status:     resp.Status,
		Header:     resp.Header,
		Body:       data,
		Err:        err,
	}
	if resp.StatusCode != http.StatusOK || err != nil {
		return failed
	}
	if hc.verbose {
		logger.WithField("status", resp.StatusCode).Info("prorest request done")
	} else {
		logger.WithField("status", resp.StatusCode).Debug("prorest request done")
	}

	failed.Kind = ErrMalformedResponse
	if !json.Valid(data) {
		return failed
	}
	if call.Reply == nil {
		return nil
	}
	if raw, ok := call.Reply.(*json.RawMessage); ok {
		*raw = append((*raw)[:0], data...)
		return nil
	}
	if err := json.Unmarshal(data, call.Reply); err != nil {
		failed.Err = err
		return failed
	}
	return nil
}
