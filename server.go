package prorest

import (
	"context"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/VictoriaMetrics/metrics"
	"github.com/gorilla/mux"
	"github.com/gwaycc/prorest/config"
	"github.com/gwaylib/errors"
	"github.com/oklog/ulid/v2"
	"github.com/puzpuzpuz/xsync/v3"
	log "github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

const sweepInterval = time.Minute

var ErrServerStarted = errors.New("server already started")

type session struct {
	User    string
	Expires time.Time
}

// Server is a development ProREST service backed by the users and
// procedures of a config file.
type Server struct {
	users      map[string]string
	procedures map[string]config.Procedure

	tokens  *xsync.MapOf[string, session]
	limiter *rate.Limiter
	metrics *metrics.Set
	router  *mux.Router
	now     func() time.Time

	mux        sync.Mutex
	listener   net.Listener
	httpServer *http.Server
	stop       chan struct{}
}

func NewServer(cfg *config.Config) *Server {
	s := &Server{
		users:      cfg.Users,
		procedures: cfg.Procedures,
		tokens:     xsync.NewMapOf[string, session](),
		limiter:    rate.NewLimiter(rate.Limit(cfg.Server.LoginRate), cfg.Server.LoginBurst),
		metrics:    metrics.NewSet(),
		router:     mux.NewRouter(),
		now:        time.Now,
	}
	s.routes()
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Listen binds addr. Serve must be called to accept requests.
func (s *Server) Listen(addr string) (net.Addr, error) {
	s.mux.Lock()
	defer s.mux.Unlock()
	if s.listener != nil {
		return nil, ErrServerStarted.As(addr)
	}
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		log.WithFields(log.Fields{"addr": addr}).Error("fail to listen on address")
		return nil, errors.As(err, addr)
	}
	log.WithFields(log.Fields{"addr": listener.Addr().String()}).Info("success to listen on address")
	s.listener = listener
	s.httpServer = &http.Server{Handler: s}
	s.stop = make(chan struct{})
	return listener.Addr(), nil
}

// Serve blocks until Stop is called.
func (s *Server) Serve() error {
	s.mux.Lock()
	listener, httpServer, stop := s.listener, s.httpServer, s.stop
	s.mux.Unlock()
	if listener == nil {
		return errors.New("server not listening")
	}

	go s.sweep(stop)
	if err := httpServer.Serve(listener); err != nil && err != http.ErrServerClosed {
		return errors.As(err)
	}
	return nil
}

func (s *Server) ListenAndServe(addr string) error {
	if _, err := s.Listen(addr); err != nil {
		return errors.As(err)
	}
	return s.Serve()
}

// Stop closes the listener and waits for active requests up to the
// deadline of ctx.
func (s *Server) Stop(ctx context.Context) error {
	s.mux.Lock()
	defer s.mux.Unlock()
	if s.httpServer == nil {
		return nil
	}
	log.Info("stop listening")
	close(s.stop)
	err := s.httpServer.Shutdown(ctx)
	s.listener = nil
	s.httpServer = nil
	return errors.As(err)
}

func (s *Server) sweep(stop chan struct{}) {
	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			s.purgeExpired()
		}
	}
}

func (s *Server) purgeExpired() int {
	now := s.now()
	n := 0
	s.tokens.Range(func(token string, sess session) bool {
		if !now.Before(sess.Expires) {
			s.tokens.Delete(token)
			n++
		}
		return true
	})
	if n > 0 {
		log.WithField("count", n).Debug("expired tokens removed")
	}
	return n
}

func (s *Server) issue(user string, expireMinutes int) (string, time.Time) {
	token := ulid.Make().String()
	expires := s.now().Add(time.Duration(expireMinutes) * time.Minute)
	s.tokens.Store(token, session{User: user, Expires: expires})
	return token, expires
}

func (s *Server) lookup(token string) (string, bool) {
	sess, ok := s.tokens.Load(token)
	if !ok {
		return "", false
	}
	if !s.now().Before(sess.Expires) {
		s.tokens.Delete(token)
		return "", false
	}
	return sess.User, true
}

func (s *Server) revoke(token string) bool {
	_, ok := s.tokens.LoadAndDelete(token)
	return ok
}

// Sessions is the number of issued tokens not yet removed.
func (s *Server) Sessions() int {
	return s.tokens.Size()
}
