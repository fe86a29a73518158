package prorest

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/gwaycc/prorest/rpcclient"
	log "github.com/sirupsen/logrus"
)

const maxBodySize = 1 << 20

type LoginReply struct {
	Token   string
	Expires time.Time
}

type LogoutReply struct {
	Success bool
}

type StoredProcedureReply struct {
	StoredProcedure string
	Result          json.RawMessage
	Output          map[string]string
}

func (s *Server) routes() {
	s.router.HandleFunc(rpcclient.LoginPath, s.Login).Methods(http.MethodPost)
	s.router.HandleFunc(rpcclient.LogoutPath, s.Logout).Methods(http.MethodPost)
	s.router.Handle(rpcclient.StoredProcedurePath, &apiKeyAuth{server: s, handler: http.HandlerFunc(s.StoredProcedure)}).Methods(http.MethodPost)
	s.router.HandleFunc("/metrics", func(w http.ResponseWriter, req *http.Request) {
		s.metrics.WritePrometheus(w)
	}).Methods(http.MethodGet)
}

func (s *Server) count(path string, status int) {
	s.metrics.GetOrCreateCounter(fmt.Sprintf(`prorest_server_requests_total{path=%q,status="%d"}`, path, status)).Inc()
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set(rpcclient.HeaderContentType, rpcclient.ContentTypeJSON)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.WithField("error", err).Warn("write response")
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set(rpcclient.HeaderContentType, "text/plain; charset=utf-8")
	w.WriteHeader(status)
	w.Write([]byte(msg))
}

func (s *Server) decode(w http.ResponseWriter, req *http.Request, v interface{}) bool {
	defer req.Body.Close()
	if err := json.NewDecoder(http.MaxBytesReader(w, req.Body, maxBodySize)).Decode(v); err != nil {
		s.count(req.URL.Path, http.StatusBadRequest)
		writeError(w, http.StatusBadRequest, "not a valid request")
		return false
	}
	return true
}

func (s *Server) fail(w http.ResponseWriter, req *http.Request, status int, msg string) {
	s.count(req.URL.Path, status)
	writeError(w, status, msg)
}

func (s *Server) Login(w http.ResponseWriter, req *http.Request) {
	in := &rpcclient.LoginArg{}
	if !s.decode(w, req, in) {
		return
	}
	if len(in.Username) == 0 || len(in.Password) == 0 || in.TokenExpire <= 0 {
		s.fail(w, req, http.StatusBadRequest, "username, password and a positive TokenExpire are required")
		return
	}
	if !s.limiter.Allow() {
		log.WithFields(log.Fields{"user": in.Username, "remote": req.RemoteAddr}).Warn("login rate exceeded")
		s.fail(w, req, http.StatusTooManyRequests, "too many login attempts")
		return
	}
	if !checkPassword(s.users[in.Username], in.Password) {
		log.WithFields(log.Fields{"user": in.Username, "remote": req.RemoteAddr}).Info("login rejected")
		s.fail(w, req, http.StatusUnauthorized, "invalid username or password")
		return
	}
	token, expires := s.issue(in.Username, in.TokenExpire)
	log.WithFields(log.Fields{"user": in.Username, "expires": expires.Format(time.RFC3339)}).Info("login")
	s.count(req.URL.Path, http.StatusOK)
	writeJSON(w, &LoginReply{Token: token, Expires: expires})
}

func (s *Server) Logout(w http.ResponseWriter, req *http.Request) {
	in := &rpcclient.LogoutArg{}
	if !s.decode(w, req, in) {
		return
	}
	if !s.revoke(in.Token) {
		s.fail(w, req, http.StatusUnauthorized, "unknown token")
		return
	}
	s.count(req.URL.Path, http.StatusOK)
	writeJSON(w, &LogoutReply{Success: true})
}

func (s *Server) StoredProcedure(w http.ResponseWriter, req *http.Request) {
	in := &rpcclient.StoredProcedureArg{}
	if !s.decode(w, req, in) {
		return
	}
	if len(in.StoredProcedure) == 0 {
		s.fail(w, req, http.StatusBadRequest, "StoredProcedure is required")
		return
	}
	proc, ok := s.procedures[in.StoredProcedure]
	if !ok {
		s.fail(w, req, http.StatusNotFound, "unknown stored procedure: "+in.StoredProcedure)
		return
	}

	inputs := map[string]bool{}
	out := &StoredProcedureReply{
		StoredProcedure: proc.Name,
		Result:          proc.Result,
		Output:          map[string]string{},
	}
	for _, p := range in.Parameters {
		if p.IsOutput {
			out.Output[p.Name] = p.Value
			continue
		}
		inputs[p.Name] = true
	}
	for _, name := range proc.Params {
		if !inputs[name] {
			s.fail(w, req, http.StatusBadRequest, "missing parameter: "+name)
			return
		}
	}
	log.WithFields(log.Fields{"procedure": proc.Name, "params": len(in.Parameters)}).Debug("stored procedure")
	s.count(req.URL.Path, http.StatusOK)
	writeJSON(w, out)
}
