package prorest

import (
	"crypto/sha1"
	"crypto/subtle"
	"encoding/hex"
	"io"
	"net/http"
	"strings"

	"github.com/gwaycc/prorest/rpcclient"
	log "github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"
)

const (
	shaPrefix    = "{SHA}"
	bcryptPrefix = "{BCRYPT}"
)

// checkPassword compares against a stored password that is plain,
// "{SHA}<hex sha1>" or "{BCRYPT}<bcrypt hash>".
func checkPassword(stored, password string) bool {
	if len(stored) == 0 || len(password) == 0 {
		return false
	}
	switch {
	case strings.HasPrefix(stored, shaPrefix):
		hash := sha1.New()
		io.WriteString(hash, password)
		sum := hex.EncodeToString(hash.Sum(nil))
		return subtle.ConstantTimeCompare([]byte(sum), []byte(stored[len(shaPrefix):])) == 1
	case strings.HasPrefix(stored, bcryptPrefix):
		return bcrypt.CompareHashAndPassword([]byte(stored[len(bcryptPrefix):]), []byte(password)) == nil
	}
	return subtle.ConstantTimeCompare([]byte(stored), []byte(password)) == 1
}

// HashPassword returns a "{BCRYPT}" value for the [user.NAME] password key.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return bcryptPrefix + string(hash), nil
}

type apiKeyAuth struct {
	server  *Server
	handler http.Handler
}

func (h *apiKeyAuth) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	token := r.Header.Get(rpcclient.HeaderApiKey)
	user, ok := h.server.lookup(token)
	if !ok {
		log.WithFields(log.Fields{"path": r.URL.Path, "remote": r.RemoteAddr}).Debug("rejected api key")
		h.server.count(r.URL.Path, http.StatusUnauthorized)
		writeError(w, http.StatusUnauthorized, "invalid or expired api key")
		return
	}
	log.WithFields(log.Fields{"path": r.URL.Path, "user": user}).Debug("api key accepted")
	h.handler.ServeHTTP(w, r)
}
