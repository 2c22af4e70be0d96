package webserver

import (
	"net/http"

	"github.com/sirupsen/logrus"
)

// logRequests is an http middleware. It accepts an http.Handler and
// returns a new http.Handler which logs every request before passing
// it on.
func (web *WebServer) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		web.log.WithFields(logrus.Fields{
			"method": req.Method,
			"path":   req.URL.Path,
			"remote": req.RemoteAddr,
		}).Debug("http request")
		next.ServeHTTP(w, req)
	})
}
