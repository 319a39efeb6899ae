package ws

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"chatcore/internal/security"
)

// MakeHandler returns the /ws upgrade entry point: it checks the Origin,
// verifies the bearer token via the Token Verifier, upgrades
// the connection, and runs a Connection Supervisor on the request's goroutine
// until the socket closes.
func MakeHandler(verifier *security.TokenVerifier, deps Deps, allowedOrigins []string, log *logrus.Entry) http.HandlerFunc {
	if deps.Heartbeat <= 0 {
		deps.Heartbeat = 30 * time.Second
	}
	checkOrigin := makeCheckOrigin(allowedOrigins)
	upgrader := websocket.Upgrader{
		CheckOrigin: checkOrigin,
		Subprotocols: []string{
			"bearer",
		},
	}

	return func(w http.ResponseWriter, r *http.Request) {
		if !checkOrigin(r) {
			http.Error(w, "origin not allowed", http.StatusForbidden)
			return
		}

		token := extractBearerToken(r)
		userID, err := verifier.Verify(token)
		if err != nil {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.WithError(err).Debug("websocket upgrade failed")
			return
		}

		c := newConnection(conn, userID, deps, log)
		c.Run(r.Context())
	}
}
