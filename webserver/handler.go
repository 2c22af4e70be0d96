package webserver

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
)

func (web *WebServer) statusHdlr(w http.ResponseWriter, req *http.Request) {
	defer req.Body.Close()
	w.Header().Set("Content-Type", "application/json; charset=UTF-8")

	if err := json.NewEncoder(w).Encode(web.relay.Stats()); err != nil {
		web.log.WithError(err).Error("unable to encode relay stats")
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte("500 - unable to encode relay stats"))
	}
}

func (web *WebServer) sessionsHdlr(w http.ResponseWriter, req *http.Request) {
	defer req.Body.Close()
	w.Header().Set("Content-Type", "application/json; charset=UTF-8")

	if err := json.NewEncoder(w).Encode(web.relay.Stats().Sessions); err != nil {
		web.log.WithError(err).Error("unable to encode sessions")
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte("500 - unable to encode sessions"))
	}
}

func (web *WebServer) sessionHdlr(w http.ResponseWriter, req *http.Request) {
	defer req.Body.Close()
	w.Header().Set("Content-Type", "application/json; charset=UTF-8")

	vars := mux.Vars(req)
	id := vars["id"]

	for _, sess := range web.relay.Stats().Sessions {
		if sess.ID != id {
			continue
		}
		if err := json.NewEncoder(w).Encode(sess); err != nil {
			web.log.WithError(err).Error("unable to encode session")
			w.WriteHeader(http.StatusInternalServerError)
			w.Write([]byte("500 - unable to encode session"))
		}
		return
	}

	w.WriteHeader(http.StatusNotFound)
	w.Write([]byte(fmt.Sprintf("404 - unknown session %s", id)))
}

func (web *WebServer) webSocketHdlr(w http.ResponseWriter, req *http.Request) {

	conn, err := upgrader.Upgrade(w, req, nil)
	if err != nil {
		http.NotFound(w, req)
		web.log.WithField("remote", req.RemoteAddr).Warn("unable to open websocket")
		return
	}

	client := &wsClient{
		ws:           conn,
		send:         make(chan []byte, 8),
		removeClient: web.removeWsClient,
	}

	go client.write()
	go client.read()

	web.addWsClient <- client
}

// wsClient is one connected websocket consumer of status updates.
type wsClient struct {
	ws           *websocket.Conn
	send         chan []byte
	removeClient chan<- *wsClient
}

func (c *wsClient) write() {
	defer c.ws.Close()

	for message := range c.send {
		if err := c.ws.WriteMessage(websocket.TextMessage, message); err != nil {
			return
		}
	}
	c.ws.WriteMessage(websocket.CloseMessage, []byte{})
}

// read drains incoming frames. The monitor is push only, inbound data
// is discarded; the read loop exists to notice a closed connection.
func (c *wsClient) read() {
	defer c.ws.Close()

	for {
		if _, _, err := c.ws.ReadMessage(); err != nil {
			c.removeClient <- c
			return
		}
	}
}
