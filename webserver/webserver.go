// Package webserver implements the relay status monitor. It serves a
// JSON snapshot of the relay sessions and counters over HTTP and pushes
// the same snapshot to websocket clients whenever a client connects,
// becomes ready or disconnects.
package webserver

import (
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/audsync/audsync/events"
	"github.com/audsync/audsync/relay"
)

var upgrader = websocket.Upgrader{}

// StatusProvider is the part of the relay the monitor reads from.
type StatusProvider interface {
	Stats() relay.Stats
}

// WebServer serves the relay status over HTTP and websocket.
type WebServer struct {
	options  Options
	relay    StatusProvider
	router   *mux.Router
	server   *http.Server
	listener net.Listener
	log      *logrus.Entry

	muWsClients    sync.Mutex
	wsClients      map[*wsClient]bool
	addWsClient    chan *wsClient
	removeWsClient chan *wsClient

	stop chan struct{}
	wg   sync.WaitGroup
}

// NewWebServer returns a status monitor reading from the provided relay.
func NewWebServer(r StatusProvider, opts ...Option) (*WebServer, error) {

	if r == nil {
		return nil, fmt.Errorf("webserver: no relay to monitor")
	}

	web := &WebServer{
		options: Options{
			Address:      ":8090",
			PushInterval: time.Second,
		},
		relay:          r,
		router:         mux.NewRouter(),
		wsClients:      make(map[*wsClient]bool),
		addWsClient:    make(chan *wsClient),
		removeWsClient: make(chan *wsClient),
		stop:           make(chan struct{}),
	}

	for _, option := range opts {
		option(&web.options)
	}

	web.log = logrus.WithFields(logrus.Fields{
		"component": "webserver",
		"address":   web.options.Address,
	})

	web.routes()

	return web, nil
}

// Start begins serving. It returns once the listener is bound so the
// caller knows the port is taken; the HTTP server runs on its own
// goroutine until Stop is called.
func (web *WebServer) Start() error {

	ln, err := net.Listen("tcp", web.options.Address)
	if err != nil {
		return fmt.Errorf("webserver: unable to listen on %s: %w", web.options.Address, err)
	}

	web.listener = ln
	web.server = &http.Server{
		Handler: web.logRequests(web.router),
	}

	web.log.Info("status monitor listening")

	web.wg.Add(2)
	go func() {
		defer web.wg.Done()
		if err := web.server.Serve(ln); err != nil && err != http.ErrServerClosed {
			web.log.WithError(err).Error("http server failed")
		}
	}()
	go web.run()

	return nil
}

// run distributes status updates to the connected websocket clients.
func (web *WebServer) run() {
	defer web.wg.Done()

	var connectedCh, readyCh, disconnectedCh chan interface{}
	if web.options.EventBus != nil {
		connectedCh = web.options.EventBus.Sub(events.ClientConnected)
		readyCh = web.options.EventBus.Sub(events.ClientReady)
		disconnectedCh = web.options.EventBus.Sub(events.ClientDisconnected)
		defer web.options.EventBus.Unsub(connectedCh)
		defer web.options.EventBus.Unsub(readyCh)
		defer web.options.EventBus.Unsub(disconnectedCh)
	}

	ticker := time.NewTicker(web.options.PushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-web.stop:
			return

		case <-ticker.C:
			web.updateWsClients()

		case <-connectedCh:
			web.updateWsClients()

		case <-readyCh:
			web.updateWsClients()

		case <-disconnectedCh:
			web.updateWsClients()

		case client := <-web.addWsClient:
			web.log.WithField("remote", client.ws.RemoteAddr().String()).Info("websocket connected")
			web.muWsClients.Lock()
			web.wsClients[client] = true
			web.muWsClients.Unlock()
			// the connecting client gets the current state right away
			web.updateWsClients()

		case client := <-web.removeWsClient:
			web.log.WithField("remote", client.ws.RemoteAddr().String()).Info("websocket disconnected")
			web.muWsClients.Lock()
			if _, ok := web.wsClients[client]; ok {
				delete(web.wsClients, client)
				close(client.send)
			}
			web.muWsClients.Unlock()
		}
	}
}

// updateWsClients pushes the current relay status to every websocket
// client. A client that cannot keep up misses the update and catches
// the next one.
func (web *WebServer) updateWsClients() {

	data, err := json.Marshal(web.relay.Stats())
	if err != nil {
		web.log.WithError(err).Error("unable to marshal relay stats")
		return
	}

	web.muWsClients.Lock()
	for client := range web.wsClients {
		select {
		case client.send <- data:
		default:
		}
	}
	web.muWsClients.Unlock()
}

// Addr returns the bound listener address, useful when listening on
// port 0. Returns an empty string before Start.
func (web *WebServer) Addr() string {
	if web.listener == nil {
		return ""
	}
	return web.listener.Addr().String()
}

// Stop shuts the monitor down and disconnects all websocket clients.
func (web *WebServer) Stop() error {

	select {
	case <-web.stop:
		return nil
	default:
		close(web.stop)
	}

	web.muWsClients.Lock()
	for client := range web.wsClients {
		delete(web.wsClients, client)
		close(client.send)
	}
	web.muWsClients.Unlock()

	var err error
	if web.server != nil {
		err = web.server.Close()
	}
	web.wg.Wait()
	web.log.Info("status monitor stopped")
	return err
}
