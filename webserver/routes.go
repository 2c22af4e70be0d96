package webserver

func (web *WebServer) routes() {
	web.router.HandleFunc("/api/status", web.statusHdlr).Methods("GET")
	web.router.HandleFunc("/api/sessions", web.sessionsHdlr).Methods("GET")
	web.router.HandleFunc("/api/session/{id}", web.sessionHdlr).Methods("GET")
	web.router.HandleFunc("/ws", web.webSocketHdlr)
}
