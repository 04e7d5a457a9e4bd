// Package websocket carries the realtime game protocol over gorilla/websocket.
//
// Architecture:
//
// A central Hub owns every connection and every room. Each connection runs a
// read goroutine, which decodes frames and calls the Handler in order, and a
// write goroutine fed by a buffered channel. The Hub's own loop is the only
// place rooms change and the only place frames are queued to connections.
//
// The Hub implements the Emitter the event router fans out through:
//
//	hub := websocket.NewHub(logger, websocket.WithAllowedOrigins("http://localhost:5173"))
//	router := service.NewRouter(accounts, queue, store, conns, hub)
//	hub.SetHandler(router)
//	go hub.Run(ctx)
//
// Frames:
//
// Every frame is a protocol envelope, {"event": "...", "data": ...}. A frame
// that cannot be decoded is answered with an error event; the connection
// stays open.
package websocket
