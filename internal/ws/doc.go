// Package ws streams terminal sessions over WebSocket.
//
// Each session has a Hub that fans output out to its clients. A client
// that attaches receives the session's buffered history, then live
// stdout messages, and finally an exit message. Clients send stdin,
// resize, signal, pause, resume and ping messages. The process keeps
// running when every client disconnects.
package ws
