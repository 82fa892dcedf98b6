// Package spot provides a client for scripting quadruped robot motion against
// a remote control server.
//
// Commands are either recorded into a named program and submitted in one
// request (authoring mode), or queued and streamed one at a time over a
// persistent websocket (live mode). A Robot owns one session and routes every
// motion call according to its current mode.
package spot
