// Package chatsocket provides a client-side event dispatcher for chat servers
// reached over a single WebSocket connection.
//
// An EventSocket connects to an endpoint, decodes each inbound JSON text frame
// of the form {"type": "...", "data": "..."} and fans it out to the listeners
// registered for that frame type. Listeners are registered and removed by a
// caller-supplied identifier:
//
//	sock := chatsocket.New("ws://localhost:8080/chat")
//	if err := sock.Connect(ctx); err != nil {
//	    return err
//	}
//	sock.AddOnUserJoinCallback(chatsocket.JoinCallback{
//	    ID: "roster",
//	    F:  func(username string) { fmt.Println(username, "joined") },
//	})
//	...
//	sock.RemoveOnUserJoinCallback("roster")
//	sock.Disconnect()
//
// Disconnect discards every registered listener, so callers must register
// again after reconnecting.
package chatsocket
