// Package live drives a browser-hosted engine over a websocket.
//
// A page rendered by package html in live mode opens a websocket and announces
// itself with a "ready" event. [Session.Serve] then builds a regular
// [widget.Widget] whose engine is the remote page: every engine call becomes a
// command the page executes and acknowledges, hover events flow back into the
// widget's overlay and overlay updates flow out to the page's tooltip.
//
//	conn, _ := upgrader.Upgrade(w, r, nil)
//	s := live.NewSession(conn, live.WithContainer(id))
//	err := s.Serve(r.Context(), g, cfg)
//
// Serve returns when the page disconnects or ctx is cancelled; in the latter
// case the widget is closed while the page is still connected, so the page
// receives the detach and destroy commands.
package live
