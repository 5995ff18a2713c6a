package gateway

import (
	"net/http"
	"os"
	"strings"

	"github.com/gorilla/websocket"

	"candlesystem/internal/metrics"
)

var allowedOrigins = parseAllowedOrigins(os.Getenv("ALLOWED_ORIGINS"))

func parseAllowedOrigins(s string) []string {
	if s == "" {
		return []string{"*"}
	}
	var origins []string
	for _, o := range strings.Split(s, ",") {
		o = strings.TrimSpace(o)
		if o != "" {
			origins = append(origins, o)
		}
	}
	if len(origins) == 0 {
		return []string{"*"}
	}
	return origins
}

func checkOrigin(r *http.Request) bool {
	for _, o := range allowedOrigins {
		if o == "*" {
			return true
		}
	}
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	for _, o := range allowedOrigins {
		if o == origin {
			return true
		}
	}
	return false
}

var upgrader = websocket.Upgrader{
	CheckOrigin:       checkOrigin,
	EnableCompression: true,
}

// ServeWS upgrades r to a WebSocket connection and serves it as a hub
// client subscribed to the symbols named by the "symbols" query
// parameter (comma-separated), if any.
func ServeWS(hub *Hub, m *metrics.Gateway) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		var symbols []string
		if raw := r.URL.Query().Get("symbols"); raw != "" {
			for _, s := range strings.Split(raw, ",") {
				if s = strings.TrimSpace(strings.ToUpper(s)); s != "" {
					symbols = append(symbols, s)
				}
			}
		}
		client := NewClient(hub, conn, m)
		go client.Serve(symbols)
	}
}
