package gate

import (
	"net/http"
	"net/url"
	"time"

	"github.com/gorilla/websocket"
)

const (
	DefaultWSURL   = "wss://api.gateio.ws/ws/v4/"
	exchangeName   = "gate"
	marketSpot     = "spot"
	sourceStream   = "ws"
	sourceSnapshot = "rest"
)

// newDialer builds the websocket dialer. An empty proxy uses the environment.
func newDialer(proxy, userAgent string) (*websocket.Dialer, http.Header, error) {
	d := &websocket.Dialer{
		Proxy:            http.ProxyFromEnvironment,
		HandshakeTimeout: 10 * time.Second,
	}
	if proxy != "" {
		u, err := url.Parse(proxy)
		if err != nil {
			return nil, nil, err
		}
		d.Proxy = http.ProxyURL(u)
	}
	header := http.Header{}
	if userAgent != "" {
		header.Set("User-Agent", userAgent)
	}
	return d, header, nil
}
