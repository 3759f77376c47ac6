package dispatcher

import (
	"crypto/tls"
	"net"
	"sync/atomic"
	"time"

	"github.com/valyala/fasthttp"
)

type HTTPPool struct {
	clients []*fasthttp.Client
	index   atomic.Uint32
}

type PoolOption func(*fasthttp.Client)

// WithDial replaces the dialer of every pooled client.
func WithDial(dial func(addr string) (net.Conn, error)) PoolOption {
	return func(c *fasthttp.Client) {
		c.Dial = dial
	}
}

func NewHTTPPool(size int, opts ...PoolOption) *HTTPPool {
	if size < 1 {
		size = 1
	}

	tlsConfig := &tls.Config{
		MinVersion:         tls.VersionTLS12,
		ClientSessionCache: tls.NewLRUClientSessionCache(128),
	}

	clients := make([]*fasthttp.Client, size)
	for i := 0; i < size; i++ {
		c := &fasthttp.Client{
			MaxConnsPerHost:     512,
			MaxIdleConnDuration: 90 * time.Second,
			ReadTimeout:         10 * time.Second,
			WriteTimeout:        10 * time.Second,
			MaxConnWaitTimeout:  time.Second,
			MaxResponseBodySize: 4 * 1024 * 1024,

			// Ban and kick are not idempotent from the audit log's point of view.
			MaxIdemponentCallAttempts: 1,

			NoDefaultUserAgentHeader: true,
			TLSConfig:                tlsConfig,
		}
		for _, opt := range opts {
			opt(c)
		}
		clients[i] = c
	}

	return &HTTPPool{clients: clients}
}

func (hp *HTTPPool) GetClient() *fasthttp.Client {
	i := hp.index.Add(1)
	return hp.clients[int(i)%len(hp.clients)]
}

func (hp *HTTPPool) Size() int {
	return len(hp.clients)
}
