package objectstore

import (
	"net"
	"net/http"
	"time"
)

// newTransport 返回对象存储专用的 HTTP transport：复用长连接并集中配置超时。
// headerTimeout 只约束首字节等待时间，大文件的正文传输不受整体超时限制。
func newTransport(headerTimeout time.Duration) *http.Transport {
	if headerTimeout <= 0 {
		headerTimeout = 30 * time.Second
	}
	return &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   100,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		ResponseHeaderTimeout: headerTimeout,
		ForceAttemptHTTP2:     true,
		// 正文以 gzip 原样存放，禁止 transport 自动协商压缩。
		DisableCompression: true,
		DialContext: (&net.Dialer{
			Timeout:   30 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
	}
}
