// Package relay 外部执行通道和跨币种报价服务的 HTTP 客户端
package relay

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/segmentio/encoding/json"
	"sweepbridge.com/pkg/ratelimit"
)

// httpError 非 2xx 响应；4xx 是请求本身的问题，不计入熔断
type httpError struct {
	Status int
	Body   string
}

func (e *httpError) Error() string {
	return fmt.Sprintf("http %d: %s", e.Status, e.Body)
}

func (e *httpError) Permanent() bool {
	return e.Status >= 400 && e.Status < 500 && e.Status != http.StatusTooManyRequests
}

type client struct {
	baseURL  string
	apiKey   string
	http     *http.Client
	breakers *ratelimit.Manager
}

func newClient(service, baseURL, apiKey string, timeout time.Duration, rule ratelimit.Rule) *client {
	return &client{
		baseURL:  baseURL,
		apiKey:   apiKey,
		http:     &http.Client{Timeout: timeout},
		breakers: ratelimit.NewManager(service, rule),
	}
}

// do 发请求并解码响应，整个调用经过 op 对应的熔断器
func (c *client) do(ctx context.Context, op, method, path string, in, out any) error {
	_, err := ratelimit.Execute(c.breakers, op, func() (struct{}, error) {
		return struct{}{}, c.roundTrip(ctx, method, path, in, out)
	})
	return err
}

// 请求体编码复用 buffer，一轮里报价和提交请求很多
var bodyPool = sync.Pool{
	New: func() any {
		return bytes.NewBuffer(make([]byte, 0, 1024))
	},
}

func (c *client) roundTrip(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		buf := bodyPool.Get().(*bytes.Buffer)
		buf.Reset()
		// Do 返回前 body 会被读完，之后才能放回
		defer bodyPool.Put(buf)
		if err := json.NewEncoder(buf).Encode(in); err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		body = buf
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &httpError{Status: resp.StatusCode, Body: string(bytes.TrimSpace(data))}
	}
	if out == nil || len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
