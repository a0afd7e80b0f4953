package edgecache

import "context"

// Noop 永远未命中，用于关闭缓存的部署。
type Noop struct{}

func (Noop) Match(context.Context, string) (*Response, error) {
	return nil, ErrMiss
}

func (Noop) Put(context.Context, string, *Response) error {
	return nil
}
