package edgecache

import (
	"errors"
	"fmt"

	"github.com/tinylib/msgp/msgp"
)

// 编码版本，字段变化时递增，旧条目解码失败即视为未命中。
const codecVersion = 1

var errCodecVersion = errors.New("edge cache entry version mismatch")

// encodeResponse 使用 MessagePack 编码响应：
//
//	{"v": int, "status": int, "stored_at": time, "header": map[str]str, "body": bin}
func encodeResponse(resp *Response) []byte {
	buf := make([]byte, 0, len(resp.Body)+256)
	buf = msgp.AppendMapHeader(buf, 5)
	buf = msgp.AppendString(buf, "v")
	buf = msgp.AppendInt(buf, codecVersion)
	buf = msgp.AppendString(buf, "status")
	buf = msgp.AppendInt(buf, resp.Status)
	buf = msgp.AppendString(buf, "stored_at")
	buf = msgp.AppendTime(buf, resp.StoredAt)
	buf = msgp.AppendString(buf, "header")
	buf = msgp.AppendMapHeader(buf, uint32(len(resp.Header)))
	for k, v := range resp.Header {
		buf = msgp.AppendString(buf, k)
		buf = msgp.AppendString(buf, v)
	}
	buf = msgp.AppendString(buf, "body")
	buf = msgp.AppendBytes(buf, resp.Body)
	return buf
}

func decodeResponse(raw []byte) (*Response, error) {
	fields, rest, err := msgp.ReadMapHeaderBytes(raw)
	if err != nil {
		return nil, fmt.Errorf("decode entry header: %w", err)
	}

	resp := &Response{Header: map[string]string{}}
	version := 0
	for i := uint32(0); i < fields; i++ {
		var name string
		name, rest, err = msgp.ReadStringBytes(rest)
		if err != nil {
			return nil, fmt.Errorf("decode field name: %w", err)
		}
		switch name {
		case "v":
			version, rest, err = msgp.ReadIntBytes(rest)
		case "status":
			resp.Status, rest, err = msgp.ReadIntBytes(rest)
		case "stored_at":
			resp.StoredAt, rest, err = msgp.ReadTimeBytes(rest)
		case "header":
			rest, err = decodeHeader(rest, resp.Header)
		case "body":
			resp.Body, rest, err = msgp.ReadBytesBytes(rest, nil)
		default:
			rest, err = msgp.Skip(rest)
		}
		if err != nil {
			return nil, fmt.Errorf("decode field %s: %w", name, err)
		}
	}
	if version != codecVersion {
		return nil, errCodecVersion
	}
	return resp, nil
}

func decodeHeader(raw []byte, into map[string]string) ([]byte, error) {
	size, rest, err := msgp.ReadMapHeaderBytes(raw)
	if err != nil {
		return nil, err
	}
	for i := uint32(0); i < size; i++ {
		var k, v string
		if k, rest, err = msgp.ReadStringBytes(rest); err != nil {
			return nil, err
		}
		if v, rest, err = msgp.ReadStringBytes(rest); err != nil {
			return nil, err
		}
		into[k] = v
	}
	return rest, nil
}
