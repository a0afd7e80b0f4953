package catalog

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"
)

// Index 是按文档顺序保存的 model id → component id 映射。
// component id 保留原始 JSON（整数或字符串），原样回写给客户端。
type Index struct {
	keys   []string
	values map[string]json.RawMessage

	// SourceKey 为索引来源对象键，LoadedAt 为从对象存储解析的时间。
	SourceKey string
	LoadedAt  time.Time
}

// Get 返回 modelID 对应的组件 ID。
func (i *Index) Get(modelID string) (json.RawMessage, bool) {
	if i == nil {
		return nil, false
	}
	v, ok := i.values[modelID]
	return v, ok
}

// Len 返回条目数量。
func (i *Index) Len() int {
	if i == nil {
		return 0
	}
	return len(i.keys)
}

// Range 按文档顺序遍历，fn 返回 false 时停止。
func (i *Index) Range(fn func(modelID string, componentID json.RawMessage) bool) {
	if i == nil {
		return
	}
	for _, k := range i.keys {
		if !fn(k, i.values[k]) {
			return
		}
	}
}

// 上游生成器先后使用过的两个字段名，按顺序尝试。
var mappingFields = []string{"index", "component_index"}

// ParseIndex 解析解压后的索引文档，从 index 或 component_index 字段提取映射。
func ParseIndex(data []byte) (*Index, error) {
	var doc map[string]json.RawMessage
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, unavailable("decode index document: %v", err)
	}

	for _, field := range mappingFields {
		raw, ok := doc[field]
		if !ok || isNull(raw) {
			continue
		}
		idx, err := decodeMapping(raw)
		if err != nil {
			return nil, unavailable("decode %s: %v", field, err)
		}
		return idx, nil
	}
	return nil, unavailable("document has neither index nor component_index")
}

// decodeMapping 支持对象形式 {"id": comp} 与紧凑元组形式 [["id", comp], ...]。
func decodeMapping(raw json.RawMessage) (*Index, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}
	delim, ok := tok.(json.Delim)
	if !ok {
		return nil, fmt.Errorf("expected object or array, got %v", tok)
	}

	idx := &Index{values: make(map[string]json.RawMessage)}
	switch delim {
	case '{':
		for dec.More() {
			keyTok, err := dec.Token()
			if err != nil {
				return nil, err
			}
			key, _ := keyTok.(string)
			var value json.RawMessage
			if err := dec.Decode(&value); err != nil {
				return nil, fmt.Errorf("value of %q: %w", key, err)
			}
			idx.add(key, value)
		}
	case '[':
		for dec.More() {
			var pair []json.RawMessage
			if err := dec.Decode(&pair); err != nil {
				return nil, err
			}
			if len(pair) != 2 {
				return nil, fmt.Errorf("tuple of length %d", len(pair))
			}
			var key string
			if err := json.Unmarshal(pair[0], &key); err != nil {
				return nil, fmt.Errorf("tuple model id: %w", err)
			}
			idx.add(key, pair[1])
		}
	default:
		return nil, fmt.Errorf("unexpected delimiter %v", delim)
	}

	if _, err := dec.Token(); err != nil {
		return nil, err
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, errors.New("trailing data after mapping")
	}
	return idx, nil
}

// add 对重复键保留首次出现的位置、采用最后出现的值。
func (i *Index) add(key string, value json.RawMessage) {
	if _, exists := i.values[key]; !exists {
		i.keys = append(i.keys, key)
	}
	i.values[key] = value
}

func isNull(raw json.RawMessage) bool {
	return len(bytes.TrimSpace(raw)) == 0 || string(bytes.TrimSpace(raw)) == "null"
}
