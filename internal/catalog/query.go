package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"strings"
	"unicode/utf8"
)

// IndexSource 提供当前索引，*Loader 实现该接口。
type IndexSource interface {
	Index(ctx context.Context) (*Index, error)
}

// Match 是一条搜索结果，Name 为模型 ID 最后一个 "/" 之后的部分。
type Match struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// QueryOptions 控制搜索的最短查询长度与 limit 取值范围。
type QueryOptions struct {
	MinQueryLength int
	DefaultLimit   int
	MaxLimit       int
}

// Querier 在索引上执行 lookup 与 search。
type Querier struct {
	source IndexSource
	opts   QueryOptions
}

// ErrModelIDRequired 表示 lookup 缺少 model_id。
var ErrModelIDRequired = errors.New("model_id parameter is required")

// NewQuerier 创建 Querier，未设置的参数使用默认值（2 / 10 / 不限）。
func NewQuerier(source IndexSource, opts QueryOptions) *Querier {
	if opts.DefaultLimit <= 0 {
		opts.DefaultLimit = 10
	}
	if opts.MinQueryLength < 0 {
		opts.MinQueryLength = 0
	}
	return &Querier{source: source, opts: opts}
}

// ParseLimit 解析 limit 查询参数：非整数或 <=0 时取默认值，超过上限时截断。
func (q *Querier) ParseLimit(raw string) int {
	limit, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || limit <= 0 {
		limit = q.opts.DefaultLimit
	}
	if q.opts.MaxLimit > 0 && limit > q.opts.MaxLimit {
		limit = q.opts.MaxLimit
	}
	return limit
}

// Search 对模型 ID 做大小写不敏感的子串匹配，按索引顺序收集至多 limit 条。
// 查询过短时直接返回空结果，不加载索引。
func (q *Querier) Search(ctx context.Context, query string, limit int) ([]Match, error) {
	matches := []Match{}
	if utf8.RuneCountInString(query) < q.opts.MinQueryLength {
		return matches, nil
	}
	if limit <= 0 {
		limit = q.opts.DefaultLimit
	}

	idx, err := q.source.Index(ctx)
	if err != nil {
		return matches, err
	}

	needle := strings.ToLower(query)
	idx.Range(func(modelID string, _ json.RawMessage) bool {
		if strings.Contains(strings.ToLower(modelID), needle) {
			matches = append(matches, Match{ID: modelID, Name: lastSegment(modelID)})
		}
		return len(matches) < limit
	})
	return matches, nil
}

// Lookup 返回模型所在的组件 ID（原始 JSON）；不存在时 found 为 false。
func (q *Querier) Lookup(ctx context.Context, modelID string) (componentID json.RawMessage, found bool, err error) {
	if modelID == "" {
		return nil, false, ErrModelIDRequired
	}
	idx, err := q.source.Index(ctx)
	if err != nil {
		return nil, false, err
	}
	componentID, found = idx.Get(modelID)
	return componentID, found, nil
}

func lastSegment(modelID string) string {
	if i := strings.LastIndex(modelID, "/"); i >= 0 {
		return modelID[i+1:]
	}
	return modelID
}
