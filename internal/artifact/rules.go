package artifact

import (
	"regexp"
	"strings"
)

// MatchKind 描述规则的匹配方式，仅用于诊断输出。
type MatchKind string

const (
	MatchSubstring MatchKind = "substring"
	MatchPattern   MatchKind = "pattern"
	MatchFallback  MatchKind = "fallback"
)

// Rule 是一条 (谓词, 对象键) 规则。
type Rule struct {
	Class string
	// Key 为固定对象键；按模板生成键的规则留空。
	Key   string
	Match MatchKind
	// Needles 为子串匹配的关键字，Exact 为额外的精确路径。
	Needles []string
	Exact   []string
	// Decompressible 表示该产物足够小，可以在服务端解压后返回。
	Decompressible bool

	resolve func(p string) (string, bool)
}

// Resolution 是一次路径解析的结果。
type Resolution struct {
	Class          string
	Key            string
	Decompressible bool
}

var componentShard = regexp.MustCompile(`/(component_\d+\.json\.gz)$`)

var defaultRules = []Rule{
	substringRule(ClassCompactIndex, CompactIndexKey, []string{"/compact_index.json.gz"}, "compact_index"),
	substringRule(ClassModelLookup, ModelLookupKey, []string{"/model_lookup.json.gz"}, "model_lookup"),
	substringRule(ClassSearchIndex, SearchIndexKey, []string{"/search_index.json.gz"}, "search_index"),
	substringRule(ClassComponentIndex, ComponentIndexKey, []string{"/", "/component_index.json.gz"}, "component_index"),
	{
		Class: ClassComponent,
		Match: MatchPattern,
		resolve: func(p string) (string, bool) {
			m := componentShard.FindStringSubmatch(p)
			if m == nil {
				return "", false
			}
			return componentDir + m[1], true
		},
	},
	{
		Class:   ClassGraphData,
		Key:     GraphDataKey,
		Match:   MatchFallback,
		resolve: func(string) (string, bool) { return GraphDataKey, true },
	},
}

func substringRule(class, key string, exact []string, needle string) Rule {
	return Rule{
		Class:          class,
		Key:            key,
		Match:          MatchSubstring,
		Needles:        []string{needle},
		Exact:          exact,
		Decompressible: true,
		resolve: func(p string) (string, bool) {
			for _, e := range exact {
				if p == e {
					return key, true
				}
			}
			if strings.Contains(p, needle) {
				return key, true
			}
			return "", false
		},
	}
}

// Resolve 将请求路径（不含查询串）映射为对象键，首条命中的规则生效。
// 最后一条规则兜底返回 graph_data.json.gz，因此总能得到结果。
func Resolve(requestPath string) Resolution {
	for _, rule := range defaultRules {
		if key, ok := rule.resolve(requestPath); ok {
			return Resolution{
				Class:          rule.Class,
				Key:            key,
				Decompressible: rule.Decompressible,
			}
		}
	}
	return Resolution{Class: ClassGraphData, Key: GraphDataKey}
}

// Rules 返回规则列表的副本，顺序即匹配顺序。
func Rules() []Rule {
	out := make([]Rule, len(defaultRules))
	copy(out, defaultRules)
	return out
}
