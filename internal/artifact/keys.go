package artifact

// 对象存储中的固定键。
const (
	GraphDataKey      = "graph_data.json.gz"
	ComponentIndexKey = "components/component_index.json.gz"
	CompactIndexKey   = "components/compact_index.json.gz"
	ModelLookupKey    = "components/model_lookup.json.gz"
	SearchIndexKey    = "components/search_index.json.gz"

	componentDir = "components/"
)

// 规则所属的产物类别，同时用作日志与指标的标签。
const (
	ClassCompactIndex   = "compact_index"
	ClassModelLookup    = "model_lookup"
	ClassSearchIndex    = "search_index"
	ClassComponentIndex = "component_index"
	ClassComponent      = "component"
	ClassGraphData      = "graph_data"
)
