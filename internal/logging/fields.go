package logging

import "github.com/sirupsen/logrus"

// BaseFields 构建 action + 配置路径等基础字段，便于不同入口复用。
func BaseFields(action, configPath string) logrus.Fields {
	return logrus.Fields{
		"action":     action,
		"configPath": configPath,
	}
}

// RequestFields 提供单次请求的公共字段：动作、对象键、状态码与请求 ID。
func RequestFields(action, key string, status int, requestID string) logrus.Fields {
	fields := logrus.Fields{
		"action": action,
		"status": status,
	}
	if key != "" {
		fields["key"] = key
	}
	if requestID != "" {
		fields["request_id"] = requestID
	}
	return fields
}

// IndexFields 描述一次索引加载：来源对象、条目数量与缓存来源（memo/edge/store）。
func IndexFields(sourceKey, cacheSource string, entries int) logrus.Fields {
	return logrus.Fields{
		"action":       "index_load",
		"source_key":   sourceKey,
		"cache_source": cacheSource,
		"entries":      entries,
	}
}
