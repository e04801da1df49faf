package utils

import (
	"encoding/json"
	"strings"

	"k8s.io/klog/v2"
)

// ExtractJSON 从文本中提取第一个顶层 {...} JSON 片段
// 未找到平衡的大括号时返回原始内容
func ExtractJSON(content string) string {
	start := -1
	end := -1
	depth := 0

	for i, ch := range content {
		if ch == '{' {
			if depth == 0 {
				start = i
			}
			depth++
		} else if ch == '}' {
			depth--
			if depth == 0 && start != -1 {
				end = i + 1
				break
			}
		}
	}

	if start >= 0 && end > start {
		return content[start:end]
	}

	return content
}

// ExtractFencedJSON 从文本中提取 ```json ... ``` 代码块内容
// 没有代码块时返回空串，由调用方回退到 ExtractJSON
func ExtractFencedJSON(content string) string {
	const fence = "```"

	search := content
	for {
		open := strings.Index(search, fence)
		if open < 0 {
			return ""
		}
		rest := search[open+len(fence):]
		// 代码块首行是语言标识（json / JSON / 空）
		nl := strings.IndexByte(rest, '\n')
		if nl < 0 {
			return ""
		}
		lang := strings.ToLower(strings.TrimSpace(rest[:nl]))
		body := rest[nl+1:]
		closing := strings.Index(body, fence)
		if closing < 0 {
			return ""
		}
		block := strings.TrimSpace(body[:closing])
		if (lang == "" || lang == "json") && strings.HasPrefix(block, "{") {
			klog.V(6).Infof("[ExtractFencedJSON] 提取到 JSON 代码块，长度=%d", len(block))
			return block
		}
		// 继续找下一个代码块
		search = body[closing+len(fence):]
	}
}

func ToJSON(v any) string {
	jsonData, err := json.Marshal(v)
	if err != nil {
		klog.Errorf("JSON序列化失败: %v", err)
		return ""
	}
	return string(jsonData)
}
