package maven

import (
	"regexp"
	"strings"

	"k8s.io/klog/v2"
)

// 诊断提炼的输出预算与兜底行数
const (
	maxDiagnosticChars = 4000
	fallbackTailLines  = 20
)

// Maven 已知错误形态的匹配器，按优先级排列
var diagnosticPatterns = []*regexp.Regexp{
	// 编译错误块：cannot find symbol / incompatible types 等，带文件行号
	regexp.MustCompile(`(?m)^\[ERROR\] .+\.java:\[\d+,\d+\].*$`),
	// 缺包错误
	regexp.MustCompile(`(?m)^.*package [\w.]+ does not exist.*$`),
	// cannot find symbol 及其说明行
	regexp.MustCompile(`(?m)^.*cannot find symbol.*$`),
	// 插件目标执行失败
	regexp.MustCompile(`(?m)^\[ERROR\] Failed to execute goal.*$`),
	// 通用 BUILD FAILURE 标记附近的 ERROR 行
	regexp.MustCompile(`(?m)^\[ERROR\] (?:COMPILATION ERROR|BUILD FAILURE).*$`),
}

// ExtractDiagnostics 把原始构建日志压缩成有限长度的可操作错误行集合
// 依次套用已知错误形态的匹配器取并集去重；都不命中时退化为最后若干条
// 含 error/failure 标记的行
func ExtractDiagnostics(rawLog string) string {
	seen := make(map[string]bool)
	var lines []string

	for _, pattern := range diagnosticPatterns {
		for _, match := range pattern.FindAllString(rawLog, -1) {
			line := strings.TrimSpace(match)
			if line == "" || seen[line] {
				continue
			}
			seen[line] = true
			lines = append(lines, line)
		}
	}

	if len(lines) == 0 {
		lines = errorTail(rawLog, fallbackTailLines)
	}

	result := strings.Join(lines, "\n")
	if len(result) > maxDiagnosticChars {
		result = result[:maxDiagnosticChars] + "\n... (truncated)"
	}

	klog.V(6).Infof("诊断提炼完成: raw=%d bytes, lines=%d, out=%d bytes", len(rawLog), len(lines), len(result))
	return result
}

// errorTail 返回日志中最后 n 条包含错误标记的行
func errorTail(rawLog string, n int) []string {
	var matched []string
	for _, line := range strings.Split(rawLog, "\n") {
		lower := strings.ToLower(line)
		if strings.Contains(lower, "error") || strings.Contains(lower, "failure") || strings.Contains(lower, "failed") {
			matched = append(matched, strings.TrimSpace(line))
		}
	}
	if len(matched) > n {
		matched = matched[len(matched)-n:]
	}
	return matched
}

// MentionedFiles 从诊断文本中提取被点名的源文件名（不含路径）
// 用于修复提示词时按文件名在项目树中做尽力查找
func MentionedFiles(diagnostics string) []string {
	pattern := regexp.MustCompile(`[\w/\\.-]+\.(java|yml|xml)`)
	seen := make(map[string]bool)
	var files []string
	for _, match := range pattern.FindAllString(diagnostics, -1) {
		base := match
		if idx := strings.LastIndexAny(base, "/\\"); idx >= 0 {
			base = base[idx+1:]
		}
		if base == "" || seen[base] {
			continue
		}
		seen[base] = true
		files = append(files, base)
	}
	return files
}
