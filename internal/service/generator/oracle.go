package generator

import (
	"context"

	"github.com/craftforge/backend/internal/pkg/llm"
	"k8s.io/klog/v2"
)

// Client 基于 LLM 的代码生成器
// 任何层面的失败（网络、非 JSON 输出、缺少必备文件）都不向上抛错，
// 统一退化为兜底生成结果并以 WellFormed=false 标记
type Client struct {
	chat llm.ChatClient
}

func NewClient(chat llm.ChatClient) *Client {
	return &Client{chat: chat}
}

var _ Oracle = (*Client)(nil)

// Generate 初次生成：构造严格输出格式的提示词，解析并校验响应
func (c *Client) Generate(ctx context.Context, req GenerateRequest) *GenerationResult {
	messages := []llm.ChatMessage{
		{Role: "system", Content: systemPrompt},
		{Role: "user", Content: buildGeneratePrompt(req)},
	}

	raw, err := c.chat.Chat(ctx, messages)
	if err != nil {
		klog.Errorf("LLM 生成请求失败，使用兜底生成器: name=%s, err=%v", req.Name, err)
		return c.fallback(req.Name, req.Prompt, raw)
	}

	actions, parseErr := parseActions(raw)
	if parseErr != nil {
		klog.Errorf("LLM 输出解析失败，使用兜底生成器: name=%s, err=%v", req.Name, parseErr)
		return c.fallback(req.Name, req.Prompt, raw)
	}
	if validateErr := validateGeneration(actions); validateErr != nil {
		klog.Errorf("LLM 输出缺少插件骨架，使用兜底生成器: name=%s, err=%v", req.Name, validateErr)
		return c.fallback(req.Name, req.Prompt, raw)
	}

	klog.V(6).Infof("LLM 生成成功: name=%s, actions=%d", req.Name, len(actions))
	return &GenerationResult{Actions: actions, RawResponse: raw, WellFormed: true}
}

// Repair 修复：携带诊断与被点名文件请求补丁
// 修复批次只要求解析成功，不再强制完整插件骨架（可能只改单个文件）
func (c *Client) Repair(ctx context.Context, req RepairRequest) *GenerationResult {
	messages := []llm.ChatMessage{
		{Role: "system", Content: systemPrompt},
		{Role: "user", Content: buildRepairPrompt(req)},
	}

	raw, err := c.chat.Chat(ctx, messages)
	if err != nil {
		klog.Errorf("LLM 修复请求失败，使用兜底生成器: name=%s, err=%v", req.Name, err)
		return c.fallback(req.Name, "", raw)
	}

	actions, parseErr := parseActions(raw)
	if parseErr != nil {
		klog.Errorf("LLM 修复输出解析失败，使用兜底生成器: name=%s, err=%v", req.Name, parseErr)
		return c.fallback(req.Name, "", raw)
	}

	klog.V(6).Infof("LLM 修复补丁解析成功: name=%s, actions=%d", req.Name, len(actions))
	return &GenerationResult{Actions: actions, RawResponse: raw, WellFormed: true}
}

// fallback 构造兜底结果，RawResponse 保留原始输出便于排查
func (c *Client) fallback(name, prompt, raw string) *GenerationResult {
	return &GenerationResult{
		Actions:     fallbackGenerate(name, prompt),
		RawResponse: raw,
		WellFormed:  false,
	}
}
