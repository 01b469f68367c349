package rag

import (
	"strings"

	"github.com/cloudwego/eino/schema"

	"crm-rag-api/internal/domain/entity"
)

// DefaultSystemPrompt 领域专家人设
const DefaultSystemPrompt = `You are an experienced assistant for a sheet-metal and automotive paint shop.
You answer questions about customers, quotes and work history using only the CRM records provided in the context.
Rules:
- Base every statement on the provided records and cite them by their [number].
- If the records do not contain the answer, say so plainly instead of guessing.
- Amounts are in the shop's currency with no decimals; keep them exact.
- Quote dates exactly as recorded and never shift or round them.
- Use sheet-metal and paint terminology (panels, dents, primer, clear coat, color matching) where it fits.
- Answer in the same language as the question, concisely.`

// buildUserTurn 组装“上下文 + 问题”用户消息
func buildUserTurn(contextText, question string) string {
	var sb strings.Builder
	sb.Grow(len(contextText) + len(question) + 64)
	sb.WriteString("## CRM context\n")
	sb.WriteString(contextText)
	sb.WriteString("\n\n## Question\n")
	sb.WriteString(strings.TrimSpace(question))
	return sb.String()
}

// buildMessages 系统人设 + 原样历史 + 最后一条上下文问题
func buildMessages(systemPrompt string, history []entity.Message, contextText, question string) []*schema.Message {
	msgs := make([]*schema.Message, 0, len(history)+2)
	msgs = append(msgs, schema.SystemMessage(systemPrompt))
	for _, h := range history {
		switch h.Role {
		case entity.RoleAssistant:
			msgs = append(msgs, schema.AssistantMessage(h.Content, nil))
		default:
			msgs = append(msgs, schema.UserMessage(h.Content))
		}
	}
	msgs = append(msgs, schema.UserMessage(buildUserTurn(contextText, question)))
	return msgs
}

// firstText 返回响应中的第一个文本块；无文本时返回空串
func firstText(msg *schema.Message) string {
	if msg == nil {
		return ""
	}
	if s := strings.TrimSpace(msg.Content); s != "" {
		return s
	}
	for _, part := range msg.MultiContent {
		if part.Type == schema.ChatMessagePartTypeText {
			if s := strings.TrimSpace(part.Text); s != "" {
				return s
			}
		}
	}
	return ""
}
