package retrieval

import (
	"encoding/json"
	"strings"

	"crm-rag-api/internal/domain/entity"
)

const documentMetaPrefix = "@@meta:"

// EncodeDocumentText 将元数据以首行前缀形式写入文本字段，供只有单一文本列的后端使用。
func EncodeDocumentText(meta entity.Metadata, content string) (string, error) {
	b, err := json.Marshal(meta)
	if err != nil {
		return "", err
	}
	var sb strings.Builder
	sb.Grow(len(documentMetaPrefix) + len(b) + 1 + len(content))
	sb.WriteString(documentMetaPrefix)
	sb.Write(b)
	sb.WriteByte('\n')
	sb.WriteString(content)
	return sb.String(), nil
}

// DecodeDocumentText 拆分元数据与正文；无前缀或元数据损坏时安全降级为纯文本。
func DecodeDocumentText(text string) (entity.Metadata, string) {
	if !strings.HasPrefix(text, documentMetaPrefix) {
		return entity.Metadata{}, text
	}
	rest := strings.TrimPrefix(text, documentMetaPrefix)
	line, body, ok := strings.Cut(rest, "\n")
	if !ok {
		return entity.Metadata{}, text
	}
	var meta entity.Metadata
	if err := json.Unmarshal([]byte(strings.TrimSpace(line)), &meta); err != nil {
		return entity.Metadata{}, body
	}
	return meta, body
}
