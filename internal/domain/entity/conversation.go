package entity

// Role 对话角色
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Valid 判断角色是否为调用方可提交的取值
func (r Role) Valid() bool {
	return r == RoleUser || r == RoleAssistant
}

// Message 对话消息，历史由调用方持有
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}
