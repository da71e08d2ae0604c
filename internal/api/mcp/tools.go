package mcp

// Tool represents an MCP tool definition
type Tool struct {
	Name        string      `json:"name"`
	Description string      `json:"description"`
	InputSchema InputSchema `json:"inputSchema"`
}

// InputSchema defines the JSON schema for tool input
type InputSchema struct {
	Type       string              `json:"type"`
	Properties map[string]Property `json:"properties"`
	Required   []string            `json:"required,omitempty"`
}

// Property defines a property in the schema
type Property struct {
	Type        string `json:"type"`
	Description string `json:"description,omitempty"`
	Default     any    `json:"default,omitempty"`
}

const (
	ToolAsk       = "nlu_ask"
	ToolTopics    = "nlu_list_topics"
	ToolConfigure = "nlu_configure_topics"
)

// RobotTools defines all available MCP tools for the question answering robot
var RobotTools = []Tool{
	{
		Name:        ToolAsk,
		Description: "向问答机器人提问。同一 userid 的连续提问共享会话，可在业务场景内用“下一步”“上一步”“退出”导航。",
		InputSchema: InputSchema{
			Type: "object",
			Properties: map[string]Property{
				"userid": {
					Type:        "string",
					Description: "机器人用户标识，为空时使用默认用户",
				},
				"question": {
					Type:        "string",
					Description: "问题文本",
				},
			},
			Required: []string{"question"},
		},
	},
	{
		Name:        ToolTopics,
		Description: "列出用户可配置的知识库及其是否启用。",
		InputSchema: InputSchema{
			Type: "object",
			Properties: map[string]Property{
				"userid": {
					Type:        "string",
					Description: "机器人用户标识",
				},
			},
			Required: []string{"userid"},
		},
	},
	{
		Name:        ToolConfigure,
		Description: "设置用户启用的知识库，未列出的知识库全部停用，返回启用后的话题。",
		InputSchema: InputSchema{
			Type: "object",
			Properties: map[string]Property{
				"userid": {
					Type:        "string",
					Description: "机器人用户标识",
				},
				"topics": {
					Type:        "string",
					Description: "以空格分隔的知识库名称",
				},
			},
			Required: []string{"userid", "topics"},
		},
	},
}
