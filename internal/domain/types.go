package domain

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// ============================================================================
// 行为码
// ============================================================================

const (
	BehaviorNone       = 0x0000
	BehaviorMusic      = 0x0001 // 点歌
	BehaviorNavigation = 0x001B // 导航
	BehaviorNearby     = 0x001C // 附近美食
	BehaviorErrorPage  = 0x1500 // 场景内统一错误页
)

// ============================================================================
// 上下文标识
// ============================================================================

const (
	ContextNavigation = "user_navigation"
	ContextWeather    = "online_weather"
)

const (
	ValidDegraded = 0
	ValidNormal   = 1
)

// ============================================================================
// TID - 场景节点编号
// ============================================================================

// TID 知识条目在话题内的编号。
// 未设置表示普通节点，0 表示场景根节点，其余为场景内部节点。
type TID struct {
	value int
	set   bool
}

// NewTID 创建已设置的编号
func NewTID(v int) TID {
	return TID{value: v, set: true}
}

// NoTID 返回未设置的编号
func NoTID() TID {
	return TID{}
}

// ParseTID 解析字符串编号，空串表示未设置
func ParseTID(s string) (TID, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return TID{}, nil
	}

	v, err := strconv.Atoi(s)
	if err != nil {
		return TID{}, fmt.Errorf("invalid tid %q: %w", s, err)
	}
	if v < 0 {
		return TID{}, fmt.Errorf("invalid tid %q: must be non-negative", s)
	}

	return NewTID(v), nil
}

func (t TID) IsSet() bool  { return t.set }
func (t TID) Value() int   { return t.value }
func (t TID) IsRoot() bool { return t.set && t.value == 0 }

func (t TID) String() string {
	if !t.set {
		return ""
	}
	return strconv.Itoa(t.value)
}

// MarshalJSON 未设置时输出空串，否则输出整数
func (t TID) MarshalJSON() ([]byte, error) {
	if !t.set {
		return []byte(`""`), nil
	}
	return []byte(strconv.Itoa(t.value)), nil
}

// UnmarshalJSON 接受整数、数字字符串、空串或 null
func (t *TID) UnmarshalJSON(data []byte) error {
	raw := strings.TrimSpace(string(data))
	if raw == "null" {
		*t = TID{}
		return nil
	}

	parsed, err := ParseTID(strings.Trim(raw, `"`))
	if err != nil {
		return err
	}

	*t = parsed
	return nil
}

// ============================================================================
// KnowledgeEntry - 知识库问答节点
// ============================================================================

// KnowledgeEntry 知识库中的一个问答节点（图中的 NluCell）
type KnowledgeEntry struct {
	Name      string   `mapstructure:"name"`
	Content   []string `mapstructure:"content"` // 候选答案，存储时以 | 分隔
	Topic     string   `mapstructure:"topic"`
	Tag       string   `mapstructure:"tag"`
	TID       TID      `mapstructure:"tid"`
	URL       []string `mapstructure:"url"`      // 候选资源，存储时以 | 分隔
	Behavior  HexCode  `mapstructure:"behavior"` // 存储为十六进制字符串
	Parameter string   `mapstructure:"parameter"`
	Txt       string   `mapstructure:"txt"`
	Img       string   `mapstructure:"img"`
	Button    string   `mapstructure:"button"`
	API       string   `mapstructure:"api"` // 答案后处理函数名
}

// HexCode 以十六进制字符串存储的整数
type HexCode int

// ParseHexCode 解析 "0x001B" 或 "001B"
func ParseHexCode(s string) (HexCode, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}

	s = strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X")
	v, err := strconv.ParseInt(s, 16, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid hex code %q: %w", s, err)
	}

	return HexCode(v), nil
}

// ============================================================================
// User - 机器人用户配置
// ============================================================================

// User 机器人用户配置
type User struct {
	UserID    string `json:"userid" mapstructure:"userid"`
	RobotName string `json:"robotname" mapstructure:"robotname"`
	RobotAge  string `json:"robotage" mapstructure:"robotage"`
	ErrorPage string `json:"error_page" mapstructure:"error_page"`
	City      string `json:"city" mapstructure:"city"`
}

// Format 个性化回答模板
func (u User) Format(sentence string) string {
	return strings.NewReplacer(
		"{robotname}", u.RobotName,
		"{robotage}", u.RobotAge,
		"{city}", u.City,
		"{userid}", u.UserID,
	).Replace(sentence)
}

func (u User) String() string {
	return u.Format("Hello! I'm {robotname} and I'm {robotage} years old.")
}

// ============================================================================
// MatchResult - 统一应答
// ============================================================================

// MatchResult 级联匹配的唯一输出
type MatchResult struct {
	Question  string `json:"question"`
	Name      string `json:"name"`
	Content   string `json:"content"`
	Context   string `json:"context"`
	TID       TID    `json:"tid"`
	URL       string `json:"url"`
	Behavior  int    `json:"behavior"`
	Parameter string `json:"parameter"`
	Txt       string `json:"txt"`
	Img       string `json:"img"`
	Button    string `json:"button"`
	Valid     int    `json:"valid"`
}

// NewResult 创建空应答
func NewResult(question string) MatchResult {
	return MatchResult{Question: question, Valid: ValidNormal}
}

// Matched 是否命中了知识（上下文非空）
func (r MatchResult) Matched() bool {
	return r.Context != ""
}

// ============================================================================
// Wire Request/Response
// ============================================================================

// Request 入站帧：ask_content 与 config_content 二选一
type Request struct {
	AskContent    *string `json:"ask_content,omitempty"`
	ConfigContent *string `json:"config_content,omitempty"`
	UserID        string  `json:"userid"`
}

// TopicSelection 用户可配置的知识库
type TopicSelection struct {
	Name      string `json:"name" mapstructure:"name"`
	Selected  int    `json:"bselected" mapstructure:"bselected"`
	Available int    `json:"available" mapstructure:"available"`
}

// ConfigResult 配置协议应答
type ConfigResult struct {
	Listing   bool             `json:"-"`
	Databases []TopicSelection `json:"databases"`
	Topics    []string         `json:"topics"`
}

// MarshalJSON 查询时只输出 databases，更新时只输出 topics
func (r ConfigResult) MarshalJSON() ([]byte, error) {
	if r.Listing {
		databases := r.Databases
		if databases == nil {
			databases = []TopicSelection{}
		}
		return json.Marshal(map[string]any{"databases": databases})
	}

	topics := r.Topics
	if topics == nil {
		topics = []string{}
	}
	return json.Marshal(map[string]any{"topics": topics})
}

// ErrorResponse 畸形帧应答
type ErrorResponse struct {
	Error string `json:"error"`
}
