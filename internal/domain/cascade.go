package domain

import "context"

// ============================================================================
// Stage - 级联匹配阶段
// ============================================================================

// Stage 级联中的一个匹配阶段。
// 阶段命中时调用 Resolve 终止级联，未命中时直接返回，由级联继续下一阶段。
type Stage interface {
	Name() string
	Handle(*QueryContext)
}

// ============================================================================
// QueryContext - 单次问答上下文
// ============================================================================

// QueryContext 单次问答在级联中流转的上下文
type QueryContext struct {
	context.Context

	// 输入
	UserID   string
	Original string // 原始问题
	Question string // 预处理后的问题

	// 调用方解析好的依赖
	User    User
	Session *Session
	Topics  []string // 用户已启用的话题

	// 元数据
	Metadata map[string]any

	// 输出
	Result     MatchResult
	ResolvedBy string
	Degraded   error // 阶段内被降级的错误，仅用于日志与指标

	// 链式控制
	stages  []Stage
	index   int
	aborted bool
}

// NewQueryContext 创建问答上下文
func NewQueryContext(ctx context.Context, userID, question string) *QueryContext {
	return &QueryContext{
		Context:  ctx,
		UserID:   userID,
		Original: question,
		Question: question,
		Metadata: make(map[string]any),
		Result:   NewResult(question),
	}
}

// Set 存储元数据
func (c *QueryContext) Set(key string, value any) {
	c.Metadata[key] = value
}

// Get 获取元数据
func (c *QueryContext) Get(key string) (any, bool) {
	val, ok := c.Metadata[key]
	return val, ok
}

// Resolve 以结果终止级联
func (c *QueryContext) Resolve(stage string, result MatchResult) {
	c.Result = result
	c.ResolvedBy = stage
	c.aborted = true
}

// Degrade 记录被降级的错误
func (c *QueryContext) Degrade(err error) {
	if err != nil && c.Degraded == nil {
		c.Degraded = err
	}
}

// Abort 终止级联
func (c *QueryContext) Abort() {
	c.aborted = true
}

// IsAborted 返回级联是否已终止
func (c *QueryContext) IsAborted() bool {
	return c.aborted
}

// Next 调用级联中的下一个阶段
func (c *QueryContext) Next() {
	c.index++
	for c.index < len(c.stages) {
		if c.aborted {
			return
		}

		c.stages[c.index].Handle(c)
		c.index++
	}
}

// ============================================================================
// Cascade - 有序阶段链
// ============================================================================

// Cascade 按优先级排列的匹配阶段，首个命中的阶段胜出
type Cascade struct {
	stages []Stage
}

// NewCascade 创建空级联
func NewCascade() *Cascade {
	return &Cascade{stages: []Stage{}}
}

// Use 追加阶段
func (chain *Cascade) Use(stages ...Stage) *Cascade {
	chain.stages = append(chain.stages, stages...)
	return chain
}

// Stages 返回阶段名列表
func (chain *Cascade) Stages() []string {
	names := make([]string, 0, len(chain.stages))
	for _, s := range chain.stages {
		names = append(names, s.Name())
	}
	return names
}

// Run 顺序执行阶段直到有阶段命中
func (chain *Cascade) Run(c *QueryContext) {
	c.stages = chain.stages
	c.index = -1
	c.aborted = false
	c.Next()
}
