package action

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/Zereker/nlu/internal/domain"
)

// APIFunc 答案后处理函数，输入为挑选后的答案内容
type APIFunc func(ctx context.Context, content string, user domain.User) (string, error)

// 内置后处理函数名
const (
	APICurrentTime = "get_current_time"
	APICurrentDate = "get_current_date"
	APIWeekday     = "get_weekday"
)

var weekdays = [...]string{"星期日", "星期一", "星期二", "星期三", "星期四", "星期五", "星期六"}

// APIRegistry 按名字注册的后处理函数表。
// 知识条目只能引用已注册的名字，启动时通过 Validate 校验。
type APIRegistry struct {
	mu    sync.RWMutex
	funcs map[string]APIFunc
	now   func() time.Time
}

// NewAPIRegistry 创建带内置函数的注册表
func NewAPIRegistry() *APIRegistry {
	return newAPIRegistry(time.Now)
}

func newAPIRegistry(now func() time.Time) *APIRegistry {
	r := &APIRegistry{
		funcs: make(map[string]APIFunc),
		now:   now,
	}

	r.funcs[APICurrentTime] = r.currentTime
	r.funcs[APICurrentDate] = r.currentDate
	r.funcs[APIWeekday] = r.weekday

	return r
}

// Register 注册函数，名字重复时报错
func (r *APIRegistry) Register(name string, fn APIFunc) error {
	name = strings.TrimSpace(name)
	if name == "" || fn == nil {
		return errors.New("api name and func are required")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.funcs[name]; ok {
		return errors.Errorf("api %q already registered", name)
	}
	r.funcs[name] = fn
	return nil
}

// Lookup 查找函数
func (r *APIRegistry) Lookup(name string) (APIFunc, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	fn, ok := r.funcs[name]
	return fn, ok
}

// Names 已注册的函数名，按字母序
func (r *APIRegistry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.funcs))
	for name := range r.funcs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Validate 校验知识库引用的函数名都已注册
func (r *APIRegistry) Validate(names []string) error {
	var unknown []string
	for _, name := range names {
		if name == "" {
			continue
		}
		if _, ok := r.Lookup(name); !ok {
			unknown = append(unknown, name)
		}
	}

	if len(unknown) > 0 {
		sort.Strings(unknown)
		return errors.Errorf("unregistered api referenced by knowledge: %s", strings.Join(unknown, ", "))
	}
	return nil
}

// Apply 执行后处理
func (r *APIRegistry) Apply(ctx context.Context, name, content string, user domain.User) (string, error) {
	fn, ok := r.Lookup(name)
	if !ok {
		return content, errors.Errorf("api %q not registered", name)
	}

	out, err := fn(ctx, content, user)
	if err != nil {
		return content, errors.Wrapf(err, "api %s", name)
	}
	return out, nil
}

// ============================================================================
// 内置函数：答案中的占位符替换为当前时间
// ============================================================================

func (r *APIRegistry) currentTime(_ context.Context, content string, _ domain.User) (string, error) {
	now := r.now()
	return fillOrAppend(content, "{time}", fmt.Sprintf("%d点%d分", now.Hour(), now.Minute())), nil
}

func (r *APIRegistry) currentDate(_ context.Context, content string, _ domain.User) (string, error) {
	now := r.now()
	return fillOrAppend(content, "{date}", fmt.Sprintf("%d年%d月%d日", now.Year(), now.Month(), now.Day())), nil
}

func (r *APIRegistry) weekday(_ context.Context, content string, _ domain.User) (string, error) {
	return fillOrAppend(content, "{weekday}", weekdays[r.now().Weekday()]), nil
}

// fillOrAppend 有占位符时替换，没有时追加在末尾
func fillOrAppend(content, placeholder, value string) string {
	if strings.Contains(content, placeholder) {
		return strings.ReplaceAll(content, placeholder, value)
	}
	return content + value
}
