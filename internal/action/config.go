package action

import (
	"fmt"
	"strings"
	"time"

	"github.com/Zereker/nlu/internal/domain"
)

const (
	PatternTag    = "tag"
	PatternVector = "vec"
)

// Config 对话引擎配置，启动时加载一次并冻结为 Tables
type Config struct {
	Pattern         string   `toml:"pattern"`      // 只支持 tag
	DefaultUser     string   `toml:"default_user"` // 未知用户回落到此用户
	FallbackName    string   `toml:"fallback_robot_name"`
	FallbackError   string   `toml:"fallback_error_page"`
	TagThreshold    float64  `toml:"tag_threshold"`    // (0, 1)，0 取默认值
	PinyinThreshold float64  `toml:"pinyin_threshold"` // (0, 1)，0 取默认值
	PinyinFallback  bool     `toml:"pinyin_fallback"`
	LookupTimeout   string   `toml:"lookup_timeout"`
	EnrichTimeout   string   `toml:"enrich_timeout"`
	EndScene        []string `toml:"end_scene"`
	PreviousStep    []string `toml:"previous_step"`
	NextStep        []string `toml:"next_step"`
	Repeat          []string `toml:"repeat"`
	NameVariants    []string `toml:"name_variants"`
	Honorific       string   `toml:"honorific"`
	OnlineMarker    string   `toml:"online_marker"`
	Fillers         []string `toml:"fillers"`
	MusicKeywords   []string `toml:"music_keywords"`
	NearbyKeywords  []string `toml:"nearby_keywords"`
	WeatherKeywords []string `toml:"weather_keywords"`
	MusicReply      string   `toml:"music_reply"`
}

// DefaultConfig 内置默认值
func DefaultConfig() Config {
	return Config{
		Pattern:         PatternTag,
		DefaultUser:     "A0001",
		FallbackName:    "小民",
		FallbackError:   "抱歉，没有找到相关内容，请返回重试",
		TagThreshold:    0.92,
		PinyinThreshold: 0.75,
		LookupTimeout:   "2s",
		EnrichTimeout:   "3s",
		EndScene:        []string{"退出业务场景", "退出场景", "退出", "返回", "结束", "发挥"},
		PreviousStep:    []string{"上一步", "上一部", "上一页", "上一个"},
		NextStep:        []string{"下一步", "下一部", "下一页", "下一个"},
		Repeat:          []string{"重复", "再来一个", "再来一遍", "你刚说什么", "再说一遍", "重来"},
		NameVariants:    []string{"小民", "小明", "小名", "晓明"},
		Honorific:       "小",
		OnlineMarker:    "在线",
		Fillers: []string{
			"这个问题太难了，{robotname}还在学习中",
			"这个问题{robotname}不会，要么我去问下",
			"您刚才说的是什么，可以再重复一遍吗",
			"{robotname}刚才走神了，一不小心没听清",
			"{robotname}理解的不是很清楚啦，你就换种方式表达呗",
			"不如我们换个话题吧",
			"咱们聊点别的吧",
			"{robotname}正在学习中",
			"{robotname}正在学习哦",
			"不好意思请问您可以再说一次吗",
			"额，这个问题嘛。。。",
			"{robotname}得好好想一想呢",
			"请问您说什么",
			"您问的问题好有深度呀",
			"{robotname}没有听明白，您能再说一遍吗",
		},
		MusicKeywords:   []string{"唱一首", "唱首", "我想听"},
		NearbyKeywords:  []string{"附近", "好吃的"},
		WeatherKeywords: []string{"天气"},
		MusicReply:      "好的，正在准备哦",
	}
}

// Validate 未配置的项使用默认值，然后校验
func (c *Config) Validate() error {
	def := DefaultConfig()

	if c.Pattern == "" {
		c.Pattern = def.Pattern
	}
	switch c.Pattern {
	case PatternTag:
	case PatternVector:
		return fmt.Errorf("pattern %q is not supported, use %q", c.Pattern, PatternTag)
	default:
		return fmt.Errorf("unknown pattern %q", c.Pattern)
	}

	setString(&c.DefaultUser, def.DefaultUser)
	setString(&c.FallbackName, def.FallbackName)
	setString(&c.FallbackError, def.FallbackError)
	setString(&c.LookupTimeout, def.LookupTimeout)
	setString(&c.EnrichTimeout, def.EnrichTimeout)
	setString(&c.Honorific, def.Honorific)
	setString(&c.OnlineMarker, def.OnlineMarker)
	setString(&c.MusicReply, def.MusicReply)

	setList(&c.EndScene, def.EndScene)
	setList(&c.PreviousStep, def.PreviousStep)
	setList(&c.NextStep, def.NextStep)
	setList(&c.Repeat, def.Repeat)
	setList(&c.NameVariants, def.NameVariants)
	setList(&c.Fillers, def.Fillers)
	setList(&c.MusicKeywords, def.MusicKeywords)
	setList(&c.NearbyKeywords, def.NearbyKeywords)
	setList(&c.WeatherKeywords, def.WeatherKeywords)

	// 0 表示未配置
	if c.TagThreshold == 0 {
		c.TagThreshold = def.TagThreshold
	}
	if c.PinyinThreshold == 0 {
		c.PinyinThreshold = def.PinyinThreshold
	}
	if c.TagThreshold <= 0 || c.TagThreshold >= 1 {
		return fmt.Errorf("tag_threshold must be in (0, 1)")
	}
	if c.PinyinThreshold <= 0 || c.PinyinThreshold >= 1 {
		return fmt.Errorf("pinyin_threshold must be in (0, 1)")
	}

	for name, v := range map[string]string{"lookup_timeout": c.LookupTimeout, "enrich_timeout": c.EnrichTimeout} {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("%s is invalid: %w", name, err)
		}
		if d <= 0 {
			return fmt.Errorf("%s must be positive", name)
		}
	}

	return nil
}

// Tables 编译后的只读配置
type Tables struct {
	DefaultUser     string
	Fallback        domain.User
	TagThreshold    float64
	PinyinThreshold float64
	PinyinFallback  bool
	LookupTimeout   time.Duration
	EnrichTimeout   time.Duration
	endScene        map[string]struct{}
	repeat          map[string]struct{}
	previousStep    []string
	nextStep        []string
	NameVariants    []string
	Honorific       string
	OnlineMarker    string
	Fillers         []string
	MusicKeywords   []string
	NearbyKeywords  []string
	WeatherKeywords []string
	MusicReply      string
}

// Tables 冻结配置，调用前需先 Validate
func (c Config) Tables() Tables {
	lookup, _ := time.ParseDuration(c.LookupTimeout)
	enrich, _ := time.ParseDuration(c.EnrichTimeout)

	return Tables{
		DefaultUser: c.DefaultUser,
		Fallback: domain.User{
			UserID:    c.DefaultUser,
			RobotName: c.FallbackName,
			ErrorPage: c.FallbackError,
		},
		TagThreshold:    c.TagThreshold,
		PinyinThreshold: c.PinyinThreshold,
		PinyinFallback:  c.PinyinFallback,
		LookupTimeout:   lookup,
		EnrichTimeout:   enrich,
		endScene:        toSet(c.EndScene),
		repeat:          toSet(c.Repeat),
		previousStep:    clone(c.PreviousStep),
		nextStep:        clone(c.NextStep),
		NameVariants:    clone(c.NameVariants),
		Honorific:       c.Honorific,
		OnlineMarker:    c.OnlineMarker,
		Fillers:         clone(c.Fillers),
		MusicKeywords:   clone(c.MusicKeywords),
		NearbyKeywords:  clone(c.NearbyKeywords),
		WeatherKeywords: clone(c.WeatherKeywords),
		MusicReply:      c.MusicReply,
	}
}

// IsEndScene 完全匹配退出指令
func (t Tables) IsEndScene(q string) bool {
	_, ok := t.endScene[q]
	return ok
}

// IsRepeat 完全匹配重复指令
func (t Tables) IsRepeat(q string) bool {
	_, ok := t.repeat[q]
	return ok
}

// IsPreviousStep 包含上一步指令
func (t Tables) IsPreviousStep(q string) bool {
	return containsAny(q, t.previousStep)
}

// IsNextStep 包含下一步指令
func (t Tables) IsNextStep(q string) bool {
	return containsAny(q, t.nextStep)
}

func containsAny(s string, words []string) bool {
	for _, w := range words {
		if w != "" && strings.Contains(s, w) {
			return true
		}
	}
	return false
}

func setString(v *string, def string) {
	if strings.TrimSpace(*v) == "" {
		*v = def
	}
}

func setList(v *[]string, def []string) {
	if len(*v) == 0 {
		*v = clone(def)
	}
}

func toSet(words []string) map[string]struct{} {
	s := make(map[string]struct{}, len(words))
	for _, w := range words {
		s[w] = struct{}{}
	}
	return s
}

func clone(s []string) []string {
	return append([]string(nil), s...)
}
