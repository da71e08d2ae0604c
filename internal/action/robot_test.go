package action

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Zereker/nlu/internal/domain"
	"github.com/Zereker/nlu/internal/session"
	"github.com/Zereker/nlu/pkg/nlp"
)

var testUser = domain.User{
	UserID:    "A0001",
	RobotName: "小民",
	RobotAge:  "3",
	ErrorPage: "页面走丢了",
	City:      "上海",
}

// campusEntries 一个校园导览场景加两个普通问答
//
//	校园导览(0) --img--> 图书馆介绍(1)
//	            --area--> 体育馆介绍(3)
//	            --next--> 食堂介绍(2) --next--> 宿舍介绍(4)
func campusEntries() []domain.KnowledgeEntry {
	return []domain.KnowledgeEntry{
		{
			Name:    "校园导览",
			Topic:   "campus",
			TID:     domain.NewTID(0),
			Content: []string{"欢迎来到{robotname}的校园导览"},
			Img:     `{"library":{"content":"图书馆介绍","url":"1"}}`,
			Button:  `{"next":{"content":"食堂介绍","url":2},"area":{"gym":{"content":"体育馆介绍","url":"3"}}}`,
		},
		{Name: "图书馆介绍", Topic: "campus", TID: domain.NewTID(1), Content: []string{"图书馆在东边"}},
		{
			Name:    "食堂介绍",
			Topic:   "campus",
			TID:     domain.NewTID(2),
			Content: []string{"食堂在西边"},
			Button:  `{"next":{"content":"宿舍介绍","url":"4"}}`,
		},
		{Name: "体育馆介绍", Topic: "campus", TID: domain.NewTID(3), Content: []string{"体育馆在北边"}},
		{Name: "宿舍介绍", Topic: "campus", TID: domain.NewTID(4), Content: []string{"宿舍在南边"}},
		{Name: "你叫什么名字", Topic: "chat", Content: []string{"我是{robotname}"}, Behavior: 0x0010},
		{Name: "签名", Topic: "chat", Content: []string{"再见"}, API: "sign"},
	}
}

type robotFixture struct {
	robot    *Robot
	tables   Tables
	store    *MockKnowledgeStore
	tok      *MockTokenizer
	enricher *MockEnricher
	recorder *MockRecorder
	sessions *session.Store
}

func newRobotFixture(t *testing.T, opts ...func(*Tables)) *robotFixture {
	t.Helper()

	sessions, err := session.NewStore(session.Config{})
	require.NoError(t, err)

	apis := NewAPIRegistry()
	require.NoError(t, apis.Register("sign", func(_ context.Context, content string, user domain.User) (string, error) {
		return content + "，" + user.RobotName, nil
	}))

	f := &robotFixture{
		tables:   testTables(t),
		store:    NewMockKnowledgeStore(campusEntries()...),
		tok:      NewMockTokenizer(),
		enricher: NewMockEnricher(),
		recorder: &MockRecorder{},
		sessions: sessions,
	}

	for _, opt := range opts {
		opt(&f.tables)
	}

	f.robot = NewRobot(f.tables, Options{
		Store:     f.store,
		Tokenizer: f.tok,
		Sessions:  sessions,
		Enricher:  f.enricher,
		Recorder:  f.recorder,
		APIs:      apis,
		Locations: []string{"图书馆", "食堂"},
	})
	return f
}

func (f *robotFixture) ask(question string) domain.MatchResult {
	return f.robot.Search(context.Background(), testUser.UserID, question)
}

func (f *robotFixture) session() *domain.Session {
	return f.sessions.Get(testUser.UserID)
}

func assertDoNotKnow(t *testing.T, tables Tables, result domain.MatchResult) {
	t.Helper()

	assert.Empty(t, result.Context)
	assert.Equal(t, domain.ValidNormal, result.Valid)

	for _, filler := range tables.Fillers {
		if testUser.Format(filler) == result.Content {
			return
		}
	}
	t.Errorf("content %q is not a filler", result.Content)
}

func assertErrorPage(t *testing.T, result domain.MatchResult) {
	t.Helper()

	assert.Equal(t, domain.ValidDegraded, result.Valid)
	assert.Equal(t, domain.BehaviorErrorPage, result.Behavior)
	assert.Equal(t, testUser.ErrorPage, result.Content)
	assert.Empty(t, result.Context)
}

func TestRobotStages(t *testing.T) {
	f := newRobotFixture(t)

	assert.Equal(t, []string{
		"sensitive", "addressing", "navigation", "repeat",
		"end_scene", "scene", "knowledge", "online",
	}, f.robot.Stages())
}

func TestSearchSensitive(t *testing.T) {
	f := newRobotFixture(t)

	result := f.ask("这是敏感词校园导览")

	assert.Equal(t, "这是敏感词校园导览", result.Question)
	assert.Empty(t, result.Content)
	assert.Empty(t, result.Context)
	assert.Equal(t, domain.ValidNormal, result.Valid)
	assert.Empty(t, f.store.FindEntriesCalls)
	assert.Zero(t, f.session().Answers.Len())
}

func TestSearchNavigation(t *testing.T) {
	f := newRobotFixture(t)

	result := f.ask("小民我要去图书馆")

	assert.Equal(t, "去图书馆", result.Name)
	assert.Equal(t, "图书馆", result.Content)
	assert.Equal(t, domain.ContextNavigation, result.Context)
	assert.Equal(t, domain.BehaviorNavigation, result.Behavior)

	s := f.session()
	assert.False(t, s.InScene)
	assert.Empty(t, s.Topic)
	assert.Equal(t, 1, s.Answers.Len())
	assert.Equal(t, 1, s.Previous.Len())
	assert.Equal(t, []string{"navigation"}, f.recorder.Stages)
}

func TestSearchRepeat(t *testing.T) {
	f := newRobotFixture(t)

	t.Run("empty memory", func(t *testing.T) {
		result := f.ask("再说一遍")
		assert.Empty(t, result.Content)
		assert.Empty(t, result.Context)
	})

	t.Run("last answer", func(t *testing.T) {
		first := f.ask("你叫什么名字")
		require.Equal(t, "我是小民", first.Content)
		assert.Equal(t, 0x0010, first.Behavior)

		again := f.ask("再说一遍")
		assert.Equal(t, first, again)
		assert.Equal(t, 1, f.session().Answers.Len())
	})
}

func TestSearchSceneFlow(t *testing.T) {
	f := newRobotFixture(t)

	// 进入场景
	root := f.ask("校园导览")
	require.Equal(t, "欢迎来到小民的校园导览", root.Content)
	assert.True(t, root.TID.IsRoot())

	s := f.session()
	require.True(t, s.InScene)
	assert.Equal(t, "campus", s.Topic)
	assert.Equal(t, 1, s.Answers.Len())
	assert.Equal(t, 1, s.Previous.Len())

	// 下一步沿 button.next 跳转
	next := f.ask("下一步")
	assert.Equal(t, "食堂介绍", next.Name)
	assert.Equal(t, "食堂在西边", next.Content)
	require.NotEmpty(t, f.store.FindEntryCalls)
	assert.Equal(t, struct{ Topic, TID, Name string }{"campus", "2", "食堂介绍"}, f.store.FindEntryCalls[0])
	assert.Equal(t, 2, s.Answers.Len())
	assert.Equal(t, 2, s.Previous.Len())

	// 上一步：回退流多于一条时弹出
	back := f.ask("上一步")
	assert.Equal(t, root, back)
	assert.Equal(t, 1, s.Answers.Len())
	assert.Equal(t, 1, s.Previous.Len())

	// 上一步：只剩一条时原样返回
	back = f.ask("返回上一步")
	assert.Equal(t, root, back)
	assert.Equal(t, 1, s.Previous.Len())

	// 通过 img 链接可达
	library := f.ask("图书馆介绍")
	assert.Equal(t, "图书馆在东边", library.Content)
	assert.Equal(t, 2, s.Answers.Len())

	// 上一条应答没有链接，不可达
	assertErrorPage(t, f.ask("宿舍介绍"))
	assert.Equal(t, 2, s.Answers.Len())

	// 退出
	exit := f.ask("退出")
	assert.Equal(t, domain.MatchResult{
		Question: "退出",
		Name:     "退出",
		Behavior: 0,
		Content:  "",
		Valid:    domain.ValidNormal,
	}, exit)
	assert.False(t, s.InScene)
	assert.Empty(t, s.Topic)
	assert.Zero(t, s.Answers.Len())
	assert.Zero(t, s.Previous.Len())
}

func TestSearchSceneReachability(t *testing.T) {
	t.Run("button area is reachable", func(t *testing.T) {
		f := newRobotFixture(t)
		f.ask("校园导览")

		result := f.ask("体育馆介绍")
		assert.Equal(t, "体育馆在北边", result.Content)
	})

	t.Run("button next is not reachable by matching", func(t *testing.T) {
		f := newRobotFixture(t)
		f.ask("校园导览")

		assertErrorPage(t, f.ask("食堂介绍"))
	})

	t.Run("unmatched question in scene", func(t *testing.T) {
		f := newRobotFixture(t)
		f.ask("校园导览")

		assertErrorPage(t, f.ask("今天吃什么呢"))
		assert.Empty(t, f.recorder.Unanswered)
	})

	t.Run("next without link", func(t *testing.T) {
		f := newRobotFixture(t)
		f.ask("校园导览")
		f.ask("图书馆介绍")

		assertErrorPage(t, f.ask("下一步"))
	})

	t.Run("previous with empty memory", func(t *testing.T) {
		f := newRobotFixture(t)
		s := f.session()
		s.InScene = true
		s.Topic = "campus"

		assertErrorPage(t, f.ask("上一步"))
	})
}

func TestSearchSceneInteriorOutOfScene(t *testing.T) {
	f := newRobotFixture(t)

	result := f.ask("图书馆介绍")

	assert.Empty(t, result.Content)
	assert.Empty(t, result.Context)
	assert.False(t, f.session().InScene)
	assert.Zero(t, f.session().Answers.Len())
}

func TestSearchOrdinaryRemembersTopic(t *testing.T) {
	f := newRobotFixture(t)

	result := f.ask("小民你叫什么名字")
	assert.Equal(t, "我是小民", result.Content)
	assert.Equal(t, "chat", result.Context)
	assert.Equal(t, "你叫什么名字", result.Question)

	s := f.session()
	assert.Equal(t, "chat", s.Topic)
	assert.False(t, s.InScene)
	assert.Equal(t, 1, s.Answers.Len())
	assert.Equal(t, 1, s.Previous.Len())

	// 已有话题时不再尝试在线意图，也不记录未回答问题
	assertDoNotKnow(t, f.tables, f.ask("天气怎么样"))
	assert.Empty(t, f.enricher.WeatherCalls)
	assert.Empty(t, f.recorder.Unanswered)
}

func TestSearchKeySentence(t *testing.T) {
	f := newRobotFixture(t)

	result := f.ask("请问你叫什么名字呀朋友")
	assert.Equal(t, "我是小民", result.Content)
	assert.NotEmpty(t, f.store.KeySentenceCalls)
}

// withPinyin 开启拼音匹配，并让 aliases 中的文本与 name 拼音相同
func withPinyin(f *robotFixture, name string, aliases ...string) {
	f.tok.PinyinFunc = func(text string) nlp.Set {
		if text == name || slices.Contains(aliases, text) {
			return nlp.Set{"pin": {}, "yin": {}}
		}
		return runeSet(text)
	}
}

func pinyinFallback(tables *Tables) {
	tables.PinyinFallback = true
}

func TestSearchPinyinFallback(t *testing.T) {
	t.Run("keysentence wins over pinyin", func(t *testing.T) {
		f := newRobotFixture(t, pinyinFallback)
		f.store.Entries = append(f.store.Entries,
			domain.KnowledgeEntry{Name: "拼音候选", Topic: "chat", Content: []string{"pinyin"}},
			domain.KnowledgeEntry{Name: "关键句", Topic: "chat", Content: []string{"keysentence"}},
		)
		withPinyin(f, "拼音候选", "包含关键句的问题")

		result := f.ask("包含关键句的问题")
		assert.Equal(t, "keysentence", result.Content)
		assert.Len(t, f.store.KeySentenceCalls, 1)
	})

	t.Run("pinyin after keysentence misses", func(t *testing.T) {
		f := newRobotFixture(t, pinyinFallback)
		f.store.Entries = append(f.store.Entries,
			domain.KnowledgeEntry{Name: "拼音候选", Topic: "chat", Content: []string{"pinyin"}},
		)
		withPinyin(f, "拼音候选", "拼音问题")

		result := f.ask("拼音问题")
		assert.Equal(t, "pinyin", result.Content)
		assert.Equal(t, "chat", result.Context)
		assert.Len(t, f.store.KeySentenceCalls, 1)
	})

	t.Run("disabled", func(t *testing.T) {
		f := newRobotFixture(t)
		f.store.Entries = append(f.store.Entries,
			domain.KnowledgeEntry{Name: "拼音候选", Topic: "chat", Content: []string{"pinyin"}},
		)
		withPinyin(f, "拼音候选", "拼音问题")

		assertDoNotKnow(t, f.tables, f.ask("拼音问题"))
	})

	t.Run("not used inside scene", func(t *testing.T) {
		f := newRobotFixture(t, pinyinFallback)
		withPinyin(f, "图书馆介绍", "突书管介少")
		f.ask("校园导览")

		assertErrorPage(t, f.ask("突书管介少"))
		assert.True(t, f.session().InScene)
		assert.Equal(t, 1, f.session().Answers.Len())
	})
}

func TestSearchSceneTopicDisabled(t *testing.T) {
	f := newRobotFixture(t)
	f.ask("校园导览")
	require.True(t, f.session().InScene)

	f.store.GetUserTopicsFunc = func(context.Context, string) ([]string, error) {
		return []string{"chat"}, nil
	}

	assertErrorPage(t, f.ask("图书馆介绍"))
	assert.Empty(t, f.store.FindEntriesCalls[1:], "disabled scene topic is not searched")
	assert.Equal(t, 1, f.session().Answers.Len())
}

func TestSearchAPIPostProcess(t *testing.T) {
	f := newRobotFixture(t)

	result := f.ask("签名")
	assert.Equal(t, "再见，小民", result.Content)
}

func TestSearchOnline(t *testing.T) {
	tests := []struct {
		name     string
		question string
		behavior int
		content  string
		context  string
	}{
		{"music", "给我唱首歌", domain.BehaviorMusic, "好的，正在准备哦", ""},
		{"nearby", "附近有什么", domain.BehaviorNearby, "上海市浦东新区", ""},
		{"weather", "明天天气怎么样", domain.BehaviorNone, "上海 晴 25℃", domain.ContextWeather},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newRobotFixture(t)

			result := f.ask(tt.question)
			assert.Equal(t, tt.behavior, result.Behavior)
			assert.Equal(t, tt.content, result.Content)
			assert.Equal(t, tt.context, result.Context)

			s := f.session()
			assert.Equal(t, 1, s.Answers.Len())
			assert.Zero(t, s.Previous.Len())
			assert.Empty(t, f.recorder.Unanswered)
		})
	}
}

func TestSearchOnlineConcurrentUsers(t *testing.T) {
	f := newRobotFixture(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			f.robot.Search(ctx, fmt.Sprintf("weather-%d", i), "明天天气怎么样")
		}()
		go func() {
			defer wg.Done()
			f.robot.Search(ctx, fmt.Sprintf("nearby-%d", i), "附近有什么")
		}()
	}
	wg.Wait()

	assert.Len(t, f.enricher.WeatherCalls, 10)
	assert.Equal(t, 10, f.enricher.AddressCalls)
}

func TestSearchOnlineFailure(t *testing.T) {
	f := newRobotFixture(t)
	f.enricher.WeatherReportFunc = func(context.Context, string) (string, error) {
		return "", errors.New("timeout")
	}

	assertDoNotKnow(t, f.tables, f.ask("天气"))
	assert.Zero(t, f.session().Answers.Len())
	assert.Empty(t, f.recorder.Unanswered)
}

func TestSearchUnanswered(t *testing.T) {
	f := newRobotFixture(t)

	assertDoNotKnow(t, f.tables, f.ask("今天吃什么呢"))
	assert.Equal(t, []string{"今天吃什么呢"}, f.recorder.Unanswered)
	assert.Empty(t, f.recorder.Turns)
}

func TestSearchStoreUnavailable(t *testing.T) {
	down := func(context.Context, string, []string) ([]domain.KnowledgeEntry, error) {
		return nil, domain.ErrStoreUnavailable
	}

	t.Run("outside scene", func(t *testing.T) {
		f := newRobotFixture(t)
		f.store.FindEntriesByTagFunc = down

		assertDoNotKnow(t, f.tables, f.ask("你叫什么名字"))
	})

	t.Run("inside scene", func(t *testing.T) {
		f := newRobotFixture(t)
		f.ask("校园导览")
		f.store.FindEntriesByTagFunc = down

		assertErrorPage(t, f.ask("图书馆介绍"))
	})

	t.Run("user lookup", func(t *testing.T) {
		f := newRobotFixture(t)
		f.store.GetUserFunc = func(context.Context, string) (*domain.User, error) {
			return nil, domain.ErrStoreUnavailable
		}

		result := f.ask("你叫什么名字")
		assert.Equal(t, "我是小民", result.Content)
	})
}

func TestSearchUnknownUser(t *testing.T) {
	f := newRobotFixture(t)

	result := f.robot.Search(context.Background(), "X999", "你叫什么名字")

	assert.Equal(t, "我是小民", result.Content)
	assert.Equal(t, []string{"X999", "A0001"}, f.store.GetUserCalls)
	assert.Equal(t, []string{"A0001"}, f.store.GetUserTopicsCalls)
	assert.Equal(t, 1, f.sessions.Get("X999").Answers.Len())
	assert.Zero(t, f.sessions.Get("A0001").Answers.Len())
}

func TestSearchSessionsIsolated(t *testing.T) {
	f := newRobotFixture(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			f.robot.Search(ctx, "scene-user", "校园导览")
		}()
		go func() {
			defer wg.Done()
			f.robot.Search(ctx, "chat-user", "你叫什么名字")
		}()
	}
	wg.Wait()

	scene := f.sessions.Get("scene-user")
	assert.True(t, scene.InScene)
	assert.Equal(t, "campus", scene.Topic)
	assert.Equal(t, 1, scene.Answers.Len())

	chat := f.sessions.Get("chat-user")
	assert.False(t, chat.InScene)
	assert.Equal(t, "chat", chat.Topic)
	assert.Equal(t, domain.MemorySize, chat.Answers.Len())
}

func TestConfigure(t *testing.T) {
	ctx := context.Background()

	t.Run("empty user", func(t *testing.T) {
		f := newRobotFixture(t)

		_, err := f.robot.Configure(ctx, " ", "")
		assert.ErrorIs(t, err, domain.ErrInvalidUser)
	})

	t.Run("listing", func(t *testing.T) {
		f := newRobotFixture(t)
		f.store.ListSelectionsFunc = func(_ context.Context, userID string) ([]domain.TopicSelection, error) {
			assert.Equal(t, "A0001", userID)
			return []domain.TopicSelection{{Name: "校园", Selected: 1, Available: 1}}, nil
		}

		result, err := f.robot.Configure(ctx, "X999", "  ")
		require.NoError(t, err)
		assert.True(t, result.Listing)
		assert.Equal(t, []domain.TopicSelection{{Name: "校园", Selected: 1, Available: 1}}, result.Databases)
	})

	t.Run("update", func(t *testing.T) {
		f := newRobotFixture(t)
		f.store.ListAllTopicsFunc = func(context.Context) ([]string, error) {
			return []string{"校园", "闲聊", "音乐"}, nil
		}
		f.store.GetUserTopicsFunc = func(context.Context, string) ([]string, error) {
			return []string{"campus", "chat"}, nil
		}

		result, err := f.robot.Configure(ctx, "A0001", "校园  闲聊\n")
		require.NoError(t, err)
		assert.False(t, result.Listing)
		assert.Equal(t, []string{"campus", "chat"}, result.Topics)

		require.Len(t, f.store.SetSelectionCalls, 1)
		want := map[string]bool{"校园": true, "闲聊": true, "音乐": false}
		if diff := cmp.Diff(want, f.store.SetSelectionCalls[0]); diff != "" {
			t.Errorf("selections mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("store failure", func(t *testing.T) {
		f := newRobotFixture(t)
		f.store.SetSelectionFunc = func(context.Context, string, map[string]bool) error {
			return domain.ErrStoreUnavailable
		}

		_, err := f.robot.Configure(ctx, "A0001", "校园")
		assert.ErrorIs(t, err, domain.ErrStoreUnavailable)
	})
}
