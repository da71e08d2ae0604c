// Package action 实现问答引擎的匹配级联与知识库配置。
//
// # 架构概述
//
// 每个问题在用户会话锁内依次经过各匹配阶段，第一个命中的阶段给出应答并终止级联。
//
//	┌─────────────────────────────────────────────────────────────┐
//	│                         Robot                               │
//	│  统一入口：解析用户与话题，在会话内运行级联                      │
//	└─────────────────────────────────────────────────────────────┘
//	                           │
//	              ┌────────────┴────────────┐
//	              ▼                         ▼
//	        ┌──────────┐             ┌───────────┐
//	        │  Search  │             │ Configure │
//	        └──────────┘             └───────────┘
//
// # 匹配级联
//
//	问题
//	    │
//	    ▼
//	SensitiveAction   敏感词 → 空内容
//	AddressingAction  去掉称呼（只改写问题）
//	NavigationAction  "去<地点>" → 导航
//	RepeatAction      重复指令 → 上一条应答
//	EndSceneAction    退出指令 → 离开场景
//	SceneAction       场景内：上一步 / 下一步 / 可达节点 / 错误页
//	KnowledgeAction   场景外：标签 → 关键句 → 拼音(可选)；根节点进入场景
//	OnlineAction      点歌 / 附近美食 / 天气；都不是时记录未回答问题
//
// # 场景状态
//
// 会话有两条容量为 10 的记忆流：应答流记录返回给用户的内容，回退流记录"上一步"要回到的内容。
// 进入或退出场景时两条流都被清空。场景内的节点只能通过上一条应答的 img 链接或按钮 area 链接到达，
// 不可达时返回错误页（valid = 0），不会落到场景外的匹配。
//
// # 使用示例
//
//	robot := action.NewRobot(cfg.Tables(), action.Options{
//	    Store:     knowledge.NewNeo4jStore(graph.NewClient()),
//	    Tokenizer: tokenizer,
//	    Sessions:  sessions,
//	    Enricher:  onlineService,
//	    Recorder:  publisher,
//	    Locations: locations,
//	})
//
//	result := robot.Search(ctx, "A0001", "小民你好")
//	config, err := robot.Configure(ctx, "A0001", "")
package action
