package knowledge

import (
	"context"
	"fmt"
	"log/slog"
	"reflect"
	"sort"
	"strings"

	"github.com/mitchellh/mapstructure"

	"github.com/Zereker/nlu/internal/domain"
	"github.com/Zereker/nlu/pkg/graph"
	"github.com/Zereker/nlu/pkg/log"
	"github.com/Zereker/nlu/pkg/metrics"
)

// ============================================================================
// Cypher
// ============================================================================

const (
	cypherEntriesByTag = `
MATCH (n:NluCell {tag: $tag})
WHERE n.topic IN $topics
RETURN n`

	cypherEntryContaining = `
MATCH (n:NluCell)
WHERE n.name <> '' AND $question CONTAINS n.name AND n.topic IN $topics
RETURN n
LIMIT 1`

	cypherEntry = `
MATCH (n:NluCell {name: $name, topic: $topic})
WHERE toString(n.tid) = $tid
RETURN n
LIMIT 1`

	cypherUser = `
MATCH (u:User {userid: $userid})
RETURN u
LIMIT 1`

	cypherUserTopics = `
MATCH (user:User {userid: $userid})-[r:has {bselected: 1, available: 1}]->(config:Config)
RETURN config.topic AS topic`

	cypherTopicSelections = `
MATCH (user:User {userid: $userid})-[r:has]->(config:Config)
RETURN config.name AS name, r.bselected AS bselected, r.available AS available
ORDER BY name`

	cypherSetSelection = `
MATCH (user:User {userid: $userid})-[r:has]->(config:Config {name: $name})
SET r.bselected = $selected`

	cypherAllTopics = `
MATCH (config:Config)
RETURN config.name AS name
ORDER BY name`

	cypherAPIs = `
MATCH (n:NluCell)
WHERE n.api IS NOT NULL AND n.api <> ''
RETURN DISTINCT n.api AS api`
)

// Neo4jStore 知识库图存储。所有查询均参数化。
type Neo4jStore struct {
	runner graph.Runner
	logger *slog.Logger
}

// NewNeo4jStore 创建知识库存储
func NewNeo4jStore(runner graph.Runner) *Neo4jStore {
	return &Neo4jStore{
		runner: runner,
		logger: log.Logger("knowledge"),
	}
}

// ============================================================================
// Entries
// ============================================================================

// FindEntriesByTag 按标签查找候选条目，仅限给定话题，保持存储顺序
func (s *Neo4jStore) FindEntriesByTag(ctx context.Context, tag string, topics []string) ([]domain.KnowledgeEntry, error) {
	if tag == "" || len(topics) == 0 {
		return nil, nil
	}

	rows, err := s.run(ctx, "entries_by_tag", cypherEntriesByTag, map[string]any{
		"tag":    tag,
		"topics": topics,
	})
	if err != nil {
		return nil, err
	}

	entries := make([]domain.KnowledgeEntry, 0, len(rows))
	for _, row := range rows {
		entry, err := s.decodeEntry(row["n"])
		if err != nil {
			s.logger.Warn("skip undecodable entry", "tag", tag, "error", err)
			continue
		}
		entries = append(entries, entry)
	}

	return entries, nil
}

// FindEntryContaining 关键句匹配：问题包含条目名称
func (s *Neo4jStore) FindEntryContaining(ctx context.Context, question string, topics []string) (*domain.KnowledgeEntry, error) {
	if question == "" || len(topics) == 0 {
		return nil, nil
	}

	rows, err := s.run(ctx, "entry_containing", cypherEntryContaining, map[string]any{
		"question": question,
		"topics":   topics,
	})
	if err != nil {
		return nil, err
	}

	return s.first(rows, "n")
}

// FindEntry 按 {话题, 编号, 名称} 精确查找，多条命中时取第一条
func (s *Neo4jStore) FindEntry(ctx context.Context, topic string, tid domain.TID, name string) (*domain.KnowledgeEntry, error) {
	if !tid.IsSet() {
		return nil, nil
	}

	rows, err := s.run(ctx, "entry", cypherEntry, map[string]any{
		"name":  name,
		"topic": topic,
		"tid":   tid.String(),
	})
	if err != nil {
		return nil, err
	}

	return s.first(rows, "n")
}

// ListAPIs 所有条目引用的后处理函数名
func (s *Neo4jStore) ListAPIs(ctx context.Context) ([]string, error) {
	rows, err := s.run(ctx, "apis", cypherAPIs, nil)
	if err != nil {
		return nil, err
	}

	return column(rows, "api"), nil
}

// ============================================================================
// Users
// ============================================================================

// GetUser 查找机器人用户配置，不存在时返回 nil
func (s *Neo4jStore) GetUser(ctx context.Context, userID string) (*domain.User, error) {
	rows, err := s.run(ctx, "user", cypherUser, map[string]any{"userid": userID})
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}

	var user domain.User
	if err := decode(rows[0]["u"], &user); err != nil {
		return nil, fmt.Errorf("decode user %s: %w", userID, err)
	}

	return &user, nil
}

// GetUserTopics 用户已启用且可用的话题，配置节点的 topic 以逗号分隔
func (s *Neo4jStore) GetUserTopics(ctx context.Context, userID string) ([]string, error) {
	rows, err := s.run(ctx, "user_topics", cypherUserTopics, map[string]any{"userid": userID})
	if err != nil {
		return nil, err
	}

	seen := make(map[string]struct{})
	var topics []string
	for _, raw := range column(rows, "topic") {
		for _, topic := range strings.Split(raw, ",") {
			topic = strings.TrimSpace(topic)
			if topic == "" {
				continue
			}
			if _, ok := seen[topic]; ok {
				continue
			}
			seen[topic] = struct{}{}
			topics = append(topics, topic)
		}
	}

	return topics, nil
}

// ListTopicSelections 用户可配置的知识库及其状态
func (s *Neo4jStore) ListTopicSelections(ctx context.Context, userID string) ([]domain.TopicSelection, error) {
	rows, err := s.run(ctx, "topic_selections", cypherTopicSelections, map[string]any{"userid": userID})
	if err != nil {
		return nil, err
	}

	selections := make([]domain.TopicSelection, 0, len(rows))
	for _, row := range rows {
		var sel domain.TopicSelection
		if err := decode(row, &sel); err != nil {
			return nil, fmt.Errorf("decode topic selection: %w", err)
		}
		selections = append(selections, sel)
	}

	return selections, nil
}

// SetTopicSelection 在一个事务内更新用户各知识库的启用状态
func (s *Neo4jStore) SetTopicSelection(ctx context.Context, userID string, selections map[string]bool) error {
	if len(selections) == 0 {
		return nil
	}

	names := make([]string, 0, len(selections))
	for name := range selections {
		names = append(names, name)
	}
	sort.Strings(names)

	queries := make([]string, 0, len(names))
	params := make([]map[string]any, 0, len(names))
	for _, name := range names {
		selected := 0
		if selections[name] {
			selected = 1
		}
		queries = append(queries, cypherSetSelection)
		params = append(params, map[string]any{
			"userid":   userID,
			"name":     name,
			"selected": selected,
		})
	}

	if err := s.runner.RunWriteBatch(ctx, queries, params); err != nil {
		metrics.StoreErrorsTotal.WithLabelValues("set_topic_selection").Inc()
		return fmt.Errorf("set topic selection: %w: %w", domain.ErrStoreUnavailable, err)
	}

	return nil
}

// ListAllTopics 所有知识库名称
func (s *Neo4jStore) ListAllTopics(ctx context.Context) ([]string, error) {
	rows, err := s.run(ctx, "all_topics", cypherAllTopics, nil)
	if err != nil {
		return nil, err
	}

	return column(rows, "name"), nil
}

// ============================================================================
// helpers
// ============================================================================

func (s *Neo4jStore) run(ctx context.Context, op, cypher string, params map[string]any) ([]map[string]any, error) {
	rows, err := s.runner.Run(ctx, cypher, params)
	if err != nil {
		metrics.StoreErrorsTotal.WithLabelValues(op).Inc()
		return nil, fmt.Errorf("%s: %w: %w", op, domain.ErrStoreUnavailable, err)
	}
	return rows, nil
}

func (s *Neo4jStore) first(rows []map[string]any, key string) (*domain.KnowledgeEntry, error) {
	if len(rows) == 0 {
		return nil, nil
	}

	entry, err := s.decodeEntry(rows[0][key])
	if err != nil {
		return nil, err
	}
	return &entry, nil
}

func (s *Neo4jStore) decodeEntry(node any) (domain.KnowledgeEntry, error) {
	var entry domain.KnowledgeEntry
	if err := decode(node, &entry); err != nil {
		return domain.KnowledgeEntry{}, fmt.Errorf("decode entry: %w", err)
	}
	return entry, nil
}

func column(rows []map[string]any, key string) []string {
	out := make([]string, 0, len(rows))
	for _, row := range rows {
		if v, ok := row[key].(string); ok && v != "" {
			out = append(out, v)
		}
	}
	return out
}

// ============================================================================
// decoding
// ============================================================================

func decode(input, output any) error {
	if input == nil {
		return fmt.Errorf("empty record")
	}

	config := &mapstructure.DecoderConfig{
		Result:           output,
		TagName:          "mapstructure",
		WeaklyTypedInput: true,
		DecodeHook:       mapstructure.ComposeDecodeHookFunc(tidHook, hexCodeHook, pipeListHook),
	}

	decoder, err := mapstructure.NewDecoder(config)
	if err != nil {
		return fmt.Errorf("create decoder: %w", err)
	}

	return decoder.Decode(input)
}

// tidHook 处理 string/int -> domain.TID 转换
func tidHook(_, to reflect.Type, data any) (any, error) {
	if to != reflect.TypeOf(domain.TID{}) {
		return data, nil
	}

	switch v := data.(type) {
	case domain.TID:
		return v, nil
	case nil:
		return domain.NoTID(), nil
	case string:
		return domain.ParseTID(v)
	case int64:
		return domain.ParseTID(fmt.Sprint(v))
	case int:
		return domain.ParseTID(fmt.Sprint(v))
	case float64:
		return domain.ParseTID(fmt.Sprint(int64(v)))
	default:
		return data, fmt.Errorf("unsupported tid type %T", data)
	}
}

// hexCodeHook 处理 "0x001B" -> domain.HexCode 转换
func hexCodeHook(_, to reflect.Type, data any) (any, error) {
	if to != reflect.TypeOf(domain.HexCode(0)) {
		return data, nil
	}

	switch v := data.(type) {
	case string:
		return domain.ParseHexCode(v)
	case int64:
		return domain.HexCode(v), nil
	default:
		return data, nil
	}
}

// pipeListHook 处理 "a|b" -> []string 转换
func pipeListHook(_, to reflect.Type, data any) (any, error) {
	if to != reflect.TypeOf([]string{}) {
		return data, nil
	}

	str, ok := data.(string)
	if !ok {
		return data, nil
	}

	result := make([]string, 0)
	for _, item := range strings.Split(str, "|") {
		if item = strings.TrimSpace(item); item != "" {
			result = append(result, item)
		}
	}

	return result, nil
}
