package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// Link 场景跳转链接：content 为目标问题，url 为目标 tid
type Link struct {
	Content string     `json:"content"`
	URL     LinkTarget `json:"url"`
}

// IsEmpty 空链接等同于不存在
func (l Link) IsEmpty() bool {
	return l.Content == "" && l.URL == ""
}

// LinkTarget 链接目标，存储中可能是数字也可能是字符串
type LinkTarget string

func (t *LinkTarget) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if string(data) == "null" {
		*t = ""
		return nil
	}

	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*t = LinkTarget(s)
		return nil
	}

	*t = LinkTarget(string(data))
	return nil
}

// TID 将目标解析为节点编号
func (t LinkTarget) TID() (TID, bool) {
	tid, err := ParseTID(string(t))
	if err != nil || !tid.IsSet() {
		return TID{}, false
	}
	return tid, true
}

// ButtonMap 按钮链接：next 为下一步，area 为菜单分支
type ButtonMap struct {
	Next *Link
	Area map[string]Link
}

// ParseLinks 解析 txt/img 形式的链接表，非对象的值被忽略
func ParseLinks(raw string) (map[string]Link, error) {
	links := make(map[string]Link)
	if strings.TrimSpace(raw) == "" {
		return links, nil
	}

	var entries map[string]json.RawMessage
	if err := json.Unmarshal([]byte(raw), &entries); err != nil {
		return links, fmt.Errorf("parse link map: %w", err)
	}

	for key, value := range entries {
		var link Link
		if err := json.Unmarshal(value, &link); err != nil {
			continue
		}
		links[key] = link
	}

	return links, nil
}

// ParseButton 解析按钮链接表
func ParseButton(raw string) (ButtonMap, error) {
	button := ButtonMap{Area: make(map[string]Link)}
	if strings.TrimSpace(raw) == "" {
		return button, nil
	}

	var entries map[string]json.RawMessage
	if err := json.Unmarshal([]byte(raw), &entries); err != nil {
		return button, fmt.Errorf("parse button map: %w", err)
	}

	if value, ok := entries["next"]; ok {
		var next Link
		if err := json.Unmarshal(value, &next); err == nil && !next.IsEmpty() {
			button.Next = &next
		}
	}

	if value, ok := entries["area"]; ok {
		area, err := ParseLinks(string(value))
		if err != nil {
			return button, err
		}
		button.Area = area
	}

	return button, nil
}

// ReachableTIDs 上一轮应答可跳转到的节点：img 的全部链接与 button.area 的链接
func ReachableTIDs(prev MatchResult) map[int]struct{} {
	tids := make(map[int]struct{})

	collect := func(links map[string]Link) {
		for _, link := range links {
			if tid, ok := link.URL.TID(); ok {
				tids[tid.Value()] = struct{}{}
			}
		}
	}

	if img, err := ParseLinks(prev.Img); err == nil {
		collect(img)
	}
	if button, err := ParseButton(prev.Button); err == nil {
		collect(button.Area)
	}

	return tids
}
