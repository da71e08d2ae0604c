package domain

import "errors"

var (
	// ErrSensitiveContent 命中敏感词，策略性短路
	ErrSensitiveContent = errors.New("sensitive content detected")
	// ErrNoMatch 级联未命中
	ErrNoMatch = errors.New("no match")
	// ErrSceneLinkBroken 场景内导航或匹配失败
	ErrSceneLinkBroken = errors.New("scene link broken")
	// ErrStoreUnavailable 知识库访问失败
	ErrStoreUnavailable = errors.New("knowledge store unavailable")
	// ErrMalformedRequest 入站帧无法解析
	ErrMalformedRequest = errors.New("malformed request")
	// ErrInvalidUser 用户标识为空
	ErrInvalidUser = errors.New("invalid user")
)
