package config

import (
	"sort"
	"sync"
)

// Properties 是引擎对外暴露的配置快照。
//
// 约束：引擎生命周期内对象引用不变，新配置到达时只替换内部内容，
// 调用方可以长期持有同一个 *Properties 并始终读到最新值。
// 内容替换仅发生在引擎的发布步骤；读写都经由内部锁，读方不会看到半成品状态。
type Properties struct {
	// mu 保护 values：
	// - Get/Keys/All/Len 走读锁，允许并发读取
	// - replace 走写锁，clear-then-refill 原子完成
	mu     sync.RWMutex
	values map[string]string
}

// NewProperties 创建一个空快照；首次有效配置到达前内容为空。
func NewProperties() *Properties {
	return &Properties{
		values: make(map[string]string),
	}
}

// Get 返回指定 key 的值。
func (p *Properties) Get(key string) (string, bool) {
	p.mu.RLock()
	v, ok := p.values[key]
	p.mu.RUnlock()
	return v, ok
}

// GetDefault 返回指定 key 的值，不存在时返回默认值。
func (p *Properties) GetDefault(key, def string) string {
	if v, ok := p.Get(key); ok {
		return v
	}
	return def
}

// Keys 返回当前全部 key（排序后），便于调试与遍历。
func (p *Properties) Keys() []string {
	p.mu.RLock()
	keys := make([]string, 0, len(p.values))
	for k := range p.values {
		keys = append(keys, k)
	}
	p.mu.RUnlock()

	sort.Strings(keys)
	return keys
}

// Len 返回当前条目数。
func (p *Properties) Len() int {
	p.mu.RLock()
	n := len(p.values)
	p.mu.RUnlock()
	return n
}

// All 返回当前内容的副本，调用方持有副本不影响后续更新。
func (p *Properties) All() map[string]string {
	p.mu.RLock()
	out := make(map[string]string, len(p.values))
	for k, v := range p.values {
		out[k] = v
	}
	p.mu.RUnlock()
	return out
}

// replace 用新内容整体替换旧内容。
//
// clear-then-refill 在同一次写锁内完成，外部读方不会观察到部分更新。
func (p *Properties) replace(entries map[string]string) {
	p.mu.Lock()
	for k := range p.values {
		delete(p.values, k)
	}
	for k, v := range entries {
		p.values[k] = v
	}
	p.mu.Unlock()
}
