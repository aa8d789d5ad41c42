package config

import (
	"context"
	"strings"
)

// Source 抽象一次针对远端存储的阻塞读。
//
// 约定：
// - Fetch 携带上一次的版本 token（首次为 0），在存储发生变更或等待超时前保持阻塞；
// - 超时无变更时返回原 token 与 nil error，引擎视为空转一轮；
// - 返回的 token 单调不减，由存储侧保证；
// - ctx 取消时应尽快返回（错误值不限，引擎此时已在退出路径上）。
type Source interface {
	Fetch(ctx context.Context, prefix string, lastToken uint64) (map[string]string, uint64, error)
}

// decodeEntries 把原始 KV 集合解码为扁平映射：
// 剥离监听前缀（config/<service>/some.key -> some.key），
// 丢弃前缀之外的 key 与目录占位（key 等于前缀本身）。
func decodeEntries(raw map[string]string, prefix string) map[string]string {
	out := make(map[string]string, len(raw))
	for k, v := range raw {
		if !strings.HasPrefix(k, prefix) {
			continue
		}
		key := strings.TrimPrefix(k, prefix)
		if key == "" {
			continue
		}
		out[key] = v
	}
	return out
}
