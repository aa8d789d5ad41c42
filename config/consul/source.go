// Package consul 提供基于 Consul KV 的配置源实现。
package consul

import (
	"context"
	"os"
	"time"

	"github.com/fireflycore/go-config/constant"
	"github.com/hashicorp/consul/api"
)

// Conf Consul 配置源的可选参数。
type Conf struct {
	// 数据中心；为空时由 Consul 客户端默认值决定
	Datacenter string `json:"datacenter"`
	// 单次阻塞读的最长等待时间（0 取默认值）
	WaitTime time.Duration `json:"wait_time"`
}

// Bootstrap 补齐默认值。
func (c *Conf) Bootstrap() {
	if c.WaitTime <= 0 {
		c.WaitTime = constant.DefaultWaitTime
	}
}

// SourceInstance 基于 Consul KV List 阻塞查询的配置源。
//
// token 即 Consul 的 X-Consul-Index：携带上一次的 index 发起 List，
// 服务端在 KV 前缀发生变更或等待超时前保持请求挂起。
type SourceInstance struct {
	// client 为外部注入的 Consul 客户端
	client *api.Client
	conf   *Conf
}

// NewSource 创建 Consul 配置源。
func NewSource(client *api.Client, conf *Conf) (*SourceInstance, error) {
	if client == nil {
		return nil, ErrClientIsNil
	}
	if conf == nil {
		conf = &Conf{}
	}
	conf.Bootstrap()

	return &SourceInstance{
		client: client,
		conf:   conf,
	}, nil
}

// NewClient 创建 Consul 客户端；address 为空时由 CONSUL_HOST 环境变量兜底。
func NewClient(address string) (*api.Client, error) {
	if address == "" {
		address = os.Getenv(constant.EnvConsulHost)
	}

	conf := api.DefaultConfig()
	if address != "" {
		conf.Address = address
	}

	return api.NewClient(conf)
}

// Fetch 执行一次阻塞读。
// 超时无变更时 Consul 返回相同 index，引擎据此识别空转轮次。
func (s *SourceInstance) Fetch(ctx context.Context, prefix string, lastToken uint64) (map[string]string, uint64, error) {
	opts := &api.QueryOptions{
		Datacenter: s.conf.Datacenter,
		WaitIndex:  lastToken,
		WaitTime:   s.conf.WaitTime,
	}
	opts = opts.WithContext(ctx)

	pairs, meta, err := s.client.KV().List(prefix, opts)
	if err != nil {
		return nil, lastToken, err
	}
	if meta == nil {
		return nil, lastToken, ErrMetaIsNil
	}

	entries := make(map[string]string, len(pairs))
	for _, pair := range pairs {
		if pair == nil {
			continue
		}
		entries[pair.Key] = string(pair.Value)
	}

	return entries, meta.LastIndex, nil
}
