package config

import (
	"time"

	"github.com/fireflycore/go-config/constant"
)

// Conf 配置监听的构建参数。
type Conf struct {
	// 命名空间，监听前缀为 <namespace>/<service>/
	Namespace string `json:"namespace"`
	// 身份标识；字段为空时由环境变量兜底
	Identity ServiceIdentifier `json:"identity"`

	// 异常重试的最小间隔（0 取默认值）
	RetryInterval time.Duration `json:"retry_interval"`
}

// Bootstrap 补齐默认值：命名空间、重试间隔，以及环境变量兜底的身份字段。
func (c *Conf) Bootstrap() {
	if c.Namespace == "" {
		c.Namespace = constant.DefaultNamespace
	}
	if c.RetryInterval <= 0 {
		c.RetryInterval = constant.DefaultRetryInterval
	}

	env := IdentifierFromEnv()
	if c.Identity.Service == "" {
		c.Identity.Service = env.Service
	}
	if c.Identity.Datacenter == "" {
		c.Identity.Datacenter = env.Datacenter
	}
	if c.Identity.Host == "" {
		c.Identity.Host = env.Host
	}
	if c.Identity.Instance == "" {
		c.Identity.Instance = env.Instance
	}
}

// Prefix 返回监听的 key 前缀。
func (c *Conf) Prefix() string {
	return c.Namespace + "/" + c.Identity.Service + "/"
}
