// Package constant 定义 go-config 的默认值与环境变量 key。
package constant

import "time"

const (
	// DefaultNamespace 默认配置命名空间，监听前缀为 <namespace>/<service>/
	DefaultNamespace = "config"
	// DefaultWaitTime 阻塞读的最长等待时间
	DefaultWaitTime = 30 * time.Second
	// DefaultRetryInterval 监听异常时的最小重试间隔
	DefaultRetryInterval = time.Second
	// DefaultEtcdRequestTimeout etcd 快照拉取的请求超时
	DefaultEtcdRequestTimeout = 10 * time.Second
	// DefaultKubeConfigMapPrefix 基于 Kubernetes ConfigMap 存储时的名称前缀
	DefaultKubeConfigMapPrefix = "ff-config-"
	// DefaultKubePollInterval Kubernetes 源模拟阻塞读时的轮询间隔
	DefaultKubePollInterval = time.Second
)
