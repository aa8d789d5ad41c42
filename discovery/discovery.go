// Package discovery 基于 Consul 健康检查接口维护服务实例缓存，
// 并以此为 locator 提供跨数据中心回退的实例序列。
package discovery

import (
	"context"
	"sync"
	"time"

	"github.com/fireflycore/go-config/constant"
	"github.com/fireflycore/go-config/locator"
	"github.com/google/uuid"
	"github.com/hashicorp/consul/api"
	"go.uber.org/zap"
)

// Conf 服务发现配置。
type Conf struct {
	// 本地数据中心；为空时由 Consul 客户端默认值决定
	Datacenter string `json:"datacenter"`
	// 单次阻塞查询的最长等待时间（0 取默认值）
	WaitTime time.Duration `json:"wait_time"`
	// 监听异常时的重试间隔（0 取默认值）
	RetryInterval time.Duration `json:"retry_interval"`
}

// Bootstrap 补齐默认值。
func (c *Conf) Bootstrap() {
	if c.WaitTime <= 0 {
		c.WaitTime = constant.DefaultWaitTime
	}
	if c.RetryInterval <= 0 {
		c.RetryInterval = constant.DefaultRetryInterval * 5
	}
}

// DiscoverInstance 服务发现实例。
//
// 对每个被请求过的服务维持一个阻塞查询监听协程，把健康实例
// 刷新进本地缓存；Locator 从缓存取数，跨数据中心回退则按需直查。
type DiscoverInstance struct {
	// mu 保护 cache/watchers/subscribers 三张表。
	mu sync.RWMutex

	// ctx/cancel 控制发现实例生命周期：Unwatch() 取消全部监听协程。
	ctx    context.Context
	cancel context.CancelFunc

	// client 为外部注入的 Consul 客户端
	client *api.Client
	conf   *Conf

	// cache 服务名 -> 本地数据中心的健康实例快照
	cache map[string][]*locator.ServiceInstance
	// watchers 服务名 -> 监听协程的取消函数
	watchers map[string]context.CancelFunc
	// subscribers 服务名 -> 订阅 id -> 快照变更回调
	subscribers map[string]map[string]func([]*locator.ServiceInstance)

	log *zap.Logger
}

// NewDiscover 创建服务发现实例。
func NewDiscover(client *api.Client, conf *Conf) (*DiscoverInstance, error) {
	if client == nil {
		return nil, ErrClientIsNil
	}
	if conf == nil {
		conf = &Conf{}
	}
	conf.Bootstrap()

	ctx, cancel := context.WithCancel(context.Background())

	return &DiscoverInstance{
		ctx:    ctx,
		cancel: cancel,
		client: client,
		conf:   conf,

		cache:       make(map[string][]*locator.ServiceInstance),
		watchers:    make(map[string]context.CancelFunc),
		subscribers: make(map[string]map[string]func([]*locator.ServiceInstance)),
	}, nil
}

// WithLog 设置内部日志输出。
func (s *DiscoverInstance) WithLog(log *zap.Logger) {
	s.log = log
}

// Instances 返回指定服务在本地数据中心的实例快照（副本）。
// 首次访问某服务时会同步拉取一次并启动后台监听。
func (s *DiscoverInstance) Instances(service string) []*locator.ServiceInstance {
	s.ensureWatch(service)

	s.mu.RLock()
	out := append([]*locator.ServiceInstance(nil), s.cache[service]...)
	s.mu.RUnlock()
	return out
}

// Locator 构建一个实例定位器：
// 头节点给出本地缓存的实例，之后按给定顺序逐个回退到其他数据中心，
// 回退数据中心的查询延迟到对应层级首次耗尽时才发起。
func (s *DiscoverInstance) Locator(service string, fallbackDatacenters ...string) *locator.ServiceLocator {
	supplier := func() []*locator.ServiceInstance {
		return s.Instances(service)
	}

	chain := s.datacenterChain(service, fallbackDatacenters)
	if chain == nil {
		return locator.NewServiceLocator(supplier)
	}
	return locator.NewServiceLocatorWithFallbackSupplier(supplier, chain)
}

// Subscribe 订阅指定服务的快照变更，返回注销函数。
func (s *DiscoverInstance) Subscribe(service string, handle func([]*locator.ServiceInstance)) func() {
	s.ensureWatch(service)
	id := uuid.NewString()

	s.mu.Lock()
	if s.subscribers[service] == nil {
		s.subscribers[service] = make(map[string]func([]*locator.ServiceInstance))
	}
	s.subscribers[service][id] = handle
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.subscribers[service], id)
		s.mu.Unlock()
	}
}

// Unwatch 停止全部监听并释放资源。
func (s *DiscoverInstance) Unwatch() {
	s.cancel()
}

// ensureWatch 保证指定服务存在监听协程；首次调用时同步拉取一次快照。
func (s *DiscoverInstance) ensureWatch(service string) {
	s.mu.Lock()
	if _, ok := s.watchers[service]; ok {
		s.mu.Unlock()
		return
	}
	ctx, cancel := context.WithCancel(s.ctx)
	s.watchers[service] = cancel
	s.mu.Unlock()

	// 同步拉一次，让首个调用方立刻有数据可用；失败交给监听协程补偿。
	s.syncService(service)

	go s.watchService(ctx, service)
}

// watchService 对单个服务做阻塞查询监听，持续刷新本地缓存。
func (s *DiscoverInstance) watchService(ctx context.Context, service string) {
	var lastIndex uint64

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		opts := &api.QueryOptions{
			Datacenter: s.conf.Datacenter,
			WaitIndex:  lastIndex,
			WaitTime:   s.conf.WaitTime,
		}
		opts = opts.WithContext(ctx)

		entries, meta, err := s.client.Health().Service(service, "", true, opts)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			if s.log != nil {
				s.log.Error("watch service failed",
					zap.String("service", service),
					zap.Error(err))
			}
			timer := time.NewTimer(s.conf.RetryInterval)
			select {
			case <-ctx.Done():
				timer.Stop()
				return
			case <-timer.C:
			}
			continue
		}

		if meta == nil || meta.LastIndex == lastIndex {
			continue
		}
		lastIndex = meta.LastIndex

		s.rebuild(service, entries)
	}
}

// syncService 非阻塞拉取一次实例快照。
func (s *DiscoverInstance) syncService(service string) {
	opts := (&api.QueryOptions{Datacenter: s.conf.Datacenter}).WithContext(s.ctx)
	entries, _, err := s.client.Health().Service(service, "", true, opts)
	if err != nil {
		return
	}
	s.rebuild(service, entries)
}

// queryDatacenter 直查指定数据中心的健康实例，用于回退层级。
func (s *DiscoverInstance) queryDatacenter(service, datacenter string) []*locator.ServiceInstance {
	opts := (&api.QueryOptions{Datacenter: datacenter}).WithContext(s.ctx)
	entries, _, err := s.client.Health().Service(service, "", true, opts)
	if err != nil {
		if s.log != nil {
			s.log.Error("query fallback datacenter failed",
				zap.String("service", service),
				zap.String("datacenter", datacenter),
				zap.Error(err))
		}
		return nil
	}
	return convertEntries(entries)
}

// datacenterChain 把回退数据中心列表组装为延迟解析的定位器链。
func (s *DiscoverInstance) datacenterChain(service string, datacenters []string) func() *locator.ServiceLocator {
	if len(datacenters) == 0 {
		return nil
	}

	dc := datacenters[0]
	rest := datacenters[1:]

	return func() *locator.ServiceLocator {
		supplier := func() []*locator.ServiceInstance {
			return s.queryDatacenter(service, dc)
		}
		next := s.datacenterChain(service, rest)
		if next == nil {
			return locator.NewServiceLocator(supplier)
		}
		return locator.NewServiceLocatorWithFallbackSupplier(supplier, next)
	}
}

// rebuild 用一批健康检查结果整体替换服务的缓存快照，并通知订阅者。
func (s *DiscoverInstance) rebuild(service string, entries []*api.ServiceEntry) {
	instances := convertEntries(entries)

	s.mu.Lock()
	s.cache[service] = instances
	targets := make([]func([]*locator.ServiceInstance), 0, len(s.subscribers[service]))
	for _, handle := range s.subscribers[service] {
		targets = append(targets, handle)
	}
	s.mu.Unlock()

	if s.log != nil {
		s.log.Info("service instances updated",
			zap.String("service", service),
			zap.Int("count", len(instances)))
	}

	for _, handle := range targets {
		handle(append([]*locator.ServiceInstance(nil), instances...))
	}
}

func convertEntries(entries []*api.ServiceEntry) []*locator.ServiceInstance {
	instances := make([]*locator.ServiceInstance, 0, len(entries))
	for _, entry := range entries {
		if ist := convertEntry(entry); ist != nil {
			instances = append(instances, ist)
		}
	}
	return instances
}

func convertEntry(entry *api.ServiceEntry) *locator.ServiceInstance {
	if entry == nil || entry.Service == nil {
		return nil
	}

	address := entry.Service.Address
	var datacenter string
	if entry.Node != nil {
		if address == "" {
			// 服务未单独上报地址时退回节点地址
			address = entry.Node.Address
		}
		datacenter = entry.Node.Datacenter
	}

	id := entry.Service.ID
	if id == "" {
		id = uuid.NewString()
	}

	return &locator.ServiceInstance{
		Id:         id,
		Service:    entry.Service.Service,
		Datacenter: datacenter,
		Address:    address,
		Port:       entry.Service.Port,
		Meta:       entry.Service.Meta,
	}
}
