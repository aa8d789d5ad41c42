// Package rpc 把服务发现缓存接入 gRPC 客户端侧负载均衡。
package rpc

import (
	"github.com/fireflycore/go-config/discovery"
	"github.com/fireflycore/go-config/locator"
	"google.golang.org/grpc/resolver"
)

// Scheme gRPC target 的 scheme，形如 discovery:///<service>。
const Scheme = "discovery"

// Builder 基于 DiscoverInstance 的 gRPC resolver 构建器。
type Builder struct {
	discover *discovery.DiscoverInstance
}

// NewBuilder 创建 resolver 构建器。
func NewBuilder(discover *discovery.DiscoverInstance) (*Builder, error) {
	if discover == nil {
		return nil, ErrDiscoverIsNil
	}
	return &Builder{discover: discover}, nil
}

// Scheme 实现 resolver.Builder。
func (b *Builder) Scheme() string {
	return Scheme
}

// Build 实现 resolver.Builder：订阅服务快照变更并推送初始地址列表。
func (b *Builder) Build(target resolver.Target, cc resolver.ClientConn, _ resolver.BuildOptions) (resolver.Resolver, error) {
	service := target.Endpoint()
	if service == "" {
		return nil, ErrServiceIsEmpty
	}

	r := &serviceResolver{cc: cc}
	// 先订阅再推初始快照，避免建连窗口内丢失更新。
	r.unsubscribe = b.discover.Subscribe(service, r.update)
	r.update(b.discover.Instances(service))

	return r, nil
}

type serviceResolver struct {
	cc          resolver.ClientConn
	unsubscribe func()
}

func (r *serviceResolver) update(instances []*locator.ServiceInstance) {
	addresses := make([]resolver.Address, 0, len(instances))
	for _, ist := range instances {
		addresses = append(addresses, resolver.Address{Addr: ist.Endpoint()})
	}
	_ = r.cc.UpdateState(resolver.State{Addresses: addresses})
}

// ResolveNow 实现 resolver.Resolver；缓存由后台监听主动刷新，无需按需触发。
func (r *serviceResolver) ResolveNow(resolver.ResolveNowOptions) {}

// Close 实现 resolver.Resolver。
func (r *serviceResolver) Close() {
	if r.unsubscribe != nil {
		r.unsubscribe()
	}
}
