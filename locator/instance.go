// Package locator 实现可回退链式的服务实例定位器。
package locator

import (
	"net"
	"strconv"
)

// ServiceInstance 描述一个可解析的服务端点；创建后不再修改。
type ServiceInstance struct {
	// 实例唯一 Id
	Id string `json:"id"`
	// 服务名
	Service string `json:"service"`
	// 所在数据中心
	Datacenter string `json:"datacenter"`
	// 地址
	Address string `json:"address"`
	// 端口
	Port int `json:"port"`
	// 元数据
	Meta map[string]string `json:"meta"`
}

// Endpoint 返回 host:port 形式的连接地址。
func (ist *ServiceInstance) Endpoint() string {
	return net.JoinHostPort(ist.Address, strconv.Itoa(ist.Port))
}
