package config

import (
	"fmt"
	"os"

	"github.com/fireflycore/go-config/constant"
)

// ServiceIdentifier 标识“是谁在监听配置”，同时决定监听的 key 前缀。
//
// 四元组全部参与相等比较；创建后不再修改。
type ServiceIdentifier struct {
	// 服务名
	Service string `json:"service"`
	// 数据中心
	Datacenter string `json:"datacenter"`
	// 主机
	Host string `json:"host"`
	// 实例
	Instance string `json:"instance"`
}

// NewServiceIdentifier 通过显式四元组创建标识。
func NewServiceIdentifier(service, datacenter, host, instance string) ServiceIdentifier {
	return ServiceIdentifier{
		Service:    service,
		Datacenter: datacenter,
		Host:       host,
		Instance:   instance,
	}
}

// IdentifierFromEnv 从环境变量构建标识，未设置的字段为空字符串。
func IdentifierFromEnv() ServiceIdentifier {
	return ServiceIdentifier{
		Service:    os.Getenv(constant.EnvServiceName),
		Datacenter: os.Getenv(constant.EnvServiceDC),
		Host:       os.Getenv(constant.EnvServiceHost),
		Instance:   os.Getenv(constant.EnvServiceInstance),
	}
}

func (id ServiceIdentifier) String() string {
	return fmt.Sprintf("%s[%s/%s/%s]", id.Service, id.Datacenter, id.Host, id.Instance)
}
