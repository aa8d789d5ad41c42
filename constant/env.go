package constant

// 身份与存储地址相关的环境变量，未显式配置时按此兜底。
const (
	// EnvConsulHost Consul 地址
	EnvConsulHost = "CONSUL_HOST"
	// EnvServiceName 服务名
	EnvServiceName = "SERVICE_NAME"
	// EnvServiceDC 服务所在数据中心
	EnvServiceDC = "SERVICE_DC"
	// EnvServiceHost 服务所在主机
	EnvServiceHost = "SERVICE_HOST"
	// EnvServiceInstance 服务实例名
	EnvServiceInstance = "SERVICE_INSTANCE"
)
