package logger

// WatchLogger 表示配置监听过程产生的远端日志记录。
type WatchLogger struct {
	Path    string `json:"path"`
	Level   uint32 `json:"level"`
	Content string `json:"content"`

	Service    string `json:"service"`
	Datacenter string `json:"datacenter"`
	Instance   string `json:"instance"`
}
