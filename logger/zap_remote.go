package logger

import (
	"encoding/json"
	"strings"

	"go.uber.org/zap/zapcore"
)

type remoteCore struct {
	// level 控制该 core 允许输出的最小日志等级。
	level zapcore.LevelEnabler
	// handle 是远端写入回调：接收 JSON bytes。
	handle func(b []byte)
	// fields 为通过 Logger.With(...) 挂载的“常驻字段”。
	fields []zapcore.Field
}

// NewRemoteCore 构造一个远端输出 core。
//
// 该 core 直接在 Write 中组装目标 JSON（WatchLogger）并调用 handle，
// 避免 JSON 编码后再解析/重组的额外开销。
func NewRemoteCore(level zapcore.LevelEnabler, handle func(b []byte)) zapcore.Core {
	return &remoteCore{
		level:  level,
		handle: handle,
		fields: nil,
	}
}

func (c *remoteCore) Enabled(level zapcore.Level) bool {
	return c.level.Enabled(level)
}

func (c *remoteCore) With(fields []zapcore.Field) zapcore.Core {
	if len(fields) == 0 {
		return c
	}
	// 值拷贝保留旧 core 的配置，再复制并追加字段，避免修改原切片带来的数据竞争。
	next := *c
	next.fields = append(append([]zapcore.Field(nil), c.fields...), fields...)
	return &next
}

func (c *remoteCore) Check(entry zapcore.Entry, ce *zapcore.CheckedEntry) *zapcore.CheckedEntry {
	if c.Enabled(entry.Level) {
		return ce.AddCore(entry, c)
	}
	return ce
}

func (c *remoteCore) Write(entry zapcore.Entry, fields []zapcore.Field) error {
	if c.handle == nil {
		return nil
	}

	allFields := make([]zapcore.Field, 0, len(c.fields)+len(fields))
	allFields = append(allFields, c.fields...)
	allFields = append(allFields, fields...)

	// 从字段中提升 service/datacenter/instance 到顶层结构，方便下游按身份检索。
	var service, datacenter, instance string

	enc := zapcore.NewMapObjectEncoder()
	for _, f := range allFields {
		f.AddTo(enc)

		if f.Type != zapcore.StringType {
			continue
		}
		switch f.Key {
		case "service":
			if service == "" {
				service = f.String
			}
		case "datacenter", "dc":
			if datacenter == "" {
				datacenter = f.String
			}
		case "instance":
			if instance == "" {
				instance = f.String
			}
		}
	}

	var contentBuilder strings.Builder
	contentBuilder.WriteString(entry.Message)
	if len(enc.Fields) > 0 {
		if b, err := json.Marshal(enc.Fields); err == nil {
			contentBuilder.WriteByte(' ')
			contentBuilder.Write(b)
		}
	}

	b, err := json.Marshal(&WatchLogger{
		Path:       entry.Caller.TrimmedPath(),
		Level:      levelConvertValue(entry.Level),
		Content:    contentBuilder.String(),
		Service:    service,
		Datacenter: datacenter,
		Instance:   instance,
	})
	if err == nil {
		c.handle(b)
	}
	return nil
}

func (c *remoteCore) Sync() error {
	// handle 是否需要 flush 由 handle 自己保证；此处保持无副作用。
	return nil
}

func levelConvertValue(level zapcore.Level) uint32 {
	// 数字等级映射被下游存储/检索依赖，不可随意调整。
	switch level {
	case zapcore.InfoLevel:
		return 1
	case zapcore.WarnLevel:
		return 2
	case zapcore.ErrorLevel:
		return 3
	default:
		return 0
	}
}
