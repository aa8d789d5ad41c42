package rpc

import "errors"

var (
	// ErrDiscoverIsNil 表示服务发现实例为空。
	ErrDiscoverIsNil = errors.New("服务发现实例为空")
	// ErrServiceIsEmpty 表示 resolver target 缺少服务名。
	ErrServiceIsEmpty = errors.New("resolver target 缺少服务名")
)
