package kubernetes

import "errors"

var (
	// ErrClientIsNil 表示 kubernetes 客户端为空。
	ErrClientIsNil = errors.New("kubernetes 客户端为空")
)
