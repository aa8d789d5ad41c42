// Package config 实现基于远端 KV 存储的配置监听引擎。
package config

import "errors"

var (
	// ErrSourceIsNil 表示配置源为空。
	ErrSourceIsNil = errors.New("配置源为空")
	// ErrConfIsNil 表示监听配置为空。
	ErrConfIsNil = errors.New("监听配置为空")
	// ErrServiceIsEmpty 表示服务名为空（显式配置与环境变量均未提供）。
	ErrServiceIsEmpty = errors.New("服务名为空")
)
