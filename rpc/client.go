package rpc

import (
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

// NewServiceClient 创建一个经服务发现解析的 gRPC 客户端连接。
func NewServiceClient(builder *Builder, service string) (*grpc.ClientConn, error) {
	return grpc.NewClient(
		Scheme+":///"+service,
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithResolvers(builder),
	)
}
