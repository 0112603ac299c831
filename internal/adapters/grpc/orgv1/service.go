// Package orgv1 は org.v1.OrgAnalysisService の gRPC サービス定義です。
//
// メッセージは google.protobuf.Struct で表現するため、生成コードを持ちません。
package orgv1

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

const (
	ServiceName       = "org.v1.OrgAnalysisService"
	AnalyzeFullMethod = "/" + ServiceName + "/Analyze"
)

// OrgAnalysisServiceServer はサーバー側の実装が満たすインターフェースです。
type OrgAnalysisServiceServer interface {
	Analyze(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
}

func analyzeHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(OrgAnalysisServiceServer).Analyze(ctx, in)
	}
	info := &grpc.UnaryServerInfo{
		Server:     srv,
		FullMethod: AnalyzeFullMethod,
	}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(OrgAnalysisServiceServer).Analyze(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

// ServiceDesc は OrgAnalysisService の grpc.ServiceDesc です。
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*OrgAnalysisServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "Analyze",
			Handler:    analyzeHandler,
		},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "org/v1/org_analysis.proto",
}

// RegisterOrgAnalysisServiceServer は srv をサーバーへ登録します。
func RegisterOrgAnalysisServiceServer(s grpc.ServiceRegistrar, srv OrgAnalysisServiceServer) {
	s.RegisterService(&ServiceDesc, srv)
}

// OrgAnalysisServiceClient は OrgAnalysisService のクライアントです。
type OrgAnalysisServiceClient struct {
	cc grpc.ClientConnInterface
}

// NewOrgAnalysisServiceClient は OrgAnalysisServiceClient を生成します。
func NewOrgAnalysisServiceClient(cc grpc.ClientConnInterface) *OrgAnalysisServiceClient {
	return &OrgAnalysisServiceClient{cc: cc}
}

// Analyze は組織分析を実行します。
func (c *OrgAnalysisServiceClient) Analyze(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, AnalyzeFullMethod, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}
