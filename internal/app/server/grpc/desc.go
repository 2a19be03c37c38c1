package grpc

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

// Full method names of tinylink.LinkService.
const (
	ServiceName         = "tinylink.LinkService"
	CreateLinkMethod    = "/" + ServiceName + "/CreateLink"
	ResolveLinkMethod   = "/" + ServiceName + "/ResolveLink"
	DeleteLinkMethod    = "/" + ServiceName + "/DeleteLink"
	linkServiceMetadata = "tinylink/link_service.proto"
)

// LinkServiceServer is the server API of tinylink.LinkService. Messages are
// protobuf well-known types, so no generated code is needed.
type LinkServiceServer interface {
	// CreateLink takes {"target", "code"?} and returns the created link.
	CreateLink(context.Context, *structpb.Struct) (*structpb.Struct, error)
	// ResolveLink returns the target of a live code and counts the click.
	ResolveLink(context.Context, *wrapperspb.StringValue) (*wrapperspb.StringValue, error)
	// DeleteLink soft deletes one of the caller's links.
	DeleteLink(context.Context, *wrapperspb.StringValue) (*emptypb.Empty, error)
}

// LinkServiceDesc describes tinylink.LinkService for grpc.Server.RegisterService.
var LinkServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*LinkServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "CreateLink", Handler: createLinkHandler},
		{MethodName: "ResolveLink", Handler: resolveLinkHandler},
		{MethodName: "DeleteLink", Handler: deleteLinkHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: linkServiceMetadata,
}

func createLinkHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(LinkServiceServer).CreateLink(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: CreateLinkMethod}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(LinkServiceServer).CreateLink(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

func resolveLinkHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(wrapperspb.StringValue)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(LinkServiceServer).ResolveLink(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: ResolveLinkMethod}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(LinkServiceServer).ResolveLink(ctx, req.(*wrapperspb.StringValue))
	}
	return interceptor(ctx, in, info, handler)
}

func deleteLinkHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(wrapperspb.StringValue)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(LinkServiceServer).DeleteLink(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: DeleteLinkMethod}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(LinkServiceServer).DeleteLink(ctx, req.(*wrapperspb.StringValue))
	}
	return interceptor(ctx, in, info, handler)
}

// Client is a thin client for tinylink.LinkService.
type Client struct {
	cc grpc.ClientConnInterface
}

func NewClient(cc grpc.ClientConnInterface) *Client {
	return &Client{cc: cc}
}

func (c *Client) CreateLink(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, CreateLinkMethod, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) ResolveLink(ctx context.Context, in *wrapperspb.StringValue, opts ...grpc.CallOption) (*wrapperspb.StringValue, error) {
	out := new(wrapperspb.StringValue)
	if err := c.cc.Invoke(ctx, ResolveLinkMethod, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) DeleteLink(ctx context.Context, in *wrapperspb.StringValue, opts ...grpc.CallOption) (*emptypb.Empty, error) {
	out := new(emptypb.Empty)
	if err := c.cc.Invoke(ctx, DeleteLinkMethod, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}
