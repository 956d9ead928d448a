package grpc

import (
	"context"
	grpc2 "google.golang.org/grpc"
)

const serviceName = "litetable.filter.v1.TableService"

// TableServiceServer is the server API for the table service.
type TableServiceServer interface {
	ReadRows(context.Context, *ReadRowsRequest) (*ReadRowsResponse, error)
	MutateRows(context.Context, *MutateRowsRequest) (*MutateRowsResponse, error)
	CreateFamily(context.Context, *CreateFamilyRequest) (*CreateFamilyResponse, error)
}

// TableService_ServiceDesc is the grpc.ServiceDesc for the table service.
var TableService_ServiceDesc = grpc2.ServiceDesc{
	ServiceName: serviceName,
	HandlerType: (*TableServiceServer)(nil),
	Methods: []grpc2.MethodDesc{
		{
			MethodName: "ReadRows",
			Handler:    _TableService_ReadRows_Handler,
		},
		{
			MethodName: "MutateRows",
			Handler:    _TableService_MutateRows_Handler,
		},
		{
			MethodName: "CreateFamily",
			Handler:    _TableService_CreateFamily_Handler,
		},
	},
	Streams:  []grpc2.StreamDesc{},
	Metadata: "litetable/filter/v1/table.json",
}

// RegisterTableServiceServer registers srv with s.
func RegisterTableServiceServer(s grpc2.ServiceRegistrar, srv TableServiceServer) {
	s.RegisterService(&TableService_ServiceDesc, srv)
}

func _TableService_ReadRows_Handler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc2.UnaryServerInterceptor) (interface{}, error) {
	in := new(ReadRowsRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(TableServiceServer).ReadRows(ctx, in)
	}
	info := &grpc2.UnaryServerInfo{
		Server:     srv,
		FullMethod: "/" + serviceName + "/ReadRows",
	}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(TableServiceServer).ReadRows(ctx, req.(*ReadRowsRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func _TableService_MutateRows_Handler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc2.UnaryServerInterceptor) (interface{}, error) {
	in := new(MutateRowsRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(TableServiceServer).MutateRows(ctx, in)
	}
	info := &grpc2.UnaryServerInfo{
		Server:     srv,
		FullMethod: "/" + serviceName + "/MutateRows",
	}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(TableServiceServer).MutateRows(ctx, req.(*MutateRowsRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func _TableService_CreateFamily_Handler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc2.UnaryServerInterceptor) (interface{}, error) {
	in := new(CreateFamilyRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(TableServiceServer).CreateFamily(ctx, in)
	}
	info := &grpc2.UnaryServerInfo{
		Server:     srv,
		FullMethod: "/" + serviceName + "/CreateFamily",
	}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(TableServiceServer).CreateFamily(ctx, req.(*CreateFamilyRequest))
	}
	return interceptor(ctx, in, info, handler)
}

// Client calls the table service over a connection.
type Client struct {
	cc grpc2.ClientConnInterface
}

// NewClient wraps a connection. Calls are sent with the JSON codec.
func NewClient(cc grpc2.ClientConnInterface) *Client {
	return &Client{cc: cc}
}

func (c *Client) ReadRows(ctx context.Context, in *ReadRowsRequest, opts ...grpc2.CallOption) (*ReadRowsResponse, error) {
	out := new(ReadRowsResponse)
	if err := c.invoke(ctx, "ReadRows", in, out, opts); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) MutateRows(ctx context.Context, in *MutateRowsRequest, opts ...grpc2.CallOption) (*MutateRowsResponse, error) {
	out := new(MutateRowsResponse)
	if err := c.invoke(ctx, "MutateRows", in, out, opts); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) CreateFamily(ctx context.Context, in *CreateFamilyRequest, opts ...grpc2.CallOption) (*CreateFamilyResponse, error) {
	out := new(CreateFamilyResponse)
	if err := c.invoke(ctx, "CreateFamily", in, out, opts); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) invoke(ctx context.Context, method string, in, out any, opts []grpc2.CallOption) error {
	opts = append([]grpc2.CallOption{grpc2.CallContentSubtype(codecName)}, opts...)
	return c.cc.Invoke(ctx, "/"+serviceName+"/"+method, in, out, opts...)
}
