// Package rpc serves unary gRPC methods whose request and response are
// google.protobuf.Struct. Descriptors are built at registration time so
// server reflection and grpcurl can list, describe and call them.
package rpc

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/reflect/protodesc"
	"google.golang.org/protobuf/reflect/protoreflect"
	"google.golang.org/protobuf/reflect/protoregistry"
	"google.golang.org/protobuf/types/descriptorpb"
	"google.golang.org/protobuf/types/known/structpb"
)

const structType = ".google.protobuf.Struct"

// Handler serves one method.
type Handler func(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)

type Method struct {
	Name    string
	Handler Handler
}

// Service is a fully qualified service name plus its methods.
type Service struct {
	Name    string
	Methods []Method
}

// Register describes the service in the global proto registry and mounts it on server.
func (s Service) Register(server grpc.ServiceRegistrar) error {
	file, err := s.describe()
	if err != nil {
		return err
	}

	desc := grpc.ServiceDesc{
		ServiceName: s.Name,
		HandlerType: (*any)(nil),
		Metadata:    file,
	}
	for _, m := range s.Methods {
		desc.Methods = append(desc.Methods, grpc.MethodDesc{
			MethodName: m.Name,
			Handler:    unaryHandler(s.Name, m),
		})
	}
	server.RegisterService(&desc, s)
	return nil
}

// MustRegister is Register for startup wiring.
func (s Service) MustRegister(server grpc.ServiceRegistrar) {
	if err := s.Register(server); err != nil {
		panic(err)
	}
}

func unaryHandler(service string, m Method) func(any, context.Context, func(any) error, grpc.UnaryServerInterceptor) (any, error) {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(structpb.Struct)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return m.Handler(ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + service + "/" + m.Name}
		return interceptor(ctx, in, info, func(ctx context.Context, req any) (any, error) {
			return m.Handler(ctx, req.(*structpb.Struct))
		})
	}
}

// describe registers a synthetic .proto file for the service, reusing one
// already registered under the same path.
func (s Service) describe() (string, error) {
	idx := strings.LastIndex(s.Name, ".")
	if idx <= 0 || idx == len(s.Name)-1 {
		return "", fmt.Errorf("service name %q must be package qualified", s.Name)
	}
	pkg, name := s.Name[:idx], s.Name[idx+1:]
	path := strings.ReplaceAll(pkg, ".", "/") + "/" + strings.ToLower(name) + ".proto"

	if _, err := protoregistry.GlobalFiles.FindFileByPath(path); err == nil {
		return path, nil
	}

	svc := &descriptorpb.ServiceDescriptorProto{Name: proto.String(name)}
	for _, m := range s.Methods {
		svc.Method = append(svc.Method, &descriptorpb.MethodDescriptorProto{
			Name:       proto.String(m.Name),
			InputType:  proto.String(structType),
			OutputType: proto.String(structType),
		})
	}

	fdp := &descriptorpb.FileDescriptorProto{
		Name:       proto.String(path),
		Package:    proto.String(pkg),
		Dependency: []string{(&structpb.Struct{}).ProtoReflect().Descriptor().ParentFile().Path()},
		Service:    []*descriptorpb.ServiceDescriptorProto{svc},
		Syntax:     proto.String("proto3"),
	}

	fd, err := protodesc.NewFile(fdp, protoregistry.GlobalFiles)
	if err != nil {
		return "", fmt.Errorf("build descriptor for %s: %w", s.Name, err)
	}
	if err := protoregistry.GlobalFiles.RegisterFile(fd); err != nil {
		return "", fmt.Errorf("register descriptor for %s: %w", s.Name, err)
	}
	return path, nil
}

// Describe returns the registered descriptor for a service name.
func Describe(name string) (protoreflect.ServiceDescriptor, error) {
	d, err := protoregistry.GlobalFiles.FindDescriptorByName(protoreflect.FullName(name))
	if err != nil {
		return nil, err
	}
	sd, ok := d.(protoreflect.ServiceDescriptor)
	if !ok {
		return nil, fmt.Errorf("%s is not a service", name)
	}
	return sd, nil
}

// Invoke calls service/method with a map payload and returns the decoded response.
func Invoke(ctx context.Context, conn grpc.ClientConnInterface, service, method string, in map[string]any) (map[string]any, error) {
	if in == nil {
		in = map[string]any{}
	}
	req, err := structpb.NewStruct(in)
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}
	resp := new(structpb.Struct)
	if err := conn.Invoke(ctx, "/"+service+"/"+method, req, resp); err != nil {
		return nil, err
	}
	return resp.AsMap(), nil
}

// Encode converts any JSON-marshalable value into a Struct. A non-empty key
// wraps the value; objects are returned as-is otherwise.
func Encode(key string, v any) (*structpb.Struct, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode response: %w", err)
	}
	var decoded any
	if err := json.Unmarshal(data, &decoded); err != nil {
		return nil, fmt.Errorf("encode response: %w", err)
	}
	if obj, ok := decoded.(map[string]any); ok && key == "" {
		return structpb.NewStruct(obj)
	}
	if key == "" {
		key = "value"
	}
	return structpb.NewStruct(map[string]any{key: decoded})
}

// Decode unmarshals a Struct into a Go value via its JSON form.
func Decode(in *structpb.Struct, v any) error {
	if in == nil {
		return nil
	}
	data, err := json.Marshal(in.AsMap())
	if err != nil {
		return err
	}
	return json.Unmarshal(data, v)
}
