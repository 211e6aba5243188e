package fireboard

import (
	"context"
	"errors"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/joshp123/gohome-fireboard/internal/lookup"
	"github.com/joshp123/gohome-fireboard/internal/rpc"
)

const ServiceName = "gohome.plugins.fireboard.v1.FireboardService"

type service struct {
	client      *Client
	coordinator *Coordinator
	services    *Services
}

// RPCService describes FireboardService. Every method takes and returns a Struct.
func (s service) RPCService() rpc.Service {
	return rpc.Service{
		Name: ServiceName,
		Methods: []rpc.Method{
			{Name: "GetSnapshot", Handler: s.getSnapshot},
			{Name: "ListDevices", Handler: s.listDevices},
			{Name: "GetDevice", Handler: s.getDevice},
			{Name: "ListTemperatures", Handler: s.listTemperatures},
			{Name: "ListAlerts", Handler: s.listAlerts},
			{Name: "CreateAlert", Handler: s.createAlert},
			{Name: "UpdateAlert", Handler: s.updateAlert},
			{Name: "DeleteAlert", Handler: s.deleteAlert},
			{Name: "RefreshData", Handler: s.refreshData},
			{Name: "ListSessions", Handler: s.listSessions},
			{Name: "GetSession", Handler: s.getSession},
			{Name: "GetSessionTemps", Handler: s.getSessionTemps},
		},
	}
}

func (s service) getSnapshot(_ context.Context, _ *structpb.Struct) (*structpb.Struct, error) {
	snap, ok := s.coordinator.Snapshot()
	if !ok {
		return nil, status.Error(codes.Unavailable, "no data yet")
	}
	return rpc.Encode("", snap)
}

func (s service) listDevices(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	if live, _ := lookup.Bool(req.AsMap(), "live"); !live {
		if snap, ok := s.coordinator.Snapshot(); ok {
			return rpc.Encode("devices", snap.Devices)
		}
	}
	devices, err := s.client.GetDevices(ctx)
	if err != nil {
		return nil, grpcError(err)
	}
	return rpc.Encode("devices", devices)
}

func (s service) getDevice(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	id, err := requiredID(req, "device_id")
	if err != nil {
		return nil, err
	}
	device, ok, err := s.client.GetDevice(ctx, id)
	if err != nil {
		return nil, grpcError(err)
	}
	if !ok {
		return nil, status.Errorf(codes.NotFound, "device %q not found", id)
	}
	return rpc.Encode("device", device)
}

func (s service) listTemperatures(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	id, err := requiredID(req, "device_id")
	if err != nil {
		return nil, err
	}
	temps, err := s.client.GetTemperatures(ctx, id)
	if err != nil {
		return nil, grpcError(err)
	}
	return rpc.Encode("temps", temps)
}

func (s service) listAlerts(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	id, err := requiredID(req, "device_id")
	if err != nil {
		return nil, err
	}
	alerts, err := s.client.GetAlerts(ctx, id)
	if err != nil {
		return nil, grpcError(err)
	}
	return rpc.Encode("alerts", alerts)
}

func (s service) createAlert(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	in, err := ParseCreateAlert(req.AsMap())
	if err != nil {
		return nil, grpcError(err)
	}
	alert, err := s.services.CreateAlert(ctx, in)
	if err != nil {
		return nil, grpcError(err)
	}
	return rpc.Encode("alert", alert)
}

func (s service) updateAlert(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	in, err := ParseUpdateAlert(req.AsMap())
	if err != nil {
		return nil, grpcError(err)
	}
	alert, err := s.services.UpdateAlert(ctx, in)
	if err != nil {
		return nil, grpcError(err)
	}
	return rpc.Encode("alert", alert)
}

func (s service) deleteAlert(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	id, err := ParseAlertID(req.AsMap())
	if err != nil {
		return nil, grpcError(err)
	}
	if err := s.services.DeleteAlert(ctx, id); err != nil {
		return nil, grpcError(err)
	}
	return rpc.Encode("deleted", id)
}

func (s service) refreshData(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	snap := s.services.RefreshData(ctx, ParseDeviceID(req.AsMap()))
	return rpc.Encode("", snap)
}

func (s service) listSessions(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	args := req.AsMap()
	deviceID, _ := lookup.String(args, "device_id")
	limit := DefaultSessionLimit
	if n, ok := lookup.Int(args, "limit"); ok {
		if n <= 0 {
			return nil, status.Error(codes.InvalidArgument, "limit must be positive")
		}
		limit = n
	}
	sessions, err := s.client.GetSessions(ctx, deviceID, limit)
	if err != nil {
		return nil, grpcError(err)
	}
	return rpc.Encode("sessions", sessions)
}

func (s service) getSession(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	id, err := requiredID(req, "session_id")
	if err != nil {
		return nil, err
	}
	session, ok, err := s.client.GetSession(ctx, id)
	if err != nil {
		return nil, grpcError(err)
	}
	if !ok {
		return nil, status.Errorf(codes.NotFound, "session %q not found", id)
	}
	return rpc.Encode("session", session)
}

func (s service) getSessionTemps(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	id, err := requiredID(req, "session_id")
	if err != nil {
		return nil, err
	}
	temps, err := s.client.GetSessionTemps(ctx, id)
	if err != nil {
		return nil, grpcError(err)
	}
	return rpc.Encode("temps", temps)
}

func requiredID(req *structpb.Struct, key string) (string, error) {
	id, ok := lookup.String(req.AsMap(), key)
	if !ok {
		return "", status.Errorf(codes.InvalidArgument, "%s is required", key)
	}
	return id, nil
}

func grpcError(err error) error {
	switch {
	case errors.Is(err, ErrInvalidArgument):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, ErrNotFound):
		return status.Error(codes.NotFound, err.Error())
	case IsAuthError(err):
		return status.Error(codes.Unauthenticated, err.Error())
	case errors.Is(err, ErrNoWorkingEndpoint):
		return status.Error(codes.FailedPrecondition, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, err.Error())
	case errors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, err.Error())
	default:
		return status.Error(codes.Internal, err.Error())
	}
}
