package api

import (
	"context"
	"encoding/json"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"

	"fabrics-catalog-service/internal/catalog"
	"fabrics-catalog-service/internal/channel"
	"fabrics-catalog-service/internal/channel/messenger"
	"fabrics-catalog-service/internal/channel/telegram"
	"fabrics-catalog-service/internal/channel/whatsapp"
	"fabrics-catalog-service/internal/conversation"
)

// NavigatorServiceName is the fully qualified gRPC service name.
const NavigatorServiceName = "fabrics.catalog.v1.CatalogNavigator"

// CatalogNavigatorServer is the gRPC surface: the category tree, and a dry run of the
// conversation for one event rendered for one channel. Messages are structpb.Struct.
type CatalogNavigatorServer interface {
	GetCategoryTree(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	Navigate(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
}

// GRPCHandler implements CatalogNavigatorServer.
type GRPCHandler struct {
	catalog CatalogService
	engine  channel.Responder
}

// NewGRPCHandler creates a new GRPCHandler.
func NewGRPCHandler(cs CatalogService, engine channel.Responder) *GRPCHandler {
	return &GRPCHandler{catalog: cs, engine: engine}
}

// RegisterNavigatorServer registers srv on s.
func RegisterNavigatorServer(s grpc.ServiceRegistrar, srv CatalogNavigatorServer) {
	s.RegisterService(&navigatorServiceDesc, srv)
}

// --- Helper: Error Mapping ---
func mapCatalogErrorToGrpcStatus(err error) error {
	if err == nil {
		return nil
	}
	log.WithError(err).Error("api: gRPC catalog operation failed")

	switch {
	case errors.Is(err, catalog.ErrProductNotFound):
		return status.Error(codes.NotFound, err.Error())
	case errors.Is(err, catalog.ErrDataSource):
		return status.Error(codes.Unavailable, "catalog source unavailable")
	default:
		return status.Errorf(codes.Internal, "failed to load catalog: %v", err)
	}
}

// GetCategoryTree returns {"categories": [node...]} in source order.
func (s *GRPCHandler) GetCategoryTree(ctx context.Context, _ *structpb.Struct) (*structpb.Struct, error) {
	hier, _, err := s.catalog.Hierarchy(ctx)
	if err != nil {
		return nil, mapCatalogErrorToGrpcStatus(err)
	}
	out, err := toStruct(map[string]any{"categories": hier.BuildTree()})
	if err != nil {
		return nil, status.Errorf(codes.Internal, "failed to encode category tree: %v", err)
	}
	return out, nil
}

// Navigate runs one event through the conversation engine and returns the rendered
// messages without sending them. Request fields: channel, sender_id, text, payload.
func (s *GRPCHandler) Navigate(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	fields := req.GetFields()
	channelName := fields["channel"].GetStringValue()
	limits, ok := limitsFor(channelName)
	if !ok {
		return nil, status.Errorf(codes.InvalidArgument, "unknown channel %q", channelName)
	}

	sender := fields["sender_id"].GetStringValue()
	ev := conversation.TextEvent(channelName, sender, fields["text"].GetStringValue())
	if payload := fields["payload"].GetStringValue(); payload != "" {
		ev = conversation.PostbackEvent(channelName, sender, payload)
	}

	msgs := channel.NewRenderer(limits).Render(s.engine.Respond(ctx, ev))
	items := make([]any, 0, len(msgs))
	for _, m := range msgs {
		items = append(items, messageValue(m))
	}
	out, err := structpb.NewStruct(map[string]any{"messages": items})
	if err != nil {
		return nil, status.Errorf(codes.Internal, "failed to encode messages: %v", err)
	}
	return out, nil
}

func limitsFor(name string) (channel.Limits, bool) {
	switch name {
	case "", messenger.Name:
		return channel.MessengerLimits, true
	case whatsapp.Name:
		return channel.WhatsAppLimits, true
	case telegram.Name:
		return channel.TelegramLimits, true
	}
	return channel.Limits{}, false
}

func messageValue(m channel.Message) map[string]any {
	v := map[string]any{"kind": m.Kind.String()}
	if m.Text != "" {
		v["text"] = m.Text
	}
	if len(m.Buttons) > 0 {
		v["buttons"] = buttonValues(m.Buttons)
	}
	if len(m.Elements) > 0 {
		elements := make([]any, 0, len(m.Elements))
		for _, e := range m.Elements {
			elements = append(elements, map[string]any{
				"title":     e.Title,
				"subtitle":  e.Subtitle,
				"image_url": e.ImageURL,
				"buttons":   buttonValues(e.Buttons),
			})
		}
		v["elements"] = elements
	}
	return v
}

func buttonValues(buttons []channel.Button) []any {
	out := make([]any, 0, len(buttons))
	for _, b := range buttons {
		out = append(out, map[string]any{"title": b.Title, "payload": b.Payload})
	}
	return out
}

// toStruct converts a JSON-tagged value into a Struct.
func toStruct(v any) (*structpb.Struct, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	out := &structpb.Struct{}
	if err := protojson.Unmarshal(raw, out); err != nil {
		return nil, err
	}
	return out, nil
}

// --- Service descriptor ---

func getCategoryTreeHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(CatalogNavigatorServer).GetCategoryTree(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + NavigatorServiceName + "/GetCategoryTree"}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(CatalogNavigatorServer).GetCategoryTree(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

func navigateHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(CatalogNavigatorServer).Navigate(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + NavigatorServiceName + "/Navigate"}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(CatalogNavigatorServer).Navigate(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

var navigatorServiceDesc = grpc.ServiceDesc{
	ServiceName: NavigatorServiceName,
	HandlerType: (*CatalogNavigatorServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "GetCategoryTree", Handler: getCategoryTreeHandler},
		{MethodName: "Navigate", Handler: navigateHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "fabrics/catalog/v1/navigator.proto",
}
