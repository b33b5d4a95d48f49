package handler

import (
	"context"
	"log"
	"net/http"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/rl1809/vending-machine/internal/core/service"
)

type GRPCHandler struct {
	vending *service.VendingService
}

func NewGRPCHandler(vending *service.VendingService) *GRPCHandler {
	return &GRPCHandler{vending: vending}
}

func (h *GRPCHandler) Purchase(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	itemName := stringField(req, "item_name")

	res, err := h.vending.Purchase(ctx, itemName, stringField(req, "user_id"))
	if err != nil {
		return errorStruct(err, "purchase "+itemName)
	}

	dispatch := map[string]interface{}{"status": statusOK}
	if !res.Dispatch.OK {
		dispatch = map[string]interface{}{"status": statusError, "error": res.Dispatch.Error}
	}
	return newStruct(map[string]interface{}{
		"status":    statusOK,
		"message":   "purchased " + res.ItemName,
		"new_stock": res.NewStock,
		"price":     res.Price.InexactFloat64(),
		"dispatch":  dispatch,
	})
}

func (h *GRPCHandler) CheckRegistration(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	userID := stringField(req, "userId")
	if userID == "" {
		return newStruct(map[string]interface{}{"status": statusError, "message": service.ErrInvalidInput.Error()})
	}

	name, ok, err := h.vending.IsRegistered(ctx, userID)
	if err != nil {
		return errorStruct(err, "check user "+userID)
	}

	out := map[string]interface{}{"status": statusOK, "registered": ok}
	if ok {
		out["name"] = name
	}
	return newStruct(out)
}

func (h *GRPCHandler) Register(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	name := stringField(req, "name")
	err := h.vending.Register(ctx, service.RegisterRequest{
		Identity:  stringField(req, "userId"),
		Name:      name,
		StudentID: stringField(req, "student_id"),
		Grade:     stringField(req, "grade"),
	})
	if err != nil {
		return errorStruct(err, "register")
	}
	return newStruct(map[string]interface{}{"status": statusOK, "message": "registered " + name})
}

func (h *GRPCHandler) ListItems(ctx context.Context, _ *structpb.Struct) (*structpb.Struct, error) {
	items, err := h.vending.ListItems(ctx)
	if err != nil {
		return errorStruct(err, "list stock")
	}

	list := make([]interface{}, 0, len(items))
	for _, it := range items {
		list = append(list, map[string]interface{}{
			"name":    it.Name,
			"stock":   it.Stock,
			"price":   it.Price.InexactFloat64(),
			"shelf":   it.Shelf,
			"address": it.Address,
		})
	}
	return newStruct(map[string]interface{}{"items": list})
}

// errorStruct answers business rejections in-band, like the HTTP API, and
// turns store faults into an Unavailable status.
func errorStruct(err error, op string) (*structpb.Struct, error) {
	code, message := errorResponse(err)
	if code != http.StatusOK {
		log.Printf("grpc %s: %v", op, err)
		return nil, status.Error(codes.Unavailable, message)
	}
	return newStruct(map[string]interface{}{"status": statusError, "message": message})
}

func newStruct(m map[string]interface{}) (*structpb.Struct, error) {
	s, err := structpb.NewStruct(m)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "encode response: %v", err)
	}
	return s, nil
}

func stringField(s *structpb.Struct, key string) string {
	if s == nil {
		return ""
	}
	return s.GetFields()[key].GetStringValue()
}
