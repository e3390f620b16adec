package rpc

import (
	"encoding/base64"
	"fmt"
	"strconv"
	"time"

	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

// Wire mapping of the Keepr messages onto protobuf well-known types:
//
//	Challenge         StringValue(address)   -> Struct{nonce, message, expiresAt}
//	Login             Struct{address, nonce, signature} -> Struct{accessToken, expiresAt}
//	PublishKey        Struct{publicKey, signature}      -> Empty
//	LookupKey         StringValue(address)   -> BytesValue(publicKey)
//	RegisterContacts  Struct{contentAddress, keepId, contacts[]} -> Int64Value(stored)
//	Ping              Empty                  -> StringValue(status)
//
// Bytes are base64 strings, times are RFC 3339 strings and keep ids are
// decimal strings, so no value goes through a float.

func field(s *structpb.Struct, key string) string {
	return s.GetFields()[key].GetStringValue()
}

func bytesField(s *structpb.Struct, key string) ([]byte, error) {
	v := field(s, key)
	if v == "" {
		return nil, nil
	}
	b, err := base64.StdEncoding.DecodeString(v)
	if err != nil {
		return nil, fmt.Errorf("field %s: %w", key, err)
	}
	return b, nil
}

func timeField(s *structpb.Struct, key string) (time.Time, error) {
	v := field(s, key)
	if v == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(time.RFC3339Nano, v)
	if err != nil {
		return time.Time{}, fmt.Errorf("field %s: %w", key, err)
	}
	return t, nil
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}

func b64(b []byte) string {
	return base64.StdEncoding.EncodeToString(b)
}

func encodeChallengeRequest(in *ChallengeRequest) (*wrapperspb.StringValue, error) {
	return wrapperspb.String(in.Address), nil
}

func decodeChallengeRequest(w *wrapperspb.StringValue) (*ChallengeRequest, error) {
	return &ChallengeRequest{Address: w.GetValue()}, nil
}

func encodeChallengeResponse(in *ChallengeResponse) (*structpb.Struct, error) {
	return structpb.NewStruct(map[string]any{
		"nonce":     in.Nonce,
		"message":   in.Message,
		"expiresAt": formatTime(in.ExpiresAt),
	})
}

func decodeChallengeResponse(w *structpb.Struct) (*ChallengeResponse, error) {
	exp, err := timeField(w, "expiresAt")
	if err != nil {
		return nil, err
	}
	return &ChallengeResponse{Nonce: field(w, "nonce"), Message: field(w, "message"), ExpiresAt: exp}, nil
}

func encodeLoginRequest(in *LoginRequest) (*structpb.Struct, error) {
	return structpb.NewStruct(map[string]any{
		"address":   in.Address,
		"nonce":     in.Nonce,
		"signature": b64(in.Signature),
	})
}

func decodeLoginRequest(w *structpb.Struct) (*LoginRequest, error) {
	sig, err := bytesField(w, "signature")
	if err != nil {
		return nil, err
	}
	return &LoginRequest{Address: field(w, "address"), Nonce: field(w, "nonce"), Signature: sig}, nil
}

func encodeLoginResponse(in *LoginResponse) (*structpb.Struct, error) {
	return structpb.NewStruct(map[string]any{
		"accessToken": in.AccessToken,
		"expiresAt":   formatTime(in.ExpiresAt),
	})
}

func decodeLoginResponse(w *structpb.Struct) (*LoginResponse, error) {
	exp, err := timeField(w, "expiresAt")
	if err != nil {
		return nil, err
	}
	return &LoginResponse{AccessToken: field(w, "accessToken"), ExpiresAt: exp}, nil
}

func encodePublishKeyRequest(in *PublishKeyRequest) (*structpb.Struct, error) {
	return structpb.NewStruct(map[string]any{
		"publicKey": b64(in.PublicKey),
		"signature": b64(in.Signature),
	})
}

func decodePublishKeyRequest(w *structpb.Struct) (*PublishKeyRequest, error) {
	pub, err := bytesField(w, "publicKey")
	if err != nil {
		return nil, err
	}
	sig, err := bytesField(w, "signature")
	if err != nil {
		return nil, err
	}
	return &PublishKeyRequest{PublicKey: pub, Signature: sig}, nil
}

func encodePublishKeyResponse(*PublishKeyResponse) (*emptypb.Empty, error) {
	return &emptypb.Empty{}, nil
}

func decodePublishKeyResponse(*emptypb.Empty) (*PublishKeyResponse, error) {
	return &PublishKeyResponse{}, nil
}

func encodeLookupKeyRequest(in *LookupKeyRequest) (*wrapperspb.StringValue, error) {
	return wrapperspb.String(in.Address), nil
}

func decodeLookupKeyRequest(w *wrapperspb.StringValue) (*LookupKeyRequest, error) {
	return &LookupKeyRequest{Address: w.GetValue()}, nil
}

func encodeLookupKeyResponse(in *LookupKeyResponse) (*wrapperspb.BytesValue, error) {
	return wrapperspb.Bytes(in.PublicKey), nil
}

func encodeRegisterContactsRequest(in *RegisterContactsRequest) (*structpb.Struct, error) {
	contacts := make([]any, 0, len(in.Contacts))
	for _, c := range in.Contacts {
		contacts = append(contacts, map[string]any{
			"role":    c.Role,
			"address": c.Address,
			"email":   c.Email,
		})
	}
	return structpb.NewStruct(map[string]any{
		"contentAddress": in.ContentAddress,
		"keepId":         strconv.FormatUint(in.KeepID, 10),
		"contacts":       contacts,
	})
}

func decodeRegisterContactsRequest(w *structpb.Struct) (*RegisterContactsRequest, error) {
	out := &RegisterContactsRequest{ContentAddress: field(w, "contentAddress")}

	if raw := field(w, "keepId"); raw != "" {
		id, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("field keepId: %w", err)
		}
		out.KeepID = id
	}

	for _, v := range w.GetFields()["contacts"].GetListValue().GetValues() {
		c := v.GetStructValue()
		if c == nil {
			return nil, fmt.Errorf("field contacts: entry is not an object")
		}
		out.Contacts = append(out.Contacts, Contact{
			Role:    field(c, "role"),
			Address: field(c, "address"),
			Email:   field(c, "email"),
		})
	}
	return out, nil
}

func encodeRegisterContactsResponse(in *RegisterContactsResponse) (*wrapperspb.Int64Value, error) {
	return wrapperspb.Int64(int64(in.Stored)), nil
}

func decodeRegisterContactsResponse(w *wrapperspb.Int64Value) (*RegisterContactsResponse, error) {
	return &RegisterContactsResponse{Stored: int(w.GetValue())}, nil
}

func encodePingRequest(*PingRequest) (*emptypb.Empty, error) {
	return &emptypb.Empty{}, nil
}

func decodePingRequest(*emptypb.Empty) (*PingRequest, error) {
	return &PingRequest{}, nil
}

func encodePingResponse(in *PingResponse) (*wrapperspb.StringValue, error) {
	return wrapperspb.String(in.Status), nil
}

func decodePingResponse(w *wrapperspb.StringValue) (*PingResponse, error) {
	return &PingResponse{Status: w.GetValue()}, nil
}
