package api

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/aws/aws-lambda-go/events"
)

// HandleAPIGateway serves API Gateway proxy events with the same routes as
// Handler. The op comes from the {op} path parameter or, for GET, from the
// path itself.
func (s *Service) HandleAPIGateway(ctx context.Context, event events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	id := event.Headers[RequestIDHeader]
	if id == "" {
		id = event.RequestContext.RequestID
	}
	id = requestID(id)

	var req Request
	switch event.HTTPMethod {
	case http.MethodGet:
		var op string
		switch event.Path {
		case "/lists":
			op = OpIndex
		case "/lists/tree":
			op = OpTree
		default:
			return gatewayResponse(id, http.StatusNotFound, ErrorBody{Message: "not found"})
		}
		req = Request{
			Op:        op,
			OwnerType: event.QueryStringParameters["owner_type"],
			OwnerID:   event.QueryStringParameters["owner_id"],
			FieldID:   event.QueryStringParameters["field_id"],
		}

	case http.MethodPost:
		body := []byte(event.Body)
		if event.IsBase64Encoded {
			decoded, err := base64.StdEncoding.DecodeString(event.Body)
			if err != nil {
				return gatewayResponse(id, http.StatusBadRequest, ErrorBody{Message: fmt.Sprintf("invalid request body: %v", err)})
			}
			body = decoded
		}
		if len(body) > 0 {
			if err := json.Unmarshal(body, &req); err != nil {
				return gatewayResponse(id, http.StatusBadRequest, ErrorBody{Message: fmt.Sprintf("invalid request body: %v", err)})
			}
		}
		req.Op = event.PathParameters["op"]

	default:
		return gatewayResponse(id, http.StatusMethodNotAllowed, ErrorBody{Message: "method not allowed"})
	}

	status, body := s.Handle(ctx, id, req)
	return gatewayResponse(id, status, body)
}

func gatewayResponse(id string, status int, body any) (events.APIGatewayProxyResponse, error) {
	data, err := json.Marshal(body)
	if err != nil {
		return events.APIGatewayProxyResponse{}, fmt.Errorf("failed to encode response: %w", err)
	}
	return events.APIGatewayProxyResponse{
		StatusCode: status,
		Headers: map[string]string{
			"Content-Type":  "application/json",
			RequestIDHeader: id,
		},
		Body: string(data),
	}, nil
}
