package ports

import (
	"context"

	"github.com/docchatlabs/docchat/internal/core/domain"
)

// IngestionIntake is the inbound contract for accepting ingestion requests.
type IngestionIntake interface {
	Accept(ctx context.Context, req domain.IngestionRequest) (domain.IngestionStatus, error)
	StatusByRequestID(ctx context.Context, requestID int64) (domain.IngestionStatus, error)
}

// IngestionProcessor runs one ingestion request end to end.
type IngestionProcessor interface {
	Process(ctx context.Context, req domain.IngestionRequest) domain.IngestionStatus
}

// AgentRunner is the inbound contract for one full orchestrated answer.
type AgentRunner interface {
	Run(ctx context.Context, query domain.AgentQuery) (domain.AgentAnswer, error)
}

// StreamSink receives ordered events of one streaming response.
type StreamSink interface {
	Send(event domain.StreamEvent) error
}

// StreamResponder answers one question as an ordered event stream.
type StreamResponder interface {
	Respond(ctx context.Context, req domain.StreamRequest, sink StreamSink) error
}
