package counter

import (
	"context"
	"errors"
	"net/http"
	"time"

	"connectrpc.com/connect"
	"github.com/rs/zerolog/log"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/mcdev12/slapboard/go/internal/counter/counterapi"
	"github.com/mcdev12/slapboard/go/internal/tally"
)

// CounterApp defines what the service layer needs from the counter application
type CounterApp interface {
	Increment(ctx context.Context, team tally.TeamID) (tally.Counts, error)
	GetCounts(ctx context.Context) (tally.Counts, time.Time, error)
}

// Service implements the CounterService RPCs
type Service struct {
	app CounterApp
}

// NewService creates a new counter service
func NewService(app CounterApp) *Service {
	return &Service{
		app: app,
	}
}

// Increment adds one to the requested team's count
func (s *Service) Increment(ctx context.Context, req *connect.Request[wrapperspb.StringValue]) (*connect.Response[structpb.Struct], error) {
	counts, err := s.app.Increment(ctx, tally.TeamID(req.Msg.GetValue()))
	if err != nil {
		return nil, s.toConnectError(err)
	}
	return s.countsResponse(counts)
}

// GetCounts returns the current counts. The document version goes out as a response header.
func (s *Service) GetCounts(ctx context.Context, req *connect.Request[emptypb.Empty]) (*connect.Response[structpb.Struct], error) {
	counts, updatedAt, err := s.app.GetCounts(ctx)
	if err != nil {
		return nil, s.toConnectError(err)
	}
	res, err := s.countsResponse(counts)
	if err != nil {
		return nil, err
	}
	if !updatedAt.IsZero() {
		res.Header().Set(counterapi.UpdatedAtHeader, counterapi.FormatUpdatedAt(updatedAt))
	}
	return res, nil
}

func (s *Service) countsResponse(counts tally.Counts) (*connect.Response[structpb.Struct], error) {
	msg, err := counterapi.CountsToStruct(counts)
	if err != nil {
		return nil, connect.NewError(connect.CodeInternal, err)
	}
	return connect.NewResponse(msg), nil
}

func (s *Service) toConnectError(err error) error {
	switch {
	case errors.Is(err, tally.ErrUnknownTeam):
		return connect.NewError(connect.CodeInvalidArgument, err)
	case errors.Is(err, ErrDocumentNotFound):
		return connect.NewError(connect.CodeNotFound, err)
	case errors.Is(err, context.Canceled):
		return connect.NewError(connect.CodeCanceled, err)
	default:
		log.Error().Err(err).Msg("counter store error")
		return connect.NewError(connect.CodeUnavailable, err)
	}
}

// NewHandler builds an HTTP handler serving every CounterService procedure
func NewHandler(svc *Service, opts ...connect.HandlerOption) (string, http.Handler) {
	increment := connect.NewUnaryHandler(counterapi.IncrementProcedure, svc.Increment, opts...)
	getCounts := connect.NewUnaryHandler(counterapi.GetCountsProcedure, svc.GetCounts, opts...)

	return "/" + counterapi.ServiceName + "/", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case counterapi.IncrementProcedure:
			increment.ServeHTTP(w, r)
		case counterapi.GetCountsProcedure:
			getCounts.ServeHTTP(w, r)
		default:
			http.NotFound(w, r)
		}
	})
}
