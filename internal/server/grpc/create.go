package grpc

import (
	"context"
	"github.com/rs/zerolog/log"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"time"
)

func (t *table) CreateFamily(ctx context.Context, msg *CreateFamilyRequest) (*CreateFamilyResponse, error) {
	start := time.Now()
	if len(msg.Families) == 0 {
		return nil, status.Errorf(codes.InvalidArgument, "family required")
	}

	log.Debug().Msgf("CreateFamily request: %v", msg.Families)

	if err := t.store.CreateFamilies(msg.Families...); err != nil {
		return nil, status.Errorf(codes.Internal, "failed to create family: %v", err)
	}
	log.Debug().Msgf("CreateFamily successful: %v", time.Since(start))
	return &CreateFamilyResponse{Families: t.store.Families()}, nil
}
