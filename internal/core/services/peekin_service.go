package services

import (
	"context"
	"fmt"
	"time"

	"stagecast/internal/core/domain"
	"stagecast/internal/core/ports"
	"stagecast/pkg/utils"

	"go.uber.org/zap"
)

// DefaultPeekInTimeLimit bounds how long a single peek-in grant allows
// spectating.
const DefaultPeekInTimeLimit = 60 * time.Second

type peekInService struct {
	peekRepo   ports.PeekInRepository
	streamRepo ports.StreamRepository
	performers ports.PerformerProvider
	purchases  ports.PurchaseVerifier
	logger     *zap.SugaredLogger
}

func NewPeekInService(
	peekRepo ports.PeekInRepository,
	streamRepo ports.StreamRepository,
	performers ports.PerformerProvider,
	purchases ports.PurchaseVerifier,
	logger *zap.SugaredLogger,
) ports.PeekInService {
	return &peekInService{
		peekRepo:   peekRepo,
		streamRepo: streamRepo,
		performers: performers,
		purchases:  purchases,
		logger:     logger,
	}
}

func (s *peekInService) CreateRequest(ctx context.Context, performerID domain.PerformerID, userID domain.UserID) (*domain.PeekInRequest, error) {
	performer, err := s.performers.GetPerformer(ctx, performerID)
	if err != nil {
		return nil, err
	}
	if !performer.EnablePeekIn {
		return nil, domain.ErrForbidden
	}

	stream, err := s.streamRepo.GetCurrent(ctx, performerID, domain.StreamTypePrivate)
	if err != nil {
		return nil, domain.ErrStreamOffline
	}
	if !stream.IsStreaming {
		return nil, domain.ErrStreamOffline
	}

	req := &domain.PeekInRequest{
		ID:               utils.GeneratePeekInID(),
		PerformerID:      performerID,
		UserID:           userID,
		StreamID:         stream.ID,
		StreamType:       stream.Type,
		PriceToken:       performer.PeekInPrice,
		TimeLimitSeconds: int(DefaultPeekInTimeLimit.Seconds()),
		CreatedAt:        time.Now(),
	}
	if err := s.peekRepo.Create(ctx, req); err != nil {
		return nil, fmt.Errorf("failed to create peek-in request: %w", err)
	}

	s.logger.Infow("peek-in request created",
		"request_id", req.ID, "performer_id", performerID, "user_id", userID)

	return req, nil
}

func (s *peekInService) StreamToSpy(ctx context.Context, requestID string, userID domain.UserID) (string, error) {
	req, err := s.peekRepo.GetByID(ctx, requestID)
	if err != nil {
		return "", err
	}
	if req.UserID != userID {
		return "", domain.ErrForbidden
	}

	purchased, err := s.purchases.HasPurchased(ctx, userID, requestID)
	if err != nil {
		return "", fmt.Errorf("failed to verify purchase: %w", err)
	}
	if !purchased {
		return "", domain.ErrForbidden
	}

	stream, err := s.streamRepo.GetByID(ctx, req.StreamID)
	if err != nil {
		return "", err
	}
	if !stream.IsStreaming {
		return "", domain.ErrStreamOffline
	}

	var subStream string
	for _, sid := range stream.StreamIDs {
		if domain.ContainsPerformer(sid, req.PerformerID) {
			subStream = sid
			break
		}
	}
	if subStream == "" {
		return "", domain.ErrStreamNotFound
	}

	// One-shot: the grant is gone once the sub-stream id has been handed out.
	if err := s.peekRepo.Delete(ctx, requestID); err != nil {
		return "", fmt.Errorf("failed to consume peek-in request: %w", err)
	}

	return subStream, nil
}
