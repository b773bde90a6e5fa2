package service

import (
	"context"
	"errors"
	"fmt"

	"shelfmate/backend/internal/broker"
	"shelfmate/backend/internal/metrics"
	"shelfmate/backend/internal/models"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Direction selects which side of pending requests to list.
type Direction string

const (
	Incoming Direction = "incoming"
	Outgoing Direction = "outgoing"
)

// FriendshipService runs the invite workflow: NONE -> PENDING -> FRIENDS,
// with PENDING -> NONE on cancel or deny.
type FriendshipService struct {
	db     *gorm.DB
	logger *zap.Logger
	events broker.Publisher
}

func newFriendshipService(deps Deps) *FriendshipService {
	return &FriendshipService{
		db:     deps.DB,
		logger: deps.Logger.Named("friends"),
		events: deps.Events,
	}
}

// SendRequest creates a pending request from initiator to approver.
func (s *FriendshipService) SendRequest(ctx context.Context, initiator, approver uint) (*models.Friendship, error) {
	req, err := s.sendRequest(ctx, initiator, approver)
	switch {
	case err == nil:
		metrics.FriendRequests.WithLabelValues("created").Inc()
	case errors.Is(err, ErrDuplicateRequest), errors.Is(err, ErrAlreadyFriends):
		metrics.FriendRequests.WithLabelValues("conflict").Inc()
	default:
		metrics.FriendRequests.WithLabelValues("rejected").Inc()
	}
	return req, err
}

func (s *FriendshipService) sendRequest(ctx context.Context, initiator, approver uint) (*models.Friendship, error) {
	if initiator == approver {
		return nil, ErrSelfRequest
	}

	var count int64
	if err := s.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", approver).Count(&count).Error; err != nil {
		return nil, fmt.Errorf("find approver: %w", err)
	}
	if count == 0 {
		return nil, ErrNotFound
	}

	low, high := models.PairKey(initiator, approver)
	existing, err := s.edge(ctx, low, high)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, conflictFor(existing)
	}

	req := models.NewFriendRequest(initiator, approver)
	if err := s.db.WithContext(ctx).Create(&req).Error; err != nil {
		// A concurrent request for the same pair won the unique pair index.
		if existing, ferr := s.edge(ctx, low, high); ferr == nil && existing != nil {
			return nil, conflictFor(existing)
		}
		return nil, fmt.Errorf("create friend request: %w", err)
	}
	return &req, nil
}

// Approve accepts request requestID on behalf of approver. It is a silent
// no-op unless the request is pending and approver is its receiving side.
func (s *FriendshipService) Approve(ctx context.Context, requestID, approver uint) (Outcome, error) {
	res := s.db.WithContext(ctx).Model(&models.Friendship{}).
		Where("id = ? AND state = ? AND initiator_id <> ? AND (user_low_id = ? OR user_high_id = ?)",
			requestID, models.StatePending, approver, approver, approver).
		Update("state", models.StateAccepted)
	if res.Error != nil {
		return OutcomeNotFound, fmt.Errorf("approve request %d: %w", requestID, res.Error)
	}
	if res.RowsAffected == 0 {
		return s.explain(ctx, requestID)
	}

	var edge models.Friendship
	if err := s.db.WithContext(ctx).First(&edge, requestID).Error; err == nil {
		if err := s.events.Publish(ctx, broker.SubjectFriendshipAccepted, broker.FriendshipAccepted{
			FriendshipID: edge.ID,
			InitiatorID:  edge.InitiatorID,
			ApproverID:   approver,
		}); err != nil {
			s.logger.Warn("publish friendship accepted", zap.Uint("friendship_id", edge.ID), zap.Error(err))
		}
	}
	return OutcomeApplied, nil
}

// Deny removes a pending request addressed to approver. Silent no-op otherwise.
func (s *FriendshipService) Deny(ctx context.Context, requestID, approver uint) (Outcome, error) {
	return s.removePending(ctx, requestID,
		"initiator_id <> ? AND (user_low_id = ? OR user_high_id = ?)", approver, approver, approver)
}

// Cancel withdraws a pending request sent by initiator. Silent no-op otherwise.
func (s *FriendshipService) Cancel(ctx context.Context, requestID, initiator uint) (Outcome, error) {
	return s.removePending(ctx, requestID, "initiator_id = ?", initiator)
}

func (s *FriendshipService) removePending(ctx context.Context, requestID uint, side string, args ...any) (Outcome, error) {
	res := s.db.WithContext(ctx).
		Where("id = ? AND state = ?", requestID, models.StatePending).
		Where(side, args...).
		Delete(&models.Friendship{})
	if res.Error != nil {
		return OutcomeNotFound, fmt.Errorf("remove request %d: %w", requestID, res.Error)
	}
	if res.RowsAffected == 0 {
		return s.explain(ctx, requestID)
	}
	return OutcomeApplied, nil
}

// explain classifies a mutation that matched no row.
func (s *FriendshipService) explain(ctx context.Context, requestID uint) (Outcome, error) {
	var count int64
	if err := s.db.WithContext(ctx).Model(&models.Friendship{}).
		Where("id = ? AND state = ?", requestID, models.StatePending).
		Count(&count).Error; err != nil {
		return OutcomeNotFound, fmt.Errorf("find request %d: %w", requestID, err)
	}
	if count == 0 {
		return OutcomeNotFound, nil
	}
	return OutcomeDenied, nil
}

// RemoveFriend deletes the friendship between a and b, whichever way it is stored.
func (s *FriendshipService) RemoveFriend(ctx context.Context, a, b uint) (Outcome, error) {
	low, high := models.PairKey(a, b)
	res := s.db.WithContext(ctx).
		Where("user_low_id = ? AND user_high_id = ? AND state = ?", low, high, models.StateAccepted).
		Delete(&models.Friendship{})
	if res.Error != nil {
		return OutcomeNotFound, fmt.Errorf("remove friend: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return OutcomeNotFound, nil
	}
	return OutcomeApplied, nil
}

// ListFriends returns the other side of every accepted edge of userID.
func (s *FriendshipService) ListFriends(ctx context.Context, userID uint) ([]models.User, error) {
	var edges []models.Friendship
	if err := s.db.WithContext(ctx).
		Where("(user_low_id = ? OR user_high_id = ?) AND state = ?", userID, userID, models.StateAccepted).
		Find(&edges).Error; err != nil {
		return nil, fmt.Errorf("list friendships: %w", err)
	}
	if len(edges) == 0 {
		return []models.User{}, nil
	}

	ids := make([]uint, 0, len(edges))
	for _, e := range edges {
		ids = append(ids, e.Other(userID))
	}
	var friends []models.User
	if err := s.db.WithContext(ctx).Where("id IN ?", ids).Find(&friends).Error; err != nil {
		return nil, fmt.Errorf("load friends: %w", err)
	}
	return friends, nil
}

// ListRequests returns pending requests addressed to (incoming) or sent by
// (outgoing) userID, with both users preloaded.
func (s *FriendshipService) ListRequests(ctx context.Context, userID uint, dir Direction) ([]models.Friendship, error) {
	q := s.db.WithContext(ctx).
		Preload("UserLow").Preload("UserHigh").
		Where("(user_low_id = ? OR user_high_id = ?) AND state = ?", userID, userID, models.StatePending)

	switch dir {
	case Incoming:
		q = q.Where("initiator_id <> ?", userID)
	case Outgoing:
		q = q.Where("initiator_id = ?", userID)
	default:
		return nil, ErrInvalidInput
	}

	var requests []models.Friendship
	if err := q.Order("created_at DESC").Find(&requests).Error; err != nil {
		return nil, fmt.Errorf("list requests: %w", err)
	}
	return requests, nil
}

// Relation returns the edge between two users, or nil when there is none.
func (s *FriendshipService) Relation(ctx context.Context, a, b uint) (*models.Friendship, error) {
	low, high := models.PairKey(a, b)
	return s.edge(ctx, low, high)
}

// CountFriends returns how many accepted edges userID has.
func (s *FriendshipService) CountFriends(ctx context.Context, userID uint) (int64, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&models.Friendship{}).
		Where("(user_low_id = ? OR user_high_id = ?) AND state = ?", userID, userID, models.StateAccepted).
		Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("count friends: %w", err)
	}
	return count, nil
}

func (s *FriendshipService) edge(ctx context.Context, low, high uint) (*models.Friendship, error) {
	var edge models.Friendship
	err := s.db.WithContext(ctx).
		Where("user_low_id = ? AND user_high_id = ?", low, high).
		First(&edge).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find friendship: %w", err)
	}
	return &edge, nil
}

func conflictFor(edge *models.Friendship) error {
	if edge.State == models.StateAccepted {
		return ErrAlreadyFriends
	}
	return ErrDuplicateRequest
}
