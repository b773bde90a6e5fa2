package models

import "time"

// FriendshipState defines the state of a relationship between two users.
type FriendshipState string

const (
	// StatePending means a friend request has been sent but not yet approved.
	StatePending FriendshipState = "pending"

	// StateAccepted means the request was approved and the users are friends.
	StateAccepted FriendshipState = "accepted"
)

// Friendship is the single edge between an unordered pair of users.
// (UserLowID, UserHighID) is the canonical pair key and is unique, so a pair
// can never hold a pending request and a friendship at the same time.
type Friendship struct {
	ID          uint            `gorm:"primaryKey"`
	UserLowID   uint            `gorm:"not null;uniqueIndex:idx_friendship_pair"`
	UserHighID  uint            `gorm:"not null;uniqueIndex:idx_friendship_pair;index"`
	InitiatorID uint            `gorm:"not null"`
	State       FriendshipState `gorm:"type:varchar(20);not null;index"`
	CreatedAt   time.Time
	UpdatedAt   time.Time

	UserLow  User `gorm:"foreignKey:UserLowID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE;"`
	UserHigh User `gorm:"foreignKey:UserHighID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE;"`
}

// PairKey orders two user ids into the canonical (low, high) key.
func PairKey(a, b uint) (low, high uint) {
	if a < b {
		return a, b
	}
	return b, a
}

// NewFriendRequest builds a pending edge initiated by initiator towards approver.
func NewFriendRequest(initiator, approver uint) Friendship {
	low, high := PairKey(initiator, approver)
	return Friendship{
		UserLowID:   low,
		UserHighID:  high,
		InitiatorID: initiator,
		State:       StatePending,
	}
}

// ApproverID is the side of the pair that did not initiate the request.
func (f Friendship) ApproverID() uint {
	if f.InitiatorID == f.UserLowID {
		return f.UserHighID
	}
	return f.UserLowID
}

// Other returns the id on the opposite side of userID.
func (f Friendship) Other(userID uint) uint {
	if f.UserLowID == userID {
		return f.UserHighID
	}
	return f.UserLowID
}
