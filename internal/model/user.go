package model

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// User represents an end-user document in MongoDB.
type User struct {
	ID                primitive.ObjectID `json:"id" bson:"_id,omitempty"`
	FullName          string             `json:"fullName" bson:"full_name"`
	Email             string             `json:"email" bson:"email"`
	ProfilePictureURL string             `json:"profilePictureUrl" bson:"profile_picture_url"`
	E2EEPublicKey     string             `json:"-" bson:"e2ee_public_key,omitempty"`
	LastSeen          *time.Time         `json:"lastSeen,omitempty" bson:"last_seen,omitempty"`
	CreatedAt         time.Time          `json:"createdAt" bson:"created_at"`
}

// SenderView resolves the user's display fields.
func (u *User) SenderView() SenderInfo {
	return SenderInfo{
		ID:                u.ID.Hex(),
		FullName:          u.FullName,
		Email:             u.Email,
		ProfilePictureURL: u.ProfilePictureURL,
	}
}

// Admin represents an administrator document. Administrators live in their
// own collection; their ids share the underlying identifier space with users,
// which is why the registry tags keys instead of trusting raw ids.
type Admin struct {
	ID       primitive.ObjectID `json:"id" bson:"_id,omitempty"`
	FullName string             `json:"fullName" bson:"full_name"`
	Email    string             `json:"email" bson:"email"`
	LastSeen *time.Time         `json:"lastSeen,omitempty" bson:"last_seen,omitempty"`
}
