package models

import (
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

const (
	VerificationCodeTTL = 10 * time.Minute
	ResetTokenTTL       = 15 * time.Minute
)

var (
	ErrCodeMismatch = errors.New("invalid verification code")
	ErrCodeExpired  = errors.New("verification code has expired")
)

// User represents a user in the system
type User struct {
	ID                      primitive.ObjectID `bson:"_id,omitempty" json:"_id,omitempty"`
	Name                    string             `bson:"name" json:"name"`
	Email                   string             `bson:"email" json:"email"`
	Password                string             `bson:"password,omitempty" json:"-"`
	IsAdmin                 bool               `bson:"isAdmin" json:"isAdmin"`
	IsVerified              bool               `bson:"isVerified" json:"isVerified"`
	VerificationCode        *string            `bson:"verificationCode" json:"-"`
	VerificationCodeExpires *time.Time         `bson:"verificationCodeExpires" json:"-"`
	ResetPasswordToken      *string            `bson:"resetPasswordToken" json:"-"`
	ResetPasswordExpires    *time.Time         `bson:"resetPasswordExpires" json:"-"`
	CreatedAt               time.Time          `bson:"createdAt" json:"createdAt"`
	UpdatedAt               time.Time          `bson:"updatedAt" json:"updatedAt"`
}

// UserSummary is the public shape returned by the auth and profile endpoints.
type UserSummary struct {
	ID      primitive.ObjectID `bson:"_id" json:"_id"`
	Name    string             `bson:"name" json:"name"`
	Email   string             `bson:"email" json:"email"`
	IsAdmin bool               `bson:"isAdmin" json:"isAdmin"`
}

func (u *User) Summary() UserSummary {
	return UserSummary{ID: u.ID, Name: u.Name, Email: u.Email, IsAdmin: u.IsAdmin}
}

// SetVerificationCode stores a one-time code that expires VerificationCodeTTL after now.
func (u *User) SetVerificationCode(code string, now time.Time) {
	expires := now.Add(VerificationCodeTTL)
	u.VerificationCode = &code
	u.VerificationCodeExpires = &expires
}

// CheckVerificationCode reports whether code matches and is still valid at now.
// A mismatch is reported before expiry.
func (u *User) CheckVerificationCode(code string, now time.Time) error {
	if u.VerificationCode == nil || *u.VerificationCode != code {
		return ErrCodeMismatch
	}
	if u.VerificationCodeExpires == nil || u.VerificationCodeExpires.Before(now) {
		return ErrCodeExpired
	}
	return nil
}

func (u *User) MarkVerified() {
	u.IsVerified = true
	u.VerificationCode = nil
	u.VerificationCodeExpires = nil
}

func (u *User) SetResetToken(token string, now time.Time) {
	expires := now.Add(ResetTokenTTL)
	u.ResetPasswordToken = &token
	u.ResetPasswordExpires = &expires
}

func (u *User) ResetTokenValid(token string, now time.Time) bool {
	if u.ResetPasswordToken == nil || *u.ResetPasswordToken != token {
		return false
	}
	return u.ResetPasswordExpires != nil && u.ResetPasswordExpires.After(now)
}

func (u *User) ClearResetToken() {
	u.ResetPasswordToken = nil
	u.ResetPasswordExpires = nil
}
