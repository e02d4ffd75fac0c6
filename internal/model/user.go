package model

import (
	"time"
)

// User is an account. Verification flags always carry an explicit value.
type User struct {
	ID            string    `json:"id"`
	Email         string    `json:"email"`
	Password      string    `json:"password"`
	Name          string    `json:"name"`
	Phone         string    `json:"phone"`
	Address       string    `json:"address"`
	IsAdmin       bool      `json:"is_admin"`
	FirstLogin    bool      `json:"first_login"`
	EmailVerified bool      `json:"email_verified"`
	PhoneVerified bool      `json:"phone_verified"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// Session identifies the signed-in user for one request
type Session struct {
	Token      string    `json:"token"`
	UserID     string    `json:"user_id"`
	IsAdmin    bool      `json:"is_admin"`
	FirstLogin bool      `json:"first_login"`
	CreatedAt  time.Time `json:"created_at"`
}

// OnboardingStep is a position in the first-login wizard
type OnboardingStep int

const (
	StepProfile OnboardingStep = iota + 1
	StepCodes
	StepConfirm
	StepDone
)

// Profile is the data collected on the first wizard step
type Profile struct {
	Name    string `json:"name"`
	Email   string `json:"email"`
	Phone   string `json:"phone"`
	Address string `json:"address"`
}

// Onboarding is the wizard state kept for a first-login user
type Onboarding struct {
	UserID      string         `json:"user_id"`
	Step        OnboardingStep `json:"step"`
	Profile     Profile        `json:"profile"`
	NewPassword string         `json:"new_password"`
	EmailCode   string         `json:"email_code,omitempty"`
	PhoneCode   string         `json:"phone_code,omitempty"`
	UpdatedAt   time.Time      `json:"updated_at"`
}
