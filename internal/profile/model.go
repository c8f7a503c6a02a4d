package profile

import (
	"github.com/rendi-app/rendi/internal/users"
)

// Basic holds the fields collected on the first onboarding screen.
type Basic struct {
	Name   string `json:"name"`
	Age    int    `json:"age"`
	Gender string `json:"gender"`
	Job    string `json:"job,omitempty"`
	Region string `json:"region,omitempty"`
}

type Extra struct {
	MBTI    string `json:"mbti,omitempty"`
	Smoking bool   `json:"smoking"`
}

// Row is the stored profile. Extra is nil until the second screen is saved.
type Row struct {
	UserID int64
	Basic  Basic
	Extra  *Extra
}

type BasicRequest struct {
	Name   string `json:"name" validate:"required,max=50"`
	Age    int    `json:"age" validate:"required,gte=19,lte=100"`
	Gender string `json:"gender" validate:"required,oneof=male female"`
	Job    string `json:"job" validate:"max=100"`
	Region string `json:"region" validate:"max=100"`
}

type ExtraRequest struct {
	MBTI    string `json:"mbti" validate:"omitempty,len=4,alpha"`
	Smoking *bool  `json:"smoking" validate:"required"`
}

// View is the body of GET /users/me/profile.
type View struct {
	User  *users.User `json:"user"`
	Basic *Basic      `json:"basic,omitempty"`
	Extra *Extra      `json:"extra,omitempty"`
}
