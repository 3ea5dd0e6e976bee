package models

import (
	"time"
)

// Release is one published application bundle together with its eligibility
// window per platform.
//
// Two eligibility representations exist side by side: integer build-number
// bounds (min inclusive, max exclusive, nil unbounded) and semantic-version
// range expressions. A deployment runs exactly one policy and only ever reads
// and writes the matching column set; validation refuses writes to the other.
type Release struct {
	ID        uint   `gorm:"primaryKey" json:"-"`
	Token     string `gorm:"size:21;uniqueIndex;not null" json:"token"`
	ProjectID uint   `gorm:"not null;index:idx_releases_project_name,unique" json:"-"`
	Name      string `gorm:"size:128;not null;index:idx_releases_project_name,unique" json:"name" validate:"required"`

	// Artifact location on the bundle store and its RSA-SHA256 signature.
	Path      string `gorm:"size:512;not null" json:"-"`
	Signature string `gorm:"type:text" json:"signature"`

	// Range policy columns.
	AndroidAvailable bool    `gorm:"not null;default:true" json:"android_available"`
	AndroidMin       *uint64 `json:"android_min"`
	AndroidMax       *uint64 `json:"android_max"`
	IOSAvailable     bool    `gorm:"not null;default:true" json:"ios_available"`
	IOSMin           *uint64 `json:"ios_min"`
	IOSMax           *uint64 `json:"ios_max"`

	// Constraint policy columns. Nil means the platform is not served.
	AndroidRequirements *string `gorm:"size:255" json:"android_requirements"`
	IOSRequirements     *string `gorm:"size:255" json:"ios_requirements"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Channels []ReleaseChannel `gorm:"foreignKey:ReleaseID;constraint:OnDelete:CASCADE" json:"channels"`
}

// Channel is a named grouping of releases within a project (e.g. "beta").
type Channel struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	ProjectID uint      `gorm:"not null;index:idx_channels_project_name,unique" json:"-"`
	Name      string    `gorm:"size:64;not null;index:idx_channels_project_name,unique" json:"name" validate:"required"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ReleaseChannel binds a release to a channel. A row with a NULL channel id
// marks the release as default/unrestricted: eligible for channel-less
// queries and included as a fallback in named-channel queries.
type ReleaseChannel struct {
	ReleaseID uint  `gorm:"not null;index:idx_release_channel,unique" json:"-"`
	ChannelID *uint `gorm:"index:idx_release_channel,unique" json:"channel_id"`
}

// TableName keeps the pivot name stable regardless of struct pluralization.
func (ReleaseChannel) TableName() string { return "release_channels" }
