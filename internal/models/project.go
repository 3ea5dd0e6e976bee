package models

import (
	"time"
)

// Project owns a catalog of releases, its optional channels, and the RSA
// keypair used to sign bundle artifacts.
type Project struct {
	ID          uint   `gorm:"primaryKey" json:"-"`
	Token       string `gorm:"size:21;uniqueIndex;not null" json:"token"`
	Name        string `gorm:"size:128;not null" json:"name" validate:"required"`
	Description string `gorm:"type:text" json:"description"`
	PrivateKey  string `gorm:"type:text;not null" json:"-"`
	PublicKey   string `gorm:"type:text;not null" json:"public_key"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`

	Releases    []Release    `gorm:"foreignKey:ProjectID;constraint:OnDelete:CASCADE" json:"-"`
	Channels    []Channel    `gorm:"foreignKey:ProjectID;constraint:OnDelete:CASCADE" json:"-"`
	Resolutions []Resolution `gorm:"foreignKey:ProjectID;constraint:OnDelete:CASCADE" json:"-"`
}
