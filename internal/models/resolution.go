package models

import (
	"time"
)

// Resolution memoizes the answer to "which release serves (platform,
// app_version) in this project". One row per observed key. A row with
// NeedsReindex=false is load-bearing: it is returned instead of scanning the
// catalog, so every catalog mutation must dirty (or precisely rewrite) the
// rows it can affect before committing.
//
// ReleaseID nil with NeedsReindex=false is a confirmed "no match".
type Resolution struct {
	ID         uint   `gorm:"primaryKey"`
	ProjectID  uint   `gorm:"not null;index:idx_resolutions_key,unique;index:idx_resolutions_dirty"`
	Platform   string `gorm:"size:16;not null;index:idx_resolutions_key,unique;index:idx_resolutions_dirty"`
	AppVersion string `gorm:"size:64;not null;index:idx_resolutions_key,unique"`

	ReleaseID    *uint `gorm:"index"`
	NeedsReindex bool  `gorm:"not null;default:false;index:idx_resolutions_dirty"`

	CreatedAt time.Time
	UpdatedAt time.Time
}
