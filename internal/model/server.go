package model

import (
	"time"
)

// AnalysisServer 计算后端连接描述
// 密码仅供 backend 层取用，绝不出现在 JSON 响应和日志里
type AnalysisServer struct {
	ID        int64     `gorm:"primaryKey" json:"id"`
	Name      string    `gorm:"size:100;not null" json:"name"`
	BaseURL   string    `gorm:"size:500;not null" json:"base_url"`
	Username  string    `gorm:"size:100" json:"-"`
	Password  string    `gorm:"size:255" json:"-"`
	IsGalaxy  bool      `gorm:"default:false" json:"is_galaxy"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (AnalysisServer) TableName() string {
	return "analysis_servers"
}
