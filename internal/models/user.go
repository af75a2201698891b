package models

import "time"

// UserModel is an interview candidate account.
type UserModel struct {
	Base
	Username      string     `json:"username"        gorm:"type:varchar(64);uniqueIndex;not null"`
	Name          string     `json:"name"`
	Password      string     `json:"-"               gorm:"not null"`
	Mail          string     `json:"mail"`
	LastLoginTime *time.Time `json:"last_login_time"`
	LastLoginIP   string     `json:"last_login_ip"`
}

func (UserModel) TableName() string { return "users" }
