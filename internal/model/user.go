package model

import "time"

type User struct {
	ID           int64     `json:"user_id"`
	Fullname     string    `json:"fullname"`
	Username     string    `json:"username"`
	Email        string    `json:"email"`
	Contact      string    `json:"contact"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
}
