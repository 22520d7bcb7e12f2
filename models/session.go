package models

import (
	"encoding/base64"
	"errors"
	"time"

	"gorm.io/gorm"
)

// ErrNoSession is returned when nobody is signed in.
var ErrNoSession = errors.New("not signed in")

// A Session is the signed in author, the node they belong to and the
// credential used to talk to it. At most one Session exists at a time.
type Session struct {
	ID        uint32 `gorm:"primarykey"`
	CreatedAt time.Time
	Host      string `gorm:"size:255;not null"`
	AuthorID  string `gorm:"size:255;not null"`
	Author    Author `gorm:"serializer:json"`
	Token     string `gorm:"size:255;not null"`
}

// NewSession returns a session for author on host using HTTP basic
// credentials.
func NewSession(host string, author Author, username, password string) *Session {
	return &Session{
		Host:   host,
		Author: author,
		Token:  base64.StdEncoding.EncodeToString([]byte(username + ":" + password)),
	}
}

// BeforeSave keeps the denormalised author reference in step with the author.
func (s *Session) BeforeSave(tx *gorm.DB) error {
	s.AuthorID = s.Author.Ref()
	return nil
}

// Authorization returns the value of the Authorization header for requests
// made on behalf of this session.
func (s *Session) Authorization() string {
	if s == nil || s.Token == "" {
		return ""
	}
	return "Basic " + s.Token
}

// Sessions persists the current session.
type Sessions struct {
	db *gorm.DB
}

func NewSessions(db *gorm.DB) *Sessions {
	return &Sessions{db: db}
}

// Current returns the current session, or ErrNoSession.
func (s *Sessions) Current() (*Session, error) {
	var session Session
	err := s.db.Order("created_at DESC").Take(&session).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return nil, ErrNoSession
	case err != nil:
		return nil, err
	default:
		return &session, nil
	}
}

// Save makes session the current session, replacing any previous one.
func (s *Sessions) Save(session *Session) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		if err := clearSessions(tx); err != nil {
			return err
		}
		session.ID = 0
		return tx.Create(session).Error
	})
}

// Clear signs out, removing every stored session. Clearing when nobody is
// signed in is not an error.
func (s *Sessions) Clear() error {
	return clearSessions(s.db)
}

func clearSessions(tx *gorm.DB) error {
	return tx.Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(&Session{}).Error
}
