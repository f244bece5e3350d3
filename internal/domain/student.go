package domain

import (
	"context"
	"time"
)

// Student is a test taker imported by an admin. Students sign in with their
// application number and date of birth.
type Student struct {
	ID                int64
	Name              string
	ApplicationNumber string
	DOB               string
	PasswordHash      string
	CreatedAt         time.Time
}

// StudentRepository defines persistence operations for students.
type StudentRepository interface {
	Create(ctx context.Context, student *Student) error
	GetByID(ctx context.Context, id int64) (*Student, error)
	GetByApplicationNumber(ctx context.Context, applicationNumber string) (*Student, error)
	List(ctx context.Context) ([]Student, error)
}
