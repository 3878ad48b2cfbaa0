package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

// FirstPage is the only page index the cache tier can serve.
const FirstPage = 0

// Post is the unit of feed content, resolved from the post service.
type Post struct {
	ID           string    `json:"id"`
	Message      string    `json:"message" validate:"required"`
	Author       string    `json:"author" validate:"notblank"`
	CreationTime time.Time `json:"creationTime" validate:"required"`
	Enabled      bool      `json:"enabled"`
}

// NewPost builds a post with its creation time normalized to UTC milliseconds.
func NewPost(id, author, message string, creationTime time.Time, enabled bool) Post {
	return Post{
		ID:           id,
		Message:      message,
		Author:       author,
		CreationTime: truncate(creationTime),
		Enabled:      enabled,
	}
}

// Normalize returns a copy of the post with millisecond UTC creation time.
func (p Post) Normalize() Post {
	p.CreationTime = truncate(p.CreationTime)
	return p
}

// Validate reports ErrValidation when the post is structurally invalid.
func (p Post) Validate() error {
	if err := validate.Struct(p); err != nil {
		return fmt.Errorf("%w: post %q: %v", ErrValidation, p.ID, err)
	}
	return nil
}

func truncate(t time.Time) time.Time {
	if t.IsZero() {
		return t
	}
	return t.UTC().Truncate(time.Millisecond)
}

// PageRequest identifies one page of the feed. It is never mutated; use
// WithIndex to derive a request for another page.
type PageRequest struct {
	Index         int
	Size          int
	CorrelationID string
}

func NewPageRequest(index, size int, correlationID string) PageRequest {
	return PageRequest{Index: index, Size: size, CorrelationID: correlationID}
}

func (r PageRequest) IsFirstPage() bool {
	return r.Index == FirstPage
}

func (r PageRequest) WithIndex(index int) PageRequest {
	r.Index = index
	return r
}

// Validate fails with ErrInvalidArgument for a negative index or a
// non-positive size.
func (r PageRequest) Validate() error {
	if r.Index < 0 || r.Size <= 0 {
		return fmt.Errorf("%w: page should be positive and size greater than zero (index=%d, size=%d)",
			ErrInvalidArgument, r.Index, r.Size)
	}
	return nil
}

// ArchiveEntry is the durable reference kept for every ingested post. The
// message body is never archived; the post is re-resolved by PostID.
type ArchiveEntry struct {
	ID           int64     `db:"id"`
	PostID       string    `db:"post_id" validate:"notblank,min=1,max=100"`
	Username     string    `db:"username" validate:"notblank,min=3,max=50"`
	CreationTime time.Time `db:"creation_time" validate:"required"`
}

// NewArchiveEntry maps a post to its archive reference.
func NewArchiveEntry(p Post) ArchiveEntry {
	return ArchiveEntry{
		PostID:       p.ID,
		Username:     p.Author,
		CreationTime: truncate(p.CreationTime),
	}
}

func (e ArchiveEntry) Validate() error {
	if err := validate.Struct(e); err != nil {
		return fmt.Errorf("%w: archive entry for post %q: %v", ErrValidation, e.PostID, err)
	}
	return nil
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	_ = v.RegisterValidation("notblank", func(fl validator.FieldLevel) bool {
		return strings.TrimSpace(fl.Field().String()) != ""
	})
	return v
}
