package user

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/wichananm65/user-directory-backend/internal/upload"
)

const releaseTimeout = 30 * time.Second

// ProfileStore saves and releases profile images.
type ProfileStore interface {
	Validate(contentType string, size int64) error
	Save(ctx context.Context, filename, contentType string, size int64, r io.Reader) (string, error)
	Release(ctx context.Context, ref string) error
	MaxBytes() int64
}

// Upload is a profile image received with a create or update request.
type Upload struct {
	Filename    string
	ContentType string
	Size        int64
	Reader      io.Reader
}

type Service struct {
	repo   Repository
	files  ProfileStore
	export ExportOptions
	log    *zap.Logger

	releases sync.WaitGroup
}

func NewService(repo Repository, files ProfileStore, export ExportOptions, log *zap.Logger) *Service {
	return &Service{repo: repo, files: files, export: export, log: log}
}

// Create validates in (and the optional profile image), stores the image,
// then persists the user. Nothing is written when validation fails.
func (s *Service) Create(ctx context.Context, in CreateInput, up *Upload) (User, error) {
	in, err := ValidateCreate(in)
	msgs := append(messagesOf(err), s.checkUpload(up)...)
	if len(msgs) > 0 {
		return User{}, &ValidationError{Messages: msgs}
	}

	u := User{
		FirstName: in.FirstName,
		LastName:  in.LastName,
		Email:     in.Email,
		Mobile:    in.Mobile,
		Gender:    in.Gender,
		Status:    in.Status,
		Location:  in.Location,
	}
	if up != nil {
		ref, err := s.saveUpload(ctx, up)
		if err != nil {
			return User{}, err
		}
		u.Profile = &ref
	}

	created, err := s.repo.Create(ctx, u)
	if err != nil {
		if u.Profile != nil {
			s.releaseProfile(*u.Profile)
		}
		return User{}, err
	}
	return created, nil
}

func (s *Service) Get(ctx context.Context, id string) (User, error) {
	return s.repo.GetByID(ctx, id)
}

// List returns one page of users. The count and the page are fetched
// concurrently and may observe slightly different states of the store.
func (s *Service) List(ctx context.Context, p ListParams) (Page, error) {
	var (
		total int64
		users []User
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		n, err := s.repo.Count(gctx, p.Filter())
		total = n
		return err
	})
	g.Go(func() error {
		found, err := s.repo.Find(gctx, p.Query())
		users = found
		return err
	})
	if err := g.Wait(); err != nil {
		return Page{}, err
	}

	return Page{Users: users, Pagination: NewPagination(p.Page, p.Limit, total)}, nil
}

// Update applies the supplied fields of p. A new profile image replaces the
// previous one, which is released once the update succeeded.
func (s *Service) Update(ctx context.Context, id string, p Patch, up *Upload) (User, error) {
	p.Profile = nil
	p, err := validatePatch(p, up != nil)
	msgs := append(messagesOf(err), s.checkUpload(up)...)
	if len(msgs) > 0 {
		return User{}, &ValidationError{Messages: msgs}
	}

	var previous *string
	if up != nil {
		existing, err := s.repo.GetByID(ctx, id)
		if err != nil {
			return User{}, err
		}
		previous = existing.Profile

		ref, err := s.saveUpload(ctx, up)
		if err != nil {
			return User{}, err
		}
		p.Profile = &ref
	}

	updated, err := s.repo.Update(ctx, id, p)
	if err != nil {
		if p.Profile != nil {
			s.releaseProfile(*p.Profile)
		}
		return User{}, err
	}
	if previous != nil && p.Profile != nil && *previous != *p.Profile {
		s.releaseProfile(*previous)
	}
	return updated, nil
}

// UpdateStatus sets only the status. Repeating the same status is a no-op
// apart from the refreshed update time.
func (s *Service) UpdateStatus(ctx context.Context, id, status string) (User, error) {
	st, err := ValidateStatus(status)
	if err != nil {
		return User{}, err
	}
	return s.repo.Update(ctx, id, Patch{Status: &st})
}

// Delete removes the user and releases its profile image in the
// background; release failures are only logged.
func (s *Service) Delete(ctx context.Context, id string) error {
	deleted, err := s.repo.Delete(ctx, id)
	if err != nil {
		return err
	}
	if deleted.Profile != nil {
		s.releaseProfile(*deleted.Profile)
	}
	return nil
}

// Export renders every user matching search and status, newest first, as CSV.
func (s *Service) Export(ctx context.Context, search, status string) ([]byte, error) {
	p, err := ParseListParams("", "", search, status)
	if err != nil {
		return nil, err
	}

	users, err := s.repo.Find(ctx, Query{Filter: p.Filter()})
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if err := WriteCSV(&buf, users, s.export); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Wait blocks until background profile releases have finished.
func (s *Service) Wait() {
	s.releases.Wait()
}

func (s *Service) checkUpload(up *Upload) []string {
	if up == nil {
		return nil
	}
	if s.files == nil {
		return []string{"Profile uploads are not enabled"}
	}
	if err := s.files.Validate(up.ContentType, up.Size); err != nil {
		return []string{s.uploadMessage(err)}
	}
	return nil
}

func (s *Service) saveUpload(ctx context.Context, up *Upload) (string, error) {
	ref, err := s.files.Save(ctx, up.Filename, up.ContentType, up.Size, up.Reader)
	if err != nil {
		if errors.Is(err, upload.ErrUnsupportedType) || errors.Is(err, upload.ErrUnsupportedImage) || errors.Is(err, upload.ErrTooLarge) {
			return "", &ValidationError{Messages: []string{s.uploadMessage(err)}}
		}
		return "", fmt.Errorf("save profile image: %w", err)
	}
	return ref, nil
}

func (s *Service) uploadMessage(err error) string {
	if errors.Is(err, upload.ErrTooLarge) {
		if mb := s.files.MaxBytes() >> 20; mb > 0 {
			return fmt.Sprintf("File size must be less than %dMB", mb)
		}
		return fmt.Sprintf("File size must be less than %d bytes", s.files.MaxBytes())
	}
	return "Only image files are allowed"
}

func (s *Service) releaseProfile(ref string) {
	if s.files == nil {
		return
	}
	s.releases.Add(1)
	go func() {
		defer s.releases.Done()
		ctx, cancel := context.WithTimeout(context.Background(), releaseTimeout)
		defer cancel()

		if err := s.files.Release(ctx, ref); err != nil {
			s.log.Warn("release profile image", zap.String("profile", ref), zap.Error(err))
		}
	}()
}
