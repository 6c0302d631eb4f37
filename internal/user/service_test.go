package user

import (
	"bytes"
	"context"
	"io"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/wichananm65/user-directory-backend/internal/upload"
)

// fakeFiles is a ProfileStore that records saved and released references.
type fakeFiles struct {
	mu       sync.Mutex
	saved    []string
	released []string
}

func (f *fakeFiles) Validate(contentType string, size int64) error {
	if !strings.HasPrefix(contentType, "image/") {
		return upload.ErrUnsupportedType
	}
	if size > f.MaxBytes() {
		return upload.ErrTooLarge
	}
	return nil
}

func (f *fakeFiles) Save(_ context.Context, filename, _ string, _ int64, r io.Reader) (string, error) {
	if _, err := io.Copy(io.Discard, r); err != nil {
		return "", err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	ref := "/uploads/" + filename
	f.saved = append(f.saved, ref)
	return ref, nil
}

func (f *fakeFiles) Release(_ context.Context, ref string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.released = append(f.released, ref)
	return nil
}

func (f *fakeFiles) MaxBytes() int64 { return 5 << 20 }

func imageUpload(name string) *Upload {
	return &Upload{Filename: name, ContentType: "image/png", Size: 4, Reader: bytes.NewReader([]byte("data"))}
}

func newTestService(t *testing.T, seed []User) (*Service, *fakeFiles) {
	t.Helper()
	files := &fakeFiles{}
	return NewService(NewInMemoryRepository(seed), files, ExportOptions{}, zaptest.NewLogger(t)), files
}

func TestService_CreateDefaultsStatus(t *testing.T) {
	svc, _ := newTestService(t, nil)

	u, err := svc.Create(context.Background(), validInput(), nil)
	require.NoError(t, err)
	require.Equal(t, StatusActive, u.Status)
	require.Nil(t, u.Profile)
}

func TestService_CreateRejectsBeforeStoring(t *testing.T) {
	svc, files := newTestService(t, nil)
	in := validInput()
	in.Mobile = "123"

	bad := &Upload{Filename: "notes.txt", ContentType: "text/plain", Size: 4, Reader: strings.NewReader("text")}
	_, err := svc.Create(context.Background(), in, bad)
	require.Equal(t, []string{
		"Please enter a valid 10-digit mobile number",
		"Only image files are allowed",
	}, validationMessages(t, err))
	require.Empty(t, files.saved)

	page, err := svc.List(context.Background(), ListParams{Page: 1, Limit: 10})
	require.NoError(t, err)
	require.EqualValues(t, 0, page.Pagination.TotalItems)
}

func TestService_CreateDuplicateEmailReleasesImage(t *testing.T) {
	svc, files := newTestService(t, nil)
	ctx := context.Background()

	_, err := svc.Create(ctx, validInput(), nil)
	require.NoError(t, err)

	in := validInput()
	in.Email = "JOHN@example.com"
	_, err = svc.Create(ctx, in, imageUpload("a.png"))
	require.ErrorIs(t, err, ErrEmailExists)

	svc.Wait()
	require.Equal(t, []string{"/uploads/a.png"}, files.released)
}

func TestService_ListPaginates(t *testing.T) {
	svc, _ := newTestService(t, seedUsers(25))

	page, err := svc.List(context.Background(), ListParams{Page: 3, Limit: 10})
	require.NoError(t, err)
	require.Len(t, page.Users, 5)
	require.Equal(t, Pagination{CurrentPage: 3, TotalPages: 3, TotalItems: 25, ItemsPerPage: 10}, page.Pagination)
}

func TestService_UpdateRequiresAField(t *testing.T) {
	svc, _ := newTestService(t, nil)
	ctx := context.Background()
	u, err := svc.Create(ctx, validInput(), nil)
	require.NoError(t, err)

	_, err = svc.Update(ctx, u.ID, Patch{}, nil)
	require.Equal(t, []string{"At least one field must be provided"}, validationMessages(t, err))

	updated, err := svc.Update(ctx, u.ID, Patch{}, imageUpload("b.png"))
	require.NoError(t, err)
	require.Equal(t, "/uploads/b.png", *updated.Profile)
}

func TestService_UpdateReplacesProfile(t *testing.T) {
	svc, files := newTestService(t, nil)
	ctx := context.Background()

	u, err := svc.Create(ctx, validInput(), imageUpload("old.png"))
	require.NoError(t, err)

	loc := "Chiang Mai"
	updated, err := svc.Update(ctx, u.ID, Patch{Location: &loc}, imageUpload("new.png"))
	require.NoError(t, err)
	require.Equal(t, "Chiang Mai", updated.Location)
	require.Equal(t, "/uploads/new.png", *updated.Profile)

	svc.Wait()
	require.Equal(t, []string{"/uploads/old.png"}, files.released)
}

func TestService_UpdateUnknownUser(t *testing.T) {
	svc, files := newTestService(t, nil)
	name := "Jane"

	_, err := svc.Update(context.Background(), "missing", Patch{FirstName: &name}, nil)
	require.ErrorIs(t, err, ErrNotFound)

	_, err = svc.Update(context.Background(), "missing", Patch{}, imageUpload("c.png"))
	require.ErrorIs(t, err, ErrNotFound)
	require.Empty(t, files.saved)
}

func TestService_UpdateStatusIsIdempotent(t *testing.T) {
	svc, _ := newTestService(t, nil)
	ctx := context.Background()
	u, err := svc.Create(ctx, validInput(), nil)
	require.NoError(t, err)

	for i := 0; i < 2; i++ {
		got, err := svc.UpdateStatus(ctx, u.ID, "InActive")
		require.NoError(t, err)
		require.Equal(t, StatusInActive, got.Status)
		require.Equal(t, u.Email, got.Email)
	}

	_, err = svc.UpdateStatus(ctx, u.ID, "Deleted")
	require.ErrorIs(t, err, ErrInvalidStatus)

	_, err = svc.UpdateStatus(ctx, "missing", "Active")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestService_DeleteReleasesProfile(t *testing.T) {
	svc, files := newTestService(t, nil)
	ctx := context.Background()

	u, err := svc.Create(ctx, validInput(), imageUpload("me.png"))
	require.NoError(t, err)

	require.NoError(t, svc.Delete(ctx, u.ID))
	require.ErrorIs(t, svc.Delete(ctx, u.ID), ErrNotFound)

	_, err = svc.Get(ctx, u.ID)
	require.ErrorIs(t, err, ErrNotFound)

	svc.Wait()
	require.Equal(t, []string{"/uploads/me.png"}, files.released)
}

func TestService_UploadsDisabled(t *testing.T) {
	svc := NewService(NewInMemoryRepository(nil), nil, ExportOptions{}, zaptest.NewLogger(t))

	_, err := svc.Create(context.Background(), validInput(), imageUpload("x.png"))
	require.Equal(t, []string{"Profile uploads are not enabled"}, validationMessages(t, err))
}

func TestService_ExportFiltersAndNumbersRows(t *testing.T) {
	seed := []User{
		{FirstName: "John", LastName: "Smith", Email: "js@example.com", Location: "Paris", Status: StatusActive, CreatedAt: seedUsers(1)[0].CreatedAt},
		{FirstName: "Jane", LastName: "Doe", Email: "jd@example.com", Location: "Johnstown", Status: StatusInActive, CreatedAt: seedUsers(2)[1].CreatedAt},
		{FirstName: "Bob", LastName: "Brown", Email: "bob@example.com", Location: "Rome", Status: StatusActive, CreatedAt: seedUsers(3)[2].CreatedAt},
	}
	svc, _ := newTestService(t, seed)

	out, err := svc.Export(context.Background(), "john", "")
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(out)), "\n")
	require.Len(t, lines, 3)
	require.True(t, strings.HasPrefix(lines[1], "1,Jane Doe,"))
	require.True(t, strings.HasPrefix(lines[2], "2,John Smith,"))

	out, err = svc.Export(context.Background(), "", "")
	require.NoError(t, err)
	require.Len(t, strings.Split(strings.TrimSpace(string(out)), "\n"), 4)

	_, err = svc.Export(context.Background(), "", "Deleted")
	var ve *ValidationError
	require.ErrorAs(t, err, &ve)
}
