package user

import (
	"errors"
	"mime/multipart"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/wichananm65/user-directory-backend/internal/response"
)

const profileField = "profile"

type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) RegisterRoutes(router fiber.Router) {
	users := router.Group("/users")
	// registered before /:id so "export" is not taken for an identifier
	users.Get("/export/csv", h.exportCSV)
	users.Post("", h.createUser)
	users.Get("", h.getUsers)
	users.Get("/:id", h.getUser)
	users.Put("/:id", h.updateUser)
	users.Patch("/:id/status", h.updateUserStatus)
	users.Delete("/:id", h.deleteUser)
}

func (h *Handler) createUser(c *fiber.Ctx) error {
	var in CreateInput
	values, file, isForm, err := readForm(c)
	if err != nil {
		return response.Error(c, fiber.StatusBadRequest, "Invalid request body")
	}
	if isForm {
		in = createInputFromForm(values)
	} else if err := c.BodyParser(&in); err != nil {
		return response.Error(c, fiber.StatusBadRequest, "Invalid request body")
	}

	up, closeFile, err := openUpload(file)
	if err != nil {
		return err
	}
	defer closeFile()

	created, err := h.service.Create(c.UserContext(), in, up)
	if err != nil {
		return h.fail(c, err)
	}
	return response.JSON(c, fiber.StatusCreated, "User created successfully", created)
}

func (h *Handler) getUsers(c *fiber.Ctx) error {
	params, err := ParseListParams(c.Query("page"), c.Query("limit"), c.Query("search"), c.Query("status"))
	if err != nil {
		return h.fail(c, err)
	}

	page, err := h.service.List(c.UserContext(), params)
	if err != nil {
		return h.fail(c, err)
	}
	if page.Users == nil {
		page.Users = []User{}
	}
	return response.Paginated(c, page.Users, page.Pagination)
}

func (h *Handler) getUser(c *fiber.Ctx) error {
	u, err := h.service.Get(c.UserContext(), c.Params("id"))
	if err != nil {
		return h.fail(c, err)
	}
	return response.JSON(c, fiber.StatusOK, "", u)
}

func (h *Handler) updateUser(c *fiber.Ctx) error {
	var patch Patch
	values, file, isForm, err := readForm(c)
	if err != nil {
		return response.Error(c, fiber.StatusBadRequest, "Invalid request body")
	}
	if isForm {
		patch = patchFromForm(values)
	} else if len(c.Body()) > 0 {
		if err := c.BodyParser(&patch); err != nil {
			return response.Error(c, fiber.StatusBadRequest, "Invalid request body")
		}
	}

	up, closeFile, err := openUpload(file)
	if err != nil {
		return err
	}
	defer closeFile()

	updated, err := h.service.Update(c.UserContext(), c.Params("id"), patch, up)
	if err != nil {
		return h.fail(c, err)
	}
	return response.JSON(c, fiber.StatusOK, "User updated successfully", updated)
}

type statusRequest struct {
	Status string `json:"status"`
}

func (h *Handler) updateUserStatus(c *fiber.Ctx) error {
	var req statusRequest
	if err := c.BodyParser(&req); err != nil {
		return h.fail(c, ErrInvalidStatus)
	}

	updated, err := h.service.UpdateStatus(c.UserContext(), c.Params("id"), req.Status)
	if err != nil {
		return h.fail(c, err)
	}
	return response.JSON(c, fiber.StatusOK, "User status updated successfully", updated)
}

func (h *Handler) deleteUser(c *fiber.Ctx) error {
	if err := h.service.Delete(c.UserContext(), c.Params("id")); err != nil {
		return h.fail(c, err)
	}
	return response.JSON(c, fiber.StatusOK, "User deleted successfully", nil)
}

func (h *Handler) exportCSV(c *fiber.Ctx) error {
	data, err := h.service.Export(c.UserContext(), c.Query("search"), c.Query("status"))
	if err != nil {
		return h.fail(c, err)
	}

	c.Set(fiber.HeaderContentType, CSVContentType)
	c.Set(fiber.HeaderContentDisposition, "attachment; filename="+CSVFilename)
	return c.Send(data)
}

// fail maps domain errors to responses; anything unknown is left to the
// app error handler.
func (h *Handler) fail(c *fiber.Ctx, err error) error {
	var ve *ValidationError
	switch {
	case errors.As(err, &ve):
		return response.Error(c, fiber.StatusBadRequest, "Validation Error", ve.Messages...)
	case errors.Is(err, ErrNotFound):
		return response.Error(c, fiber.StatusNotFound, "User not found")
	case errors.Is(err, ErrEmailExists):
		return response.Error(c, fiber.StatusBadRequest, "Email already exists")
	case errors.Is(err, ErrInvalidStatus):
		return response.Error(c, fiber.StatusBadRequest, "Invalid status. Must be Active or InActive")
	default:
		return err
	}
}

// readForm returns the submitted form values and profile file for
// multipart and urlencoded bodies. isForm is false for any other body.
func readForm(c *fiber.Ctx) (values map[string][]string, file *multipart.FileHeader, isForm bool, err error) {
	ct := strings.ToLower(string(c.Request().Header.ContentType()))
	switch {
	case strings.HasPrefix(ct, fiber.MIMEMultipartForm):
		form, err := c.MultipartForm()
		if err != nil {
			return nil, nil, true, err
		}
		if files := form.File[profileField]; len(files) > 0 {
			file = files[0]
		}
		return form.Value, file, true, nil
	case strings.HasPrefix(ct, fiber.MIMEApplicationForm):
		values = map[string][]string{}
		c.Request().PostArgs().VisitAll(func(k, v []byte) {
			values[string(k)] = append(values[string(k)], string(v))
		})
		return values, nil, true, nil
	default:
		return nil, nil, false, nil
	}
}

func openUpload(fh *multipart.FileHeader) (*Upload, func(), error) {
	if fh == nil {
		return nil, func() {}, nil
	}
	f, err := fh.Open()
	if err != nil {
		return nil, func() {}, err
	}
	up := &Upload{
		Filename:    fh.Filename,
		ContentType: fh.Header.Get(fiber.HeaderContentType),
		Size:        fh.Size,
		Reader:      f,
	}
	return up, func() { _ = f.Close() }, nil
}

func formValue(values map[string][]string, key string) (string, bool) {
	v, ok := values[key]
	if !ok || len(v) == 0 {
		return "", false
	}
	return v[0], true
}

func createInputFromForm(values map[string][]string) CreateInput {
	get := func(key string) string {
		v, _ := formValue(values, key)
		return v
	}
	return CreateInput{
		FirstName: get("firstName"),
		LastName:  get("lastName"),
		Email:     get("email"),
		Mobile:    get("mobile"),
		Gender:    Gender(get("gender")),
		Status:    Status(get("status")),
		Location:  get("location"),
	}
}

// patchFromForm sets a patch field for every key present in the form, even
// when its value is empty, so that empty values fail validation instead of
// being ignored.
func patchFromForm(values map[string][]string) Patch {
	str := func(key string) *string {
		if v, ok := formValue(values, key); ok {
			return &v
		}
		return nil
	}

	p := Patch{
		FirstName: str("firstName"),
		LastName:  str("lastName"),
		Email:     str("email"),
		Mobile:    str("mobile"),
		Location:  str("location"),
	}
	if v := str("gender"); v != nil {
		g := Gender(*v)
		p.Gender = &g
	}
	if v := str("status"); v != nil {
		s := Status(*v)
		p.Status = &s
	}
	return p
}
