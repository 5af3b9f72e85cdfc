package echoapi

import (
	"fmt"
	"net/http"
	"path"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/darasa/core"
	"github.com/trezcool/darasa/core/module"
	"github.com/trezcool/darasa/core/user"
)

// predefinedThumbnails is served when the object store has nothing better
// to offer; authors always get a palette to pick from.
var predefinedThumbnails = []string{
	"#1abc9c", "#2ecc71", "#3498db", "#9b59b6", "#34495e",
	"#f1c40f", "#e67e22", "#e74c3c", "#95a5a6", "#7f8c8d",
}

type moduleApi struct {
	svc      module.ServiceInterface
	userSvc  user.ServiceInterface
	storage  core.FileStorage
	validate *validator.Validate
	conf     *core.Config
	logger   core.Logger
}

func registerModuleAPI(g *echo.Group, deps ServerDeps) {
	api := moduleApi{
		svc:      deps.ModuleSvc,
		userSvc:  deps.UserSvc,
		storage:  deps.Storage,
		validate: deps.Validate,
		conf:     deps.Conf,
		logger:   deps.Logger,
	}

	mg := g.Group("/modules")

	// the authoring wizard; its state lives in the URL query string
	mg.GET("/wizard", api.wizardResume)
	mg.POST("/wizard/advance", api.wizardAdvance)
	mg.POST("/wizard/back", api.wizardBack)

	mg.GET("/thumbnails/predefined", api.queryPredefinedThumbnails)

	mg.GET("/:id", api.retrieve)
	mg.DELETE("/:id", api.destroy)
	mg.POST("/:id/thumbnail", api.setThumbnail)

	registerContentAPI(mg, &api)
}

// Wizard handlers

type (
	WizardResponse struct {
		State  module.WizardState   `json:"state"`
		Module *module.Module       `json:"module,omitempty"`
		Items  []module.ContentItem `json:"items,omitempty"`
		// Location is the wizard URL matching State; clients replace their
		// address bar with it so a reload resumes the session.
		Location string `json:"location"`
	}

	WizardAdvanceRequest struct {
		Draft *module.Draft `json:"draft"`
	}

	WizardBackRequest struct {
		// Pending carries the sub-editor's unsaved edits; they are flushed
		// before the step moves back.
		Pending *FlushRequest `json:"pending"`
	}

	WizardBackResponse struct {
		WizardResponse
		Flushed bool `json:"flushed"`
	}
)

func wizardLocation(state module.WizardState) string {
	return "/teacher/modules/wizard?" + state.Encode()
}

func (api *moduleApi) newWizard(ctx echo.Context, actor user.User, flusher module.Flusher) *module.Wizard {
	state := module.WizardStateFromQuery(ctx.QueryParams())
	return module.NewWizard(state, actor, api.svc, flusher, api.conf, api.logger)
}

func (api *moduleApi) wizardResume(ctx echo.Context) error {
	actor, err := getContextUser(ctx, api.userSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	w := api.newWizard(ctx, actor, nil)
	mod, items, err := w.Resume(ctx.Request().Context())
	if err != nil {
		return errors.Wrap(err, "resuming wizard")
	}

	resp := WizardResponse{State: w.State(), Location: wizardLocation(w.State())}
	if mod.ID != "" {
		resp.Module = &mod
		resp.Items = items
	}
	return ctx.JSON(http.StatusOK, resp)
}

func (api *moduleApi) wizardAdvance(ctx echo.Context) error {
	actor, err := getContextUser(ctx, api.userSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	var data WizardAdvanceRequest
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to WizardAdvanceRequest")
	}
	if data.Draft != nil {
		if err = data.Draft.Validate(api.validate); err != nil {
			return err
		}
	}

	w := api.newWizard(ctx, actor, nil)
	wasReview := w.State().Step == module.StepReview

	mod, err := w.Advance(ctx.Request().Context(), data.Draft)
	if err != nil {
		return errors.Wrap(err, "advancing wizard")
	}

	if wasReview { // published; the session is over
		return ctx.Redirect(http.StatusSeeOther, fmt.Sprintf("/teacher/courses/%s", mod.CourseID))
	}

	resp := WizardResponse{State: w.State(), Module: &mod, Location: wizardLocation(w.State())}
	return ctx.JSON(http.StatusOK, resp)
}

func (api *moduleApi) wizardBack(ctx echo.Context) error {
	actor, err := getContextUser(ctx, api.userSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	var data WizardBackRequest
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to WizardBackRequest")
	}

	var flusher module.Flusher
	if data.Pending != nil {
		flusher = api.newFlusher(actor, data.Pending)
	}

	w := api.newWizard(ctx, actor, flusher)
	flushed, err := w.GoBack(ctx.Request().Context())
	if err != nil {
		return core.NewValidationError(err)
	}

	resp := WizardBackResponse{
		WizardResponse: WizardResponse{State: w.State(), Location: wizardLocation(w.State())},
		Flushed:        flushed,
	}
	return ctx.JSON(http.StatusOK, resp)
}

// Module handlers

func (api *moduleApi) retrieve(ctx echo.Context) error {
	actor, err := getContextUser(ctx, api.userSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	mod, err := api.svc.GetOwned(ctx.Request().Context(), ctx.Param("id"), actor)
	if err != nil {
		return errors.Wrap(err, "finding module")
	}
	return ctx.JSON(http.StatusOK, mod)
}

func (api *moduleApi) destroy(ctx echo.Context) error {
	actor, err := getContextUser(ctx, api.userSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	mod, err := api.svc.GetOwned(ctx.Request().Context(), ctx.Param("id"), actor)
	if err != nil {
		return errors.Wrap(err, "finding module")
	}
	if err = api.svc.Delete(ctx.Request().Context(), mod.ID); err != nil {
		return errors.Wrap(err, "deleting module")
	}
	return ctx.NoContent(http.StatusNoContent)
}

// Thumbnail handlers

type ThumbnailRequest struct {
	Thumbnail string `json:"thumbnail" validate:"required,thumbnailref"`
}

func (tr *ThumbnailRequest) Validate(validate *validator.Validate) error {
	tr.Thumbnail = core.CleanString(tr.Thumbnail)
	return validate.Struct(tr)
}

// setThumbnail accepts either a JSON reference (color token or URL) or a
// multipart image upload that is stored and referenced by its public URL.
func (api *moduleApi) setThumbnail(ctx echo.Context) error {
	actor, err := getContextUser(ctx, api.userSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	ref, err := api.resolveThumbnailRef(ctx, actor)
	if err != nil {
		return err
	}

	mod, err := api.svc.UpdateThumbnail(ctx.Request().Context(), actor, ctx.Param("id"), ref)
	if err != nil {
		return errors.Wrap(err, "updating thumbnail")
	}
	return ctx.JSON(http.StatusOK, mod)
}

func (api *moduleApi) resolveThumbnailRef(ctx echo.Context, actor user.User) (string, error) {
	contentType := ctx.Request().Header.Get(echo.HeaderContentType)
	if !strings.HasPrefix(contentType, echo.MIMEMultipartForm) {
		var data ThumbnailRequest
		if err := ctx.Bind(&data); err != nil {
			return "", errors.Wrap(err, "binding to ThumbnailRequest")
		}
		if err := data.Validate(api.validate); err != nil {
			return "", err
		}
		return data.Thumbnail, nil
	}

	fh, err := ctx.FormFile("file")
	if err != nil {
		return "", core.NewValidationError(nil, core.FieldError{Field: "file", Error: "an image file is required"})
	}
	src, err := fh.Open()
	if err != nil {
		return "", errors.Wrap(err, "opening uploaded file")
	}
	defer func() { _ = src.Close() }()

	// uploads are scoped per teacher so renamed files cannot collide across accounts
	key := path.Join("thumbnails", actor.ID, ctx.Param("id"), fh.Filename)
	url, err := api.storage.Upload(ctx.Request().Context(), key, fh.Header.Get(echo.HeaderContentType), src)
	if err != nil {
		return "", errors.Wrap(err, "uploading thumbnail")
	}
	return url, nil
}

func (api *moduleApi) queryPredefinedThumbnails(ctx echo.Context) error {
	refs := make([]string, 0, len(predefinedThumbnails))

	if api.storage != nil {
		urls, err := api.storage.ListPrefix(ctx.Request().Context(), api.conf.Storage.PredefinedPrefix)
		if err != nil {
			// the palette below still works; do not fail the pick screen
			api.logger.Warn(fmt.Sprintf("listing predefined thumbnails: %v", err), err)
		}
		refs = append(refs, urls...)
	}

	refs = append(refs, predefinedThumbnails...)
	return ctx.JSON(http.StatusOK, refs)
}
