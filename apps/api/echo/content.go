package echoapi

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/darasa/core/module"
	"github.com/trezcool/darasa/core/user"
)

// The content sub-editor's API. Items are appended at the end of the
// module's sequence; order changes go through /reorder.
func registerContentAPI(mg *echo.Group, api *moduleApi) {
	cg := mg.Group("/:id/content")
	cg.GET("", api.queryContent)
	cg.POST("", api.createContent)
	cg.PUT("/:itemID", api.updateContent)
	cg.DELETE("/:itemID", api.destroyContent)
	cg.POST("/reorder", api.reorderContent)
	cg.POST("/flush", api.flushContent)
}

func (api *moduleApi) queryContent(ctx echo.Context) error {
	actor, err := getContextUser(ctx, api.userSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	mod, err := api.svc.GetOwned(ctx.Request().Context(), ctx.Param("id"), actor)
	if err != nil {
		return errors.Wrap(err, "finding module")
	}

	items, err := api.svc.QueryContentItems(ctx.Request().Context(), mod.ID)
	if err != nil {
		return errors.Wrap(err, "querying content items")
	}
	if items == nil {
		items = []module.ContentItem{}
	}
	return ctx.JSON(http.StatusOK, items)
}

func (api *moduleApi) createContent(ctx echo.Context) error {
	actor, err := getContextUser(ctx, api.userSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	var data module.NewContentItem
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewContentItem")
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}

	item, err := api.svc.CreateContentItem(ctx.Request().Context(), actor, ctx.Param("id"), data)
	if err != nil {
		return errors.Wrap(err, "creating content item")
	}
	return ctx.JSON(http.StatusCreated, item)
}

func (api *moduleApi) updateContent(ctx echo.Context) error {
	actor, err := getContextUser(ctx, api.userSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	var data module.UpdateContentItem
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateContentItem")
	}
	if err = data.Validate(module.ContentItem{}, api.validate); err != nil {
		return err
	}

	item, err := api.svc.UpdateContentItem(ctx.Request().Context(), actor, ctx.Param("itemID"), data)
	if err != nil {
		return errors.Wrap(err, "updating content item")
	}
	return ctx.JSON(http.StatusOK, item)
}

func (api *moduleApi) destroyContent(ctx echo.Context) error {
	actor, err := getContextUser(ctx, api.userSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	if err = api.svc.DeleteContentItem(ctx.Request().Context(), actor, ctx.Param("itemID")); err != nil {
		return errors.Wrap(err, "deleting content item")
	}
	return ctx.NoContent(http.StatusNoContent)
}

type ReorderRequest struct {
	IDs []string `json:"ids"`
}

func (api *moduleApi) reorderContent(ctx echo.Context) error {
	actor, err := getContextUser(ctx, api.userSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	var data ReorderRequest
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to ReorderRequest")
	}

	items, err := api.svc.ReorderContentItems(ctx.Request().Context(), actor, ctx.Param("id"), data.IDs)
	if err != nil {
		return errors.Wrap(err, "reordering content items")
	}
	return ctx.JSON(http.StatusOK, items)
}

type (
	// FlushRequest is a batch save of the sub-editor's pending edits.
	// Items without an id are created (appended), items with one are
	// updated, Deleted ids are removed, and Order, when present, is the
	// final sequence.
	FlushRequest struct {
		Items   []FlushItem `json:"items"`
		Deleted []string    `json:"deleted"`
		Order   []string    `json:"order"`
	}

	FlushItem struct {
		ID      string          `json:"id"`
		Kind    string          `json:"kind"`
		Payload json.RawMessage `json:"payload"`
	}
)

func (api *moduleApi) flushContent(ctx echo.Context) error {
	actor, err := getContextUser(ctx, api.userSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	var data FlushRequest
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to FlushRequest")
	}

	if err = api.applyFlush(ctx.Request().Context(), actor, ctx.Param("id"), &data); err != nil {
		return errors.Wrap(err, "flushing content items")
	}

	items, err := api.svc.QueryContentItems(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "querying content items")
	}
	if items == nil {
		items = []module.ContentItem{}
	}
	return ctx.JSON(http.StatusOK, items)
}

// newFlusher adapts a FlushRequest to the wizard's flush contract.
func (api *moduleApi) newFlusher(actor user.User, pending *FlushRequest) module.Flusher {
	return module.FlusherFunc(func(ctx context.Context, moduleID string) error {
		return api.applyFlush(ctx, actor, moduleID, pending)
	})
}

func (api *moduleApi) applyFlush(ctx context.Context, actor user.User, moduleID string, req *FlushRequest) error {
	for _, it := range req.Items {
		if err := ctx.Err(); err != nil {
			return err
		}
		if it.ID == "" {
			data := module.NewContentItem{Kind: it.Kind, Payload: it.Payload}
			if err := data.Validate(api.validate); err != nil {
				return err
			}
			if _, err := api.svc.CreateContentItem(ctx, actor, moduleID, data); err != nil {
				return err
			}
			continue
		}

		data := module.UpdateContentItem{Kind: it.Kind, Payload: it.Payload}
		if _, err := api.svc.UpdateContentItem(ctx, actor, it.ID, data); err != nil {
			return err
		}
	}

	for _, id := range req.Deleted {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := api.svc.DeleteContentItem(ctx, actor, id); err != nil {
			return err
		}
	}

	if len(req.Order) > 0 {
		if _, err := api.svc.ReorderContentItems(ctx, actor, moduleID, req.Order); err != nil {
			return err
		}
	}
	return nil
}
