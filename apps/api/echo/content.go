package echoapi

import (
	"net/http"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/darasa-app/darasa/core/content"
)

// translator is shared with the HTTP error handler for validation messages.
var translator ut.Translator

type contentApi struct {
	svc      *content.Service
	validate *validator.Validate
}

func registerContentAPI(
	g *echo.Group,
	jwt echo.MiddlewareFunc,
	svc *content.Service,
	validate *validator.Validate,
	trans ut.Translator,
) {
	translator = trans
	api := contentApi{svc: svc, validate: validate}

	// every content endpoint requires an authenticated viewer
	lg := g.Group("/lessons/:id", jwt)
	lg.GET("/content", api.renderable)
	lg.GET("/assets", api.queryAssets)
	lg.POST("/assets", api.registerAsset, editorMiddleware())
	lg.POST("/draft", api.createDraft, editorMiddleware())

	vg := g.Group("/versions/:id", jwt, editorMiddleware())
	vg.GET("", api.retrieveVersion)
	vg.POST("/publish", api.publish)
	vg.PUT("/layout", api.setLayout)
	vg.POST("/blocks", api.addBlock)
	vg.PUT("/slots/:slot/order", api.reorderBlocks)

	bg := g.Group("/blocks/:id", jwt, editorMiddleware())
	bg.PUT("", api.updateBlock)
	bg.POST("/move", api.moveBlock)
	bg.DELETE("", api.deleteBlock)
}

// Handlers

// renderable resolves the lesson's content for the caller: students get the
// published version; editors get the draft, falling back to published.
func (api *contentApi) renderable(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}

	rnd, err := api.svc.GetRenderable(ctx.Request().Context(), ctx.Param("id"), claims.ViewerRole())
	if err != nil {
		return errors.Wrap(err, "resolving renderable content")
	}
	return ctx.JSON(http.StatusOK, rnd)
}

func (api *contentApi) createDraft(ctx echo.Context) error {
	draft, err := api.svc.CreateDraft(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "creating draft")
	}
	return ctx.JSON(http.StatusCreated, draft)
}

func (api *contentApi) retrieveVersion(ctx echo.Context) error {
	rnd, err := api.svc.GetRenderableVersion(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "retrieving version")
	}
	return ctx.JSON(http.StatusOK, rnd)
}

func (api *contentApi) publish(ctx echo.Context) error {
	v, err := api.svc.Publish(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "publishing version")
	}
	return ctx.JSON(http.StatusOK, v)
}

func (api *contentApi) setLayout(ctx echo.Context) error {
	var data content.NewLayout
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewLayout")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	v, err := api.svc.SetLayout(ctx.Request().Context(), ctx.Param("id"), data)
	if err != nil {
		return errors.Wrap(err, "setting layout")
	}
	return ctx.JSON(http.StatusOK, v)
}

func (api *contentApi) addBlock(ctx echo.Context) error {
	var data content.NewBlock
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewBlock")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	blk, err := api.svc.AddBlock(ctx.Request().Context(), ctx.Param("id"), data)
	if err != nil {
		return errors.Wrap(err, "adding block")
	}
	return ctx.JSON(http.StatusCreated, blk)
}

func (api *contentApi) updateBlock(ctx echo.Context) error {
	var data content.BlockPatch
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to BlockPatch")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	blk, err := api.svc.UpdateBlock(ctx.Request().Context(), ctx.Param("id"), data)
	if err != nil {
		return errors.Wrap(err, "updating block")
	}
	return ctx.JSON(http.StatusOK, blk)
}

func (api *contentApi) deleteBlock(ctx echo.Context) error {
	revision := new(revisionParam)
	revision.Bind(ctx)

	if err := api.svc.DeleteBlock(ctx.Request().Context(), ctx.Param("id"), revision.Revision); err != nil {
		return errors.Wrap(err, "deleting block")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *contentApi) reorderBlocks(ctx echo.Context) error {
	var data content.SlotOrder
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to SlotOrder")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	blocks, err := api.svc.ReorderBlocks(ctx.Request().Context(), ctx.Param("id"), ctx.Param("slot"), data)
	if err != nil {
		return errors.Wrap(err, "reordering blocks")
	}
	return ctx.JSON(http.StatusOK, blocks)
}

func (api *contentApi) moveBlock(ctx echo.Context) error {
	var data content.BlockMove
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to BlockMove")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	blk, err := api.svc.MoveBlock(ctx.Request().Context(), ctx.Param("id"), data)
	if err != nil {
		return errors.Wrap(err, "moving block")
	}
	return ctx.JSON(http.StatusOK, blk)
}

func (api *contentApi) registerAsset(ctx echo.Context) error {
	var data content.NewAsset
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewAsset")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	asset, err := api.svc.RegisterAsset(ctx.Request().Context(), ctx.Param("id"), data)
	if err != nil {
		return errors.Wrap(err, "registering asset")
	}
	return ctx.JSON(http.StatusCreated, asset)
}

func (api *contentApi) queryAssets(ctx echo.Context) error {
	var versionID *string
	if v := ctx.QueryParam("version_id"); v != "" {
		versionID = &v
	}
	ordering := new(Ordering)
	ordering.Bind(ctx)

	assets, err := api.svc.QueryAssets(ctx.Request().Context(), ctx.Param("id"), versionID, ordering.Orderings)
	if err != nil {
		return errors.Wrap(err, "querying assets")
	}
	if assets == nil {
		assets = []content.Asset{}
	}
	return ctx.JSON(http.StatusOK, assets)
}
