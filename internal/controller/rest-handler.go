package controller

import (
	"errors"
	"net/http"

	"github.com/sharetube/review/internal/service/review"
	"github.com/sharetube/review/pkg/rest"
)

type createSessionRequest struct {
	UserID string `json:"user_id" validate:"required,max=64"`
	Name   string `json:"name" validate:"required,max=32"`
	Color  string `json:"color" validate:"required,hexcolor"`
}

func (c controller) createSession(w http.ResponseWriter, r *http.Request) {
	assetID, err := c.mustURLParam(r, "asset-id")
	if err != nil {
		rest.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	var req createSessionRequest
	if err := rest.ReadJSON(r, &req); err != nil {
		c.logger.InfoContext(r.Context(), "failed to read json", "error", err)
		rest.WriteError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	if validationErrors, ok := c.validate.Validate(req); !ok {
		c.logger.InfoContext(r.Context(), "validation failed", "errors", validationErrors)
		rest.WriteJSON(w, http.StatusBadRequest, rest.Envelope{"errors": validationErrors})
		return
	}

	resp, err := c.reviewService.CreateSession(r.Context(), &review.CreateSessionParams{
		AssetID: assetID,
		UserID:  req.UserID,
		Name:    req.Name,
		Color:   req.Color,
	})
	if err != nil {
		c.writeServiceError(w, r, err)
		return
	}

	rest.WriteJSON(w, http.StatusCreated, rest.Envelope{"data": resp})
}

func (c controller) listAssets(w http.ResponseWriter, r *http.Request) {
	projectID, err := c.mustURLParam(r, "project-id")
	if err != nil {
		rest.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	assets, err := c.reviewService.ListAssets(r.Context(), projectID)
	if err != nil {
		c.writeServiceError(w, r, err)
		return
	}

	rest.WriteJSON(w, http.StatusOK, rest.Envelope{"data": assets})
}

func (c controller) listComments(w http.ResponseWriter, r *http.Request) {
	assetID, err := c.mustURLParam(r, "asset-id")
	if err != nil {
		rest.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	comments, err := c.reviewService.ListComments(r.Context(), assetID)
	if err != nil {
		c.writeServiceError(w, r, err)
		return
	}

	rest.WriteJSON(w, http.StatusOK, rest.Envelope{"data": comments})
}

func (c controller) exportComments(w http.ResponseWriter, r *http.Request) {
	assetID, err := c.mustURLParam(r, "asset-id")
	if err != nil {
		rest.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	// the asset check runs before any byte is written.
	if _, err := c.reviewService.ListComments(r.Context(), assetID); err != nil {
		c.writeServiceError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", `attachment; filename="`+assetID+`-comments.csv"`)
	if err := c.reviewService.ExportCSV(r.Context(), assetID, w); err != nil {
		c.logger.WarnContext(r.Context(), "failed to export comments", "error", err)
	}
}

func (c controller) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, review.ErrAssetNotFound):
		rest.WriteError(w, http.StatusNotFound, err.Error())
	default:
		c.logger.ErrorContext(r.Context(), "request failed", "error", err)
		rest.WriteError(w, http.StatusInternalServerError, "internal error")
	}
}
