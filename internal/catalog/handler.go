package catalog

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-playground/validator/v10"

	"github.com/shopmate-ai/shopmate/internal/api"
)

// Handler serves the catalog retriever HTTP surface consumed by the
// assistant's retriever agent.
type Handler struct {
	svc      *Service
	validate *validator.Validate
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc, validate: validator.New()}
}

// QueryText handles POST /query/text.
func (h *Handler) QueryText(w http.ResponseWriter, r *http.Request) {
	var req TextQueryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.HandleError(w, api.ErrBadRequest)
		return
	}
	if len(req.Text) == 0 {
		api.HandleError(w, api.NewValidationError("text terms are required"))
		return
	}

	results, err := h.svc.SearchText(r.Context(), req.Text, req.Categories, req.K)
	if err != nil {
		slog.Error("text query failed", "error", err)
		api.HandleError(w, api.ErrInternalServer)
		return
	}
	api.JSONRaw(w, http.StatusOK, toQueryResponse(results))
}

// QueryImage handles POST /query/image.
func (h *Handler) QueryImage(w http.ResponseWriter, r *http.Request) {
	var req ImageQueryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.HandleError(w, api.ErrBadRequest)
		return
	}
	if req.ImageBase64 == "" {
		api.HandleError(w, api.NewValidationError("image_base64 is required"))
		return
	}

	results, err := h.svc.SearchImage(r.Context(), req.Text, req.ImageBase64, req.Categories, req.K)
	if err != nil {
		slog.Error("image query failed", "error", err)
		api.HandleError(w, api.ErrInternalServer)
		return
	}
	api.JSONRaw(w, http.StatusOK, toQueryResponse(results))
}

func toQueryResponse(results []Result) QueryResponse {
	resp := QueryResponse{
		Texts:        []string{},
		IDs:          []string{},
		Similarities: []float64{},
		Names:        []string{},
		Images:       []string{},
		Prices:       []float64{},
	}
	for _, r := range results {
		resp.Texts = append(resp.Texts, r.Text)
		resp.IDs = append(resp.IDs, r.ID)
		resp.Similarities = append(resp.Similarities, r.Similarity)
		resp.Names = append(resp.Names, r.Name)
		resp.Images = append(resp.Images, r.ImageURL)
		resp.Prices = append(resp.Prices, r.Price)
	}
	return resp
}
