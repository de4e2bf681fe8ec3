package category

import (
	"log/slog"
	"net/http"

	"github.com/frahmantamala/expense-tracker/internal/transport"
)

type Handler struct {
	*transport.BaseHandler
}

func NewHandler(lg *slog.Logger) *Handler {
	return &Handler{BaseHandler: transport.NewBaseHandler(lg)}
}

// GetCategories handles GET /categories
func (h *Handler) GetCategories(w http.ResponseWriter, r *http.Request) {
	all := All()
	resp := make([]CategoryResponse, 0, len(all))
	for _, c := range all {
		resp = append(resp, c.ToResponse())
	}

	h.WriteJSON(w, http.StatusOK, CategoriesResponse{Categories: resp})
}
