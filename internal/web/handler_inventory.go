package web

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/vbonduro/sectorinv/internal/domain"
	"github.com/vbonduro/sectorinv/internal/service"
)

const maxNameLen = 200

// expirationLayout is the value format of an <input type="date">.
const expirationLayout = "2006-01-02"

func (s *Server) handleInventory(w http.ResponseWriter, r *http.Request) {
	data := pageData(r, "inventory")
	data["Sectors"] = s.inventory.SectorStats(r.Context())
	if err := s.renderPage(w, http.StatusOK, data,
		"base.html", "pages/inventory.html", "partials/sector_card.html",
	); err != nil {
		s.logger.Error("render page error", "page", "inventory", "error", err)
	}
}

func (s *Server) handleCreateSector(w http.ResponseWriter, r *http.Request) {
	name, ok := formName(w, r)
	if !ok {
		return
	}

	sector, err := s.inventory.CreateSector(r.Context(), name)
	if err != nil {
		s.inventoryError(w, "create sector", err)
		return
	}

	card := dict("Sector", &service.SectorSummary{Sector: *sector}, "CanEdit", true)
	if err := s.renderPartial(w, "partials/sector_card.html", card); err != nil {
		s.logger.Error("render partial error", "partial", "sector_card", "error", err)
	}
}

func (s *Server) handleRenameSector(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	name, ok := formName(w, r)
	if !ok {
		return
	}

	if err := s.inventory.UpdateSector(r.Context(), id, name); err != nil {
		s.inventoryError(w, "rename sector", err)
		return
	}

	for _, summary := range s.inventory.SectorStats(r.Context()) {
		if summary.ID == id {
			card := dict("Sector", summary, "CanEdit", true)
			if err := s.renderPartial(w, "partials/sector_card.html", card); err != nil {
				s.logger.Error("render partial error", "partial", "sector_card", "error", err)
			}
			return
		}
	}
	http.Error(w, "sector not found", http.StatusNotFound)
}

func (s *Server) handleDeleteSector(w http.ResponseWriter, r *http.Request) {
	if err := s.inventory.DeleteSector(r.Context(), r.PathValue("id")); err != nil {
		s.inventoryError(w, "delete sector", err)
		return
	}
	// Deleting from the sector page must leave it; from the overview the
	// card is swapped out with the empty body.
	if strings.Contains(r.Header.Get("HX-Current-URL"), "/inventory/sectors/") {
		w.Header().Set("HX-Redirect", "/inventory")
	}
	w.WriteHeader(http.StatusOK)
}

func (s *Server) handleSectorDetail(w http.ResponseWriter, r *http.Request) {
	sector := s.inventory.GetSector(r.Context(), r.PathValue("id"))
	if sector == nil {
		s.handleNotFound(w, r)
		return
	}

	data := pageData(r, "inventory")
	data["Sector"] = sector
	data["Products"] = s.inventory.ListProducts(r.Context(), sector.ID)
	if err := s.renderPage(w, http.StatusOK, data,
		"base.html", "pages/sector.html", "partials/product_row.html",
	); err != nil {
		s.logger.Error("render page error", "page", "sector", "error", err)
	}
}

func (s *Server) handleCreateProduct(w http.ResponseWriter, r *http.Request) {
	sector := s.inventory.GetSector(r.Context(), r.PathValue("id"))
	if sector == nil {
		http.Error(w, "sector not found", http.StatusNotFound)
		return
	}

	name, ok := formName(w, r)
	if !ok {
		return
	}
	quantity, err := strconv.Atoi(strings.TrimSpace(r.FormValue("quantity")))
	if err != nil || quantity < 0 {
		http.Error(w, "quantity must be a whole number of zero or more", http.StatusBadRequest)
		return
	}
	var expiration *time.Time
	if raw := strings.TrimSpace(r.FormValue("expiration_date")); raw != "" {
		t, err := time.Parse(expirationLayout, raw)
		if err != nil {
			http.Error(w, "invalid expiration date", http.StatusBadRequest)
			return
		}
		expiration = &t
	}

	product, err := s.inventory.CreateProduct(r.Context(), sector.ID, name, quantity, expiration)
	if err != nil {
		s.inventoryError(w, "create product", err)
		return
	}
	s.renderProductRow(w, product)
}

// handleQuantityAction applies one of add, subtract, lend or return with a
// positive amount and answers with the refreshed product row.
func (s *Server) handleQuantityAction(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	amount, err := strconv.Atoi(strings.TrimSpace(r.FormValue("amount")))
	if err != nil || amount <= 0 {
		http.Error(w, "amount must be a positive whole number", http.StatusBadRequest)
		return
	}

	ctx := r.Context()
	action := domain.ActionType(r.FormValue("action"))
	switch action {
	case domain.ActionAdd, domain.ActionSubtract:
		err = s.inventory.AdjustProductQuantity(ctx, id, amount, action)
	case domain.ActionLend:
		err = s.inventory.LendProduct(ctx, id, amount)
	case domain.ActionReturn:
		err = s.inventory.ReturnProduct(ctx, id, amount)
	default:
		http.Error(w, "unknown action", http.StatusBadRequest)
		return
	}
	if err != nil {
		s.inventoryError(w, string(action)+" product", err)
		return
	}

	product := s.inventory.GetProduct(ctx, id)
	if product == nil {
		http.Error(w, "product not found", http.StatusNotFound)
		return
	}
	s.renderProductRow(w, product)
}

func (s *Server) handleDeleteProduct(w http.ResponseWriter, r *http.Request) {
	if err := s.inventory.DeleteProduct(r.Context(), r.PathValue("id")); err != nil {
		s.inventoryError(w, "delete product", err)
		return
	}
	w.WriteHeader(http.StatusOK)
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	data := pageData(r, "history")
	data["History"] = s.inventory.History(r.Context())
	if err := s.renderPage(w, http.StatusOK, data, "base.html", "pages/history.html"); err != nil {
		s.logger.Error("render page error", "page", "history", "error", err)
	}
}

func (s *Server) renderProductRow(w http.ResponseWriter, product *domain.Product) {
	row := dict("Product", *product, "CanEdit", true)
	if err := s.renderPartial(w, "partials/product_row.html", row); err != nil {
		s.logger.Error("render partial error", "partial", "product_row", "error", err)
	}
}

// formName reads and validates the "name" form field, writing a 400 when it
// is unusable.
func formName(w http.ResponseWriter, r *http.Request) (string, bool) {
	name := strings.TrimSpace(r.FormValue("name"))
	if name == "" {
		http.Error(w, "name required", http.StatusBadRequest)
		return "", false
	}
	if len(name) > maxNameLen {
		http.Error(w, "name too long", http.StatusBadRequest)
		return "", false
	}
	return name, true
}

// inventoryError maps service errors onto HTTP statuses.
func (s *Server) inventoryError(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, service.ErrSectorNotFound), errors.Is(err, service.ErrProductNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, service.ErrInsufficientStock):
		http.Error(w, "not enough stock for this operation", http.StatusConflict)
	case errors.Is(err, service.ErrInvalidQuantity), errors.Is(err, service.ErrInvalidAction):
		http.Error(w, err.Error(), http.StatusBadRequest)
	default:
		s.logger.Error("inventory operation failed", "op", op, "error", err)
		http.Error(w, "failed to "+op, http.StatusInternalServerError)
	}
}
