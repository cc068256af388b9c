package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"cafe-pos/internal/cart"
	"cafe-pos/internal/catalog"
	"cafe-pos/internal/realtime/ordertrack"
)

type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.mylog.Action("response_encode_failed").Error("Cannot write response", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, errorResponse{Error: message})
}

func (s *Server) handleMenu() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		category := r.URL.Query().Get("category")
		s.writeJSON(w, http.StatusOK, s.catalog.Filter(category))
	})
}

type addItemRequest struct {
	ProductID string   `json:"productId"`
	Size      string   `json:"size,omitempty"`
	AddOns    []string `json:"addOns,omitempty"`
	Note      string   `json:"note,omitempty"`
	Quantity  int      `json:"quantity"`
}

func (s *Server) handleAddItem() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req addItemRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			s.writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		if req.Quantity < 1 {
			req.Quantity = 1
		}

		product, err := s.catalog.Get(req.ProductID)
		if err != nil {
			if errors.Is(err, catalog.ErrNotFound) {
				s.writeError(w, http.StatusNotFound, "product not found")
				return
			}
			s.writeError(w, http.StatusInternalServerError, "catalog lookup failed")
			return
		}
		if !product.Available {
			s.writeError(w, http.StatusConflict, "product is unavailable")
			return
		}

		var size *cart.SizeOption
		if req.Size != "" {
			for i := range product.Sizes {
				if product.Sizes[i].Name == req.Size {
					size = &product.Sizes[i]
					break
				}
			}
			if size == nil {
				s.writeError(w, http.StatusBadRequest, "unknown size for product")
				return
			}
		}

		var addOns []cart.AddOn
		for _, name := range req.AddOns {
			found := false
			for _, option := range product.AddOns {
				if option.Name == name {
					addOns = append(addOns, option)
					found = true
					break
				}
			}
			if !found {
				s.writeError(w, http.StatusBadRequest, "unknown add-on for product")
				return
			}
		}

		c := s.checkout.Cart()
		c.Add(product.ID, product.Name, product.BasePrice, size, addOns, req.Note, req.Quantity)
		s.writeJSON(w, http.StatusOK, c.Lines())
	})
}

type quantityRequest struct {
	Quantity int `json:"quantity"`
}

func (s *Server) handleSetQuantity() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req quantityRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			s.writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		c := s.checkout.Cart()
		c.SetQuantity(r.PathValue("id"), req.Quantity)
		s.writeJSON(w, http.StatusOK, c.Lines())
	})
}

func (s *Server) handleRemoveItem() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c := s.checkout.Cart()
		c.Remove(r.PathValue("id"))
		s.writeJSON(w, http.StatusOK, c.Lines())
	})
}

func (s *Server) handleClearCart() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.checkout.Cart().Clear()
		w.WriteHeader(http.StatusNoContent)
	})
}

func (s *Server) handleGetCart() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c := s.checkout.Cart()
		s.writeJSON(w, http.StatusOK, map[string]any{
			"items":      c.Lines(),
			"totalPrice": c.TotalPrice(),
			"totalItems": c.TotalItems(),
		})
	})
}

type confirmRequest struct {
	Name  string `json:"name,omitempty"`
	Table string `json:"table,omitempty"`
	Phone string `json:"phone,omitempty"`
}

func (s *Server) handleConfirm() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req confirmRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			s.writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		systemID, err := s.checkout.Confirm(ordertrack.CustomerInfo{
			Name:  req.Name,
			Table: req.Table,
			Phone: req.Phone,
		})
		if err != nil {
			s.writeError(w, http.StatusConflict, err.Error())
			return
		}
		s.writeJSON(w, http.StatusOK, map[string]string{"orderSystemId": systemID})
	})
}

type payRequest struct {
	Method string `json:"method"`
}

func (s *Server) handlePay() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req payRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			s.writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		method := ordertrack.PaymentMethod(req.Method)
		switch method {
		case ordertrack.PayCash, ordertrack.PayCard, ordertrack.PayQR:
		default:
			s.writeError(w, http.StatusBadRequest, "unknown payment method")
			return
		}
		if err := s.checkout.Pay(method); err != nil {
			s.writeError(w, http.StatusConflict, err.Error())
			return
		}
		w.WriteHeader(http.StatusNoContent)
	})
}

func (s *Server) handlePrepare() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := s.checkout.StartPreparing(); err != nil {
			s.writeError(w, http.StatusConflict, err.Error())
			return
		}
		w.WriteHeader(http.StatusNoContent)
	})
}

func (s *Server) handleComplete() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := s.checkout.Complete(); err != nil {
			s.writeError(w, http.StatusConflict, err.Error())
			return
		}
		w.WriteHeader(http.StatusNoContent)
	})
}

func (s *Server) handleCancel() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := s.checkout.Cancel(); err != nil {
			s.writeError(w, http.StatusConflict, err.Error())
			return
		}
		w.WriteHeader(http.StatusNoContent)
	})
}

func (s *Server) handleOrders() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.writeJSON(w, http.StatusOK, ordertrack.GroupByStatus(s.orders.List()))
	})
}
