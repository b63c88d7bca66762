package main

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/adhamel/storefront/internal/models"
	"github.com/adhamel/storefront/internal/store"
)

func (s *server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email    string `json:"email"`
		Name     string `json:"name"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	user, err := store.CreateUser(r.Context(), s.db, req.Email, req.Name, req.Password)
	if err != nil {
		respondStoreError(w, err)
		return
	}

	token, err := s.tokens.Issue(user.ID, time.Now())
	if err != nil {
		respondStoreError(w, err)
		return
	}

	respondJSON(w, http.StatusCreated, map[string]interface{}{"user": user, "token": token})
}

func (s *server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	user, err := store.Authenticate(r.Context(), s.db, req.Email, req.Password)
	if err != nil {
		respondStoreError(w, err)
		return
	}

	token, err := s.tokens.Issue(user.ID, time.Now())
	if err != nil {
		respondStoreError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{"user": user, "token": token})
}

func (s *server) handleGetProfile(w http.ResponseWriter, r *http.Request, actor uuid.UUID) {
	profile, err := store.GetProfile(r.Context(), s.db, actor)
	if err != nil {
		respondStoreError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, profile)
}

func (s *server) handleUpsertProfile(w http.ResponseWriter, r *http.Request, actor uuid.UUID) {
	var req store.ProfileInput
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	profile, err := store.UpsertProfile(r.Context(), s.db, actor, req)
	if err != nil {
		respondStoreError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, profile)
}

type productRequest struct {
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Price       string   `json:"price"`
	Category    string   `json:"category"`
	Tags        []string `json:"tags"`
	AssetURL    string   `json:"asset_url"`
	IsActive    *bool    `json:"is_active"`
}

func (req productRequest) toInput() (store.ProductInput, error) {
	price, err := decimal.NewFromString(req.Price)
	if err != nil {
		return store.ProductInput{}, err
	}
	active := true
	if req.IsActive != nil {
		active = *req.IsActive
	}
	return store.ProductInput{
		Title:       req.Title,
		Description: req.Description,
		Price:       price,
		Category:    req.Category,
		Tags:        req.Tags,
		AssetURL:    req.AssetURL,
		IsActive:    active,
	}, nil
}

func (s *server) handleCreateProduct(w http.ResponseWriter, r *http.Request, actor uuid.UUID) {
	var req productRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	input, err := req.toInput()
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid price")
		return
	}

	product, err := store.CreateProduct(r.Context(), s.db, s.cache, actor, input)
	if err != nil {
		respondStoreError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, product)
}

func (s *server) handleUpdateProduct(w http.ResponseWriter, r *http.Request, actor uuid.UUID) {
	id, ok := pathUUID(r, "id")
	if !ok {
		respondError(w, http.StatusBadRequest, "Invalid product ID")
		return
	}
	var req productRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	input, err := req.toInput()
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid price")
		return
	}

	product, err := store.UpdateProduct(r.Context(), s.db, s.cache, actor, id, input)
	if err != nil {
		respondStoreError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, product)
}

func (s *server) handleDeleteProduct(w http.ResponseWriter, r *http.Request, actor uuid.UUID) {
	id, ok := pathUUID(r, "id")
	if !ok {
		respondError(w, http.StatusBadRequest, "Invalid product ID")
		return
	}
	if err := store.DeleteProduct(r.Context(), s.db, s.cache, actor, id); err != nil {
		respondStoreError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *server) handleGetProduct(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(r, "id")
	if !ok {
		respondError(w, http.StatusBadRequest, "Invalid product ID")
		return
	}
	product, err := store.GetProduct(r.Context(), s.db, s.cache, id)
	if err != nil {
		respondStoreError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, product)
}

func (s *server) handleListProducts(w http.ResponseWriter, r *http.Request) {
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	if page < 1 {
		page = 1
	}
	pageSize, _ := strconv.Atoi(r.URL.Query().Get("page_size"))
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}
	onlyActive := r.URL.Query().Get("all") == ""

	result, err := store.ListProducts(r.Context(), s.db, s.cache, page, pageSize, onlyActive)
	if err != nil {
		respondStoreError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, result)
}

func (s *server) handleAddImage(w http.ResponseWriter, r *http.Request, actor uuid.UUID) {
	productID, ok := pathUUID(r, "id")
	if !ok {
		respondError(w, http.StatusBadRequest, "Invalid product ID")
		return
	}
	var req struct {
		ImageURL  string `json:"image_url"`
		SortOrder int    `json:"sort_order"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	image, err := store.AddProductImage(r.Context(), s.db, s.cache, actor, productID, req.ImageURL, req.SortOrder)
	if err != nil {
		respondStoreError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, image)
}

func (s *server) handleSetPrimaryImage(w http.ResponseWriter, r *http.Request, actor uuid.UUID) {
	productID, ok := pathUUID(r, "id")
	if !ok {
		respondError(w, http.StatusBadRequest, "Invalid product ID")
		return
	}
	imageID, ok := pathUUID(r, "imageID")
	if !ok {
		respondError(w, http.StatusBadRequest, "Invalid image ID")
		return
	}

	if err := store.SetPrimaryImage(r.Context(), s.db, s.cache, actor, productID, imageID); err != nil {
		respondStoreError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *server) handleRemoveImage(w http.ResponseWriter, r *http.Request, actor uuid.UUID) {
	imageID, ok := pathUUID(r, "id")
	if !ok {
		respondError(w, http.StatusBadRequest, "Invalid image ID")
		return
	}
	if err := store.RemoveProductImage(r.Context(), s.db, s.cache, actor, imageID); err != nil {
		respondStoreError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *server) handleSubmitOrder(w http.ResponseWriter, r *http.Request, actor uuid.UUID) {
	var req struct {
		Items []struct {
			ProductID uuid.UUID `json:"product_id"`
			Quantity  int       `json:"quantity"`
		} `json:"items"`
		ContactMethod     string `json:"contact_method"`
		PaymentMethodDesc string `json:"payment_method_description"`
		PaymentProofURL   string `json:"payment_proof_url"`
		Notes             string `json:"notes"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	var items []store.OrderItemRequest
	for _, item := range req.Items {
		items = append(items, store.OrderItemRequest{
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
		})
	}

	order, err := store.SubmitOrder(r.Context(), s.db, store.SubmitOrderRequest{
		UserID:            actor,
		Items:             items,
		ContactMethod:     req.ContactMethod,
		PaymentMethodDesc: req.PaymentMethodDesc,
		PaymentProofURL:   req.PaymentProofURL,
		Notes:             req.Notes,
	})
	if err != nil {
		respondStoreError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, order)
}

func (s *server) handleListOrders(w http.ResponseWriter, r *http.Request, actor uuid.UUID) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	if limit < 1 || limit > 100 {
		limit = 20
	}

	result, err := store.ListOrders(r.Context(), s.db, actor, r.URL.Query().Get("cursor"), limit)
	if err != nil {
		respondStoreError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, result)
}

func (s *server) handleGetOrder(w http.ResponseWriter, r *http.Request, actor uuid.UUID) {
	id, ok := pathUUID(r, "id")
	if !ok {
		respondError(w, http.StatusBadRequest, "Invalid order ID")
		return
	}
	order, err := store.GetOrder(r.Context(), s.db, actor, id)
	if err != nil {
		respondStoreError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, order)
}

func (s *server) handleGetDownload(w http.ResponseWriter, r *http.Request, actor uuid.UUID) {
	id, ok := pathUUID(r, "id")
	if !ok {
		respondError(w, http.StatusBadRequest, "Invalid order item ID")
		return
	}
	ref, err := store.GetDownload(r.Context(), s.db, actor, id)
	if err != nil {
		respondStoreError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, ref)
}

func (s *server) handleListPendingOrders(w http.ResponseWriter, r *http.Request, actor uuid.UUID) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	if limit < 1 || limit > 100 {
		limit = 50
	}

	orders, err := store.ListPendingOrders(r.Context(), s.db, actor, limit)
	if err != nil {
		respondStoreError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, orders)
}

func (s *server) handleApproveOrder(w http.ResponseWriter, r *http.Request, actor uuid.UUID) {
	id, ok := pathUUID(r, "id")
	if !ok {
		respondError(w, http.StatusBadRequest, "Invalid order ID")
		return
	}
	order, err := store.ApproveOrder(r.Context(), s.db, s.cfg, actor, id)
	if err != nil {
		respondStoreError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, order)
}

func (s *server) handleRejectOrder(w http.ResponseWriter, r *http.Request, actor uuid.UUID) {
	id, ok := pathUUID(r, "id")
	if !ok {
		respondError(w, http.StatusBadRequest, "Invalid order ID")
		return
	}
	var req struct {
		Note string `json:"note"`
	}
	if r.Body != nil {
		json.NewDecoder(r.Body).Decode(&req)
	}

	order, err := store.RejectOrder(r.Context(), s.db, actor, id, req.Note)
	if err != nil {
		respondStoreError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, order)
}

func (s *server) handleAssignRole(w http.ResponseWriter, r *http.Request, actor uuid.UUID) {
	userID, ok := pathUUID(r, "id")
	if !ok {
		respondError(w, http.StatusBadRequest, "Invalid user ID")
		return
	}
	var req struct {
		Role models.Role `json:"role"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if err := store.AssignRole(r.Context(), s.db, actor, userID, req.Role); err != nil {
		respondStoreError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *server) handleGetChat(w http.ResponseWriter, r *http.Request, actor uuid.UUID) {
	chat, err := store.GetOrCreateChat(r.Context(), s.db, actor)
	if err != nil {
		respondStoreError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, chat)
}

func (s *server) handlePostMessage(w http.ResponseWriter, r *http.Request, actor uuid.UUID) {
	chatID, ok := pathUUID(r, "id")
	if !ok {
		respondError(w, http.StatusBadRequest, "Invalid chat ID")
		return
	}
	var req struct {
		Content   string `json:"content"`
		FromAdmin bool   `json:"from_admin"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	message, err := store.PostMessage(r.Context(), s.db, actor, chatID, req.Content, req.FromAdmin)
	if err != nil {
		respondStoreError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, message)
}

func (s *server) handleListMessages(w http.ResponseWriter, r *http.Request, actor uuid.UUID) {
	chatID, ok := pathUUID(r, "id")
	if !ok {
		respondError(w, http.StatusBadRequest, "Invalid chat ID")
		return
	}
	afterSeq, _ := strconv.ParseInt(r.URL.Query().Get("after"), 10, 64)
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	if limit < 1 || limit > 500 {
		limit = 100
	}

	messages, err := store.ListMessages(r.Context(), s.db, actor, chatID, afterSeq, limit)
	if err != nil {
		respondStoreError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, messages)
}

func (s *server) handleMarkChatRead(w http.ResponseWriter, r *http.Request, actor uuid.UUID) {
	chatID, ok := pathUUID(r, "id")
	if !ok {
		respondError(w, http.StatusBadRequest, "Invalid chat ID")
		return
	}
	if err := store.MarkChatRead(r.Context(), s.db, actor, chatID); err != nil {
		respondStoreError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *server) handleListChats(w http.ResponseWriter, r *http.Request, actor uuid.UUID) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	if limit < 1 || limit > 200 {
		limit = 50
	}

	chats, err := store.ListChats(r.Context(), s.db, actor, limit)
	if err != nil {
		respondStoreError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, chats)
}
