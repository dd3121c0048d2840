package httpinterface

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/gcert-network/gcert-daemon/internal/core/application"
	"github.com/gcert-network/gcert-daemon/internal/core/domain"
)

// Handler exposes the wallet commands over a JSON API. It serves two
// audiences on the same listener: the operator CLI and counterparty wallets
// delivering deposit notifications to /v1/deposits.
type Handler struct {
	walletSvc application.WalletService
}

func NewHandler(walletSvc application.WalletService) *Handler {
	return &Handler{walletSvc: walletSvc}
}

func (h *Handler) Router() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/endpoints", h.handleEndpoints)
	mux.HandleFunc("/v1/endpoints/external", h.handleExternalEndpoint)
	mux.HandleFunc("/v1/claims", h.handleClaim)
	mux.HandleFunc("/v1/transfers", h.handleTransfer)
	mux.HandleFunc("/v1/plans/", h.handlePlan)
	mux.HandleFunc("/v1/balances", h.handleBalance)
	mux.HandleFunc("/v1/deposits/", h.handleDeposit)
	return mux
}

type createEndpointRequest struct {
	Owner string `json:"owner"`
}

type registerExternalEndpointRequest struct {
	Reference string `json:"reference"`
	PublicKey string `json:"publicKey"`
	RemoteURL string `json:"remoteUrl"`
}

type endpointResponse struct {
	ID           uuid.UUID `json:"id"`
	Owner        string    `json:"owner"`
	Kind         string    `json:"kind"`
	Account      uint32    `json:"account"`
	PublicKey    string    `json:"publicKey"`
	RemoteURL    string    `json:"remoteUrl,omitempty"`
	Secret       string    `json:"secret,omitempty"`
	NextPosition uint32    `json:"nextPosition"`
}

type claimRequest struct {
	Owner                    string `json:"owner"`
	Registry                 string `json:"registry"`
	ProductionCertificateID  string `json:"productionCertificateId"`
	ConsumptionCertificateID string `json:"consumptionCertificateId"`
	Quantity                 uint64 `json:"quantity"`
}

type transferRequest struct {
	Owner              string    `json:"owner"`
	Registry           string    `json:"registry"`
	CertificateID      string    `json:"certificateId"`
	Quantity           uint64    `json:"quantity"`
	ReceiverEndpointID uuid.UUID `json:"receiverEndpointId"`
	DiscloseAttributes []string  `json:"discloseAttributes,omitempty"`
}

type planCreatedResponse struct {
	PlanID uuid.UUID `json:"planId"`
}

type planResponse struct {
	ID             uuid.UUID `json:"id"`
	Owner          string    `json:"owner"`
	State          string    `json:"state"`
	Cursor         int       `json:"cursor"`
	Steps          int       `json:"steps"`
	Attempts       int       `json:"attempts"`
	FailureMessage string    `json:"failureMessage,omitempty"`
	CreatedAt      int64     `json:"createdAt"`
}

type balanceResponse struct {
	Available uint64 `json:"available"`
	Reserved  uint64 `json:"reserved"`
	Settling  uint64 `json:"settling"`
	Total     uint64 `json:"total"`
}

type depositResponse struct {
	SliceID uuid.UUID `json:"sliceId"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (h *Handler) handleEndpoints(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		owner := r.URL.Query().Get("owner")
		endpoints, err := h.walletSvc.ListEndpoints(r.Context(), owner)
		if err != nil {
			writeError(w, err)
			return
		}
		res := make([]endpointResponse, 0, len(endpoints))
		for i := range endpoints {
			res = append(res, toEndpointResponse(&endpoints[i]))
		}
		writeJSON(w, http.StatusOK, res)
	case http.MethodPost:
		var req createEndpointRequest
		if !decodeBody(w, r, &req) {
			return
		}
		endpoint, err := h.walletSvc.CreateWalletEndpoint(r.Context(), req.Owner)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, toEndpointResponse(endpoint))
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (h *Handler) handleExternalEndpoint(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	var req registerExternalEndpointRequest
	if !decodeBody(w, r, &req) {
		return
	}
	endpoint, err := h.walletSvc.RegisterExternalEndpoint(
		r.Context(), req.Reference, req.PublicKey, req.RemoteURL,
	)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toEndpointResponse(endpoint))
}

func (h *Handler) handleClaim(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	var req claimRequest
	if !decodeBody(w, r, &req) {
		return
	}
	planID, err := h.walletSvc.ClaimCertificate(r.Context(), application.ClaimCertificateRequest{
		Owner:                    req.Owner,
		Registry:                 req.Registry,
		ProductionCertificateID:  req.ProductionCertificateID,
		ConsumptionCertificateID: req.ConsumptionCertificateID,
		Quantity:                 req.Quantity,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, planCreatedResponse{PlanID: planID})
}

func (h *Handler) handleTransfer(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	var req transferRequest
	if !decodeBody(w, r, &req) {
		return
	}
	planID, err := h.walletSvc.TransferCertificate(r.Context(), application.TransferCertificateRequest{
		Owner:              req.Owner,
		Registry:           req.Registry,
		CertificateID:      req.CertificateID,
		Quantity:           req.Quantity,
		ReceiverEndpointID: req.ReceiverEndpointID,
		DiscloseAttributes: req.DiscloseAttributes,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, planCreatedResponse{PlanID: planID})
}

func (h *Handler) handlePlan(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	planID, ok := pathID(w, r, "/v1/plans/")
	if !ok {
		return
	}
	plan, err := h.walletSvc.GetRoutingPlan(r.Context(), planID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, planResponse{
		ID:             plan.ID,
		Owner:          plan.Owner,
		State:          planStateString(plan.State),
		Cursor:         plan.Cursor,
		Steps:          len(plan.Steps),
		Attempts:       plan.Attempts,
		FailureMessage: plan.FailureMessage,
		CreatedAt:      plan.CreatedAt,
	})
}

func (h *Handler) handleBalance(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	q := r.URL.Query()
	balance, err := h.walletSvc.GetBalance(
		r.Context(), q.Get("owner"), q.Get("registry"), q.Get("certificate"),
	)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, balanceResponse{
		Available: balance.Available,
		Reserved:  balance.Reserved,
		Settling:  balance.Settling,
		Total:     balance.Total,
	})
}

// handleDeposit is the inbound twin of the webhook notifier: counterparty
// wallets POST deposit notifications here. Redeliveries of an already
// deposited position are acknowledged so the sender stops retrying.
func (h *Handler) handleDeposit(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	endpointID, ok := pathID(w, r, "/v1/deposits/")
	if !ok {
		return
	}
	var notification application.DepositNotification
	if !decodeBody(w, r, &notification) {
		return
	}

	sliceID, err := h.walletSvc.ReceiveSlice(r.Context(), application.ReceiveSliceRequest{
		EndpointID:     endpointID,
		Position:       notification.Position,
		Registry:       notification.Registry,
		CertificateID:  notification.CertificateID,
		Quantity:       notification.Quantity,
		BlindingFactor: notification.BlindingFactor,
		Commitment:     notification.Commitment,
		Certificate:    notification.Certificate,
		Attributes:     notification.Attributes,
	})
	if errors.Is(err, domain.ErrPositionAlreadyTaken) {
		writeJSON(w, http.StatusOK, struct{}{})
		return
	}
	if err != nil {
		writeError(w, err)
		return
	}

	if err := h.walletSvc.VerifyReceivedSlice(r.Context(), sliceID); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, depositResponse{SliceID: sliceID})
}

func toEndpointResponse(endpoint *domain.Endpoint) endpointResponse {
	kind := "wallet"
	if endpoint.IsRemote() {
		kind = "external"
	}
	return endpointResponse{
		ID:           endpoint.ID,
		Owner:        endpoint.Owner,
		Kind:         kind,
		Account:      endpoint.Account,
		PublicKey:    endpoint.PublicKey,
		RemoteURL:    endpoint.RemoteURL,
		Secret:       endpoint.Secret,
		NextPosition: endpoint.NextPosition,
	}
}

func planStateString(state int) string {
	switch state {
	case domain.RoutingPlanStateBuilding:
		return "building"
	case domain.RoutingPlanStateExecuting:
		return "executing"
	case domain.RoutingPlanStateCompleted:
		return "completed"
	case domain.RoutingPlanStateCompensating:
		return "compensating"
	case domain.RoutingPlanStateCompensated:
		return "compensated"
	case domain.RoutingPlanStateFaulted:
		return "faulted"
	default:
		return "unknown"
	}
}

func pathID(w http.ResponseWriter, r *http.Request, prefix string) (uuid.UUID, bool) {
	raw := strings.TrimPrefix(r.URL.Path, prefix)
	id, err := uuid.Parse(raw)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid id"})
		return uuid.Nil, false
	}
	return id, true
}

func decodeBody(w http.ResponseWriter, r *http.Request, target interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(target); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.WithError(err).Warn("http: writing response failed")
	}
}

func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, domain.ErrCertificateNotFound),
		errors.Is(err, domain.ErrSliceNotFound),
		errors.Is(err, domain.ErrEndpointNotFound),
		errors.Is(err, domain.ErrRoutingPlanNotFound):
		status = http.StatusNotFound
	case errors.Is(err, domain.ErrPositionAlreadyTaken):
		status = http.StatusConflict
	case errors.Is(err, domain.ErrInsufficientQuantity),
		errors.Is(err, domain.ErrQuantityNotYetAvailable),
		errors.Is(err, domain.ErrCertificateWithdrawn),
		errors.Is(err, application.ErrNullQuantity),
		errors.Is(err, application.ErrNotProductionCertificate),
		errors.Is(err, application.ErrNotConsumptionCertificate),
		errors.Is(err, application.ErrNotWalletEndpoint),
		errors.Is(err, application.ErrInvalidDeposit):
		status = http.StatusUnprocessableEntity
	}
	writeJSON(w, status, errorResponse{Error: err.Error()})
}
