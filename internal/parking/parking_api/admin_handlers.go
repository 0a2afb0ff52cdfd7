package parking_api

import (
	"fmt"
	"net/http"
	"strconv"

	"ms-parking/internal/models"
	"ms-parking/internal/utils"

	"github.com/go-chi/chi/v5"
)

func (h *Handler) RegisterMember(w http.ResponseWriter, r *http.Request) {
	var req models.MemberRegistration
	if err := decode(r, &req); err != nil {
		h.badRequest(w, "RegisterMember", err)
		return
	}
	h.Logger.Info("API", fmt.Sprintf("RegisterMember: plate=%s", req.VehiclePlateNumber))

	member, err := h.Members.Register(r.Context(), req)
	if err != nil {
		h.fail(w, "RegisterMember", "Member registration failed", err)
		return
	}
	h.write(w, http.StatusCreated, utils.SuccessResponse("Member registered", member))
}

func (h *Handler) ListMembers(w http.ResponseWriter, r *http.Request) {
	activeOnly, _ := strconv.ParseBool(r.URL.Query().Get("active"))

	members, err := h.Members.List(r.Context(), activeOnly)
	if err != nil {
		h.fail(w, "ListMembers", "Could not list members", err)
		return
	}
	h.write(w, http.StatusOK, utils.SuccessResponse(fmt.Sprintf("%d members", len(members)), members))
}

func (h *Handler) GetMember(w http.ResponseWriter, r *http.Request) {
	member, err := h.Members.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, "GetMember", "Member not found", err)
		return
	}
	h.write(w, http.StatusOK, utils.SuccessResponse("Member found", member))
}

func (h *Handler) UpdateMember(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var req models.MemberUpdate
	if err := decode(r, &req); err != nil {
		h.badRequest(w, "UpdateMember", err)
		return
	}

	member, err := h.Members.Update(r.Context(), id, req)
	if err != nil {
		h.fail(w, "UpdateMember", "Member update failed", err)
		return
	}
	h.write(w, http.StatusOK, utils.SuccessResponse("Member updated", member))
}

func (h *Handler) DeactivateMember(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	h.Logger.Info("API", fmt.Sprintf("DeactivateMember: id=%s", id))

	if err := h.Members.Deactivate(r.Context(), id); err != nil {
		h.fail(w, "DeactivateMember", "Member deactivation failed", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) TopUpMember(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var req models.TopUpRequest
	if err := decode(r, &req); err != nil {
		h.badRequest(w, "TopUpMember", err)
		return
	}
	h.Logger.Info("API", fmt.Sprintf("TopUpMember: id=%s amount=%s", id, req.Amount))

	member, err := h.Members.TopUp(r.Context(), id, req.Amount)
	if err != nil {
		h.fail(w, "TopUpMember", "Top-up failed", err)
		return
	}
	h.write(w, http.StatusOK, utils.SuccessResponse("Balance topped up", member))
}

func (h *Handler) CreateVoucher(w http.ResponseWriter, r *http.Request) {
	var req models.VoucherCreate
	if err := decode(r, &req); err != nil {
		h.badRequest(w, "CreateVoucher", err)
		return
	}
	h.Logger.Info("API", fmt.Sprintf("CreateVoucher: code=%s", req.Code))

	voucher, err := h.Vouchers.Create(r.Context(), req)
	if err != nil {
		h.fail(w, "CreateVoucher", "Voucher creation failed", err)
		return
	}
	h.write(w, http.StatusCreated, utils.SuccessResponse("Voucher created", voucher))
}

func (h *Handler) ListVouchers(w http.ResponseWriter, r *http.Request) {
	activeOnly, _ := strconv.ParseBool(r.URL.Query().Get("active"))

	vouchers, err := h.Vouchers.List(r.Context(), activeOnly)
	if err != nil {
		h.fail(w, "ListVouchers", "Could not list vouchers", err)
		return
	}
	h.write(w, http.StatusOK, utils.SuccessResponse(fmt.Sprintf("%d vouchers", len(vouchers)), vouchers))
}

func (h *Handler) GetVoucherByCode(w http.ResponseWriter, r *http.Request) {
	voucher, err := h.Vouchers.GetByCode(r.Context(), chi.URLParam(r, "code"))
	if err != nil {
		h.fail(w, "GetVoucherByCode", "Voucher not found", err)
		return
	}
	h.write(w, http.StatusOK, utils.SuccessResponse("Voucher found", voucher))
}

func (h *Handler) TerminateVoucher(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	h.Logger.Info("API", fmt.Sprintf("TerminateVoucher: id=%s", id))

	voucher, err := h.Vouchers.Terminate(r.Context(), id)
	if err != nil {
		h.fail(w, "TerminateVoucher", "Voucher termination failed", err)
		return
	}
	h.write(w, http.StatusOK, utils.SuccessResponse("Voucher terminated", voucher))
}
