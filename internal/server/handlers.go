package server

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/user/cesto-ofertas-go/internal/account"
	"github.com/user/cesto-ofertas-go/internal/apperr"
	"github.com/user/cesto-ofertas-go/internal/model"
	"github.com/user/cesto-ofertas-go/internal/render"
)

type credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// userView is a user without credentials
type userView struct {
	ID            string    `json:"id"`
	Email         string    `json:"email"`
	Name          string    `json:"name"`
	Phone         string    `json:"phone"`
	Address       string    `json:"address"`
	IsAdmin       bool      `json:"is_admin"`
	FirstLogin    bool      `json:"first_login"`
	EmailVerified bool      `json:"email_verified"`
	PhoneVerified bool      `json:"phone_verified"`
	CreatedAt     time.Time `json:"created_at"`
}

func viewUser(u *model.User) userView {
	return userView{
		ID:            u.ID,
		Email:         u.Email,
		Name:          u.Name,
		Phone:         u.Phone,
		Address:       u.Address,
		IsAdmin:       u.IsAdmin,
		FirstLogin:    u.FirstLogin,
		EmailVerified: u.EmailVerified,
		PhoneVerified: u.PhoneVerified,
		CreatedAt:     u.CreatedAt,
	}
}

func notFound(kind, id string) error {
	return fmt.Errorf("%s %s: %w", kind, id, apperr.ErrNotFound)
}

// Accounts

func (s *Server) handleSignIn(w http.ResponseWriter, r *http.Request) {
	var in credentials
	if err := decode(r, &in); err != nil {
		writeError(w, r, err)
		return
	}
	sess, err := s.svc.Accounts.SignIn(r.Context(), in.Email, in.Password)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sess)
}

func (s *Server) handleSignUp(w http.ResponseWriter, r *http.Request) {
	var in credentials
	if err := decode(r, &in); err != nil {
		writeError(w, r, err)
		return
	}
	sess, err := s.svc.Accounts.SignUp(r.Context(), in.Email, in.Password)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, sess)
}

func (s *Server) handleSignOut(w http.ResponseWriter, r *http.Request) {
	if err := s.svc.Accounts.SignOut(r.Context(), session(r).Token); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	u, err := s.svc.Accounts.Me(r.Context(), session(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, viewUser(u))
}

func (s *Server) handleOnboardingProgress(w http.ResponseWriter, r *http.Request) {
	ob, err := s.svc.Accounts.Progress(r.Context(), session(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ob)
}

func (s *Server) handleSubmitProfile(w http.ResponseWriter, r *http.Request) {
	var in account.ProfileInput
	if err := decode(r, &in); err != nil {
		writeError(w, r, err)
		return
	}
	ob, err := s.svc.Accounts.SubmitProfile(r.Context(), session(r), in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ob)
}

func (s *Server) handleDispatchCodes(w http.ResponseWriter, r *http.Request) {
	d, err := s.svc.Accounts.DispatchCodes(r.Context(), session(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

func (s *Server) handleConfirmCodes(w http.ResponseWriter, r *http.Request) {
	var in struct {
		EmailCode string `json:"email_code"`
		PhoneCode string `json:"phone_code"`
	}
	if err := decode(r, &in); err != nil {
		writeError(w, r, err)
		return
	}
	u, err := s.svc.Accounts.ConfirmCodes(r.Context(), session(r), in.EmailCode, in.PhoneCode)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, viewUser(u))
}

// Products

func (s *Server) handleListProducts(w http.ResponseWriter, r *http.Request) {
	products, err := s.svc.Products.List(r.Context(), session(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, products)
}

func (s *Server) handleCreateProduct(w http.ResponseWriter, r *http.Request) {
	var in model.ProductInput
	if err := decode(r, &in); err != nil {
		writeError(w, r, err)
		return
	}
	p, err := s.svc.Products.Create(r.Context(), session(r), in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, p)
}

func (s *Server) handleUpdateProduct(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var in model.ProductInput
	if err := decode(r, &in); err != nil {
		writeError(w, r, err)
		return
	}
	p, err := s.svc.Products.Update(r.Context(), session(r), id, in)
	if err == nil && p == nil {
		err = notFound("product", id)
	}
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (s *Server) handleDeleteProduct(w http.ResponseWriter, r *http.Request) {
	if err := s.svc.Products.Delete(r.Context(), session(r), chi.URLParam(r, "id")); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleToggleProduct(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	p, err := s.svc.Products.Toggle(r.Context(), session(r), id)
	if err == nil && p == nil {
		err = notFound("product", id)
	}
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

type activeRequest struct {
	Active *bool `json:"is_active"`
}

// decodeActive reads the is_active flag, which must be present
func decodeActive(r *http.Request) (bool, error) {
	var in activeRequest
	if err := decode(r, &in); err != nil {
		return false, err
	}
	if in.Active == nil {
		return false, apperr.Invalid("is_active", "is_active is required")
	}
	return *in.Active, nil
}

func (s *Server) handleSetProductActive(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	active, err := decodeActive(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	p, err := s.svc.Products.SetActive(r.Context(), session(r), id, active)
	if err == nil && p == nil {
		err = notFound("product", id)
	}
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (s *Server) handleImportProduct(w http.ResponseWriter, r *http.Request) {
	var in struct {
		URL string `json:"url"`
	}
	if err := decode(r, &in); err != nil {
		writeError(w, r, err)
		return
	}
	draft, err := s.svc.Products.Import(r.Context(), session(r), strings.TrimSpace(in.URL))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, draft)
}

// Broadcast configurations

func (s *Server) handleListConfigs(w http.ResponseWriter, r *http.Request) {
	configs, err := s.svc.Configs.List(r.Context(), session(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, configs)
}

func (s *Server) handleCreateConfig(w http.ResponseWriter, r *http.Request) {
	var in model.BroadcastConfigInput
	if err := decode(r, &in); err != nil {
		writeError(w, r, err)
		return
	}
	cfg, err := s.svc.Configs.Create(r.Context(), session(r), in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, cfg)
}

func (s *Server) handleUpdateConfig(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var in model.BroadcastConfigInput
	if err := decode(r, &in); err != nil {
		writeError(w, r, err)
		return
	}
	cfg, err := s.svc.Configs.Update(r.Context(), session(r), id, in)
	if err == nil && cfg == nil {
		err = notFound("config", id)
	}
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, cfg)
}

func (s *Server) handleDeleteConfig(w http.ResponseWriter, r *http.Request) {
	if err := s.svc.Configs.Delete(r.Context(), session(r), chi.URLParam(r, "id")); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleToggleConfig(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	cfg, err := s.svc.Configs.Toggle(r.Context(), session(r), id)
	if err == nil && cfg == nil {
		err = notFound("config", id)
	}
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, cfg)
}

func (s *Server) handleSetConfigActive(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	active, err := decodeActive(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	cfg, err := s.svc.Configs.SetActive(r.Context(), session(r), id, active)
	if err == nil && cfg == nil {
		err = notFound("config", id)
	}
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, cfg)
}

// handleSendConfig runs one send and waits for it. Closing the request cancels the send.
func (s *Server) handleSendConfig(w http.ResponseWriter, r *http.Request) {
	t := s.svc.Push.SendAsync(r.Context(), session(r), chi.URLParam(r, "id"))
	entry, err := t.Wait(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, entry)
}

type previewRequest struct {
	Template  string              `json:"message_template"`
	ProductID string              `json:"product_id"`
	Product   *model.ProductInput `json:"product,omitempty"`
}

type previewResponse struct {
	Message      string   `json:"message"`
	Placeholders []string `json:"placeholders"`
	Unknown      []string `json:"unknown"`
}

// handlePreview renders a template against a stored product or an inline draft
func (s *Server) handlePreview(w http.ResponseWriter, r *http.Request) {
	var in previewRequest
	if err := decode(r, &in); err != nil {
		writeError(w, r, err)
		return
	}
	var fields render.Fields
	switch {
	case in.ProductID != "":
		p, err := s.svc.Products.Get(r.Context(), session(r), in.ProductID)
		if err != nil {
			writeError(w, r, err)
			return
		}
		fields = render.FieldsFromProduct(p)
	case in.Product != nil:
		fields = render.FieldsFromProduct(&model.Product{
			Name:         in.Product.Name,
			Description:  in.Product.Description,
			Price:        in.Product.Price,
			AffiliateURL: in.Product.AffiliateURL,
		})
	default:
		writeError(w, r, apperr.Invalid("product_id", "a product is required"))
		return
	}
	writeJSON(w, http.StatusOK, previewResponse{
		Message:      render.Render(in.Template, fields),
		Placeholders: render.Placeholders(),
		Unknown:      render.Unknown(in.Template),
	})
}

func (s *Server) handleListLogs(w http.ResponseWriter, r *http.Request) {
	entries, err := s.svc.Logs.Describe(r.Context(), session(r).UserID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

// Videos

func (s *Server) handleListVideos(w http.ResponseWriter, r *http.Request) {
	videos, err := s.svc.Videos.List(r.Context(), session(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, videos)
}

func (s *Server) handleCreateVideo(w http.ResponseWriter, r *http.Request) {
	var in model.VideoAssetInput
	if err := decode(r, &in); err != nil {
		writeError(w, r, err)
		return
	}
	v, err := s.svc.Videos.Create(r.Context(), session(r), in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, v)
}

func (s *Server) handleDeleteVideo(w http.ResponseWriter, r *http.Request) {
	if err := s.svc.Videos.Delete(r.Context(), session(r), chi.URLParam(r, "id")); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleDownloadVideo(w http.ResponseWriter, r *http.Request) {
	d, err := s.svc.Videos.Download(r.Context(), session(r), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

// Admin

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	st, err := s.svc.Accounts.Stats(r.Context(), session(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (s *Server) handleListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := s.svc.Accounts.Users(r.Context(), session(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	out := make([]userView, 0, len(users))
	for i := range users {
		out = append(out, viewUser(&users[i]))
	}
	writeJSON(w, http.StatusOK, out)
}

// handleRunScheduler triggers a broadcast pass in the background.
// With ?wait=true the pass runs within the request and closing it cancels the pass.
func (s *Server) handleRunScheduler(w http.ResponseWriter, r *http.Request) {
	if err := apperr.RequireAdmin(session(r)); err != nil {
		writeError(w, r, err)
		return
	}
	if s.svc.Scheduler == nil {
		writeError(w, r, fmt.Errorf("scheduler is not configured: %w", apperr.ErrConflict))
		return
	}
	busy := fmt.Errorf("a broadcast pass is already running: %w", apperr.ErrConflict)
	if r.URL.Query().Get("wait") == "true" {
		if !s.svc.Scheduler.TryRun(r.Context()) {
			writeError(w, r, busy)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "completed"})
		return
	}
	if !s.svc.Scheduler.Trigger() {
		writeError(w, r, busy)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "started"})
}
