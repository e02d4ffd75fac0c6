package account

import (
	"context"
	"fmt"
	"math/rand/v2"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/user/cesto-ofertas-go/internal/apperr"
	"github.com/user/cesto-ofertas-go/internal/events"
	"github.com/user/cesto-ofertas-go/internal/model"
	"github.com/user/cesto-ofertas-go/internal/notify"
	"github.com/user/cesto-ofertas-go/internal/store"
)

// ErrWrongStep is returned when a wizard step is called out of order
var ErrWrongStep = fmt.Errorf("onboarding step out of order: %w", apperr.ErrConflict)

// ProfileInput is submitted on the first wizard step
type ProfileInput struct {
	Name            string `json:"name"`
	Email           string `json:"email"`
	Phone           string `json:"phone"`
	Address         string `json:"address"`
	NewPassword     string `json:"new_password"`
	ConfirmPassword string `json:"confirm_password"`
}

// CodeDispatch reports where codes were sent. Codes are only filled in demo mode.
type CodeDispatch struct {
	Email     string `json:"email"`
	Phone     string `json:"phone"`
	EmailCode string `json:"email_code,omitempty"`
	PhoneCode string `json:"phone_code,omitempty"`
}

// VerificationCode returns a random code in 100000..999999
func VerificationCode() string {
	return strconv.Itoa(100000 + rand.IntN(900000))
}

// Validate checks a profile submission
func (in ProfileInput) Validate() error {
	if strings.TrimSpace(in.Name) == "" {
		return apperr.Invalid("name", "name is required")
	}
	if !ValidEmail(strings.TrimSpace(in.Email)) {
		return apperr.Invalid("email", "invalid email address")
	}
	if !ValidPhone(strings.TrimSpace(in.Phone)) {
		return apperr.Invalid("phone", "phone must look like (11) 99999-9999")
	}
	if strings.TrimSpace(in.Address) == "" {
		return apperr.Invalid("address", "address is required")
	}
	if err := validPassword("new_password", in.NewPassword); err != nil {
		return err
	}
	if in.NewPassword != in.ConfirmPassword {
		return apperr.Invalid("confirm_password", "passwords do not match")
	}
	return nil
}

// Progress returns the wizard state of the session's user. Codes are never included.
func (s *Service) Progress(ctx context.Context, sess *model.Session) (*model.Onboarding, error) {
	ob, err := s.onboarding(ctx, sess)
	if err != nil {
		return nil, err
	}
	ob.NewPassword = ""
	ob.EmailCode = ""
	ob.PhoneCode = ""
	return ob, nil
}

// SubmitProfile validates and stores the profile, then advances to the code step.
// The phone is masked from its digits, so "11987654321" is accepted.
func (s *Service) SubmitProfile(ctx context.Context, sess *model.Session, in ProfileInput) (*model.Onboarding, error) {
	ob, err := s.onboarding(ctx, sess)
	if err != nil {
		return nil, err
	}
	if ob.Step != model.StepProfile {
		return nil, ErrWrongStep
	}
	in.Phone = FormatPhone(in.Phone)
	if err := in.Validate(); err != nil {
		return nil, err
	}
	email := normalizeEmail(in.Email)
	users, err := s.users(ctx)
	if err != nil {
		return nil, err
	}
	for _, u := range users {
		if u.Email == email && u.ID != sess.UserID {
			return nil, fmt.Errorf("email %s already registered: %w", email, apperr.ErrConflict)
		}
	}
	hash, err := HashPassword(in.NewPassword)
	if err != nil {
		return nil, err
	}

	ob.Profile = model.Profile{
		Name:    strings.TrimSpace(in.Name),
		Email:   email,
		Phone:   strings.TrimSpace(in.Phone),
		Address: strings.TrimSpace(in.Address),
	}
	ob.NewPassword = hash
	ob.Step = model.StepCodes
	if err := s.saveOnboarding(ctx, ob); err != nil {
		return nil, err
	}
	log.Info().Str("user", sess.UserID).Msg("Onboarding profile submitted")
	return s.Progress(ctx, sess)
}

// DispatchCodes generates the email and SMS codes and sends them through the notifier
func (s *Service) DispatchCodes(ctx context.Context, sess *model.Session) (*CodeDispatch, error) {
	ob, err := s.onboarding(ctx, sess)
	if err != nil {
		return nil, err
	}
	if ob.Step != model.StepCodes {
		return nil, ErrWrongStep
	}

	ob.EmailCode = s.newCode()
	ob.PhoneCode = s.newCode()
	notices := []notify.Notice{
		{
			Channel:   notify.ChannelEmail,
			Recipient: ob.Profile.Email,
			Subject:   "Cesto de Ofertas: código de verificação",
			Body:      fmt.Sprintf("Seu código de verificação é %s", ob.EmailCode),
		},
		{
			Channel:   notify.ChannelSMS,
			Recipient: ob.Profile.Phone,
			Body:      fmt.Sprintf("Cesto de Ofertas: seu código é %s", ob.PhoneCode),
		},
	}
	for _, n := range notices {
		if err := s.notifier.Notify(ctx, n); err != nil {
			return nil, fmt.Errorf("failed to send %s code: %w", n.Channel, err)
		}
	}

	ob.Step = model.StepConfirm
	if err := s.saveOnboarding(ctx, ob); err != nil {
		return nil, err
	}
	log.Info().Str("user", sess.UserID).Msg("Verification codes sent")

	out := &CodeDispatch{Email: ob.Profile.Email, Phone: ob.Profile.Phone}
	if s.exposeCodes {
		out.EmailCode = ob.EmailCode
		out.PhoneCode = ob.PhoneCode
	}
	return out, nil
}

// ConfirmCodes checks both codes and completes the account. The profile email is
// checked again, since another account may have taken it after SubmitProfile.
func (s *Service) ConfirmCodes(ctx context.Context, sess *model.Session, emailCode, phoneCode string) (*model.User, error) {
	ob, err := s.onboarding(ctx, sess)
	if err != nil {
		return nil, err
	}
	if ob.Step != model.StepConfirm {
		return nil, ErrWrongStep
	}
	if strings.TrimSpace(emailCode) != ob.EmailCode {
		return nil, apperr.Invalid("email_code", "incorrect email code")
	}
	if strings.TrimSpace(phoneCode) != ob.PhoneCode {
		return nil, apperr.Invalid("phone_code", "incorrect SMS code")
	}

	var updated *model.User
	_, err = store.Update(ctx, s.store, store.UsersKey, func(all []model.User) ([]model.User, error) {
		for _, u := range all {
			if u.Email == ob.Profile.Email && u.ID != sess.UserID {
				return nil, fmt.Errorf("email %s already registered: %w", ob.Profile.Email, apperr.ErrConflict)
			}
		}
		for i := range all {
			if all[i].ID != sess.UserID {
				continue
			}
			u := &all[i]
			u.Name = ob.Profile.Name
			u.Email = ob.Profile.Email
			u.Phone = ob.Profile.Phone
			u.Address = ob.Profile.Address
			u.Password = ob.NewPassword
			u.FirstLogin = false
			u.EmailVerified = true
			u.PhoneVerified = true
			u.UpdatedAt = s.now()
			cp := *u
			updated = &cp
		}
		if updated == nil {
			return nil, fmt.Errorf("user %s: %w", sess.UserID, apperr.ErrNotFound)
		}
		return all, nil
	})
	if err != nil {
		return nil, err
	}

	ob.Step = model.StepDone
	ob.NewPassword = ""
	ob.EmailCode = ""
	ob.PhoneCode = ""
	if err := s.saveOnboarding(ctx, ob); err != nil {
		return nil, err
	}
	sess.FirstLogin = false
	if err := store.PutJSON(ctx, s.store, store.SessionKey(sess.Token), sess); err != nil {
		return nil, fmt.Errorf("failed to refresh session: %w", err)
	}

	log.Info().Str("user", sess.UserID).Msg("Onboarding completed")
	if err := s.events.Publish(ctx, events.Event{Type: events.TypeUserVerified, UserID: sess.UserID}); err != nil {
		log.Warn().Err(err).Msg("Failed to publish event")
	}
	return updated, nil
}

// onboarding loads the wizard state, starting at the profile step for first-login users
func (s *Service) onboarding(ctx context.Context, sess *model.Session) (*model.Onboarding, error) {
	if err := apperr.RequireSession(sess); err != nil {
		return nil, err
	}
	var ob model.Onboarding
	ok, err := store.GetJSON(ctx, s.store, store.OnboardingKey(sess.UserID), &ob)
	if err != nil {
		return nil, err
	}
	if ok {
		return &ob, nil
	}

	u, err := s.user(ctx, sess.UserID)
	if err != nil {
		return nil, err
	}
	ob = model.Onboarding{UserID: u.ID, Step: model.StepDone, UpdatedAt: s.now()}
	if u.FirstLogin {
		ob.Step = model.StepProfile
		ob.Profile = model.Profile{Name: u.Name, Email: u.Email, Phone: u.Phone, Address: u.Address}
	}
	return &ob, nil
}

func (s *Service) saveOnboarding(ctx context.Context, ob *model.Onboarding) error {
	ob.UpdatedAt = s.now()
	if err := store.PutJSON(ctx, s.store, store.OnboardingKey(ob.UserID), ob); err != nil {
		return fmt.Errorf("failed to save onboarding: %w", err)
	}
	return nil
}
